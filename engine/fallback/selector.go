// Package fallback implements validated strategy selection: a primary strategy
// gets a bounded number of attempts with validation feedback, then a simpler
// fallback strategy gets exactly one unconditional attempt. The caller is
// guaranteed at most MaxPrimaryAttempts+1 strategy invocations per selection.
package fallback

import (
	"context"

	"github.com/graphrag-collective/pipeline-engine/engine/faults"
	"github.com/graphrag-collective/pipeline-engine/engine/logging"
	"github.com/graphrag-collective/pipeline-engine/engine/observability"
)

// DefaultMaxPrimaryAttempts bounds primary attempts when the caller sets none.
const DefaultMaxPrimaryAttempts = 3

// ApproachFallback tags selections that settled on the fallback strategy.
const ApproachFallback = "fallback"

// Rejection records one rejected primary attempt. The slice of prior
// rejections is fed back to the next attempt as negative examples.
type Rejection struct {
	Output string
	Reason string
}

// Strategy produces a candidate output for an input. Attempt receives the
// rejections of earlier attempts so it can steer away from them.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, input string, feedback []Rejection) (string, error)
}

// Verdict is a validation outcome. HardInvalid marks objections that reject
// the output even in relaxed mode; soft objections only reject in strict mode.
type Verdict struct {
	Valid       bool
	HardInvalid bool
	Reason      string
}

// Validator judges a candidate output.
type Validator func(output string) Verdict

// Selection is the outcome of a Select call. Attempts counts primary attempts
// only; Approach is the winning strategy's name, or "fallback" when the
// primary was exhausted.
type Selection struct {
	Output       string
	StrategyUsed string
	Approach     string
	Attempts     int
	Rejections   []Rejection
}

// Selector runs the primary-then-fallback protocol.
type Selector struct {
	Name               string
	Primary            Strategy
	Fallback           Strategy
	Validate           Validator
	MaxPrimaryAttempts int
	Strict             bool
	Logger             logging.Logger
}

// Select runs up to MaxPrimaryAttempts validated primary attempts, then one
// fallback attempt accepted without validation. MaxPrimaryAttempts of zero
// skips the primary entirely. Cancellation and fallback failures return an
// error; primary failures only consume attempts.
func (s *Selector) Select(ctx context.Context, input string) (*Selection, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	maxAttempts := s.MaxPrimaryAttempts
	if maxAttempts < 0 {
		return nil, faults.Validationf("max primary attempts must not be negative")
	}
	if s.Fallback == nil {
		return nil, faults.Validationf("selector %q has no fallback strategy", s.Name)
	}

	var rejections []Rejection
	for attempt := 1; attempt <= maxAttempts && s.Primary != nil; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, faults.Wrap(faults.KindCancelled, err, "selection cancelled")
		}
		output, err := s.Primary.Attempt(ctx, input, rejections)
		if err != nil {
			if faults.KindOf(err) == faults.KindCancelled {
				return nil, err
			}
			logger.Warn("primary attempt failed", "selector", s.Name, "attempt", attempt, "error", err.Error())
			rejections = append(rejections, Rejection{Reason: err.Error()})
			continue
		}
		verdict := s.judge(output)
		if verdict.Valid {
			logger.Info("primary strategy accepted", "selector", s.Name, "strategy", s.Primary.Name(), "attempt", attempt)
			observability.RecordFallbackSelection(s.Name, s.Primary.Name())
			return &Selection{
				Output:       output,
				StrategyUsed: s.Primary.Name(),
				Approach:     s.Primary.Name(),
				Attempts:     attempt,
				Rejections:   rejections,
			}, nil
		}
		logger.Warn("primary attempt rejected", "selector", s.Name, "attempt", attempt, "reason", verdict.Reason)
		rejections = append(rejections, Rejection{Output: output, Reason: verdict.Reason})
	}

	attemptsUsed := len(rejections)
	if s.Primary == nil {
		attemptsUsed = 0
	}

	if err := ctx.Err(); err != nil {
		return nil, faults.Wrap(faults.KindCancelled, err, "selection cancelled")
	}
	output, err := s.Fallback.Attempt(ctx, input, rejections)
	if err != nil {
		return nil, faults.Wrap(faults.KindBackend, err, "fallback strategy %q failed", s.Fallback.Name())
	}
	logger.Info("fallback strategy used", "selector", s.Name, "strategy", s.Fallback.Name(), "primary_attempts", attemptsUsed)
	observability.RecordFallbackSelection(s.Name, ApproachFallback)
	return &Selection{
		Output:       output,
		StrategyUsed: s.Fallback.Name(),
		Approach:     ApproachFallback,
		Attempts:     attemptsUsed,
		Rejections:   rejections,
	}, nil
}

// judge applies the validator under the configured mode. No validator means
// every output is acceptable. In relaxed mode only hard objections reject.
func (s *Selector) judge(output string) Verdict {
	if s.Validate == nil {
		return Verdict{Valid: true}
	}
	verdict := s.Validate(output)
	if !verdict.Valid && !s.Strict && !verdict.HardInvalid {
		verdict.Valid = true
	}
	return verdict
}
