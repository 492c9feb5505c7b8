package step

// DispatchKind discriminates the routing variants a step may return.
type DispatchKind string

const (
	// DispatchContinue advances to the next directive in order.
	DispatchContinue DispatchKind = "continue"
	// DispatchJump transfers control to a named step at the current level.
	DispatchJump DispatchKind = "jump"
	// DispatchStop terminates the run immediately.
	DispatchStop DispatchKind = "stop"
)

// Dispatch is the routing decision attached to a step result. The zero value
// is Continue, so handlers that only produce output need no explicit dispatch.
type Dispatch struct {
	kind   DispatchKind
	target string
}

// Continue advances to the next directive.
func Continue() Dispatch { return Dispatch{kind: DispatchContinue} }

// JumpTo transfers control to the step with the given id.
func JumpTo(stepID string) Dispatch { return Dispatch{kind: DispatchJump, target: stepID} }

// Stop terminates the workflow run.
func Stop() Dispatch { return Dispatch{kind: DispatchStop} }

// Kind returns the variant, mapping the zero value to Continue.
func (d Dispatch) Kind() DispatchKind {
	if d.kind == "" {
		return DispatchContinue
	}
	return d.kind
}

// IsContinue reports whether the run proceeds sequentially.
func (d Dispatch) IsContinue() bool { return d.Kind() == DispatchContinue }

// IsJump reports whether control transfers to a named step.
func (d Dispatch) IsJump() bool { return d.kind == DispatchJump }

// IsStop reports whether the run terminates.
func (d Dispatch) IsStop() bool { return d.kind == DispatchStop }

// Target returns the jump destination, empty for other variants.
func (d Dispatch) Target() string { return d.target }

func (d Dispatch) String() string {
	if d.kind == DispatchJump {
		return "jump:" + d.target
	}
	return string(d.Kind())
}
