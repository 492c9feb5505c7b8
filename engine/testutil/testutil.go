// Package testutil provides fakes shared by the engine's package tests:
// a recording logger, a scripted text generator, an in-memory knowledge
// store and a scripted citation source.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/graphrag-collective/pipeline-engine/engine/backends"
	"github.com/graphrag-collective/pipeline-engine/engine/citations"
	"github.com/graphrag-collective/pipeline-engine/engine/logging"
	"github.com/graphrag-collective/pipeline-engine/engine/records"
)

// MockLogger implements logging.Logger and records warnings and errors.
type MockLogger struct {
	mu       sync.Mutex
	Warnings []string
	Errors   []string
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {}
func (m *MockLogger) Info(msg string, keysAndValues ...any)  {}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Warnings = append(m.Warnings, msg)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors = append(m.Errors, msg)
}

func (m *MockLogger) Bind(keysAndValues ...any) logging.Logger { return m }

// WarningCount returns the number of recorded warnings.
func (m *MockLogger) WarningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Warnings)
}

// ScriptedGenerator returns queued replies in order. When the queue is
// exhausted it repeats the last reply. Err, when set, fails every call.
type ScriptedGenerator struct {
	mu      sync.Mutex
	Replies []string
	Err     error
	Calls   int
}

func (g *ScriptedGenerator) Generate(ctx context.Context, msgs []backends.ChatMessage, opts backends.GenOptions) (string, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls++
	if g.Err != nil {
		return "", time.Millisecond, g.Err
	}
	if len(g.Replies) == 0 {
		return "", time.Millisecond, nil
	}
	idx := g.Calls - 1
	if idx >= len(g.Replies) {
		idx = len(g.Replies) - 1
	}
	return g.Replies[idx], time.Millisecond, nil
}

// MemoryStore implements backends.KnowledgeStore over scripted result sets,
// returned in order of Query calls. Err fails every call.
type MemoryStore struct {
	mu         sync.Mutex
	ResultSets [][]records.Record
	Err        error
	Statements []string
}

func (s *MemoryStore) Query(ctx context.Context, statement string) ([]records.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Statements = append(s.Statements, statement)
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.ResultSets) == 0 {
		return nil, nil
	}
	idx := len(s.Statements) - 1
	if idx >= len(s.ResultSets) {
		idx = len(s.ResultSets) - 1
	}
	return s.ResultSets[idx], nil
}

// CitationSource implements citations.Source from a fixed node map.
// FailNodes lists node ids whose fetch returns an error.
type CitationSource struct {
	ByNode    map[string][]citations.Citation
	FailNodes map[string]error
}

func (c *CitationSource) FetchCitations(ctx context.Context, nodeID string) ([]citations.Citation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := c.FailNodes[nodeID]; ok {
		return nil, err
	}
	return c.ByNode[nodeID], nil
}
