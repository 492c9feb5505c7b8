// Package backends declares the external service contracts the engine depends
// on. Model inference and the graph store live outside this module; steps see
// only these interfaces and wrap their failures in the shared taxonomy.
package backends

import (
	"context"
	"time"

	"github.com/graphrag-collective/pipeline-engine/engine/records"
)

// ChatMessage is one turn of a model conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenOptions tunes a single generation call. Zero values mean backend defaults.
type GenOptions struct {
	MaxTokens   int
	Temperature float64
}

// TextGenerator produces model completions. Implementations must honor ctx
// cancellation and return the model latency for observability.
type TextGenerator interface {
	Generate(ctx context.Context, msgs []ChatMessage, opts GenOptions) (string, time.Duration, error)
}

// KnowledgeStore executes read statements against the graph database.
type KnowledgeStore interface {
	Query(ctx context.Context, statement string) ([]records.Record, error)
}

// Schema describes the labels and relationship types a generated query may
// reference. Query validation checks against these sets.
type Schema struct {
	NodeLabels        []string `json:"node_labels"`
	RelationshipTypes []string `json:"relationship_types"`
}

// HasLabel reports whether label is part of the schema.
func (s *Schema) HasLabel(label string) bool {
	return contains(s.NodeLabels, label)
}

// HasRelationship reports whether relType is part of the schema.
func (s *Schema) HasRelationship(relType string) bool {
	return contains(s.RelationshipTypes, relType)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
