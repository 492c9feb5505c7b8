package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphrag-collective/pipeline-engine/engine/citations"
	"github.com/graphrag-collective/pipeline-engine/engine/envelope"
	"github.com/graphrag-collective/pipeline-engine/engine/records"
	"github.com/graphrag-collective/pipeline-engine/engine/testutil"
)

func TestResponderAnswersFromResults(t *testing.T) {
	gen := &testutil.ScriptedGenerator{Replies: []string{"Dengue is transmitted by Aedes mosquitoes."}}
	r := &Responder{Generator: gen, Prompt: "answer from results"}

	msg := envelope.NewMessage(envelope.RoleUser, "what transmits dengue?")
	md := msg.Meta()
	md.OriginalQuery = "what transmits dengue?"
	md.Results = []records.Record{{"id": "n1", "name": "Aedes aegypti"}}

	res, err := r.Execute(context.Background(), msg, "s1")
	require.NoError(t, err)
	assert.Contains(t, res.Message.Content, "Aedes mosquitoes")
}

func TestResponderAppendsSources(t *testing.T) {
	gen := &testutil.ScriptedGenerator{Replies: []string{"Answer."}}
	r := &Responder{Generator: gen, Prompt: "p"}

	msg := envelope.NewMessage(envelope.RoleUser, "q")
	md := msg.Meta()
	md.Results = []records.Record{{"id": "n1"}}
	md.Citations = []citations.Citation{{ID: "c1", Title: "Vector biology", Year: 2019}}

	res, err := r.Execute(context.Background(), msg, "s1")
	require.NoError(t, err)

	assert.Contains(t, res.Message.Content, "Sources:")
	assert.Contains(t, res.Message.Content, "Vector biology")
}

func TestResponderNoResultsShortCircuits(t *testing.T) {
	gen := &testutil.ScriptedGenerator{}
	r := &Responder{Generator: gen, Prompt: "p"}

	res, err := r.Execute(context.Background(), envelope.NewMessage(envelope.RoleUser, "q"), "s1")
	require.NoError(t, err)

	assert.Equal(t, NoResultsMessage, res.Message.Content)
	assert.Equal(t, 0, gen.Calls)
}

func TestComplianceCheckPassesCleanAnswer(t *testing.T) {
	gen := &testutil.ScriptedGenerator{Replies: []string{"OK"}}
	c := &ComplianceCheck{Generator: gen, Prompt: "review"}

	msg := envelope.NewMessage(envelope.RoleAssistant, "a clean answer")
	res, err := c.Execute(context.Background(), msg, "s1")
	require.NoError(t, err)

	assert.Equal(t, "a clean answer", res.Message.Content)
	_, remediated := res.Message.Meta().Get(RemediatedKey)
	assert.False(t, remediated)
}

func TestComplianceCheckRemediates(t *testing.T) {
	gen := &testutil.ScriptedGenerator{Replies: []string{"POLICY_VIOLATION medical advice"}}
	c := &ComplianceCheck{Generator: gen, Prompt: "review"}

	msg := envelope.NewMessage(envelope.RoleAssistant, "bad answer")
	res, err := c.Execute(context.Background(), msg, "s1")
	require.NoError(t, err)

	assert.Equal(t, DefaultSafeMessage, res.Message.Content)
	v, ok := res.Message.Meta().Get(RemediatedKey)
	assert.True(t, ok)
	assert.Equal(t, true, v)
	assert.True(t, res.Next.IsContinue()) // remediation replaces, never blocks
}
