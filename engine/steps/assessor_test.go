package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphrag-collective/pipeline-engine/engine/envelope"
	"github.com/graphrag-collective/pipeline-engine/engine/records"
)

func assess(t *testing.T, results []records.Record) *envelope.Metadata {
	t.Helper()
	msg := envelope.NewMessage(envelope.RoleAssistant, "query ran")
	msg.Meta().Results = results
	msg.Meta().Query = "MATCH (n) RETURN n"

	res, err := (&Assessor{}).Execute(context.Background(), msg, "s1")
	require.NoError(t, err)
	require.True(t, res.Next.IsContinue())
	return res.Message.Meta()
}

func TestAssessorNoResults(t *testing.T) {
	md := assess(t, nil)

	assert.Equal(t, AssessmentNoResults, md.Assessment)
	assert.Equal(t, 0, *md.ResultCount)
	assert.Equal(t, 0, *md.RawResultCount)
}

func TestAssessorPartialResultsForceEffectiveZero(t *testing.T) {
	md := assess(t, []records.Record{
		{"name": "dengue", "symptom": "fever"},
		{"name": "zika", "symptom": nil},
	})

	assert.Equal(t, AssessmentPartialResults, md.Assessment)
	assert.Equal(t, 0, *md.ResultCount)
	assert.Equal(t, 2, *md.RawResultCount)
	assert.Len(t, md.Results, 2) // results preserved for downstream steps
}

func TestAssessorGoodResults(t *testing.T) {
	md := assess(t, []records.Record{
		{"name": "dengue", "symptom": "fever"},
		{"name": "zika", "symptom": "rash"},
	})

	assert.Equal(t, AssessmentGoodResults, md.Assessment)
	assert.Equal(t, 2, *md.ResultCount)
	assert.Equal(t, 2, *md.RawResultCount)
}

func TestAssessorPreservesOtherMetadata(t *testing.T) {
	md := assess(t, []records.Record{{"name": "x"}})
	assert.Equal(t, "MATCH (n) RETURN n", md.Query)
}

func TestAssessorIsIdempotent(t *testing.T) {
	msg := envelope.NewMessage(envelope.RoleAssistant, "ran")
	msg.Meta().Results = []records.Record{{"name": "x", "value": nil}}

	a := &Assessor{}
	first, err := a.Execute(context.Background(), msg, "s1")
	require.NoError(t, err)
	second, err := a.Execute(context.Background(), first.Message, "s1")
	require.NoError(t, err)

	fm, sm := first.Message.Meta(), second.Message.Meta()
	assert.Equal(t, fm.Assessment, sm.Assessment)
	assert.Equal(t, *fm.ResultCount, *sm.ResultCount)
	assert.Equal(t, *fm.RawResultCount, *sm.RawResultCount)
}

func TestAssessorContentIsJSONSummary(t *testing.T) {
	msg := envelope.NewMessage(envelope.RoleAssistant, "ran")
	res, err := (&Assessor{}).Execute(context.Background(), msg, "s1")
	require.NoError(t, err)

	assert.Contains(t, res.Message.Content, `"assessment"`)
	assert.Contains(t, res.Message.Content, AssessmentNoResults)
}
