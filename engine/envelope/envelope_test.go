package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphrag-collective/pipeline-engine/engine/records"
)

func TestNewMessageDefaults(t *testing.T) {
	msg := NewMessage(RoleUser, "what transmits dengue?")

	assert.Contains(t, msg.ID, "msg_")
	assert.Equal(t, RoleUser, msg.Role)
	assert.NotNil(t, msg.Metadata)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestRoleFromString(t *testing.T) {
	assert.Equal(t, RoleSystem, RoleFromString("system"))
	assert.Equal(t, RoleAssistant, RoleFromString("assistant"))
	assert.Equal(t, RoleTool, RoleFromString("tool"))
	assert.Equal(t, RoleUser, RoleFromString("something_else"))
}

func TestCloneIsDeep(t *testing.T) {
	msg := NewMessage(RoleAssistant, "found results")
	md := msg.Meta()
	md.Query = "MATCH (n) RETURN n"
	md.Results = []records.Record{{"name": "Aedes aegypti", "id": "node-1"}}
	md.ResultCount = IntPtr(1)
	md.Set("custom", "value")

	clone := msg.Clone()
	clone.Meta().Results[0]["name"] = "changed"
	*clone.Meta().ResultCount = 99
	clone.Meta().Set("custom", "other")

	assert.Equal(t, "Aedes aegypti", md.Results[0]["name"])
	assert.Equal(t, 1, *md.ResultCount)
	v, _ := md.Get("custom")
	assert.Equal(t, "value", v)
}

func TestReplyCarriesMetadata(t *testing.T) {
	msg := NewMessage(RoleUser, "question")
	msg.Meta().Query = "MATCH (n) RETURN n"

	reply := msg.Reply("answer")

	assert.Equal(t, RoleAssistant, reply.Role)
	assert.Equal(t, "answer", reply.Content)
	assert.Equal(t, "MATCH (n) RETURN n", reply.Meta().Query)
	assert.NotEqual(t, msg.ID, reply.ID)
}

func TestMergeSetFieldsWin(t *testing.T) {
	base := &Metadata{
		Query:       "old query",
		ResultCount: IntPtr(5),
		Extra:       map[string]any{"keep": 1, "override": "a"},
	}
	incoming := &Metadata{
		Query:          "new query",
		RawResultCount: IntPtr(7),
		Extra:          map[string]any{"override": "b"},
	}

	base.Merge(incoming)

	assert.Equal(t, "new query", base.Query)
	require.NotNil(t, base.ResultCount)
	assert.Equal(t, 5, *base.ResultCount) // incoming left it unset
	require.NotNil(t, base.RawResultCount)
	assert.Equal(t, 7, *base.RawResultCount)
	assert.Equal(t, 1, base.Extra["keep"])
	assert.Equal(t, "b", base.Extra["override"])
}

func TestMergeKeepsRawAndEffectiveDistinct(t *testing.T) {
	base := &Metadata{}
	base.Merge(&Metadata{RawResultCount: IntPtr(4), ResultCount: IntPtr(0)})

	assert.Equal(t, 4, *base.RawResultCount)
	assert.Equal(t, 0, *base.ResultCount)
}

func TestConditionValue(t *testing.T) {
	md := &Metadata{
		ResultCount:   IntPtr(0),
		Assessment:    "no_results",
		RouteCategory: "",
	}
	md.Set("my_flag", true)

	tests := []struct {
		key    string
		want   any
		wantOK bool
	}{
		{KeyResultCount, 0, true},
		{KeyRawResultCount, nil, false},
		{KeyAssessment, "no_results", true},
		{KeyRouteCategory, nil, false},
		{"my_flag", true, true},
		{"missing", nil, false},
	}
	for _, tt := range tests {
		v, ok := md.ConditionValue(tt.key)
		assert.Equal(t, tt.wantOK, ok, "key %s", tt.key)
		assert.Equal(t, tt.want, v, "key %s", tt.key)
	}
}

func TestStateDictRoundTrip(t *testing.T) {
	msg := NewMessage(RoleUser, "hello")
	msg.Meta().Results = []records.Record{{"id": "n1", "count": 2}}
	msg.Meta().ResultCount = IntPtr(1)

	state, err := msg.ToStateDict()
	require.NoError(t, err)

	back, err := MessageFromStateDict(state)
	require.NoError(t, err)

	assert.Equal(t, msg.ID, back.ID)
	assert.Equal(t, msg.Content, back.Content)
	require.NotNil(t, back.Metadata.ResultCount)
	assert.Equal(t, 1, *back.Metadata.ResultCount)
	assert.Len(t, back.Metadata.Results, 1)
}

func TestMessageFromStateDictDefaults(t *testing.T) {
	back, err := MessageFromStateDict(map[string]any{"content": "hi"})
	require.NoError(t, err)

	assert.Equal(t, RoleUser, back.Role)
	assert.Contains(t, back.ID, "msg_")
}
