package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memorymesh/core"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a": 1}`, `{"a": 1}`},
		{"plain fences", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"json tag", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"uppercase tag", "```JSON\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  \n```json\n{\"a\": 1}\n```  \n", `{"a": 1}`},
		{"unterminated fence", "```json\n{\"a\": 1}", `{"a": 1}`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestParseDecisionsWrappedObject(t *testing.T) {
	decisions, err := ParseDecisions(`{"memory_decisions": [
		{"event": "ADD", "text": "likes jazz"},
		{"event": "UPDATE", "memory_id": "m1", "text": "prefers tea over coffee"},
		{"event": "DELETE", "memory_id": "m2"},
		{"event": "NONE"}
	]}`)
	require.NoError(t, err)
	require.Len(t, decisions, 4)

	assert.Equal(t, core.MemoryDecision{Event: core.DecisionAdd, Text: "likes jazz"}, decisions[0])
	assert.Equal(t, core.MemoryDecision{Event: core.DecisionUpdate, ID: "m1", Text: "prefers tea over coffee"}, decisions[1])
	assert.Equal(t, core.MemoryDecision{Event: core.DecisionDelete, ID: "m2"}, decisions[2])
	assert.Equal(t, core.MemoryDecision{Event: core.DecisionNone}, decisions[3])
}

func TestParseDecisionsFencedWrappedObject(t *testing.T) {
	decisions, err := ParseDecisions("```json\n{\"memory_decisions\": [{\"event\": \"ADD\", \"text\": \"likes jazz\"}]}\n```")
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, core.DecisionAdd, decisions[0].Event)
}

func TestParseDecisionsBareArray(t *testing.T) {
	decisions, err := ParseDecisions(`[{"event": "add", "text": "likes jazz"}, {"event": "none"}]`)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, core.DecisionAdd, decisions[0].Event, "event casing is normalized")
	assert.Equal(t, core.DecisionNone, decisions[1].Event)
}

func TestParseDecisionsIDKeyVariants(t *testing.T) {
	decisions, err := ParseDecisions(`[{"event": "DELETE", "id": "m7"}]`)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "m7", decisions[0].ID)
}

func TestParseDecisionsEmptyList(t *testing.T) {
	for _, body := range []string{`{"memory_decisions": []}`, `[]`} {
		decisions, err := ParseDecisions(body)
		require.NoError(t, err, body)
		assert.Empty(t, decisions, body)
		assert.NotNil(t, decisions, body)
	}
}

func TestParseDecisionsUnusable(t *testing.T) {
	for _, body := range []string{
		"I think the user likes jazz.",
		`{"verdicts": [{"event": "ADD"}]}`,
		`{"memory_decisions": "ADD"}`,
		"",
		"42",
		"null",
		`"ADD"`,
	} {
		_, err := ParseDecisions(body)
		assert.ErrorIs(t, err, core.ErrUnusableDecisionResponse, "body: %q", body)
	}
}

func TestParseDecisionsPreservesDuplicates(t *testing.T) {
	decisions, err := ParseDecisions(`{"memory_decisions": [
		{"event": "ADD", "text": "likes jazz"},
		{"event": "ADD", "text": "likes jazz"}
	]}`)
	require.NoError(t, err)
	assert.Len(t, decisions, 2)
}
