package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairSingleQuotes(t *testing.T) {
	repaired, err := Repair(`{'action': 'search', 'response': 'looking now'}`)
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, Decode(repaired, &decoded))
	assert.Equal(t, "search", decoded["action"])
	assert.Equal(t, "looking now", decoded["response"])
}

func TestRepairTrailingComma(t *testing.T) {
	var decoded map[string]interface{}
	err := Decode(`{"products": [{"product_id": "B0ABCDEFGH"},], "message": "ok",}`, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded["message"])
	assert.Len(t, decoded["products"], 1)
}

func TestRepairFencedBlock(t *testing.T) {
	text := "Here is the classification:\n```json\n{\"action\": \"none\", \"response\": \"hi\"}\n```\nHope that helps!"

	var decoded map[string]string
	require.NoError(t, Decode(text, &decoded))
	assert.Equal(t, "none", decoded["action"])
}

func TestRepairFenceWithoutLanguageTag(t *testing.T) {
	text := "```\n{\"action\": \"link\"}\n```"

	var decoded map[string]string
	require.NoError(t, Decode(text, &decoded))
	assert.Equal(t, "link", decoded["action"])
}

func TestRepairSurroundingProse(t *testing.T) {
	text := `Sure! The answer is {"action": "more_info", "response": "It weighs 1.2kg"} as requested.`

	var decoded map[string]string
	require.NoError(t, Decode(text, &decoded))
	assert.Equal(t, "more_info", decoded["action"])
}

func TestRepairApostropheInsideDoubleQuotes(t *testing.T) {
	var decoded map[string]string
	require.NoError(t, Decode(`{"response": "it's a great laptop"}`, &decoded))
	assert.Equal(t, "it's a great laptop", decoded["response"])
}

func TestRepairUnrecoverable(t *testing.T) {
	_, err := Repair("no structured content here at all")
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = Repair(`{"action": "search"`)
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = Repair("")
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestRepairValidPassthrough(t *testing.T) {
	input := `{"action":"none","response":"hello"}`
	repaired, err := Repair(input)
	require.NoError(t, err)
	assert.Equal(t, input, repaired)
}
