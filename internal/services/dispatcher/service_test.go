package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
)

// scriptedCompletion replays canned responses and records the prompts it saw
type scriptedCompletion struct {
	mu        sync.Mutex
	responses []string
	calls     [][]interfaces.Message
}

func (f *scriptedCompletion) Complete(ctx context.Context, messages []interfaces.Message, model string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if len(f.calls) > len(f.responses) {
		return "", fmt.Errorf("no response scripted for call %d", len(f.calls))
	}
	return f.responses[len(f.calls)-1], nil
}

func (f *scriptedCompletion) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *scriptedCompletion) Close() error { return nil }

func TestClassifySearch(t *testing.T) {
	completion := &scriptedCompletion{responses: []string{
		`{"action": "search", "user_query": "a light gaming laptop", "embedding_query": "lightweight gaming laptop dedicated GPU"}`,
	}}
	service := NewService(completion, "", arbor.NewLogger())

	descriptor, err := service.Classify(context.Background(), models.NewConversation("user-1"), "I want a light gaming laptop")
	require.NoError(t, err)
	assert.Equal(t, models.ActionSearch, descriptor.Action)
	assert.Equal(t, "lightweight gaming laptop dedicated GPU", descriptor.EmbeddingQuery)
}

func TestClassifyCompareUsesHistoryProductIDs(t *testing.T) {
	completion := &scriptedCompletion{responses: []string{
		`{"action": "compare_products", "products": [{"product_id": "B0LENOVO01"}, {"product_id": "B0ASUS0001"}]}`,
	}}
	service := NewService(completion, "", arbor.NewLogger())

	conversation := models.NewConversation("user-1")
	conversation.Append(models.Message{
		Role:    models.RoleAssistant,
		Content: "Here are two options",
		Products: []models.ProductCard{
			{ProductID: "B0LENOVO01", Title: "Lenovo IdeaPad 3"},
			{ProductID: "B0ASUS0001", Title: "ASUS VivoBook 15"},
		},
	})

	descriptor, err := service.Classify(context.Background(), conversation, "compare the Lenovo and the ASUS")
	require.NoError(t, err)
	require.Len(t, descriptor.Products, 2)
	assert.Equal(t, "B0LENOVO01", descriptor.Products[0].ProductID)

	// The history window must surface the product ids to the model
	require.Len(t, completion.calls, 1)
	prompt := completion.calls[0]
	var sawIDs bool
	for _, msg := range prompt {
		if msg.Role == "assistant" && strings.Contains(msg.Content, "B0LENOVO01") && strings.Contains(msg.Content, "B0ASUS0001") {
			sawIDs = true
		}
	}
	assert.True(t, sawIDs, "history messages should carry product ids")
}

func TestClassifyRepairsSloppyJSON(t *testing.T) {
	completion := &scriptedCompletion{responses: []string{
		"```json\n{'action': 'none', 'response': 'Hello there!',}\n```",
	}}
	service := NewService(completion, "", arbor.NewLogger())

	descriptor, err := service.Classify(context.Background(), nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, models.ActionNone, descriptor.Action)
	assert.Equal(t, "Hello there!", descriptor.Response)
	assert.Len(t, completion.calls, 1)
}

func TestClassifyRetriesOnceThenSucceeds(t *testing.T) {
	completion := &scriptedCompletion{responses: []string{
		"I think the user wants to search for laptops.",
		`{"action": "search", "embedding_query": "laptop"}`,
	}}
	service := NewService(completion, "", arbor.NewLogger())

	descriptor, err := service.Classify(context.Background(), nil, "laptops?")
	require.NoError(t, err)
	assert.Equal(t, models.ActionSearch, descriptor.Action)
	require.Len(t, completion.calls, 2)

	// The re-prompt carries the bad output and the correction
	retry := completion.calls[1]
	assert.Equal(t, "assistant", retry[len(retry)-2].Role)
	assert.Equal(t, "I think the user wants to search for laptops.", retry[len(retry)-2].Content)
	assert.Equal(t, correctionPrompt, retry[len(retry)-1].Content)
}

func TestClassifyExhaustsRetryBudget(t *testing.T) {
	completion := &scriptedCompletion{responses: []string{
		"prose one",
		"prose two",
	}}
	service := NewService(completion, "", arbor.NewLogger())

	_, err := service.Classify(context.Background(), nil, "hello")
	assert.ErrorIs(t, err, ErrParseFailure)
	assert.Len(t, completion.calls, 2)
}

func TestClassifyEmptyActionDefaultsToNone(t *testing.T) {
	completion := &scriptedCompletion{responses: []string{
		`{"response": "sure"}`,
	}}
	service := NewService(completion, "", arbor.NewLogger())

	descriptor, err := service.Classify(context.Background(), nil, "thanks")
	require.NoError(t, err)
	assert.Equal(t, models.ActionNone, descriptor.Action)
}
