package conversations

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/models"
)

// memoryStorage is a map-backed ConversationStorage for tests. It copies on
// read and write the way a real store does, so lost-update races surface.
type memoryStorage struct {
	mu    sync.Mutex
	conns map[string]models.Conversation
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{conns: make(map[string]models.Conversation)}
}

func (m *memoryStorage) SaveConversation(ctx context.Context, conversation *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *conversation
	clone.Messages = append([]models.Message(nil), conversation.Messages...)
	m.conns[conversation.UserID] = clone
	return nil
}

func (m *memoryStorage) GetConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.conns[userID]
	if !ok {
		return nil, nil
	}
	clone := stored
	clone.Messages = append([]models.Message(nil), stored.Messages...)
	return &clone, nil
}

func (m *memoryStorage) DeleteConversation(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, userID)
	return nil
}

func userMsg(id, content string) *models.Message {
	return &models.Message{
		ID:        id,
		Role:      models.RoleUser,
		Timestamp: time.Now(),
		Content:   content,
	}
}

func TestGetOrCreate(t *testing.T) {
	service := NewService(newMemoryStorage(), arbor.NewLogger())
	ctx := context.Background()

	conv, err := service.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "user-1", conv.UserID)
	assert.Empty(t, conv.Messages)

	again, err := service.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, conv.CreatedAt.Unix(), again.CreatedAt.Unix())
}

func TestAppendEvictsOldestPastCap(t *testing.T) {
	service := NewService(newMemoryStorage(), arbor.NewLogger())
	ctx := context.Background()

	for i := 0; i < models.MaxConversationMessages+10; i++ {
		_, err := service.AppendMessages(ctx, "user-1", userMsg(fmt.Sprintf("m%d", i), "hi"))
		require.NoError(t, err)
	}

	conv, err := service.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, models.MaxConversationMessages)

	// Oldest ten evicted, newest survives
	assert.Equal(t, "m10", conv.Messages[0].ID)
	assert.Equal(t, fmt.Sprintf("m%d", models.MaxConversationMessages+9), conv.Messages[len(conv.Messages)-1].ID)
}

func TestConcurrentAppendsBothSurvive(t *testing.T) {
	service := NewService(newMemoryStorage(), arbor.NewLogger())
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := service.AppendMessages(ctx, "user-1", userMsg(fmt.Sprintf("w%d", n), "concurrent"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	conv, err := service.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, conv.Messages, writers)
}

func TestDelete(t *testing.T) {
	storage := newMemoryStorage()
	service := NewService(storage, arbor.NewLogger())
	ctx := context.Background()

	_, err := service.AppendMessages(ctx, "user-1", userMsg("m1", "hi"))
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, "user-1"))
	conv, err := storage.GetConversation(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, conv)
}
