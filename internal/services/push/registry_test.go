package push

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

type fakeConn struct {
	mu       sync.Mutex
	written  []interface{}
	closed   bool
	writeErr error
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) messages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

func TestSendToRegisteredConnection(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())
	conn := &fakeConn{}

	registry.Register("user-1", conn)
	assert.True(t, registry.Connected("user-1"))

	registry.Send("user-1", map[string]string{"hello": "world"})
	assert.Equal(t, 1, conn.messages())
}

func TestSendWithoutConnectionIsSilent(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())

	// Must not panic or error
	registry.Send("nobody", map[string]string{"hello": "world"})
	assert.False(t, registry.Connected("nobody"))
}

func TestLastConnectWins(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())
	first := &fakeConn{}
	second := &fakeConn{}

	registry.Register("user-1", first)
	registry.Register("user-1", second)

	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())

	registry.Send("user-1", "payload")
	assert.Equal(t, 0, first.messages())
	assert.Equal(t, 1, second.messages())
}

func TestStaleUnregisterIgnored(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())
	first := &fakeConn{}
	second := &fakeConn{}

	registry.Register("user-1", first)
	registry.Register("user-1", second)

	// The replaced socket's deferred cleanup must not evict the new one
	registry.Unregister("user-1", first)
	assert.True(t, registry.Connected("user-1"))

	registry.Unregister("user-1", second)
	assert.False(t, registry.Connected("user-1"))
}

func TestWriteFailureEvictsConnection(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())
	conn := &fakeConn{writeErr: fmt.Errorf("broken pipe")}

	registry.Register("user-1", conn)
	registry.Send("user-1", "payload")

	assert.True(t, conn.isClosed())
	assert.False(t, registry.Connected("user-1"))
}

func TestRateLimitDropsExcessPayloads(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger(), WithRateLimit(rate.Every(time.Hour), 2))
	conn := &fakeConn{}
	registry.Register("user-1", conn)

	for i := 0; i < 5; i++ {
		registry.Send("user-1", i)
	}

	// Burst of 2 delivered, the rest dropped without evicting the connection
	assert.Equal(t, 2, conn.messages())
	assert.True(t, registry.Connected("user-1"))
}

func TestCloseAll(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())
	a := &fakeConn{}
	b := &fakeConn{}
	registry.Register("user-a", a)
	registry.Register("user-b", b)

	assert.NoError(t, registry.Close())
	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.False(t, registry.Connected("user-a"))
}
