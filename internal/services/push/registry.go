// -----------------------------------------------------------------------
// Push Registry - Per-user live websocket connection tracking
// -----------------------------------------------------------------------

package push

import (
	"sync"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/merx/internal/interfaces"
)

// Registry tracks at most one live connection per user and delivers
// payloads best-effort. Implements interfaces.PushService.
type Registry struct {
	mu        sync.RWMutex
	conns     map[string]*entry
	rateLimit rate.Limit
	burst     int
	logger    arbor.ILogger
}

// entry serializes writes to a single connection. Gorilla connections allow
// only one concurrent writer.
type entry struct {
	conn    interfaces.PushConnection
	limiter *rate.Limiter
	writeMu sync.Mutex
}

// Option configures the registry
type Option func(*Registry)

// WithRateLimit caps deliveries per user. Payloads beyond the limit are
// dropped, like payloads to a disconnected user.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(r *Registry) {
		r.rateLimit = limit
		r.burst = burst
	}
}

// NewRegistry creates an empty push registry
func NewRegistry(logger arbor.ILogger, opts ...Option) *Registry {
	r := &Registry{
		conns:  make(map[string]*entry),
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) newEntry(conn interfaces.PushConnection) *entry {
	e := &entry{conn: conn}
	if r.rateLimit > 0 {
		e.limiter = rate.NewLimiter(r.rateLimit, r.burst)
	}
	return e
}

// Register binds a connection to a user. A previous connection for the same
// user is closed and replaced (last-connect-wins).
func (r *Registry) Register(userID string, conn interfaces.PushConnection) {
	r.mu.Lock()
	previous := r.conns[userID]
	r.conns[userID] = r.newEntry(conn)
	r.mu.Unlock()

	if previous != nil {
		previous.conn.Close()
		r.logger.Debug().Str("user_id", userID).Msg("Replaced existing push connection")
	}

	r.logger.Debug().Str("user_id", userID).Msg("Push connection registered")
}

// Unregister removes the binding only if conn is still the active
// connection. A stale unregister from a replaced socket is ignored.
func (r *Registry) Unregister(userID string, conn interfaces.PushConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current.conn != conn {
		return
	}
	delete(r.conns, userID)

	r.logger.Debug().Str("user_id", userID).Msg("Push connection unregistered")
}

// Send delivers a payload to the user's connection. With no live connection
// the payload is silently dropped; the conversation store remains the
// durable record. A failed write evicts the connection.
func (r *Registry) Send(userID string, payload interface{}) {
	r.mu.RLock()
	e, ok := r.conns[userID]
	r.mu.RUnlock()

	if !ok {
		return
	}

	if e.limiter != nil && !e.limiter.Allow() {
		r.logger.Debug().Str("user_id", userID).Msg("Push rate limit exceeded, dropping payload")
		return
	}

	e.writeMu.Lock()
	err := e.conn.WriteJSON(payload)
	e.writeMu.Unlock()

	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("Push delivery failed, dropping connection")
		e.conn.Close()
		r.Unregister(userID, e.conn)
	}
}

// Connected reports whether the user has a live connection
func (r *Registry) Connected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// Close closes all registered connections
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, e := range r.conns {
		e.conn.Close()
		delete(r.conns, userID)
	}
	return nil
}
