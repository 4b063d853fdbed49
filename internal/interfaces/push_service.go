package interfaces

// PushConnection is the minimal surface the push gateway needs from a live
// client connection. *websocket.Conn satisfies it.
type PushConnection interface {
	WriteJSON(v interface{}) error
	Close() error
}

// PushService is the per-user live-connection registry. It is an injected,
// explicitly-owned service so tests can instantiate isolated registries.
// Delivery is best-effort: the conversation store remains the durable record.
type PushService interface {
	// Register binds a connection to a user. A previous connection for the
	// same user is closed and replaced (last-connect-wins).
	Register(userID string, conn PushConnection)

	// Unregister removes the binding only if conn is still the active
	// connection for the user.
	Unregister(userID string, conn PushConnection)

	// Send delivers a payload to the user's connection. With no connection
	// registered the payload is silently dropped.
	Send(userID string, payload interface{})

	// Connected reports whether the user has a live connection
	Connected(userID string) bool

	// Close closes all registered connections
	Close() error
}
