package relay

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Registry tracks all live connections and indexes the subset bound to a
// user identity. A user may hold several concurrent connections (multiple
// devices or tabs); each connection belongs to at most one user.
//
// One RWMutex guards both maps: attach/detach take the write lock, broadcast
// and lookups the read lock, so delivery never iterates over a connection
// mid-detachment.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection           // connection ID -> Connection
	byUser      map[int64]map[string]*Connection // user ID -> connection ID -> Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		byUser:      make(map[int64]map[string]*Connection),
	}
}

// Attach registers a live connection. If the connection carries a bound
// identity it is also indexed under that identity.
func (r *Registry) Attach(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[conn.ID()] = conn

	if userID, ok := conn.UserID(); ok {
		if r.byUser[userID] == nil {
			r.byUser[userID] = make(map[string]*Connection)
		}
		r.byUser[userID][conn.ID()] = conn
	}

	return nil
}

// Detach removes a connection from the registry. Idempotent: detaching a
// connection that was already detached (or never attached) is a no-op.
func (r *Registry) Detach(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.ID()]; !exists {
		return
	}

	delete(r.connections, conn.ID())

	if userID, ok := conn.UserID(); ok {
		if conns, exists := r.byUser[userID]; exists {
			delete(conns, conn.ID())
			if len(conns) == 0 {
				delete(r.byUser, userID)
			}
		}
	}
}

// Broadcast delivers an envelope to every attached connection, sender
// included. Delivery is best-effort-complete: a write failure on one
// connection is logged and does not prevent delivery to the rest. The
// failing connection is not detached here; its own read loop owns its
// lifecycle.
func (r *Registry) Broadcast(envelope interface{}) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, conn := range r.connections {
		if err := conn.WriteJSON(envelope); err != nil {
			log.WithFields(log.Fields{
				"conn_id": conn.ID(),
			}).WithError(err).Warn("broadcast delivery failed")
		}
	}
}

// Lookup returns the live connections bound to a user identity, possibly
// empty.
func (r *Registry) Lookup(userID int64) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.byUser[userID]))
	for _, conn := range r.byUser[userID] {
		conns = append(conns, conn)
	}

	return conns
}

// Stats returns registry counters for the diagnostics API.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": len(r.connections),
		"connected_users":   len(r.byUser),
	}
}
