package interfaces

// SessionResolver resolves an opaque session token to a user identity.
// The session store is written by the stateless web tier at login time;
// the relay only reads it. Resolve is a pure read with no side effects.
//
// Errors: ErrSessionNotFound when no record exists for the token (including
// malformed or missing tokens), ErrSessionMalformed when a record exists but
// cannot be decoded.
type SessionResolver interface {
	Resolve(token string) (int64, error)
}

// SessionStore is the narrow read-only port onto the external session store.
// One implementation exists per deployment (file-backed today).
type SessionStore interface {
	// Read returns the raw session payload for a token. Returns
	// ErrSessionNotFound when no record exists.
	Read(token string) ([]byte, error)
}
