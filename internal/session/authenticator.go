package session

import (
	"strconv"

	"gamechat/pkg/interfaces"
)

// Authenticator resolves opaque session tokens to user identities. It
// depends only on the SessionStore port; the record itself is the trust
// boundary, so the resolved identity is used verbatim with no store lookup.
type Authenticator struct {
	store interfaces.SessionStore
}

// NewAuthenticator creates an authenticator over a session store.
func NewAuthenticator(store interfaces.SessionStore) *Authenticator {
	return &Authenticator{store: store}
}

// Resolve looks up the session record for token and extracts the user_id
// entry. Pure read; never mutates the record.
func (a *Authenticator) Resolve(token string) (int64, error) {
	payload, err := a.store.Read(token)
	if err != nil {
		return 0, err
	}

	if len(payload) == 0 {
		return 0, interfaces.ErrSessionNotFound
	}

	entries := Decode(payload)

	raw, ok := entries["user_id"]
	if !ok {
		// A record without user_id means the session was never
		// promoted to a login; treat it like an absent session.
		return 0, interfaces.ErrSessionNotFound
	}

	userID, ok := coerceIdentity(raw)
	if !ok {
		return 0, interfaces.ErrSessionMalformed
	}

	return userID, nil
}

// coerceIdentity accepts the integer and string-of-digits encodings the web
// tier has been observed to write for user_id.
func coerceIdentity(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		if v > 0 {
			return v, true
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}
