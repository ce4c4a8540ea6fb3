package interfaces

import "errors"

// Contract errors shared across component boundaries. Implementations return
// these (possibly wrapped); callers match with errors.Is.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionMalformed   = errors.New("session record malformed")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
