package types

import "errors"

// Validation error types shared by the relay engine and the gateway.
var (
	ErrEmptyContent    = errors.New("message content cannot be empty")
	ErrContentTooLarge = errors.New("message content exceeds 64KB limit")
	ErrInvalidSenderID = errors.New("sender ID must be a positive integer")
)
