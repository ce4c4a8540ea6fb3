package interfaces

import (
	"context"
	"gamechat/pkg/types"
)

// MessageStore is the persistence port used by the relay engine and the
// diagnostics API. Implementations own a single logical store handle and
// serialize access to it.
type MessageStore interface {
	// UserSummary returns display metadata for a user. Unknown users yield
	// a summary with a nil avatar rather than an error; only storage faults
	// surface as ErrStorageUnavailable.
	UserSummary(ctx context.Context, userID int64) (*types.UserSummary, error)

	// SaveMessage persists a message, assigning CreatedAt server-side.
	// Persistence happens-before broadcast: callers must not deliver a
	// message whose SaveMessage call failed.
	SaveMessage(ctx context.Context, message *types.Message) error

	// RecentMessages returns the newest persisted messages, newest first.
	RecentMessages(ctx context.Context, limit int) ([]*types.Message, error)

	// HealthCheck verifies store connectivity.
	HealthCheck(ctx context.Context) error

	// Close releases the store handle.
	Close() error
}
