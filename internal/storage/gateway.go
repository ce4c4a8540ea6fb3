package storage

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"gamechat/pkg/database"
	"gamechat/pkg/interfaces"
	"gamechat/pkg/types"
)

// avatarBasePath is where the web tier serves uploaded avatars from.
const avatarBasePath = "/uploads/avatars/"

// Gateway owns the single logical connection to the relational store. All
// operations are serialized through one mutex: chat volume is modest and a
// single access path rules out interleaved partial writes on the shared
// handle. Every statement is parameterized; caller values never reach query
// text.
type Gateway struct {
	db     *sqlx.DB
	config *database.Config
	mu     sync.Mutex
}

// Connect opens the store handle, retrying up to MaxConnectAttempts with
// ReconnectDelay between attempts. Exhausting the attempts returns an error
// the caller must treat as fatal: the relay cannot serve without a store.
func Connect(cfg *database.Config) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid store configuration")
	}

	db, err := connectWithRetry(cfg)
	if err != nil {
		return nil, err
	}

	log.WithField("driver", cfg.Driver).Info("store connection established")
	return &Gateway{db: db, config: cfg}, nil
}

func connectWithRetry(cfg *database.Config) (*sqlx.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxConnectAttempts; attempt++ {
		db, err := open(cfg)
		if err == nil {
			return db, nil
		}
		lastErr = err

		log.WithFields(log.Fields{
			"attempt": attempt,
			"max":     cfg.MaxConnectAttempts,
		}).WithError(err).Error("store connection failed")

		if attempt < cfg.MaxConnectAttempts {
			time.Sleep(cfg.ReconnectDelay)
		}
	}

	return nil, errors.Wrapf(lastErr, "failed to connect to store after %d attempts", cfg.MaxConnectAttempts)
}

// open dials the store and verifies it with a liveness probe. sqlx.Open does
// not touch the network, so the probe is what actually validates the DSN.
func open(cfg *database.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// do runs one operation against the handle. A cheap probe precedes the
// operation; on probe failure the bounded reconnect sequence runs once and
// the operation is attempted on the fresh handle. Any remaining failure
// surfaces as ErrStorageUnavailable so the relay can notify just the
// requesting connection instead of crashing.
func (g *Gateway) do(ctx context.Context, op func(db *sqlx.DB) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.db.PingContext(ctx); err != nil {
		// A cancelled caller makes the probe fail with a healthy handle;
		// that must not tear the handle down under the shared mutex.
		if cerr := ctx.Err(); cerr != nil {
			return errors.Wrap(cerr, "store operation aborted")
		}

		log.WithError(err).Warn("lost store connection, attempting to reconnect")
		if rerr := g.reconnectLocked(); rerr != nil {
			return errors.Wrap(interfaces.ErrStorageUnavailable, "reconnect failed")
		}
	}

	if err := op(g.db); err != nil {
		log.WithError(err).Error("store operation failed")
		return errors.Wrap(interfaces.ErrStorageUnavailable, "operation failed")
	}

	return nil
}

// reconnectLocked replaces the handle via the same bounded retry sequence
// used at bootstrap. Callers hold g.mu.
func (g *Gateway) reconnectLocked() error {
	db, err := connectWithRetry(g.config)
	if err != nil {
		return err
	}

	_ = g.db.Close()
	g.db = db
	log.Info("store connection re-established")
	return nil
}

// UserSummary returns display metadata for composing a broadcast envelope.
// An unknown user yields a summary with a nil avatar; only storage faults
// are errors.
func (g *Gateway) UserSummary(ctx context.Context, userID int64) (*types.UserSummary, error) {
	summary := &types.UserSummary{UserID: userID}

	var avatar sql.NullString
	err := g.do(ctx, func(db *sqlx.DB) error {
		err := db.GetContext(ctx, &avatar,
			"SELECT avatar_filename FROM users WHERE user_id = ?", userID)
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if avatar.Valid && avatar.String != "" {
		url := avatarBasePath + avatar.String
		summary.AvatarURL = &url
	}

	return summary, nil
}

// SaveMessage persists a message with a server-assigned creation instant.
// On success the message carries its row ID and CreatedAt; the caller may
// broadcast it. On failure nothing was persisted and nothing may be
// broadcast.
func (g *Gateway) SaveMessage(ctx context.Context, message *types.Message) error {
	if err := message.Validate(); err != nil {
		return err
	}

	message.CreatedAt = time.Now().Round(time.Second).UTC()

	return g.do(ctx, func(db *sqlx.DB) error {
		result, err := db.NamedExecContext(ctx, `
			INSERT INTO messages (sender_id, receiver_id, content, created_at)
			VALUES (:sender_id, :receiver_id, :content, :created_at)`,
			message)
		if err != nil {
			return err
		}

		if id, err := result.LastInsertId(); err == nil {
			message.ID = id
		}
		return nil
	})
}

// RecentMessages returns the newest persisted messages, newest first.
func (g *Gateway) RecentMessages(ctx context.Context, limit int) ([]*types.Message, error) {
	if limit <= 0 {
		limit = 20
	}

	var messages []*types.Message
	err := g.do(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &messages, `
			SELECT message_id, sender_id, receiver_id, content, created_at
			FROM messages
			ORDER BY created_at DESC, message_id DESC
			LIMIT ?`,
			limit)
	})
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// HealthCheck validates store connectivity without triggering a reconnect.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.db.PingContext(ctx)
}

// DB exposes the underlying handle for migrations and schema validation.
func (g *Gateway) DB() *sql.DB {
	return g.db.DB
}

// Close releases the store handle.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.db.Close()
}
