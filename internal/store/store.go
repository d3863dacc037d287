// Package store provides storage backends for the Jokko conversation log and
// quiz session markers.
//
// It includes an in-memory store for tests and single-process deployments, an
// SQLite-backed store, and a PostgreSQL-backed store. The conversation log is
// append-only: rows are never updated or deleted by this subsystem, with the
// single exception of the delivery-status column driven by provider receipts.
package store

import (
	"strings"

	"github.com/jokkolabs/jokko/internal/models"
)

// Store defines the persistence operations used by the message pipeline.
type Store interface {
	// AddConversationMessage appends one row to the conversation log.
	AddConversationMessage(msg models.ConversationMessage) error
	// GetConversationMessages returns the log rows for an identity in arrival
	// order. limit <= 0 means no limit.
	GetConversationMessages(identity string, limit int) ([]models.ConversationMessage, error)

	// HasActiveQuizSession reports whether the identity has a quiz session
	// with status active and no completion timestamp.
	HasActiveQuizSession(identity string) (bool, error)
	// StartQuizSession records a new active quiz session marker. Any prior
	// active marker for the identity is finished first.
	StartQuizSession(session models.QuizSession) error
	// FinishQuizSession marks the identity's active quiz sessions finished.
	FinishQuizSession(identity string) error

	// UpdateDeliveryStatus sets the delivery status of the stored message with
	// the given provider message id. A missing match is a no-op, not an error.
	UpdateDeliveryStatus(providerMessageID, status string) error

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL-style connection strings and
// "sqlite" for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
