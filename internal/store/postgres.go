// Package store: PostgreSQL-backed implementation.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/jokkolabs/jokko/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddConversationMessage(msg models.ConversationMessage) error {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO conversation_messages
			(phone_number, web_user_id, session_id, source, content, sender, intent, response_time_sec, provider_message_id, delivery_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		nilIfEmpty(msg.PhoneNumber), nilIfEmpty(msg.WebUserID), nilIfEmpty(msg.SessionID),
		msg.Source, msg.Content, msg.Sender, msg.Intent,
		msg.ResponseTimeSec, nilIfEmpty(msg.ProviderMessageID), nilIfEmpty(msg.DeliveryStatus), createdAt)
	if err != nil {
		slog.Error("PostgresStore AddConversationMessage failed", "error", err, "identity", msg.Identity())
		return fmt.Errorf("failed to insert conversation message for %s: %w", msg.Identity(), err)
	}
	slog.Debug("PostgresStore AddConversationMessage succeeded", "identity", msg.Identity(), "sender", msg.Sender, "intent", msg.Intent)
	return nil
}

func (s *PostgresStore) GetConversationMessages(identity string, limit int) ([]models.ConversationMessage, error) {
	query := `
		SELECT id, phone_number, web_user_id, session_id, source, content, sender, intent, response_time_sec, provider_message_id, delivery_status, created_at
		FROM conversation_messages
		WHERE phone_number = $1 OR web_user_id = $1
		ORDER BY created_at ASC, id ASC`
	args := []interface{}{identity}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore GetConversationMessages query failed", "error", err, "identity", identity)
		return nil, fmt.Errorf("failed to query conversation messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ConversationMessage
	for rows.Next() {
		m, err := scanConversationMessage(rows)
		if err != nil {
			slog.Error("PostgresStore GetConversationMessages scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetConversationMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	slog.Debug("PostgresStore GetConversationMessages succeeded", "identity", identity, "count", len(messages))
	return messages, nil
}

func (s *PostgresStore) HasActiveQuizSession(identity string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(1) FROM quiz_sessions
		WHERE identity = $1 AND status = $2 AND completed_at IS NULL`,
		identity, models.QuizSessionActive).Scan(&count)
	if err != nil {
		slog.Error("PostgresStore HasActiveQuizSession failed", "error", err, "identity", identity)
		return false, fmt.Errorf("failed to query quiz sessions for %s: %w", identity, err)
	}
	return count > 0, nil
}

func (s *PostgresStore) StartQuizSession(session models.QuizSession) error {
	if err := s.FinishQuizSession(session.Identity); err != nil {
		return err
	}
	startedAt := session.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	status := session.Status
	if status == "" {
		status = models.QuizSessionActive
	}
	_, err := s.db.Exec(`
		INSERT INTO quiz_sessions (identity, session_id, status, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		session.Identity, session.SessionID, status, startedAt, session.CompletedAt)
	if err != nil {
		slog.Error("PostgresStore StartQuizSession failed", "error", err, "identity", session.Identity)
		return fmt.Errorf("failed to insert quiz session for %s: %w", session.Identity, err)
	}
	slog.Debug("PostgresStore StartQuizSession succeeded", "identity", session.Identity, "sessionID", session.SessionID)
	return nil
}

func (s *PostgresStore) FinishQuizSession(identity string) error {
	_, err := s.db.Exec(`
		UPDATE quiz_sessions SET status = $1, completed_at = $2
		WHERE identity = $3 AND status = $4`,
		models.QuizSessionFinished, time.Now(), identity, models.QuizSessionActive)
	if err != nil {
		slog.Error("PostgresStore FinishQuizSession failed", "error", err, "identity", identity)
		return fmt.Errorf("failed to finish quiz sessions for %s: %w", identity, err)
	}
	return nil
}

func (s *PostgresStore) UpdateDeliveryStatus(providerMessageID, status string) error {
	if providerMessageID == "" {
		return nil
	}
	res, err := s.db.Exec(`
		UPDATE conversation_messages SET delivery_status = $1
		WHERE provider_message_id = $2`,
		status, providerMessageID)
	if err != nil {
		slog.Error("PostgresStore UpdateDeliveryStatus failed", "error", err, "providerMessageID", providerMessageID)
		return fmt.Errorf("failed to update delivery status for %s: %w", providerMessageID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		slog.Debug("PostgresStore UpdateDeliveryStatus matched no rows", "providerMessageID", providerMessageID, "status", status)
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
