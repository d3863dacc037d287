// Package store: SQLite-backed implementation.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/jokkolabs/jokko/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN should
// be a file path to the SQLite database file; the containing directory is
// created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddConversationMessage(msg models.ConversationMessage) error {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO conversation_messages
			(phone_number, web_user_id, session_id, source, content, sender, intent, response_time_sec, provider_message_id, delivery_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nilIfEmpty(msg.PhoneNumber), nilIfEmpty(msg.WebUserID), nilIfEmpty(msg.SessionID),
		msg.Source, msg.Content, msg.Sender, msg.Intent,
		msg.ResponseTimeSec, nilIfEmpty(msg.ProviderMessageID), nilIfEmpty(msg.DeliveryStatus), createdAt)
	if err != nil {
		slog.Error("SQLiteStore AddConversationMessage failed", "error", err, "identity", msg.Identity())
		return fmt.Errorf("failed to insert conversation message for %s: %w", msg.Identity(), err)
	}
	slog.Debug("SQLiteStore AddConversationMessage succeeded", "identity", msg.Identity(), "sender", msg.Sender, "intent", msg.Intent)
	return nil
}

func (s *SQLiteStore) GetConversationMessages(identity string, limit int) ([]models.ConversationMessage, error) {
	query := `
		SELECT id, phone_number, web_user_id, session_id, source, content, sender, intent, response_time_sec, provider_message_id, delivery_status, created_at
		FROM conversation_messages
		WHERE phone_number = ? OR web_user_id = ?
		ORDER BY created_at ASC, id ASC`
	args := []interface{}{identity, identity}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetConversationMessages query failed", "error", err, "identity", identity)
		return nil, fmt.Errorf("failed to query conversation messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ConversationMessage
	for rows.Next() {
		m, err := scanConversationMessage(rows)
		if err != nil {
			slog.Error("SQLiteStore GetConversationMessages scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetConversationMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	slog.Debug("SQLiteStore GetConversationMessages succeeded", "identity", identity, "count", len(messages))
	return messages, nil
}

func (s *SQLiteStore) HasActiveQuizSession(identity string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(1) FROM quiz_sessions
		WHERE identity = ? AND status = ? AND completed_at IS NULL`,
		identity, models.QuizSessionActive).Scan(&count)
	if err != nil {
		slog.Error("SQLiteStore HasActiveQuizSession failed", "error", err, "identity", identity)
		return false, fmt.Errorf("failed to query quiz sessions for %s: %w", identity, err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) StartQuizSession(session models.QuizSession) error {
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
		VALUES (?, ?, ?, ?, ?)`,
		session.Identity, session.SessionID, status, startedAt, session.CompletedAt)
	if err != nil {
		slog.Error("SQLiteStore StartQuizSession failed", "error", err, "identity", session.Identity)
		return fmt.Errorf("failed to insert quiz session for %s: %w", session.Identity, err)
	}
	slog.Debug("SQLiteStore StartQuizSession succeeded", "identity", session.Identity, "sessionID", session.SessionID)
	return nil
}

func (s *SQLiteStore) FinishQuizSession(identity string) error {
	_, err := s.db.Exec(`
		UPDATE quiz_sessions SET status = ?, completed_at = ?
		WHERE identity = ? AND status = ?`,
		models.QuizSessionFinished, time.Now(), identity, models.QuizSessionActive)
	if err != nil {
		slog.Error("SQLiteStore FinishQuizSession failed", "error", err, "identity", identity)
		return fmt.Errorf("failed to finish quiz sessions for %s: %w", identity, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateDeliveryStatus(providerMessageID, status string) error {
	if providerMessageID == "" {
		return nil
	}
	res, err := s.db.Exec(`
		UPDATE conversation_messages SET delivery_status = ?
		WHERE provider_message_id = ?`,
		status, providerMessageID)
	if err != nil {
		slog.Error("SQLiteStore UpdateDeliveryStatus failed", "error", err, "providerMessageID", providerMessageID)
		return fmt.Errorf("failed to update delivery status for %s: %w", providerMessageID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		slog.Debug("SQLiteStore UpdateDeliveryStatus matched no rows", "providerMessageID", providerMessageID, "status", status)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
