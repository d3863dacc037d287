// Package store: in-memory backend for tests and DSN-less deployments.
package store

import (
	"sync"
	"time"

	"github.com/jokkolabs/jokko/internal/models"
)

// InMemoryStore keeps the conversation log and quiz sessions in process
// memory. Safe for concurrent use.
type InMemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	messages []models.ConversationMessage
	sessions []models.QuizSession
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

func (s *InMemoryStore) AddConversationMessage(msg models.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = s.nextID
	s.nextID++
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *InMemoryStore) GetConversationMessages(identity string, limit int) ([]models.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ConversationMessage
	for _, m := range s.messages {
		if m.Identity() == identity {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) HasActiveQuizSession(identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.Identity == identity && sess.Status == models.QuizSessionActive && sess.CompletedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) StartQuizSession(session models.QuizSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked(session.Identity)
	session.ID = s.nextID
	s.nextID++
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	if session.Status == "" {
		session.Status = models.QuizSessionActive
	}
	s.sessions = append(s.sessions, session)
	return nil
}

func (s *InMemoryStore) FinishQuizSession(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked(identity)
	return nil
}

func (s *InMemoryStore) finishLocked(identity string) {
	now := time.Now()
	for i := range s.sessions {
		if s.sessions[i].Identity == identity && s.sessions[i].Status == models.QuizSessionActive {
			s.sessions[i].Status = models.QuizSessionFinished
			s.sessions[i].CompletedAt = &now
		}
	}
}

func (s *InMemoryStore) UpdateDeliveryStatus(providerMessageID, status string) error {
	if providerMessageID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ProviderMessageID == providerMessageID {
			s.messages[i].DeliveryStatus = status
		}
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
