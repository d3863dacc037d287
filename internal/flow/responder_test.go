package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/jokkolabs/jokko/internal/intent"
	"github.com/jokkolabs/jokko/internal/models"
	"github.com/jokkolabs/jokko/internal/router"
	"github.com/jokkolabs/jokko/internal/store"
)

// mockGenerator implements Generator for testing.
type mockGenerator struct {
	reply   string
	err     error
	intents []models.Intent
}

func (m *mockGenerator) GenerateReply(ctx context.Context, it models.Intent, userText string) (string, error) {
	m.intents = append(m.intents, it)
	return m.reply, m.err
}

// failingStore wraps the in-memory store and fails every write.
type failingStore struct {
	*store.InMemoryStore
}

func (f *failingStore) AddConversationMessage(msg models.ConversationMessage) error {
	return errors.New("write failed")
}

func newTestResponder(g Generator, st store.Store) *Responder {
	return NewResponder(router.New(st, intent.NewClassifier()), g, st)
}

func TestRespondPersistsBothSides(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := &mockGenerator{reply: "Bonjour, comment puis-je vous aider ?"}
	r := newTestResponder(gen, st)

	reply := r.Respond(context.Background(), models.IncomingMessage{
		From:   "+221770000001",
		Source: models.SourceWhatsApp,
		Text:   "j'ai besoin d'aide",
	})

	if reply.Text != gen.reply {
		t.Errorf("reply text = %q", reply.Text)
	}
	if !reply.Generated {
		t.Error("expected generated reply")
	}
	if !reply.Outcome.InboundSaved || !reply.Outcome.OutboundSaved {
		t.Errorf("expected both rows saved, got %+v", reply.Outcome)
	}

	rows, err := st.GetConversationMessages("+221770000001", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Sender != models.SenderUser || rows[1].Sender != models.SenderBot {
		t.Error("rows not in user-then-bot order")
	}
	if rows[0].ResponseTimeSec != nil {
		t.Error("inbound row must not carry a response time")
	}
	if rows[1].ResponseTimeSec == nil {
		t.Error("outbound row must carry a response time")
	}
	if rows[0].SessionID == "" || rows[0].SessionID != rows[1].SessionID {
		t.Error("both rows must share a session id")
	}
}

func TestRespondFallbackOnGenerationFailure(t *testing.T) {
	st := store.NewInMemoryStore()
	r := newTestResponder(&mockGenerator{err: errors.New("api down")}, st)

	reply := r.Respond(context.Background(), models.IncomingMessage{
		From:   "+221770000002",
		Source: models.SourceWhatsApp,
		Text:   "bonjour",
	})
	if reply.Generated {
		t.Error("expected fallback reply")
	}
	if reply.Text != FallbackReplyWhatsApp {
		t.Errorf("reply = %q, want WhatsApp fallback", reply.Text)
	}

	web := r.Respond(context.Background(), models.IncomingMessage{
		From:   "web_abc123",
		Source: models.SourceWeb,
		Text:   "hello",
	})
	if web.Text != FallbackReplyWeb {
		t.Errorf("reply = %q, want web fallback", web.Text)
	}
}

func TestRespondReportsPersistFailure(t *testing.T) {
	st := &failingStore{store.NewInMemoryStore()}
	gen := &mockGenerator{reply: "ok"}
	r := newTestResponder(gen, st)

	reply := r.Respond(context.Background(), models.IncomingMessage{
		From:   "+221770000003",
		Source: models.SourceWhatsApp,
		Text:   "bonjour",
	})
	if reply.Outcome.InboundSaved || reply.Outcome.OutboundSaved {
		t.Errorf("expected persistence failures reported, got %+v", reply.Outcome)
	}
	// The reply is still produced.
	if reply.Text != "ok" {
		t.Errorf("reply = %q", reply.Text)
	}
}

func TestRespondQuizKeywordStartsSession(t *testing.T) {
	st := store.NewInMemoryStore()
	r := newTestResponder(&mockGenerator{reply: "Première question..."}, st)

	reply := r.Respond(context.Background(), models.IncomingMessage{
		From:   "+221770000004",
		Source: models.SourceWhatsApp,
		Text:   "Je veux jouer au quiz",
	})
	if reply.Decision.Intent != models.IntentQuiz {
		t.Fatalf("intent = %q, want quiz", reply.Decision.Intent)
	}
	active, err := st.HasActiveQuizSession("+221770000004")
	if err != nil {
		t.Fatal(err)
	}
	if !active {
		t.Error("expected quiz session marker after keyword trigger")
	}

	// The next message continues the quiz even without quiz keywords.
	next := r.Respond(context.Background(), models.IncomingMessage{
		From:   "+221770000004",
		Source: models.SourceWhatsApp,
		Text:   "ma réponse est Dakar",
	})
	if next.Decision.Intent != models.IntentQuiz {
		t.Errorf("follow-up intent = %q, want quiz", next.Decision.Intent)
	}
	if !next.Decision.SessionActive {
		t.Error("expected active-session routing on follow-up")
	}
}

func TestRespondWebDoesNotStartQuizSession(t *testing.T) {
	st := store.NewInMemoryStore()
	r := newTestResponder(&mockGenerator{reply: "ok"}, st)

	reply := r.Respond(context.Background(), models.IncomingMessage{
		From:   "web_abc123",
		Source: models.SourceWeb,
		Text:   "quiz",
	})
	if reply.Decision.Intent != models.IntentClient {
		t.Errorf("intent = %q, want client for web", reply.Decision.Intent)
	}
	active, _ := st.HasActiveQuizSession("web_abc123")
	if active {
		t.Error("web traffic must not open quiz sessions")
	}
}

func TestRespondUsesDecidedIntentForGeneration(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := &mockGenerator{reply: "ok"}
	r := newTestResponder(gen, st)

	r.Respond(context.Background(), models.IncomingMessage{
		From:   "+221770000005",
		Source: models.SourceWhatsApp,
		Text:   "je veux apprendre",
	})
	if len(gen.intents) != 1 || gen.intents[0] != models.IntentEducation {
		t.Errorf("generator called with %v, want [education]", gen.intents)
	}
}
