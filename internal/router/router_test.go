package router

import (
	"errors"
	"testing"

	"github.com/jokkolabs/jokko/internal/intent"
	"github.com/jokkolabs/jokko/internal/models"
)

// mockSessionLookup implements SessionLookup for testing.
type mockSessionLookup struct {
	active bool
	err    error
	asked  string
}

func (m *mockSessionLookup) HasActiveQuizSession(identity string) (bool, error) {
	m.asked = identity
	return m.active, m.err
}

func newTestRouter(sessions SessionLookup) *Router {
	return New(sessions, intent.NewClassifier())
}

func TestRouteWebAlwaysClient(t *testing.T) {
	r := newTestRouter(&mockSessionLookup{active: true})
	msg := models.IncomingMessage{
		From:   "web_abc123",
		Source: models.SourceWeb,
		Text:   "I need help with billing",
	}
	d := r.Route(msg)
	if d.Intent != models.IntentClient {
		t.Errorf("expected client for web source, got %q", d.Intent)
	}
	if d.SessionActive {
		t.Error("web routing must not consult quiz sessions")
	}
}

func TestRouteWebIgnoresQuizKeywords(t *testing.T) {
	r := newTestRouter(&mockSessionLookup{})
	d := r.Route(models.IncomingMessage{From: "web_1", Source: models.SourceWeb, Text: "quiz"})
	if d.Intent != models.IntentClient {
		t.Errorf("expected client for web source regardless of content, got %q", d.Intent)
	}
}

func TestRouteActiveSessionForcesQuiz(t *testing.T) {
	sessions := &mockSessionLookup{active: true}
	r := newTestRouter(sessions)
	msg := models.IncomingMessage{
		From:   "+221000000001",
		Source: models.SourceWhatsApp,
		Text:   "j'ai besoin d'aide avec le support",
	}
	d := r.Route(msg)
	if d.Intent != models.IntentQuiz {
		t.Errorf("expected quiz while session is active, got %q", d.Intent)
	}
	if !d.SessionActive {
		t.Error("expected SessionActive to be set")
	}
	if sessions.asked != "+221000000001" {
		t.Errorf("session lookup asked for %q", sessions.asked)
	}
}

func TestRouteQuizKeyword(t *testing.T) {
	r := newTestRouter(&mockSessionLookup{})
	d := r.Route(models.IncomingMessage{
		From:   "+221000000001",
		Source: models.SourceWhatsApp,
		Text:   "Je veux jouer au quiz",
	})
	if d.Intent != models.IntentQuiz {
		t.Errorf("expected quiz, got %q", d.Intent)
	}
}

func TestRouteLookupErrorFallsBackToKeywords(t *testing.T) {
	r := newTestRouter(&mockSessionLookup{err: errors.New("store unavailable")})
	d := r.Route(models.IncomingMessage{
		From:   "+221000000002",
		Source: models.SourceWhatsApp,
		Text:   "je veux apprendre le wolof",
	})
	if d.Intent != models.IntentEducation {
		t.Errorf("expected education despite lookup error, got %q", d.Intent)
	}
}

func TestRouteForcedIntent(t *testing.T) {
	r := newTestRouter(&mockSessionLookup{})
	d := r.Route(models.IncomingMessage{
		From:         "+221000000003",
		Source:       models.SourceWhatsApp,
		Text:         "bonjour",
		ForcedIntent: models.IntentEducation,
	})
	if d.Intent != models.IntentEducation {
		t.Errorf("expected forced education intent, got %q", d.Intent)
	}
}

func TestRouteForcedIntentYieldsToActiveSession(t *testing.T) {
	r := newTestRouter(&mockSessionLookup{active: true})
	d := r.Route(models.IncomingMessage{
		From:         "+221000000004",
		Source:       models.SourceWhatsApp,
		Text:         "bonjour",
		ForcedIntent: models.IntentClient,
	})
	if d.Intent != models.IntentQuiz {
		t.Errorf("expected in-progress quiz to win over forced intent, got %q", d.Intent)
	}
}

func TestRouteNoIdentitySkipsLookup(t *testing.T) {
	sessions := &mockSessionLookup{active: true}
	r := newTestRouter(sessions)
	d := r.Route(models.IncomingMessage{Source: models.SourceWhatsApp, Text: "aide"})
	if d.Intent != models.IntentClient {
		t.Errorf("expected client, got %q", d.Intent)
	}
	if sessions.asked != "" {
		t.Error("lookup must be skipped without an identity")
	}
}
