// Package router decides which chatbot intent handles an incoming message by
// composing the session lookup and the keyword classifier.
package router

import (
	"log/slog"

	"github.com/jokkolabs/jokko/internal/models"
)

// SessionLookup reports whether an identity has an unfinished quiz session.
type SessionLookup interface {
	HasActiveQuizSession(identity string) (bool, error)
}

// Classifier maps message text to an intent label.
type Classifier interface {
	Classify(text string) models.Intent
}

// Router produces a routing decision for every message. It has no error
// states: a session lookup failure reads as "no active session" so routing
// stays available when the store is not.
type Router struct {
	sessions   SessionLookup
	classifier Classifier
}

// New creates a Router from its two collaborators.
func New(sessions SessionLookup, classifier Classifier) *Router {
	return &Router{sessions: sessions, classifier: classifier}
}

// Route resolves the final intent for a message. Precedence:
//  1. web traffic is always customer service;
//  2. an in-progress quiz continues, overriding any keyword in the new message;
//  3. an explicit chatbot type from the internal proxy is honored;
//  4. otherwise the keyword classifier decides.
func (r *Router) Route(msg models.IncomingMessage) models.RoutingDecision {
	decision := models.RoutingDecision{
		Identity: msg.From,
		Source:   msg.Source,
	}

	if msg.Source == models.SourceWeb {
		decision.Intent = models.IntentClient
		return decision
	}

	if msg.From != "" {
		active, err := r.sessions.HasActiveQuizSession(msg.From)
		if err != nil {
			slog.Warn("Router.Route: session lookup failed, assuming no active session", "error", err, "identity", msg.From)
			active = false
		}
		if active {
			decision.Intent = models.IntentQuiz
			decision.SessionActive = true
			return decision
		}
	}

	if msg.ForcedIntent.IsValid() {
		decision.Intent = msg.ForcedIntent
		return decision
	}

	decision.Intent = r.classifier.Classify(msg.Text)
	return decision
}
