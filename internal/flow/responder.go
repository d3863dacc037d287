// Package flow implements the per-message handling pipeline: route the
// incoming message, generate a reply, persist both sides of the exchange, and
// hand the reply back to the ingress for delivery.
package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jokkolabs/jokko/internal/models"
	"github.com/jokkolabs/jokko/internal/router"
	"github.com/jokkolabs/jokko/internal/store"
)

// Static fallback replies substituted when generation fails, selected by
// source. Failures are deliberately soft: the user never sees an error.
const (
	FallbackReplyWhatsApp = "Nous avons bien reçu votre message et nous vous répondrons dans les plus brefs délais. Merci de votre patience !"
	FallbackReplyWeb      = "Merci pour votre message ! Un membre de notre équipe vous répondra très bientôt."
)

// Generator produces reply text for an intent and user message.
type Generator interface {
	GenerateReply(ctx context.Context, intent models.Intent, userText string) (string, error)
}

// PersistOutcome reports the fire-and-forget persistence result of one
// exchange so callers and tests can assert on it.
type PersistOutcome struct {
	InboundSaved  bool `json:"inboundSaved"`
	OutboundSaved bool `json:"outboundSaved"`
}

// Reply is the outcome of handling one incoming message.
type Reply struct {
	Text      string
	SessionID string
	Decision  models.RoutingDecision
	Outcome   PersistOutcome
	Generated bool // false when a static fallback was substituted
}

// Responder ties the router, the completion client and the store into the
// message-handling pipeline.
type Responder struct {
	router *router.Router
	genai  Generator
	st     store.Store
}

// NewResponder creates a Responder from its collaborators.
func NewResponder(r *router.Router, g Generator, st store.Store) *Responder {
	return &Responder{router: r, genai: g, st: st}
}

// Respond handles one incoming message end to end. It never returns an error:
// generation failures substitute the per-source fallback string and
// persistence failures are logged and reported through the outcome, so the
// reply always reaches the user.
func (r *Responder) Respond(ctx context.Context, msg models.IncomingMessage) Reply {
	start := time.Now()
	decision := r.router.Route(msg)
	slog.Info("Responder.Respond: message routed",
		"identity", decision.Identity, "source", decision.Source, "intent", decision.Intent, "session_active", decision.SessionActive)

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// A quiz keyword trigger opens a session marker so the next message
	// routes straight back into the quiz.
	if decision.Intent == models.IntentQuiz && !decision.SessionActive && decision.Identity != "" {
		if err := r.st.StartQuizSession(models.QuizSession{
			Identity:  decision.Identity,
			SessionID: sessionID,
			Status:    models.QuizSessionActive,
			StartedAt: start,
		}); err != nil {
			slog.Error("Responder.Respond: failed to start quiz session", "error", err, "identity", decision.Identity)
		}
	}

	outcome := PersistOutcome{}
	inbound := r.buildRow(msg, decision, sessionID)
	inbound.Sender = models.SenderUser
	inbound.Content = msg.Text
	inbound.ProviderMessageID = msg.ProviderMessageID
	if err := r.persist(inbound); err != nil {
		slog.Error("Responder.Respond: failed to persist inbound message", "error", err, "identity", decision.Identity)
	} else {
		outcome.InboundSaved = true
	}

	text, err := r.genai.GenerateReply(ctx, decision.Intent, msg.Text)
	generated := err == nil
	if err != nil {
		slog.Error("Responder.Respond: reply generation failed, using fallback", "error", err, "identity", decision.Identity, "intent", decision.Intent)
		text = FallbackReplyFor(msg.Source)
	}
	responseTime := time.Since(start).Seconds()

	outbound := r.buildRow(msg, decision, sessionID)
	outbound.Sender = models.SenderBot
	outbound.Content = text
	outbound.ResponseTimeSec = &responseTime
	if err := r.persist(outbound); err != nil {
		slog.Error("Responder.Respond: failed to persist outbound message", "error", err, "identity", decision.Identity)
	} else {
		outcome.OutboundSaved = true
	}

	return Reply{
		Text:      text,
		SessionID: sessionID,
		Decision:  decision,
		Outcome:   outcome,
		Generated: generated,
	}
}

// buildRow fills the fields shared by the inbound and outbound log rows.
func (r *Responder) buildRow(msg models.IncomingMessage, decision models.RoutingDecision, sessionID string) models.ConversationMessage {
	row := models.ConversationMessage{
		SessionID: sessionID,
		Source:    msg.Source,
		Intent:    decision.Intent,
		CreatedAt: time.Now(),
	}
	if msg.Source == models.SourceWeb {
		row.WebUserID = msg.From
	} else {
		row.PhoneNumber = msg.From
	}
	return row
}

func (r *Responder) persist(row models.ConversationMessage) error {
	if err := row.Validate(); err != nil {
		return err
	}
	return r.st.AddConversationMessage(row)
}

// FallbackReplyFor returns the static fallback string for a source.
func FallbackReplyFor(source models.Source) string {
	if source == models.SourceWeb {
		return FallbackReplyWeb
	}
	return FallbackReplyWhatsApp
}
