// Package api provides HTTP handlers for Jokko endpoints.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jokkolabs/jokko/internal/models"
)

// MaxWebhookBodyBytes bounds inbound webhook payloads.
const MaxWebhookBodyBytes = 1 << 20

// webhookHandler serves the Cloud API webhook: verification handshake on GET,
// message/status ingestion on POST.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		s.verifyWebhook(w, r)
	case http.MethodPost:
		s.ingestWebhook(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}

// verifyWebhook answers the provider's subscription handshake: echo the
// challenge when the verify token matches, 403 otherwise.
func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	if s.verifyToken == "" {
		slog.Error("Server.verifyWebhook: verify token not configured")
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Server configuration error"))
		return
	}
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && token == s.verifyToken {
		slog.Info("Server.verifyWebhook: webhook verified")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, challenge); err != nil {
			slog.Error("Server.verifyWebhook: failed to write challenge", "error", err)
		}
		return
	}
	slog.Warn("Server.verifyWebhook: verification failed", "mode", mode)
	writeJSONResponse(w, http.StatusForbidden, models.Error("Verification token mismatch"))
}

// ingestWebhook accepts both webhook formats, normalizes them and runs the
// message pipeline. The provider retries non-200 responses, so processing
// failures past validation still acknowledge with 200.
func (s *Server) ingestWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxWebhookBodyBytes))
	if err != nil {
		slog.Warn("Server.ingestWebhook: failed to read body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Failed to read request body"))
		return
	}

	payload, err := models.ParseWebhookPayload(body)
	switch {
	case errors.Is(err, models.ErrInvalidJSON):
		slog.Warn("Server.ingestWebhook: invalid JSON")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	case errors.Is(err, models.ErrUnknownPayloadShape):
		slog.Warn("Server.ingestWebhook: unrecognized payload shape")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unrecognized webhook payload format"))
		return
	case err != nil:
		slog.Error("Server.ingestWebhook: parse failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid webhook payload"))
		return
	}

	if payload.Graph != nil {
		s.handleGraphPayload(w, r, payload.Graph)
		return
	}
	s.handleFlatPayload(w, r, payload.Flat)
}

// handleGraphPayload processes a full Cloud API delivery: status receipts
// first, then every inbound text message.
func (s *Server) handleGraphPayload(w http.ResponseWriter, r *http.Request, p *models.GraphWebhookPayload) {
	if p.Object != models.GraphObjectWhatsApp {
		slog.Warn("Server.handleGraphPayload: unsupported object type", "object", p.Object)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unsupported webhook object type"))
		return
	}

	for _, update := range p.StatusUpdates() {
		// A receipt for an unknown message id is a no-op, not an error.
		if err := s.st.UpdateDeliveryStatus(update.ProviderMessageID, update.Status); err != nil {
			slog.Error("Server.handleGraphPayload: delivery status update failed", "error", err, "provider_message_id", update.ProviderMessageID)
		}
	}

	msgs := p.IncomingMessages()
	if len(msgs) == 0 {
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("No messages to process", nil))
		return
	}

	processed := 0
	for _, msg := range msgs {
		// WhatsApp caps text bodies well below the column bound; clamp
		// rather than reject so the provider does not redeliver.
		if len(msg.Text) > models.MaxContentLength {
			msg.Text = msg.Text[:models.MaxContentLength]
		}
		reply := s.responder.Respond(r.Context(), msg)
		if err := s.msgService.SendMessage(r.Context(), msg.From, reply.Text); err != nil {
			slog.Error("Server.handleGraphPayload: failed to send reply", "error", err, "to", msg.From)
			continue
		}
		processed++
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{"processed": processed}))
}

// handleFlatPayload processes an internal-proxy post: authenticate, validate,
// run the pipeline, send the reply and return it in the response body.
func (s *Server) handleFlatPayload(w http.ResponseWriter, r *http.Request, p *models.FlatWebhookPayload) {
	if s.apiToken != "" {
		if bearerToken(r) != s.apiToken {
			slog.Warn("Server.handleFlatPayload: missing or invalid authorization")
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("Missing or invalid authorization"))
			return
		}
	}

	msg, err := p.IncomingMessage()
	if err != nil {
		slog.Warn("Server.handleFlatPayload: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if len(msg.Text) > models.MaxContentLength {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(fmt.Sprintf("Text exceeds maximum length of %d characters", models.MaxContentLength)))
		return
	}

	reply := s.responder.Respond(r.Context(), msg)
	if err := s.msgService.SendMessage(r.Context(), msg.From, reply.Text); err != nil {
		slog.Error("Server.handleFlatPayload: failed to send reply", "error", err, "to", msg.From)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"reply":     reply.Text,
		"intent":    reply.Decision.Intent,
		"sessionId": reply.SessionID,
		"persisted": reply.Outcome,
	}))
}

// chatRequest is the web chat input shape.
type chatRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// chatHandler serves the web chat channel: the reply is returned in the
// response body instead of being delivered through a messaging provider.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.chatHandler: method not allowed", "method", r.Method)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Message field is required and cannot be empty"))
		return
	}
	if len(req.Message) > models.MaxContentLength {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(fmt.Sprintf("Message exceeds maximum length of %d characters", models.MaxContentLength)))
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = "web_" + uuid.NewString()
	}

	reply := s.responder.Respond(r.Context(), models.IncomingMessage{
		From:      userID,
		Source:    models.SourceWeb,
		Text:      req.Message,
		SessionID: req.SessionID,
	})
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"reply":     reply.Text,
		"intent":    reply.Decision.Intent,
		"userId":    userID,
		"sessionId": reply.SessionID,
		"persisted": reply.Outcome,
	}))
}

// conversationsHandler lists the conversation log rows for an identity.
func (s *Server) conversationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("identity query parameter is required"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	messages, err := s.st.GetConversationMessages(identity, limit)
	if err != nil {
		slog.Error("Server.conversationsHandler: query failed", "error", err, "identity", identity)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch conversation messages"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"identity": identity,
		"count":    len(messages),
		"messages": messages,
	}))
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}

// bearerToken extracts the token of an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}
