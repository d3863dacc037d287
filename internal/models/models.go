// Package models defines the core data structures for Jokko.
//
// It includes conversation log rows, chatbot intents, quiz session markers,
// and the API response envelope shared across modules.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Source identifies the channel a message originated from.
type Source string

const (
	// SourceWhatsApp marks messages arriving through the WhatsApp Cloud API.
	SourceWhatsApp Source = "whatsapp"
	// SourceWeb marks messages arriving through the web chat widget.
	SourceWeb Source = "web"
)

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Intent is the routing label deciding which response logic handles a message.
type Intent string

const (
	IntentClient    Intent = "client"
	IntentQuiz      Intent = "quiz"
	IntentEducation Intent = "education"
)

// IsValid reports whether the intent is one of the known routing labels.
func (i Intent) IsValid() bool {
	switch i {
	case IntentClient, IntentQuiz, IntentEducation:
		return true
	}
	return false
}

// MaxContentLength bounds the content column of a conversation row.
const MaxContentLength = 4096

// Validation errors returned by ConversationMessage.Validate.
var (
	ErrNoIdentity       = errors.New("message must have exactly one of phone number or web user id")
	ErrContentEmpty     = errors.New("message content cannot be empty")
	ErrContentTooLong   = fmt.Errorf("message content exceeds %d characters", MaxContentLength)
	ErrInvalidSource    = errors.New("message source must be whatsapp or web")
	ErrInvalidSender    = errors.New("message sender must be user or bot")
	ErrInvalidIntent    = errors.New("message intent must be client, quiz or education")
)

// ConversationMessage is one append-only row of the conversation log.
// Rows are immutable once written; the only field ever updated afterwards is
// DeliveryStatus, driven by provider receipts keyed on ProviderMessageID.
type ConversationMessage struct {
	ID                int64      `json:"id,omitempty"`
	PhoneNumber       string     `json:"phoneNumber,omitempty"`
	WebUserID         string     `json:"webUserId,omitempty"`
	SessionID         string     `json:"sessionId,omitempty"`
	Source            Source     `json:"source"`
	Content           string     `json:"content"`
	Sender            Sender     `json:"sender"`
	Intent            Intent     `json:"intent"`
	ResponseTimeSec   *float64   `json:"responseTimeSec,omitempty"`
	ProviderMessageID string     `json:"providerMessageId,omitempty"`
	DeliveryStatus    string     `json:"deliveryStatus,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Identity returns the single identifier addressing the conversational party.
func (m ConversationMessage) Identity() string {
	if m.PhoneNumber != "" {
		return m.PhoneNumber
	}
	return m.WebUserID
}

// Validate checks the row invariants before it is appended to the log.
func (m ConversationMessage) Validate() error {
	if (m.PhoneNumber == "") == (m.WebUserID == "") {
		return ErrNoIdentity
	}
	if strings.TrimSpace(m.Content) == "" {
		return ErrContentEmpty
	}
	if len(m.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	if m.Source != SourceWhatsApp && m.Source != SourceWeb {
		return ErrInvalidSource
	}
	if m.Sender != SenderUser && m.Sender != SenderBot {
		return ErrInvalidSender
	}
	if !m.Intent.IsValid() {
		return ErrInvalidIntent
	}
	return nil
}

// QuizSessionStatus enumerates quiz session marker states.
type QuizSessionStatus string

const (
	QuizSessionActive   QuizSessionStatus = "active"
	QuizSessionFinished QuizSessionStatus = "finished"
)

// QuizSession marks whether an identity has an unfinished quiz interaction.
// A session counts as active when Status is active and CompletedAt is unset.
// The quiz-progress service owns the full lifecycle; this subsystem only
// creates markers on keyword triggers and reads them during routing.
type QuizSession struct {
	ID          int64             `json:"id,omitempty"`
	Identity    string            `json:"identity"`
	SessionID   string            `json:"sessionId"`
	Status      QuizSessionStatus `json:"status"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// IncomingMessage is the canonical ingress record both webhook formats and the
// web chat endpoint normalize into before routing.
type IncomingMessage struct {
	From              string    // phone number or web user id
	Source            Source
	Text              string
	SessionID         string
	ProviderMessageID string // provider message id (wamid) when present
	PhoneNumberID     string // receiving business number, Cloud API metadata
	ForcedIntent      Intent  // optional chatbotType from the flattened format
	ReceivedAt        time.Time
}

// RoutingDecision is the ephemeral output of one classification pass.
type RoutingDecision struct {
	Intent        Intent `json:"intent"`
	Identity      string `json:"identity"`
	Source        Source `json:"source"`
	SessionActive bool   `json:"sessionActive"`
}

// DeliveryStatusUpdate carries one provider receipt (sent/delivered/read).
type DeliveryStatusUpdate struct {
	ProviderMessageID string
	Status            string
	RecipientID       string
}

// API response types for consistent JSON responses.

// APIStatus enumerates envelope statuses.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
// Error responses carry the message under "error" so clients can rely on a
// {"error": "..."} body on every non-200 path.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{response: APIResponse{}}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithError sets the error text of the API response.
func (b *APIResponseBuilder) WithError(message string) *APIResponseBuilder {
	b.response.Error = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithError(message).
		Build()
}
