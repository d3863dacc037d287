// Package models: webhook payload shapes for the ingress boundary.
//
// The webhook endpoint accepts two formats: the full WhatsApp Cloud API shape
// (entry[].changes[].value.messages[]) delivered by Meta, and a flattened shape
// posted by the internal proxy. Both are parsed into a tagged union and mapped
// to IncomingMessage before routing.
package models

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// GraphObjectWhatsApp is the only object type accepted on the Graph-shaped path.
const GraphObjectWhatsApp = "whatsapp_business_account"

// Webhook parse/validation errors.
var (
	ErrInvalidJSON          = errors.New("invalid JSON payload")
	ErrUnknownPayloadShape  = errors.New("unrecognized webhook payload shape")
	ErrUnsupportedObject    = errors.New("unsupported webhook object type")
	ErrFlatTextRequired     = errors.New("Text field is required and cannot be empty")
	ErrFlatFromRequired     = errors.New("From field is required and cannot be empty")
)

// GraphWebhookPayload is the full WhatsApp Cloud API webhook format.
type GraphWebhookPayload struct {
	Object string       `json:"object"`
	Entry  []GraphEntry `json:"entry"`
}

// GraphEntry is one business-account entry in a Cloud API delivery.
type GraphEntry struct {
	ID      string        `json:"id"`
	Changes []GraphChange `json:"changes"`
}

// GraphChange is one field change; messages arrive under field "messages".
type GraphChange struct {
	Field string           `json:"field"`
	Value GraphChangeValue `json:"value"`
}

// GraphChangeValue carries the metadata, inbound messages and status receipts.
type GraphChangeValue struct {
	MessagingProduct string         `json:"messaging_product"`
	Metadata         GraphMetadata  `json:"metadata"`
	Messages         []GraphMessage `json:"messages"`
	Statuses         []GraphStatus  `json:"statuses"`
}

// GraphMetadata identifies the receiving business phone number.
type GraphMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// GraphMessage is one inbound provider message.
type GraphMessage struct {
	From      string     `json:"from"`
	ID        string     `json:"id"`
	Timestamp string     `json:"timestamp"`
	Type      string     `json:"type"`
	Text      *GraphText `json:"text,omitempty"`
}

// GraphText is the text body of a text-type message.
type GraphText struct {
	Body string `json:"body"`
}

// GraphStatus is one delivery/read receipt.
type GraphStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// FlatWebhookPayload is the flattened internal-proxy format.
type FlatWebhookPayload struct {
	From          string `json:"from"`
	Text          string `json:"text"`
	PhoneNumberID string `json:"phoneNumberId"`
	Timestamp     string `json:"timestamp"`
	ChatbotType   string `json:"chatbotType,omitempty"`
}

// WebhookPayload is the tagged union produced at the ingress boundary.
// Exactly one of Graph or Flat is non-nil after a successful parse.
type WebhookPayload struct {
	Graph *GraphWebhookPayload
	Flat  *FlatWebhookPayload
}

// ParseWebhookPayload discriminates the two accepted formats by the presence of
// their distinguishing fields: "object" marks the Graph shape, "from"/"text"
// mark the flattened shape. Payloads matching neither are rejected.
func ParseWebhookPayload(data []byte) (WebhookPayload, error) {
	var probe struct {
		Object string          `json:"object"`
		From   json.RawMessage `json:"from"`
		Text   json.RawMessage `json:"text"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return WebhookPayload{}, ErrInvalidJSON
	}

	if probe.Object != "" {
		var graph GraphWebhookPayload
		if err := json.Unmarshal(data, &graph); err != nil {
			return WebhookPayload{}, ErrInvalidJSON
		}
		return WebhookPayload{Graph: &graph}, nil
	}

	if probe.From != nil || probe.Text != nil {
		var flat FlatWebhookPayload
		if err := json.Unmarshal(data, &flat); err != nil {
			return WebhookPayload{}, ErrInvalidJSON
		}
		return WebhookPayload{Flat: &flat}, nil
	}

	return WebhookPayload{}, ErrUnknownPayloadShape
}

// IncomingMessages extracts the text messages of a Graph payload as canonical
// ingress records. Non-text messages (media, reactions) are skipped.
func (p *GraphWebhookPayload) IncomingMessages() []IncomingMessage {
	var msgs []IncomingMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}
			for _, m := range change.Value.Messages {
				if m.Type != "" && m.Type != "text" {
					continue
				}
				if m.Text == nil || strings.TrimSpace(m.Text.Body) == "" {
					continue
				}
				msgs = append(msgs, IncomingMessage{
					From:              m.From,
					Source:            SourceWhatsApp,
					Text:              m.Text.Body,
					ProviderMessageID: m.ID,
					PhoneNumberID:     change.Value.Metadata.PhoneNumberID,
					ReceivedAt:        parseProviderTimestamp(m.Timestamp),
				})
			}
		}
	}
	return msgs
}

// StatusUpdates extracts the delivery/read receipts of a Graph payload.
func (p *GraphWebhookPayload) StatusUpdates() []DeliveryStatusUpdate {
	var updates []DeliveryStatusUpdate
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, s := range change.Value.Statuses {
				if s.ID == "" || s.Status == "" {
					continue
				}
				updates = append(updates, DeliveryStatusUpdate{
					ProviderMessageID: s.ID,
					Status:            s.Status,
					RecipientID:       s.RecipientID,
				})
			}
		}
	}
	return updates
}

// IncomingMessage validates the flattened payload and maps it to the canonical
// ingress record. An unknown chatbotType is ignored rather than rejected.
func (p *FlatWebhookPayload) IncomingMessage() (IncomingMessage, error) {
	if strings.TrimSpace(p.From) == "" {
		return IncomingMessage{}, ErrFlatFromRequired
	}
	if strings.TrimSpace(p.Text) == "" {
		return IncomingMessage{}, ErrFlatTextRequired
	}
	msg := IncomingMessage{
		From:          p.From,
		Source:        SourceWhatsApp,
		Text:          p.Text,
		PhoneNumberID: p.PhoneNumberID,
		ReceivedAt:    parseProviderTimestamp(p.Timestamp),
	}
	if forced := Intent(p.ChatbotType); forced.IsValid() {
		msg.ForcedIntent = forced
	}
	return msg, nil
}

// parseProviderTimestamp converts the provider's unix-seconds string to a time,
// falling back to now for absent or malformed values.
func parseProviderTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Now()
	}
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(secs, 0)
}
