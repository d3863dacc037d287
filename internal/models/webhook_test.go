package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseWebhookPayloadGraph(t *testing.T) {
	data := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "acct", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "221330000000", "phone_number_id": "15550001"},
			"messages": [{"from": "221770000001", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": "bonjour"}}]
		}}]}]
	}`)
	p, err := ParseWebhookPayload(data)
	if err != nil {
		t.Fatalf("ParseWebhookPayload: %v", err)
	}
	if p.Graph == nil || p.Flat != nil {
		t.Fatal("expected graph payload")
	}
	msgs := p.Graph.IncomingMessages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.From != "221770000001" || m.Text != "bonjour" || m.Source != SourceWhatsApp {
		t.Errorf("unexpected message %+v", m)
	}
	if m.ProviderMessageID != "wamid.1" {
		t.Errorf("provider message id = %q", m.ProviderMessageID)
	}
	if m.PhoneNumberID != "15550001" {
		t.Errorf("phone number id = %q", m.PhoneNumberID)
	}
	if want := time.Unix(1700000000, 0); !m.ReceivedAt.Equal(want) {
		t.Errorf("received at = %v, want %v", m.ReceivedAt, want)
	}
}

func TestParseWebhookPayloadGraphSkipsNonText(t *testing.T) {
	data := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"field": "messages", "value": {
			"messages": [
				{"from": "221770000001", "id": "wamid.1", "type": "image"},
				{"from": "221770000001", "id": "wamid.2", "type": "text", "text": {"body": "  "}},
				{"from": "221770000001", "id": "wamid.3", "type": "text", "text": {"body": "ok"}}
			]
		}}]}]
	}`)
	p, err := ParseWebhookPayload(data)
	if err != nil {
		t.Fatal(err)
	}
	msgs := p.Graph.IncomingMessages()
	if len(msgs) != 1 || msgs[0].ProviderMessageID != "wamid.3" {
		t.Errorf("expected only the text message, got %+v", msgs)
	}
}

func TestParseWebhookPayloadStatuses(t *testing.T) {
	data := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"field": "messages", "value": {
			"statuses": [{"id": "wamid.9", "status": "delivered", "recipient_id": "221770000001"}]
		}}]}]
	}`)
	p, err := ParseWebhookPayload(data)
	if err != nil {
		t.Fatal(err)
	}
	if msgs := p.Graph.IncomingMessages(); len(msgs) != 0 {
		t.Errorf("expected no messages, got %d", len(msgs))
	}
	updates := p.Graph.StatusUpdates()
	if len(updates) != 1 || updates[0].ProviderMessageID != "wamid.9" || updates[0].Status != "delivered" {
		t.Errorf("unexpected updates %+v", updates)
	}
}

func TestParseWebhookPayloadFlat(t *testing.T) {
	data := []byte(`{"from": "221770000001", "text": "bonjour", "phoneNumberId": "15550001", "chatbotType": "education"}`)
	p, err := ParseWebhookPayload(data)
	if err != nil {
		t.Fatal(err)
	}
	if p.Flat == nil || p.Graph != nil {
		t.Fatal("expected flat payload")
	}
	msg, err := p.Flat.IncomingMessage()
	if err != nil {
		t.Fatal(err)
	}
	if msg.From != "221770000001" || msg.Text != "bonjour" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.ForcedIntent != IntentEducation {
		t.Errorf("forced intent = %q, want education", msg.ForcedIntent)
	}
}

func TestParseWebhookPayloadFlatUnknownChatbotType(t *testing.T) {
	data := []byte(`{"from": "221770000001", "text": "x", "chatbotType": "banana"}`)
	p, err := ParseWebhookPayload(data)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := p.Flat.IncomingMessage()
	if err != nil {
		t.Fatal(err)
	}
	if msg.ForcedIntent != "" {
		t.Errorf("unknown chatbot type must be ignored, got %q", msg.ForcedIntent)
	}
}

func TestFlatPayloadValidation(t *testing.T) {
	flat := &FlatWebhookPayload{From: "221770000001"}
	if _, err := flat.IncomingMessage(); !errors.Is(err, ErrFlatTextRequired) {
		t.Errorf("expected ErrFlatTextRequired, got %v", err)
	}
	flat = &FlatWebhookPayload{Text: "bonjour"}
	if _, err := flat.IncomingMessage(); !errors.Is(err, ErrFlatFromRequired) {
		t.Errorf("expected ErrFlatFromRequired, got %v", err)
	}
}

func TestParseWebhookPayloadInvalidJSON(t *testing.T) {
	if _, err := ParseWebhookPayload([]byte("{nope")); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("expected ErrInvalidJSON, got %v", err)
	}
}

func TestParseWebhookPayloadUnknownShape(t *testing.T) {
	if _, err := ParseWebhookPayload([]byte(`{"hello": "world"}`)); !errors.Is(err, ErrUnknownPayloadShape) {
		t.Errorf("expected ErrUnknownPayloadShape, got %v", err)
	}
}
