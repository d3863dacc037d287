package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func validMessage() ConversationMessage {
	return ConversationMessage{
		PhoneNumber: "221770000001",
		Source:      SourceWhatsApp,
		Content:     "bonjour",
		Sender:      SenderUser,
		Intent:      IntentClient,
	}
}

func TestConversationMessageValidate(t *testing.T) {
	if err := validMessage().Validate(); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}

	m := validMessage()
	m.WebUserID = "web_1"
	if err := m.Validate(); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("both identities set: got %v", err)
	}

	m = validMessage()
	m.PhoneNumber = ""
	if err := m.Validate(); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("no identity set: got %v", err)
	}

	m = validMessage()
	m.Content = "   "
	if err := m.Validate(); !errors.Is(err, ErrContentEmpty) {
		t.Errorf("blank content: got %v", err)
	}

	m = validMessage()
	m.Content = strings.Repeat("a", MaxContentLength+1)
	if err := m.Validate(); !errors.Is(err, ErrContentTooLong) {
		t.Errorf("oversized content: got %v", err)
	}

	m = validMessage()
	m.Source = "sms"
	if err := m.Validate(); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("bad source: got %v", err)
	}

	m = validMessage()
	m.Sender = "system"
	if err := m.Validate(); !errors.Is(err, ErrInvalidSender) {
		t.Errorf("bad sender: got %v", err)
	}

	m = validMessage()
	m.Intent = "billing"
	if err := m.Validate(); !errors.Is(err, ErrInvalidIntent) {
		t.Errorf("bad intent: got %v", err)
	}
}

func TestConversationMessageIdentity(t *testing.T) {
	m := ConversationMessage{PhoneNumber: "221770000001"}
	if m.Identity() != "221770000001" {
		t.Errorf("identity = %q", m.Identity())
	}
	m = ConversationMessage{WebUserID: "web_1"}
	if m.Identity() != "web_1" {
		t.Errorf("identity = %q", m.Identity())
	}
}

func TestIntentIsValid(t *testing.T) {
	for _, valid := range []Intent{IntentClient, IntentQuiz, IntentEducation} {
		if !valid.IsValid() {
			t.Errorf("%q should be valid", valid)
		}
	}
	for _, invalid := range []Intent{"", "billing", "CLIENT"} {
		if invalid.IsValid() {
			t.Errorf("%q should be invalid", invalid)
		}
	}
}

func TestErrorEnvelopeHasErrorKey(t *testing.T) {
	data, err := json.Marshal(Error("something broke"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["error"] != "something broke" {
		t.Errorf(`expected {"error": ...} body, got %s`, data)
	}
	if decoded["status"] != "error" {
		t.Errorf("status = %v", decoded["status"])
	}
}

func TestSuccessEnvelope(t *testing.T) {
	resp := Success(map[string]string{"reply": "ok"})
	if resp.Status != string(APIStatusOK) {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Error != "" {
		t.Error("success must not carry an error")
	}
}
