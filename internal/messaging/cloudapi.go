package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Cloud API defaults.
const (
	// DefaultGraphBaseURL is the Meta Graph API endpoint prefix.
	DefaultGraphBaseURL = "https://graph.facebook.com/v21.0"
	// DefaultHTTPTimeout bounds outbound send calls.
	DefaultHTTPTimeout = 30 * time.Second
)

// CloudAPIOpts holds configuration options for the Cloud API transport.
type CloudAPIOpts struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	HTTPClient    *http.Client
}

// CloudAPIOption defines a configuration option for the Cloud API transport.
type CloudAPIOption func(*CloudAPIOpts)

// WithAccessToken sets the Graph API bearer token.
func WithAccessToken(token string) CloudAPIOption {
	return func(o *CloudAPIOpts) {
		o.AccessToken = token
	}
}

// WithPhoneNumberID sets the sending business phone number id.
func WithPhoneNumberID(id string) CloudAPIOption {
	return func(o *CloudAPIOpts) {
		o.PhoneNumberID = id
	}
}

// WithBaseURL overrides the Graph API endpoint (used in tests).
func WithBaseURL(url string) CloudAPIOption {
	return func(o *CloudAPIOpts) {
		o.BaseURL = url
	}
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(c *http.Client) CloudAPIOption {
	return func(o *CloudAPIOpts) {
		o.HTTPClient = c
	}
}

// CloudAPIService sends WhatsApp messages through the Meta Cloud API.
type CloudAPIService struct {
	httpClient    *http.Client
	accessToken   string
	phoneNumberID string
	baseURL       string
}

// NewCloudAPIService creates a Cloud API transport from the provided options.
func NewCloudAPIService(opts ...CloudAPIOption) (*CloudAPIService, error) {
	cfg := CloudAPIOpts{BaseURL: DefaultGraphBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("WhatsApp access token must be provided")
	}
	if cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("WhatsApp phone number id must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	slog.Debug("CloudAPIService initialized", "phone_number_id", cfg.PhoneNumberID, "base_url", cfg.BaseURL)
	return &CloudAPIService{
		httpClient:    cfg.HTTPClient,
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       cfg.BaseURL,
	}, nil
}

// cloudAPITextRequest is the outbound reply payload.
type cloudAPITextRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             cloudAPITextBody `json:"text"`
}

type cloudAPITextBody struct {
	Body string `json:"body"`
}

// cloudAPISendResponse is the subset of the send response we care about.
type cloudAPISendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number by stripping non-digits.
func (s *CloudAPIService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// SendMessage posts a text message to the Graph messages endpoint.
func (s *CloudAPIService) SendMessage(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("CloudAPIService.SendMessage: recipient validation failed", "error", err, "to", to)
		return err
	}

	payload := cloudAPITextRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               canonicalTo,
		Type:             "text",
		Text:             cloudAPITextBody{Body: body},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("CloudAPIService.SendMessage: request failed", "error", err, "to", canonicalTo)
		return fmt.Errorf("failed to send message to %s: %w", canonicalTo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("CloudAPIService.SendMessage: provider rejected message", "status", resp.StatusCode, "to", canonicalTo, "body", string(excerpt))
		return fmt.Errorf("provider returned status %d sending to %s", resp.StatusCode, canonicalTo)
	}

	var sendResp cloudAPISendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err == nil && len(sendResp.Messages) > 0 {
		slog.Debug("CloudAPIService.SendMessage: message accepted", "to", canonicalTo, "provider_message_id", sendResp.Messages[0].ID)
	} else {
		slog.Debug("CloudAPIService.SendMessage: message accepted", "to", canonicalTo)
	}
	return nil
}
