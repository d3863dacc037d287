package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/jokkolabs/jokko/internal/models"
)

// mockChatService implements chatService for testing. Each call consumes the
// next queued result and records the model it was asked for.
type mockChatService struct {
	results []mockResult
	models  []string
}

type mockResult struct {
	resp openai.ChatCompletion
	err  error
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.models = append(m.models, params.Model)
	if len(m.results) == 0 {
		return openai.ChatCompletion{}, errors.New("no queued result")
	}
	r := m.results[0]
	m.results = m.results[1:]
	return r.resp, r.err
}

func completionWith(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func testClient(chat chatService) *Client {
	return &Client{
		chat:          chat,
		model:         "gpt-4o",
		fallbackModel: "gpt-4o-mini",
		maxTokens:     DefaultMaxTokens,
		temperature:   DefaultTemperature,
	}
}

func TestGenerateReplySuccess(t *testing.T) {
	mock := &mockChatService{results: []mockResult{{resp: completionWith("Bonjour !")}}}
	c := testClient(mock)
	out, err := c.GenerateReply(context.Background(), models.IntentClient, "salut")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Bonjour !" {
		t.Errorf("expected 'Bonjour !', got %q", out)
	}
	if len(mock.models) != 1 || mock.models[0] != "gpt-4o" {
		t.Errorf("expected one call to gpt-4o, got %v", mock.models)
	}
}

func TestGenerateReplyDeprecatedModelRetriesOnce(t *testing.T) {
	mock := &mockChatService{results: []mockResult{
		{err: errors.New("the model `gpt-4o` has been deprecated")},
		{resp: completionWith("fallback reply")},
	}}
	c := testClient(mock)
	out, err := c.GenerateReply(context.Background(), models.IntentQuiz, "quiz!")
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if out != "fallback reply" {
		t.Errorf("expected fallback reply, got %q", out)
	}
	if len(mock.models) != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", len(mock.models))
	}
	if mock.models[1] != "gpt-4o-mini" {
		t.Errorf("retry used model %q, want gpt-4o-mini", mock.models[1])
	}
}

func TestGenerateReplyDecommissionedRetryAlsoFails(t *testing.T) {
	mock := &mockChatService{results: []mockResult{
		{err: errors.New("model decommissioned")},
		{err: errors.New("model decommissioned")},
	}}
	c := testClient(mock)
	_, err := c.GenerateReply(context.Background(), models.IntentClient, "hi")
	if err == nil {
		t.Fatal("expected error after failed retry")
	}
	// No second retry is attempted.
	if len(mock.models) != 2 {
		t.Errorf("expected exactly 2 calls, got %d", len(mock.models))
	}
}

func TestGenerateReplyOtherErrorNoRetry(t *testing.T) {
	mock := &mockChatService{results: []mockResult{{err: errors.New("rate limit exceeded")}}}
	c := testClient(mock)
	_, err := c.GenerateReply(context.Background(), models.IntentClient, "hi")
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if len(mock.models) != 1 {
		t.Errorf("expected a single call for non-deprecation errors, got %d", len(mock.models))
	}
}

func TestGenerateReplyNoChoices(t *testing.T) {
	mock := &mockChatService{results: []mockResult{{resp: openai.ChatCompletion{}}}}
	c := testClient(mock)
	_, err := c.GenerateReply(context.Background(), models.IntentClient, "hi")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("expected error when API key not provided, got nil")
	}
	if _, err := NewClient(WithAPIKey("test-key")); err != nil {
		t.Errorf("expected no error with API key, got %v", err)
	}
}

func TestSystemPromptPerIntent(t *testing.T) {
	prompts := map[models.Intent]string{
		models.IntentClient:    SystemPromptFor(models.IntentClient),
		models.IntentQuiz:      SystemPromptFor(models.IntentQuiz),
		models.IntentEducation: SystemPromptFor(models.IntentEducation),
	}
	seen := map[string]bool{}
	for intent, p := range prompts {
		if p == "" {
			t.Errorf("empty system prompt for %q", intent)
		}
		if seen[p] {
			t.Errorf("duplicate system prompt for %q", intent)
		}
		seen[p] = true
	}
}

func TestSanitizeReplyStripsScriptAndTags(t *testing.T) {
	in := `Bonjour <script>alert("x")</script><b>cher client</b>`
	out := SanitizeReply(in)
	if strings.Contains(out, "<") || strings.Contains(out, "alert") {
		t.Errorf("sanitization left markup: %q", out)
	}
	if !strings.Contains(out, "Bonjour") || !strings.Contains(out, "cher client") {
		t.Errorf("sanitization removed text content: %q", out)
	}
}

func TestSanitizeReplyTruncates(t *testing.T) {
	in := strings.Repeat("é", MaxReplyLength+100)
	out := SanitizeReply(in)
	if got := len([]rune(out)); got != MaxReplyLength {
		t.Errorf("expected %d runes, got %d", MaxReplyLength, got)
	}
}
