// Package intent maps free-text message content to a chatbot intent via
// keyword matching against fixed keyword sets.
package intent

import (
	"strings"

	"github.com/jokkolabs/jokko/internal/models"
)

// Fixed keyword sets, French first since that is the product's default
// language. Matching is case-insensitive substring search.
var (
	quizKeywords = []string{
		"quiz", "jeu", "jouer", "défi", "defi",
		"game", "play", "challenge", "test",
	}
	educationKeywords = []string{
		"apprendre", "cours", "leçon", "lecon", "formation", "étudier", "etudier",
		"learn", "study", "course", "lesson", "education",
	}
	clientKeywords = []string{
		"aide", "problème", "probleme", "support", "service", "facture", "commande",
		"help", "problem", "billing", "order", "complaint",
	}
)

// exactLabels maps a trimmed lower-cased message that names an intent directly
// to that intent, bypassing substring search.
var exactLabels = map[string]models.Intent{
	"quiz":           models.IntentQuiz,
	"education":      models.IntentEducation,
	"éducation":      models.IntentEducation,
	"client":         models.IntentClient,
	"service client": models.IntentClient,
}

// Classifier maps message text to one of the routing intents. It is pure and
// total: every input produces a label.
//
// Precedence is canonical across all call sites: exact label match first, then
// quiz keywords, then education, then client substrings; unmatched text
// defaults to client. Quiz-first keeps play-style messages deterministic even
// when they brush education vocabulary, and client is the safe default for a
// support product.
type Classifier struct {
	quiz      []string
	education []string
	client    []string
}

// NewClassifier creates a classifier with the default keyword sets.
func NewClassifier() *Classifier {
	return &Classifier{
		quiz:      quizKeywords,
		education: educationKeywords,
		client:    clientKeywords,
	}
}

// Classify returns the intent label for the given message text.
func (c *Classifier) Classify(text string) models.Intent {
	normalized := strings.ToLower(strings.TrimSpace(text))

	if label, ok := exactLabels[normalized]; ok {
		return label
	}
	if containsAny(normalized, c.quiz) {
		return models.IntentQuiz
	}
	if containsAny(normalized, c.education) {
		return models.IntentEducation
	}
	if containsAny(normalized, c.client) {
		return models.IntentClient
	}
	return models.IntentClient
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
