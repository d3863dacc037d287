package genai

import (
	"regexp"
	"strings"
)

// MaxReplyLength bounds generated replies in runes before they are returned or
// persisted.
const MaxReplyLength = 3000

var (
	scriptBlockRegex = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	htmlTagRegex     = regexp.MustCompile(`<[^>]*>`)
)

// SanitizeReply strips script blocks and HTML tags from generated text and
// truncates it to MaxReplyLength runes.
func SanitizeReply(text string) string {
	text = scriptBlockRegex.ReplaceAllString(text, "")
	text = htmlTagRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > MaxReplyLength {
		text = string(runes[:MaxReplyLength])
	}
	return text
}
