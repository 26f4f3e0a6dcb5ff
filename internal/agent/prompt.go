package agent

import (
	"errors"
	"strings"
)

// SystemPrompt frames every model-backed provider as a CET counselor.
const SystemPrompt = `You are a helpful college admission counselor for CET (MHT-CET) in Maharashtra, India.
Provide accurate, helpful information about:
- Colleges accepting CET percentile
- Cutoff scores for different branches
- Admission procedures
- College rankings and facilities
- Placement statistics
- Fees structure

Be specific to Maharashtra engineering colleges.
If you don't know something, say so politely.
Keep responses concise and helpful.`

// historyWindow is how many earlier exchanges are folded into a prompt.
const historyWindow = 3

// ErrEmptyReply is returned when a model produces no text.
var ErrEmptyReply = errors.New("model returned an empty response")

// BuildPrompt prefixes message with the most recent exchanges.
func BuildPrompt(message string, history []Exchange) string {
	message = strings.TrimSpace(message)
	if len(history) == 0 {
		return message
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, ex := range history {
		if ex.User != "" {
			b.WriteString("Student: " + ex.User + "\n")
		}
		if ex.Bot != "" {
			b.WriteString("Assistant: " + ex.Bot + "\n")
		}
	}
	b.WriteString("\nCurrent question: " + message)
	return b.String()
}

// FriendlyError turns a provider failure into text a student can act on.
func FriendlyError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return "I apologize, but the service is currently experiencing high demand. Please try again in a few moments."
	case strings.Contains(msg, "safety"), strings.Contains(msg, "blocked"):
		return "I cannot provide a response to that question due to content safety policies. Please ask about college admissions in Maharashtra."
	case strings.Contains(msg, "api key"), strings.Contains(msg, "authentication"), strings.Contains(msg, "401"):
		return "There seems to be an authentication issue with the AI service. Please contact the administrator."
	case strings.Contains(msg, "not found"):
		return "The AI model is currently unavailable. Please try again later."
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return "The request timed out. Please try again."
	}
	return "I'm having trouble processing your request. Please try rephrasing your question about college admissions."
}
