package agent

import (
	"context"
	"math/rand/v2"
)

var fallbackReplies = []string{
	"I'd love to help with your college admission questions! Currently, I'm learning about Maharashtra CET colleges. What would you like to know about?",
	"As a college admission assistant, I specialize in CET-based engineering admissions in Maharashtra. You can ask me about cutoff trends, college rankings, or admission procedures.",
	"For CET admissions, you might want to know about top colleges like COEP Pune, VJTI Mumbai, or SPIT Mumbai. What specific information are you looking for?",
	"I can help you with information about CET cutoffs, college facilities, admission procedures, and branch-wise comparisons. What's your question about college admissions?",
	"Many students ask about Computer Engineering, IT, or Mechanical Engineering cutoffs in Mumbai and Pune colleges. What's your area of interest?",
}

// FallbackProvider answers with canned replies when no model is configured.
type FallbackProvider struct {
	pick func(n int) int
}

// NewFallbackProvider picks replies at random.
func NewFallbackProvider() *FallbackProvider {
	return &FallbackProvider{pick: rand.IntN}
}

func (p *FallbackProvider) Name() string { return "fallback" }

func (p *FallbackProvider) Reply(ctx context.Context, message string, history []Exchange) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fallbackReplies[p.pick(len(fallbackReplies))], nil
}
