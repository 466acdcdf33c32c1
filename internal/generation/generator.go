// Package generation defines the boundary to the external large-language-model
// collaborator used for deep-truth synthesis. The core treats it as a black
// box: it builds a prompt, asks for text, and treats empty output as a hard
// failure. No default output is ever substituted silently; only the system
// prompt has a configured fallback.
package generation

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Params tune a single generation call.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Generator produces text from a system prompt and user content. An empty
// result with a nil error is treated by callers as a failure.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userContent string, params Params) (string, error)
}

// DefaultDeepTruthSystemPrompt is used when no system prompt is configured.
const DefaultDeepTruthSystemPrompt = "You analyze an anonymous two-stage message exchange. " +
	"Given the sender's teaser, their hidden truth, and the replies it drew, write a short, " +
	"warm, perceptive read of what is really going on between these two people. " +
	"Stay concrete, avoid therapy cliches, and never invent facts that are not in the exchange."

var titleCaser = cases.Title(language.English)

// HumanizeModeKey turns a machine mode key such as "crush_confession" into a
// display label such as "Crush Confession".
func HumanizeModeKey(modeKey string) string {
	modeKey = strings.TrimSpace(modeKey)
	if modeKey == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(modeKey, "_", " "))
}

// BuildDeepTruthPrompt assembles the user-content block for a deep-truth call
// from the moment's mode, teaser, hidden text, and the ordered reply texts.
func BuildDeepTruthPrompt(modeKey, teaser, hidden string, replies []string) string {
	var b strings.Builder
	if label := HumanizeModeKey(modeKey); label != "" {
		fmt.Fprintf(&b, "Mode: %s\n", label)
	}
	fmt.Fprintf(&b, "Teaser: %s\n", strings.TrimSpace(teaser))
	fmt.Fprintf(&b, "Hidden truth: %s\n", strings.TrimSpace(hidden))
	if len(replies) == 0 {
		b.WriteString("Replies: (none yet)\n")
		return b.String()
	}
	b.WriteString("Replies, in order:\n")
	for i, r := range replies {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(r))
	}
	return b.String()
}
