package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/rebrand/complete"
	"github.com/hazyhaar/rebrand/plan"
)

// generate asks the completion model for replacement copy for one element.
func (e *Engine) generate(ctx context.Context, original string, g *plan.Guidance, budget int, input plan.ProductInput) (string, error) {
	role := "description"
	if g != nil && g.Role != "" {
		role = g.Role
	}
	tone := input.Tone
	if tone == "" {
		tone = "professional"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\nWhat it is: %s\nTone: %s\n\n", input.Title, input.Description, tone)
	fmt.Fprintf(&b, "Rewrite this %s so it sells the product above instead of the current one.\n", role)
	fmt.Fprintf(&b, "Original: %s\n\n", original)
	fmt.Fprintf(&b, "Constraints: at most %d words, same language as the original, plain text only, no quotes, no markdown. Reply with the new text and nothing else.", budget)

	raw, err := e.cfg.Chat.Chat(ctx, complete.Request{
		Messages: []complete.Message{
			{
				Role: "system",
				Content: "You write replacement marketing copy that slots into an existing page " +
					"without disturbing its layout. You answer with the copy only.",
			},
			{Role: "user", Content: b.String()},
		},
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("engine: generate: %w", err)
	}
	out := CleanGenerated(raw)
	if out == "" {
		return "", fmt.Errorf("engine: generate: empty output")
	}
	return out, nil
}
