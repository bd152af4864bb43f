// Service narration: a one-line account of delivered work for the event stream.
// Purely cosmetic; callers ignore failures.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// NarrateService describes a completed job in one sentence.
func NarrateService(ctx context.Context, r *Reasoner, name, category, description string, payment float64) (string, error) {
	system := `You narrate an AI service marketplace. Describe the finished job in one short sentence, past tense, no quotes.`
	prompt := fmt.Sprintf("%s (%s) completed %q for %.4f.", name, category, description, payment)

	return Query(ctx, r, system, prompt, func(text string) (string, error) {
		text = strings.TrimSpace(text)
		if text == "" {
			return "", fmt.Errorf("empty narration")
		}
		if i := strings.IndexByte(text, '\n'); i > 0 {
			text = text[:i]
		}
		return text, nil
	})
}
