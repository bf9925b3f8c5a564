package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"feedac/internal/feed"
	"feedac/internal/logging"
)

// Judge evaluates AI rule groups against feed items using a Client.
type Judge struct {
	client Client
}

// NewJudge wraps a judgment client.
func NewJudge(client Client) *Judge {
	return &Judge{client: client}
}

type verdict struct {
	ShouldEngage bool `json:"shouldEngage"`
}

// Judge asks the model whether the item satisfies the instruction. Any
// transport or parse failure is returned as an error; callers treat errors
// as a negative answer.
func (j *Judge) Judge(ctx context.Context, instruction string, item feed.Item) (bool, error) {
	prompt := buildJudgePrompt(instruction, item)
	out, err := j.client.Complete(ctx, prompt)
	if err != nil {
		return false, err
	}

	v, err := parseVerdict(out)
	if err != nil {
		return false, fmt.Errorf("unusable judgment for item %s: %w", item.AwemeID, err)
	}
	logging.AI("item %s judged shouldEngage=%v", item.AwemeID, v.ShouldEngage)
	return v.ShouldEngage, nil
}

func buildJudgePrompt(instruction string, item feed.Item) string {
	var b strings.Builder
	b.WriteString("You decide whether a short video matches a user's interest criteria.\n\n")
	b.WriteString("Criteria:\n")
	b.WriteString(instruction)
	b.WriteString("\n\nVideo:\n")
	fmt.Fprintf(&b, "- author: %s\n", item.Author.Nickname)
	fmt.Fprintf(&b, "- description: %s\n", item.Desc)
	if tags := item.TagNames(); len(tags) > 0 {
		fmt.Fprintf(&b, "- tags: %s\n", strings.Join(tags, ", "))
	}
	b.WriteString("\nAnswer with only a JSON object of the form {\"shouldEngage\": true} or {\"shouldEngage\": false}.")
	return b.String()
}

// parseVerdict extracts the verdict object from a completion, tolerating
// markdown code fences and surrounding prose.
func parseVerdict(out string) (verdict, error) {
	s := strings.TrimSpace(out)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			s = s[i : j+1]
		}
	}
	var v verdict
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return verdict{}, fmt.Errorf("parse verdict %q: %w", truncate(out, 120), err)
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
