// Package ai holds the judgment clients. Providers hide behind the Client
// interface so the rule evaluator never learns which platform is answering.
package ai

import "context"

// Client is a minimal chat-completion surface: one prompt in, one text
// completion out.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config selects a provider and its credentials.
type Config struct {
	Platform string
	APIKey   string
	Model    string
}
