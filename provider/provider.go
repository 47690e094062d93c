// Package provider defines the chat-completion backends used to write
// follow-up messages.
package provider

import (
	"context"
	"errors"
)

// ErrUnknownProvider is returned by New for an unsupported provider name.
var ErrUnknownProvider = errors.New("unknown provider")

// Role identifies the sender of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single Chat call. Zero values fall back to the provider's
// configured defaults.
type Options struct {
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Response is a completed provider response.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Provider is a chat-completion backend.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic", "openai", "mock").
	Name() string

	// Chat sends a request and returns the complete response.
	Chat(ctx context.Context, messages []Message, opts Options) (*Response, error)
}

// Float returns a pointer to v, for Options.Temperature.
func Float(v float64) *float64 { return &v }
