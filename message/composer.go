package message

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/showroom/provider"
)

const (
	systemPrompt       = "You are a helpful assistant for a furniture sales company."
	defaultMaxTokens   = 400
	defaultTemperature = 0.8
	defaultSalesperson = "Your Showroom Team"
)

// Composer writes messages with a language model.
type Composer struct {
	provider    provider.Provider
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithMaxTokens overrides the response token limit.
func WithMaxTokens(n int) ComposerOption {
	return func(c *Composer) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) ComposerOption {
	return func(c *Composer) { c.temperature = t }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ComposerOption {
	return func(c *Composer) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewComposer returns a Composer backed by p.
func NewComposer(p provider.Provider, opts ...ComposerOption) *Composer {
	c := &Composer{
		provider:    p,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose renders the prompt for req and asks the model for the message.
func (c *Composer) Compose(ctx context.Context, req Request) (string, error) {
	prompt, err := Prompt(req)
	if err != nil {
		return "", err
	}

	resp, err := c.provider.Chat(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: systemPrompt},
		{Role: provider.RoleUser, Content: prompt},
	}, provider.Options{
		MaxTokens:   c.maxTokens,
		Temperature: provider.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("compose message: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("compose message: %s returned an empty response", c.provider.Name())
	}
	c.logger.Debug("message composed",
		zap.String("client_id", req.Client.ID),
		zap.String("provider", c.provider.Name()),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
	)
	return text, nil
}

// TemplateComposer fills the stock templates without calling a model.
type TemplateComposer struct {
	// Salesperson signs the message. Empty uses a generic team signature.
	Salesperson string
}

// Compose renders the template for req with the client's details.
func (t TemplateComposer) Compose(_ context.Context, req Request) (string, error) {
	style := req.Style
	if style == "" {
		style = DefaultStyle
	}
	kind, ok := KindFor(req.Segment)
	if !ok {
		return "", fmt.Errorf("%w for segment %q", ErrNoTemplate, req.Segment)
	}
	text, err := Template(kind, style)
	if err != nil {
		return "", err
	}

	signer := strings.TrimSpace(t.Salesperson)
	if signer == "" {
		signer = defaultSalesperson
	}
	name := firstName(req.Client.Name)
	if name == "" {
		name = "there"
	}
	r := strings.NewReplacer(
		"{name}", name,
		"{product_or_room}", productOrRoom(req),
		"{your_name}", signer,
	)
	return r.Replace(text), nil
}

// productOrRoom picks the most specific thing the client is furnishing.
func productOrRoom(req Request) string {
	switch {
	case req.Room.DesiredFurniture != "":
		return req.Room.DesiredFurniture
	case req.Room.Type != "":
		return req.Room.Type
	case req.Client.Rooms != "":
		return req.Client.Rooms
	default:
		return "furniture"
	}
}
