package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxTokens  int
	HTTPClient *http.Client
}

// GeminiProvider implements Provider using the Google Gen AI SDK against the
// Gemini Developer API.
type GeminiProvider struct {
	client *genai.Client
	config GeminiConfig
}

// NewGeminiProvider creates a new Gemini provider. The API key is required.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(cfg.BaseURL, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{client: client, config: cfg}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	var contents []*genai.Content
	gc := &genai.GenerateContentConfig{}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			gc.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	maxTokens := p.config.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if maxTokens > 0 {
		gc.MaxOutputTokens = int32(maxTokens)
	}
	if opts.Temperature != nil {
		gc.Temperature = genai.Ptr(float32(*opts.Temperature))
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, gc)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	out := &Response{Content: resp.Text()}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}
