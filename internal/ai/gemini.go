package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

var _ Provider = (*GeminiProvider)(nil)

// GeminiProvider implements Provider using the Google Gemini API.
type GeminiProvider struct {
	Client      *genai.Client
	Model       string
	Temperature float32
}

// NewGeminiProvider builds a client for one call. An empty baseURL uses the public endpoint.
func NewGeminiProvider(ctx context.Context, baseURL string, opts Options) (*GeminiProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	model := strings.TrimPrefix(strings.TrimSpace(opts.Model), "models/")
	if model == "" {
		model = "gemini-2.5-flash"
	}
	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, &UpstreamError{Provider: "gemini", Err: err}
	}
	return &GeminiProvider{Client: client, Model: model, Temperature: opts.Temperature}, nil
}

// GeminiFactory binds the endpoint and returns a registry factory.
func GeminiFactory(baseURL string) ProviderFactory {
	return func(ctx context.Context, opts Options) (Provider, error) {
		return NewGeminiProvider(ctx, baseURL, opts)
	}
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", errors.New("gemini: client is nil")
	}

	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(p.Temperature)}
	var (
		system   []*genai.Part
		contents []*genai.Content
	)
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, genai.NewPartFromText(m.Content))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}
	if len(contents) == 0 {
		return "", errors.New("gemini: no contents")
	}

	resp, err := p.Client.Models.GenerateContent(ctx, p.Model, contents, cfg)
	if err != nil {
		status := 0
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.Code
		}
		return "", Classify("gemini", status, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &UpstreamError{Provider: "gemini", Err: errors.New("empty response")}
	}
	return text, nil
}
