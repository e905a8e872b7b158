package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var _ Provider = (*OpenRouterProvider)(nil)

// OpenRouterProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenRouterProvider struct {
	BaseURL     string
	APIKey      string
	Model       string
	SiteURL     string
	AppName     string
	Temperature float32
	Client      *http.Client
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterChatReq struct {
	Model       string          `json:"model"`
	Messages    []openRouterMsg `json:"messages"`
	Temperature float32         `json:"temperature"`
	Stream      bool            `json:"stream"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message openRouterMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenRouterProvider(baseURL, siteURL, appName string, opts Options) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL:     baseURL,
		APIKey:      opts.APIKey,
		Model:       opts.Model,
		SiteURL:     siteURL,
		AppName:     appName,
		Temperature: opts.Temperature,
		Client:      &http.Client{Timeout: 90 * time.Second},
	}
}

// OpenRouterFactory binds the static endpoint settings and returns a registry factory.
func OpenRouterFactory(baseURL, siteURL, appName string) ProviderFactory {
	return func(_ context.Context, opts Options) (Provider, error) {
		if strings.TrimSpace(opts.APIKey) == "" {
			return nil, ErrMissingAPIKey
		}
		return NewOpenRouterProvider(baseURL, siteURL, appName, opts), nil
	}
}

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", errors.New("openrouter: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", ErrMissingAPIKey
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return "", errors.New("openrouter: model is required")
	}

	reqBody := openRouterChatReq{
		Model:       model,
		Temperature: p.Temperature,
		Messages:    make([]openRouterMsg, 0, len(messages)),
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, openRouterMsg{Role: m.Role, Content: m.Content})
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		req.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		req.Header.Set("X-Title", p.AppName)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", Classify("openrouter", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", Classify("openrouter", resp.StatusCode, errors.New(msg))
	}

	var decoded openRouterChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", Classify("openrouter", 0, err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", Classify("openrouter", decoded.Error.Code, errors.New(decoded.Error.Message))
	}
	if len(decoded.Choices) == 0 {
		return "", &UpstreamError{Provider: "openrouter", Err: errors.New("empty response")}
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
