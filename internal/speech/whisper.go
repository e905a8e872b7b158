// Package speech converts stored audio recordings to text.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/naomedical/bilingual-chat/internal/ai"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrAudioNotFound is returned before any remote call when the path does not exist.
var ErrAudioNotFound = errors.New("speech: audio file not found")

// Client is the remote transcription call.
type Client interface {
	Transcribe(ctx context.Context, audio *os.File) (string, error)
}

// ClientFactory builds a client for one call from an already resolved API key.
type ClientFactory func(apiKey string) Client

// Whisper transcribes audio with the OpenAI speech-to-text API.
type Whisper struct {
	defaultKey string
	newClient  ClientFactory
}

func NewWhisper(defaultKey, baseURL, model string) *Whisper {
	if model == "" {
		model = "whisper-1"
	}
	return NewWhisperWithFactory(defaultKey, func(apiKey string) Client {
		opts := []option.RequestOption{
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(http.DefaultClient),
		}
		if baseURL != "" {
			opts = append(opts, option.WithBaseURL(baseURL))
		}
		return &openAIClient{client: openai.NewClient(opts...), model: model}
	})
}

func NewWhisperWithFactory(defaultKey string, f ClientFactory) *Whisper {
	return &Whisper{defaultKey: defaultKey, newClient: f}
}

// Transcribe returns the text spoken in the file at path. apiKey, when non-empty,
// replaces the server credential for this call only. Every remote failure, including
// throttling, comes back as *ai.UpstreamError.
func (w *Whisper) Transcribe(ctx context.Context, path, apiKey string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrAudioNotFound, path)
		}
		return "", err
	}

	key, err := ai.ResolveAPIKey(apiKey, w.defaultKey)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	text, err := w.newClient(key).Transcribe(ctx, f)
	if err != nil {
		status := 0
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return "", &ai.UpstreamError{Provider: "openai", StatusCode: status, Err: err}
	}
	return strings.TrimSpace(text), nil
}

type openAIClient struct {
	client openai.Client
	model  string
}

func (c *openAIClient) Transcribe(ctx context.Context, audio *os.File) (string, error) {
	resp, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  audio,
		Model: openai.AudioModel(c.model),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
