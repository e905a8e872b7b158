// Package summary condenses a doctor-patient conversation into a short clinical note.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/naomedical/bilingual-chat/internal/ai"
	"github.com/naomedical/bilingual-chat/internal/chat"
)

const (
	// NoHistory is returned for an empty conversation without calling the model.
	NoHistory = "No conversation history to summarize."
	// Failed is returned for any failure other than quota.
	Failed = "Failed to generate summary."
)

const promptTemplate = `You are a medical assistant. Summarize the following doctor-patient conversation.

Conversation History:
%s

Please structure your summary with the following sections if applicable:
- **Symptoms**: What is the patient complaining about?
- **Diagnoses**: What did the doctor suspect or confirm?
- **Medications**: Any prescriptions mentioned?
- **Next Steps**: Follow-up instructions.

Omit any section that does not apply. Keep it concise and professional.`

// Cache stores generated summaries keyed by conversation content.
type Cache interface {
	GetSummary(ctx context.Context, key string) (string, bool, error)
	SetSummary(ctx context.Context, key, summary string) error
}

type Summarizer struct {
	registry    *ai.Registry
	provider    string
	model       string
	defaultKey  string
	temperature float32
	cache       Cache
}

func New(registry *ai.Registry, provider, model, defaultKey string, temperature float32) *Summarizer {
	return &Summarizer{
		registry:    registry,
		provider:    provider,
		model:       model,
		defaultKey:  defaultKey,
		temperature: temperature,
	}
}

// WithCache enables summary caching. A nil cache disables it.
func (s *Summarizer) WithCache(c Cache) *Summarizer {
	s.cache = c
	return s
}

// Summarize returns a structured summary of msgs (chronological). Only a quota failure is
// returned as an error (ai.ErrQuotaExceeded); everything else degrades to Failed.
func (s *Summarizer) Summarize(ctx context.Context, msgs []chat.Message, apiKey string) (string, error) {
	if len(msgs) == 0 {
		return NoHistory, nil
	}

	key := CacheKey(msgs)
	if s.cache != nil {
		if v, ok, err := s.cache.GetSummary(ctx, key); err != nil {
			log.Printf("[Summarize] cache get failed key=%s err=%v", key, err)
		} else if ok {
			return v, nil
		}
	}

	out, err := s.generate(ctx, Transcript(msgs), apiKey)
	if err != nil {
		if errors.Is(err, ai.ErrQuotaExceeded) {
			return "", err
		}
		log.Printf("[Summarize] generation failed session_id=%s messages=%d err=%v", msgs[0].SessionID, len(msgs), err)
		return Failed, nil
	}

	if s.cache != nil {
		if err := s.cache.SetSummary(ctx, key, out); err != nil {
			log.Printf("[Summarize] cache set failed key=%s err=%v", key, err)
		}
	}
	return out, nil
}

func (s *Summarizer) generate(ctx context.Context, transcript, apiKey string) (string, error) {
	key, err := ai.ResolveAPIKey(apiKey, s.defaultKey)
	if err != nil {
		return "", err
	}
	p, err := s.registry.Get(ctx, s.provider, ai.Options{
		Model:       s.model,
		APIKey:      key,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", ai.Classify(s.provider, 0, err)
	}
	out, err := p.Chat(ctx, []ai.Message{
		{Role: ai.RoleUser, Content: fmt.Sprintf(promptTemplate, transcript)},
	})
	if err != nil {
		return "", ai.Classify(s.provider, 0, err)
	}
	return out, nil
}

// Transcript renders one "ROLE: original text" line per message.
func Transcript(msgs []chat.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, strings.ToUpper(string(m.Role))+": "+m.OriginalText)
	}
	return strings.Join(lines, "\n")
}

// CacheKey changes whenever a message is added or the history is cleared.
func CacheKey(msgs []chat.Message) string {
	last := msgs[len(msgs)-1]
	return fmt.Sprintf("%s:%d:%d", last.SessionID, len(msgs), last.ID)
}
