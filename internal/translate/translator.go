// Package translate renders chat text into the counterpart's language.
package translate

import (
	"context"
	"fmt"

	"github.com/naomedical/bilingual-chat/internal/ai"
)

const systemPrompt = "You are a professional medical translator. Translate the user input accurately into %s. " +
	"Preserve medical terminology. Do not add any conversational filler, just return the translated text."

// FallbackSuffix marks text stored untranslated because the translation call failed.
const FallbackSuffix = " [translation unavailable]"

type Translator struct {
	registry    *ai.Registry
	provider    string
	model       string
	defaultKey  string
	temperature float32
}

func New(registry *ai.Registry, provider, model, defaultKey string, temperature float32) *Translator {
	return &Translator{
		registry:    registry,
		provider:    provider,
		model:       model,
		defaultKey:  defaultKey,
		temperature: temperature,
	}
}

// Translate returns text in targetLang. Empty text short-circuits without a remote call.
// Failures come back as ai.ErrQuotaExceeded, ai.ErrMissingAPIKey or *ai.UpstreamError;
// deciding what to store instead is up to the caller.
func (t *Translator) Translate(ctx context.Context, text, targetLang, apiKey string) (string, error) {
	if text == "" {
		return "", nil
	}

	key, err := ai.ResolveAPIKey(apiKey, t.defaultKey)
	if err != nil {
		return "", err
	}
	p, err := t.registry.Get(ctx, t.provider, ai.Options{
		Model:       t.model,
		APIKey:      key,
		Temperature: t.temperature,
	})
	if err != nil {
		return "", ai.Classify(t.provider, 0, err)
	}

	out, err := p.Chat(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: fmt.Sprintf(systemPrompt, LanguageName(targetLang))},
		{Role: ai.RoleUser, Content: text},
	})
	if err != nil {
		return "", ai.Classify(t.provider, 0, err)
	}
	return out, nil
}

// Fallback is what gets stored when translation fails for a reason other than quota.
func Fallback(text string) string {
	return text + FallbackSuffix
}
