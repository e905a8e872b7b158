package chat

import (
	"errors"

	"github.com/naomedical/bilingual-chat/internal/ai"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRole     = errors.New("role must be doctor or patient")

	// ErrQuotaExceeded is the upstream throttling signal surfaced to clients as 429.
	ErrQuotaExceeded = ai.ErrQuotaExceeded

	ErrTranscriptionFailed      = errors.New("transcription failed")
	ErrTranscriptionUnavailable = errors.New("transcription not configured")
)
