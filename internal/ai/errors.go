package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMissingAPIKey means neither a per-call credential nor a server default exists.
	ErrMissingAPIKey = errors.New("ai: no api key configured")

	// ErrQuotaExceeded marks rate-limit / quota failures. Callers surface it as 429 and
	// ask the user for a fresh credential.
	ErrQuotaExceeded = errors.New("ai: upstream quota exceeded")
)

// UpstreamError is any other failure of a hosted API call.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ResolveAPIKey prefers the caller's override over the server default.
func ResolveAPIKey(override, def string) (string, error) {
	if k := strings.TrimSpace(override); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(def); k != "" {
		return k, nil
	}
	return "", ErrMissingAPIKey
}

var quotaMarkers = []string{"429", "quota", "exhausted", "rate limit"}

// IsQuotaSignal reports whether a failed call was throttled, either by status code or by
// the wording of the error.
func IsQuotaSignal(statusCode int, err error) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range quotaMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Classify converts a raw provider failure into ErrQuotaExceeded or an *UpstreamError.
func Classify(provider string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrMissingAPIKey) {
		return err
	}
	if IsQuotaSignal(statusCode, err) {
		return fmt.Errorf("%w: %s: %v", ErrQuotaExceeded, provider, err)
	}
	return &UpstreamError{Provider: provider, StatusCode: statusCode, Err: err}
}
