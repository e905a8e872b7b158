package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/naomedical/bilingual-chat/internal/ai"
	"github.com/naomedical/bilingual-chat/internal/common"
)

type Translator interface {
	Translate(ctx context.Context, text, targetLang, apiKey string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, path, apiKey string) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, msgs []Message, apiKey string) (string, error)
}

// AudioStore persists an upload and reports where it lives on disk and how it is served.
type AudioStore interface {
	Save(filename string, r io.Reader) (path, url string, err error)
	Remove(path string) error
}

// Credentials are per-request API keys; empty fields fall back to the server defaults.
type Credentials struct {
	LLMKey    string
	SpeechKey string
}

type Deps struct {
	Translator  Translator
	Transcriber Transcriber
	Summarizer  Summarizer
	Audio       AudioStore
	Events      Broadcaster
}

type Options struct {
	DemoSessionID string
	DoctorLang    string
	PatientLang   string
	// Fallback builds the stored text when translation fails for a non-quota reason.
	Fallback func(original string) string
}

type Service struct {
	repo        *Repo
	translator  Translator
	transcriber Transcriber
	summarizer  Summarizer
	audio       AudioStore
	events      Broadcaster
	opts        Options
}

const (
	defaultDoctorLang  = "en"
	defaultPatientLang = "es"
	defaultDemoID      = "demo"
)

func NewService(repo *Repo, deps Deps, opts Options) *Service {
	if opts.DemoSessionID == "" {
		opts.DemoSessionID = defaultDemoID
	}
	if opts.DoctorLang == "" {
		opts.DoctorLang = defaultDoctorLang
	}
	if opts.PatientLang == "" {
		opts.PatientLang = defaultPatientLang
	}
	if opts.Fallback == nil {
		opts.Fallback = func(s string) string { return s }
	}
	if deps.Events == nil {
		deps.Events = nopBroadcaster{}
	}
	return &Service{
		repo:        repo,
		translator:  deps.Translator,
		transcriber: deps.Transcriber,
		summarizer:  deps.Summarizer,
		audio:       deps.Audio,
		events:      deps.Events,
		opts:        opts,
	}
}

func (s *Service) langsOrDefault(doctorLang, patientLang string) (string, string) {
	if doctorLang == "" {
		doctorLang = s.opts.DoctorLang
	}
	if patientLang == "" {
		patientLang = s.opts.PatientLang
	}
	return doctorLang, patientLang
}

// CreateSession always creates a new session with a fresh id.
func (s *Service) CreateSession(ctx context.Context, doctorLang, patientLang string) (*Session, error) {
	doctorLang, patientLang = s.langsOrDefault(doctorLang, patientLang)

	sid, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	sess := &Session{ID: sid, DoctorLang: doctorLang, PatientLang: patientLang}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// DemoSession returns the shared demo session, creating it on first use. A changed
// language pair is applied in place and wipes the session's history.
func (s *Service) DemoSession(ctx context.Context, doctorLang, patientLang string) (*Session, error) {
	doctorLang, patientLang = s.langsOrDefault(doctorLang, patientLang)
	id := s.opts.DemoSessionID

	sess, err := s.repo.GetSession(ctx, id)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		created := &Session{ID: id, DoctorLang: doctorLang, PatientLang: patientLang}
		if cerr := s.repo.CreateSession(ctx, created); cerr == nil {
			return created, nil
		}
		// lost a creation race with another request
		if sess, err = s.repo.GetSession(ctx, id); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if sess.DoctorLang == doctorLang && sess.PatientLang == patientLang {
		return sess, nil
	}

	deleted, err := s.repo.UpdateLanguagesAndPurge(ctx, id, doctorLang, patientLang)
	if err != nil {
		return nil, err
	}
	log.Printf("[DemoSession] languages changed session_id=%s doctor=%s patient=%s deleted=%d",
		id, doctorLang, patientLang, deleted)
	sess.DoctorLang = doctorLang
	sess.PatientLang = patientLang
	s.events.Broadcast(ctx, ClearHistoryEvent(id))
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	return s.repo.GetSession(ctx, id)
}

// translateFor translates text for the counterpart of role. Quota errors are returned;
// any other failure is absorbed into the fallback text.
func (s *Service) translateFor(ctx context.Context, sess *Session, role Role, text, apiKey string) (*string, error) {
	target := sess.TargetLang(role)
	out, err := s.translator.Translate(ctx, text, target, apiKey)
	if err != nil {
		if errors.Is(err, ai.ErrQuotaExceeded) {
			return nil, ErrQuotaExceeded
		}
		log.Printf("[Translate] fallback session_id=%s role=%s target=%s err=%v", sess.ID, role, target, err)
		out = s.opts.Fallback(text)
	}
	return &out, nil
}

// PostMessage translates content into the other role's language, stores and broadcasts it.
func (s *Service) PostMessage(ctx context.Context, sess *Session, role Role, content string, creds Credentials) (*Message, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	translated, err := s.translateFor(ctx, sess, role, content, creds.LLMKey)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		SessionID:      sess.ID,
		Role:           role,
		OriginalText:   content,
		TranslatedText: translated,
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.events.Broadcast(ctx, NewMessageEvent(msg))
	return msg, nil
}

// PostAudio stores the upload, transcribes it, then proceeds like PostMessage. A
// transcription failure fails the request and deletes the upload.
func (s *Service) PostAudio(ctx context.Context, sess *Session, role Role, filename string, r io.Reader, creds Credentials) (*Message, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	path, url, err := s.audio.Save(filename, r)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	text, err := s.transcriber.Transcribe(ctx, path, creds.SpeechKey)
	if err != nil {
		// no message will reference the upload
		if rerr := s.audio.Remove(path); rerr != nil {
			log.Printf("[PostAudio] remove upload failed path=%s err=%v", path, rerr)
		}
		if errors.Is(err, ai.ErrMissingAPIKey) {
			return nil, fmt.Errorf("%w: %v", ErrTranscriptionUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}

	translated, err := s.translateFor(ctx, sess, role, text, creds.LLMKey)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		SessionID:      sess.ID,
		Role:           role,
		OriginalText:   text,
		TranslatedText: translated,
		AudioURL:       &url,
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.events.Broadcast(ctx, NewMessageEvent(msg))
	return msg, nil
}

func (s *Service) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	return s.repo.ListMessages(ctx, sessionID)
}

func (s *Service) SearchMessages(ctx context.Context, sessionID, query string) ([]Message, error) {
	return s.repo.SearchMessages(ctx, sessionID, query)
}

// Summarize returns the summarizer's text verbatim, sentinels included.
func (s *Service) Summarize(ctx context.Context, sessionID string, creds Credentials) (string, error) {
	msgs, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return s.summarizer.Summarize(ctx, msgs, creds.LLMKey)
}

// ClearHistory deletes every message of sessionID and notifies clients. The session row
// is kept. Any id is accepted, known or not.
func (s *Service) ClearHistory(ctx context.Context, sessionID string) (int64, error) {
	n, err := s.repo.ClearMessages(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	s.events.Broadcast(ctx, ClearHistoryEvent(sessionID))
	return n, nil
}
