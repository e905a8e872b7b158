package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/naomedical/bilingual-chat/internal/ai"
	"github.com/naomedical/bilingual-chat/internal/chat"
	"github.com/naomedical/bilingual-chat/internal/config"
	"github.com/naomedical/bilingual-chat/internal/db"
	"github.com/naomedical/bilingual-chat/internal/httpapi/handlers"
	"github.com/naomedical/bilingual-chat/internal/realtime"
	"github.com/naomedical/bilingual-chat/internal/store/filestore"
	"github.com/naomedical/bilingual-chat/internal/translate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTranslator struct {
	err     error
	lastKey string
}

func (s *stubTranslator) Translate(_ context.Context, text, target, apiKey string) (string, error) {
	s.lastKey = apiKey
	if s.err != nil {
		return "", s.err
	}
	if text == "I have a fever" && target == "es" {
		return "Tengo fiebre", nil
	}
	return text + " (" + target + ")", nil
}

type stubTranscriber struct {
	err error
}

func (s *stubTranscriber) Transcribe(_ context.Context, path, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type stubSummarizer struct {
	lastKey string
}

func (s *stubSummarizer) Summarize(_ context.Context, msgs []chat.Message, apiKey string) (string, error) {
	s.lastKey = apiKey
	return fmt.Sprintf("%d messages", len(msgs)), nil
}

type testServer struct {
	r   *gin.Engine
	tr  *stubTranslator
	stt *stubTranscriber
	sum *stubSummarizer
	hub *realtime.Hub
}

func newTestServer(t *testing.T, uiDir string) *testServer {
	t.Helper()
	gdb, err := db.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := config.Config{
		UploadDir:   filepath.Join(t.TempDir(), "uploads"),
		UIDir:       uiDir,
		MaxUploadMB: 1,
	}
	files, err := filestore.New(cfg.UploadDir, "/uploads")
	require.NoError(t, err)

	ts := &testServer{
		tr:  &stubTranslator{},
		stt: &stubTranscriber{},
		sum: &stubSummarizer{},
		hub: realtime.NewHub(time.Second),
	}
	svc := chat.NewService(chat.NewRepo(gdb), chat.Deps{
		Translator:  ts.tr,
		Transcriber: ts.stt,
		Summarizer:  ts.sum,
		Audio:       files,
		Events:      ts.hub,
	}, chat.Options{Fallback: translate.Fallback})
	ts.r = NewRouter(cfg, handlers.NewHandler(cfg, svc, ts.hub))
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(handlers.SessionHeader, sessionID)
	}
	w := httptest.NewRecorder()
	ts.r.ServeHTTP(w, req)
	return w
}

func (ts *testServer) uploadAudio(t *testing.T, sessionID, role, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if role != "" {
		require.NoError(t, mw.WriteField("role", role))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, _ = fw.Write([]byte(content))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(handlers.SessionHeader, sessionID)
	w := httptest.NewRecorder()
	ts.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func envelopeCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	env := decode[map[string]any](t, w)
	code, _ := env["code"].(float64)
	return int(code)
}

func (ts *testServer) createSession(t *testing.T) chat.Session {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/session", "", map[string]string{"doctor_lang": "en", "patient_lang": "es"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[chat.Session](t, w)
}

func TestEndToEnd_DoctorMessageTranslated(t *testing.T) {
	ts := newTestServer(t, "")
	sess := ts.createSession(t)
	assert.Equal(t, "en", sess.DoctorLang)
	assert.Equal(t, "es", sess.PatientLang)

	w := ts.do(t, http.MethodPost, "/api/chat", sess.ID, map[string]string{"role": "doctor", "content": "I have a fever"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	msg := decode[chat.Message](t, w)
	assert.Equal(t, chat.RoleDoctor, msg.Role)
	require.NotNil(t, msg.TranslatedText)
	assert.Equal(t, "Tengo fiebre", *msg.TranslatedText)

	w = ts.do(t, http.MethodGet, "/api/messages", sess.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode[[]chat.Message](t, w)
	require.Len(t, msgs, 1)
	assert.Equal(t, "I have a fever", msgs[0].OriginalText)
	assert.Equal(t, msg.ID, msgs[0].ID)
}

func TestCreateSession_EmptyBodyUsesDefaults(t *testing.T) {
	ts := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
	w := httptest.NewRecorder()
	ts.r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sess := decode[chat.Session](t, w)
	assert.Equal(t, "en", sess.DoctorLang)
	assert.Equal(t, "es", sess.PatientLang)
	assert.NotEmpty(t, sess.ID)
}

func TestCreateSession_CamelCaseKeys(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(t, http.MethodPost, "/api/session", "", map[string]string{"doctorLang": "fr", "patientLang": "de"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sess := decode[chat.Session](t, w)
	assert.Equal(t, "fr", sess.DoctorLang)
	assert.Equal(t, "de", sess.PatientLang)

	w = ts.do(t, http.MethodPost, "/api/session", "", map[string]string{"doctor_lang": "en", "doctorLang": "fr", "patientLang": "ja"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sess = decode[chat.Session](t, w)
	assert.Equal(t, "en", sess.DoctorLang)
	assert.Equal(t, "ja", sess.PatientLang)
}

func TestCreateSession_InvalidLanguage(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(t, http.MethodPost, "/api/session", "", map[string]string{"doctor_lang": "not a tag!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40002, envelopeCode(t, w))
}

func TestSessionResolution(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, http.MethodGet, "/api/session", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40003, envelopeCode(t, w))

	w = ts.do(t, http.MethodGet, "/api/messages", "nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40401, envelopeCode(t, w))

	sess := ts.createSession(t)
	w = ts.do(t, http.MethodGet, "/api/session", sess.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, sess.ID, decode[chat.Session](t, w).ID)
}

func TestSendMessage_Validation(t *testing.T) {
	ts := newTestServer(t, "")
	sess := ts.createSession(t)

	w := ts.do(t, http.MethodPost, "/api/chat", sess.ID, map[string]string{"role": "nurse", "content": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40001, envelopeCode(t, w))

	w = ts.do(t, http.MethodPost, "/api/chat", sess.ID, map[string]string{"role": "doctor"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessage_QuotaAndFallback(t *testing.T) {
	ts := newTestServer(t, "")
	sess := ts.createSession(t)

	ts.tr.err = ai.Classify("gemini", http.StatusTooManyRequests, errors.New("resource exhausted"))
	w := ts.do(t, http.MethodPost, "/api/chat", sess.ID, map[string]string{"role": "doctor", "content": "hello"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	env := decode[map[string]any](t, w)
	assert.Equal(t, float64(42901), env["code"])
	assert.Contains(t, env["message"], "Quota Exceeded")

	ts.tr.err = &ai.UpstreamError{Provider: "gemini", StatusCode: 500, Err: errors.New("down")}
	w = ts.do(t, http.MethodPost, "/api/chat", sess.ID, map[string]string{"role": "patient", "content": "hola"})
	require.Equal(t, http.StatusOK, w.Code)
	msg := decode[chat.Message](t, w)
	assert.Equal(t, "hola"+translate.FallbackSuffix, *msg.TranslatedText)
}

func TestSendMessage_PassesCredentialHeader(t *testing.T) {
	ts := newTestServer(t, "")
	sess := ts.createSession(t)

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(map[string]string{"role": "doctor", "content": "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.SessionHeader, sess.ID)
	req.Header.Set(handlers.LLMKeyHeader, "user-key")
	w := httptest.NewRecorder()
	ts.r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-key", ts.tr.lastKey)
}

func TestUploadAudio(t *testing.T) {
	ts := newTestServer(t, "")
	sess := ts.createSession(t)

	w := ts.uploadAudio(t, sess.ID, "patient", "../note.webm", "me duele")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	msg := decode[chat.Message](t, w)
	assert.Equal(t, "me duele", msg.OriginalText)
	require.NotNil(t, msg.AudioURL)
	assert.True(t, strings.HasPrefix(*msg.AudioURL, "/uploads/"))
	assert.True(t, strings.HasSuffix(*msg.AudioURL, "_note.webm"))
	assert.Equal(t, "me duele (en)", *msg.TranslatedText)

	w = ts.do(t, http.MethodGet, *msg.AudioURL, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "me duele", w.Body.String())

	w = ts.uploadAudio(t, sess.ID, "", "a.webm", "x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadAudio_TranscriptionErrors(t *testing.T) {
	ts := newTestServer(t, "")
	sess := ts.createSession(t)

	ts.stt.err = &ai.UpstreamError{Provider: "openai", StatusCode: 400, Err: errors.New("bad audio")}
	w := ts.uploadAudio(t, sess.ID, "doctor", "a.webm", "x")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode[map[string]any](t, w)
	assert.Equal(t, float64(50002), env["code"])
	assert.True(t, strings.HasPrefix(env["message"].(string), "Transcription failed: "), env["message"])

	ts.stt.err = ai.ErrMissingAPIKey
	w = ts.uploadAudio(t, sess.ID, "doctor", "a.webm", "x")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 50301, envelopeCode(t, w))

	w = ts.do(t, http.MethodGet, "/api/messages", sess.ID, nil)
	assert.Empty(t, decode[[]chat.Message](t, w))
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t, "")
	sess := ts.createSession(t)
	ts.do(t, http.MethodPost, "/api/chat", sess.ID, map[string]string{"role": "doctor", "content": "I have a fever"})

	w := ts.do(t, http.MethodGet, "/api/search?q=FIEBRE", sess.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]chat.Message](t, w), 1)

	w = ts.do(t, http.MethodGet, "/api/search?q=", sess.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestSummary(t *testing.T) {
	ts := newTestServer(t, "")
	sess := ts.createSession(t)
	ts.do(t, http.MethodPost, "/api/chat", sess.ID, map[string]string{"role": "doctor", "content": "a"})

	req := httptest.NewRequest(http.MethodPost, "/api/summary", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.SessionHeader, sess.ID)
	req.Header.Set(handlers.LLMKeyHeader, "k2")
	w := httptest.NewRecorder()
	ts.r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1 messages", decode[map[string]string](t, w)["summary"])
	assert.Equal(t, "k2", ts.sum.lastKey)
}

func TestClearHistory(t *testing.T) {
	ts := newTestServer(t, "")
	sess := ts.createSession(t)
	ts.do(t, http.MethodPost, "/api/chat", sess.ID, map[string]string{"role": "doctor", "content": "a"})

	w := ts.do(t, http.MethodPost, "/api/clear/"+sess.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Cleared 1 messages for session "+sess.ID, body["message"])

	w = ts.do(t, http.MethodGet, "/api/session", sess.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/api/messages", sess.ID, nil)
	assert.Empty(t, decode[[]chat.Message](t, w))
}

func TestDemoSession(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, http.MethodGet, "/api/session/demo?doctor_lang=en&patient_lang=fr", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sess := decode[chat.Session](t, w)
	assert.Equal(t, "demo", sess.ID)
	assert.Equal(t, "fr", sess.PatientLang)

	ts.do(t, http.MethodPost, "/api/chat", "demo", map[string]string{"role": "doctor", "content": "a"})

	w = ts.do(t, http.MethodGet, "/api/session/demo?doctorLang=en&patientLang=de", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "de", decode[chat.Session](t, w).PatientLang)

	w = ts.do(t, http.MethodGet, "/api/messages", "demo", nil)
	assert.Empty(t, decode[[]chat.Message](t, w))
}

func TestSystemRoutes(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Nao Medical Translation API is running", decode[map[string]string](t, w)["message"])

	w = ts.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[map[string]any](t, w)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(0), health["connections"])

	w = ts.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, envelopeCode(t, w))

	w = ts.do(t, http.MethodGet, "/api/chat", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, 40500, envelopeCode(t, w))
}

func TestClientBundleFallback(t *testing.T) {
	ui := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ui, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ui, "app.js"), []byte("console.log(1)"), 0o644))
	ts := newTestServer(t, ui)

	w := ts.do(t, http.MethodGet, "/app.js", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())

	w = ts.do(t, http.MethodGet, "/some/client/route", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "app")

	w = ts.do(t, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
