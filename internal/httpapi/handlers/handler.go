package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/naomedical/bilingual-chat/internal/chat"
	"github.com/naomedical/bilingual-chat/internal/common"
	"github.com/naomedical/bilingual-chat/internal/config"
	"github.com/naomedical/bilingual-chat/internal/httpapi/middleware"
	"github.com/naomedical/bilingual-chat/internal/realtime"
)

const (
	SessionHeader   = "X-Session-ID"
	LLMKeyHeader    = "X-Gemini-API-Key"
	SpeechKeyHeader = "X-OpenAI-API-Key"

	quotaMessage = "Gemini API Quota Exceeded. Please provide a new API Key in Settings."
)

type Handler struct {
	Cfg     config.Config
	ChatSvc *chat.Service
	Hub     *realtime.Hub
}

func NewHandler(cfg config.Config, svc *chat.Service, hub *realtime.Hub) *Handler {
	return &Handler{Cfg: cfg, ChatSvc: svc, Hub: hub}
}

func credentials(c *gin.Context) chat.Credentials {
	return chat.Credentials{
		LLMKey:    strings.TrimSpace(c.GetHeader(LLMKeyHeader)),
		SpeechKey: strings.TrimSpace(c.GetHeader(SpeechKeyHeader)),
	}
}

// currentSession resolves the X-Session-ID header. On false the response is already written.
func (h *Handler) currentSession(c *gin.Context) (*chat.Session, bool) {
	sid := strings.TrimSpace(c.GetHeader(SessionHeader))
	if sid == "" {
		common.Fail(c, http.StatusBadRequest, 40003, "X-Session-ID header required")
		return nil, false
	}
	sess, err := h.ChatSvc.GetSession(c.Request.Context(), sid)
	if err != nil {
		h.failErr(c, "currentSession", err)
		return nil, false
	}
	return sess, true
}

// failErr maps domain errors onto the error envelope.
func (h *Handler) failErr(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "Session not found")
	case errors.Is(err, chat.ErrQuotaExceeded):
		common.Fail(c, http.StatusTooManyRequests, 42901, quotaMessage)
	case errors.Is(err, chat.ErrInvalidRole):
		common.Fail(c, http.StatusBadRequest, 40001, err.Error())
	case errors.Is(err, chat.ErrTranscriptionUnavailable):
		log.Printf("[%s] request_id=%s err=%v", op, c.GetString(middleware.RequestIDKey), err)
		common.Fail(c, http.StatusServiceUnavailable, 50301, "Transcription is not configured")
	case errors.Is(err, chat.ErrTranscriptionFailed):
		log.Printf("[%s] request_id=%s err=%v", op, c.GetString(middleware.RequestIDKey), err)
		cause := strings.TrimPrefix(err.Error(), chat.ErrTranscriptionFailed.Error()+": ")
		common.Fail(c, http.StatusInternalServerError, 50002, "Transcription failed: "+cause)
	default:
		log.Printf("[%s] request_id=%s err=%v", op, c.GetString(middleware.RequestIDKey), err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}
