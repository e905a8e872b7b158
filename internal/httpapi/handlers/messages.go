package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/naomedical/bilingual-chat/internal/chat"
	"github.com/naomedical/bilingual-chat/internal/common"
)

type sendMessageReq struct {
	Role    string  `json:"role" binding:"required,oneof=doctor patient"`
	Content *string `json:"content" binding:"required"`
}

func (h *Handler) ListMessages(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), sess.ID)
	if err != nil {
		h.failErr(c, "ListMessages", err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) SendMessage(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40001, "invalid json: role must be doctor or patient and content is required")
		return
	}

	msg, err := h.ChatSvc.PostMessage(c.Request.Context(), sess, chat.Role(req.Role), *req.Content, credentials(c))
	if err != nil {
		h.failErr(c, "SendMessage", err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) UploadAudio(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}

	maxBytes := int64(h.Cfg.MaxUploadMB) << 20
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.Fail(c, http.StatusRequestEntityTooLarge, 40001, fmt.Sprintf("file exceeds %d MB", h.Cfg.MaxUploadMB))
			return
		}
		common.Fail(c, http.StatusBadRequest, 40001, "file is required")
		return
	}
	role := chat.Role(c.PostForm("role"))
	if !role.Valid() {
		common.Fail(c, http.StatusBadRequest, 40001, chat.ErrInvalidRole.Error())
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.failErr(c, "UploadAudio", err)
		return
	}
	defer f.Close()

	msg, err := h.ChatSvc.PostAudio(c.Request.Context(), sess, role, fh.Filename, f, credentials(c))
	if err != nil {
		h.failErr(c, "UploadAudio", err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) SearchMessages(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	msgs, err := h.ChatSvc.SearchMessages(c.Request.Context(), sess.ID, c.Query("q"))
	if err != nil {
		h.failErr(c, "SearchMessages", err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) Summary(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	// the body carries no fields yet; reject only malformed json
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		common.Fail(c, http.StatusBadRequest, 40001, "invalid json")
		return
	}

	text, err := h.ChatSvc.Summarize(c.Request.Context(), sess.ID, credentials(c))
	if err != nil {
		h.failErr(c, "Summary", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": text})
}

// ClearHistory accepts any session id from the path, independent of X-Session-ID.
func (h *Handler) ClearHistory(c *gin.Context) {
	sid := c.Param("session_id")
	n, err := h.ChatSvc.ClearHistory(c.Request.Context(), sid)
	if err != nil {
		h.failErr(c, "ClearHistory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("Cleared %d messages for session %s", n, sid),
	})
}
