package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/naomedical/bilingual-chat/internal/common"
	"github.com/naomedical/bilingual-chat/internal/translate"
)

type createSessionReq struct {
	DoctorLang  string `json:"doctor_lang"`
	PatientLang string `json:"patient_lang"`
	// camelCase spellings, used when the snake_case keys are absent
	DoctorLangAlt  string `json:"doctorLang"`
	PatientLangAlt string `json:"patientLang"`
}

func (r createSessionReq) langs() (string, string) {
	doc, pat := r.DoctorLang, r.PatientLang
	if doc == "" {
		doc = r.DoctorLangAlt
	}
	if pat == "" {
		pat = r.PatientLangAlt
	}
	return doc, pat
}

// canonicalPair validates optional language tags; empty tags stay empty so the service
// applies its defaults.
func canonicalPair(doctorLang, patientLang string) (string, string, error) {
	var err error
	if doctorLang != "" {
		if doctorLang, err = translate.Canonical(doctorLang); err != nil {
			return "", "", err
		}
	}
	if patientLang != "" {
		if patientLang, err = translate.Canonical(patientLang); err != nil {
			return "", "", err
		}
	}
	return doctorLang, patientLang, nil
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionReq
	// allow empty body
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.Fail(c, http.StatusBadRequest, 40001, "invalid json")
		return
	}
	doc, pat, err := canonicalPair(req.langs())
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 40002, "invalid language tag")
		return
	}

	sess, err := h.ChatSvc.CreateSession(c.Request.Context(), doc, pat)
	if err != nil {
		h.failErr(c, "CreateSession", err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) DemoSession(c *gin.Context) {
	doc, pat, err := canonicalPair(
		firstQuery(c, "doctor_lang", "doctorLang"),
		firstQuery(c, "patient_lang", "patientLang"),
	)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 40002, "invalid language tag")
		return
	}

	sess, err := h.ChatSvc.DemoSession(c.Request.Context(), doc, pat)
	if err != nil {
		h.failErr(c, "DemoSession", err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) GetSession(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess)
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}
