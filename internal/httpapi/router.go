package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/naomedical/bilingual-chat/internal/common"
	"github.com/naomedical/bilingual-chat/internal/config"
	"github.com/naomedical/bilingual-chat/internal/httpapi/handlers"
	"github.com/naomedical/bilingual-chat/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			handlers.SessionHeader, handlers.LLMKeyHeader, handlers.SpeechKeyHeader,
			middleware.RequestIDHeader,
		},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	ui := uiIndex(cfg.UIDir)

	r.NoRoute(func(c *gin.Context) {
		if ui != "" && c.Request.Method == http.MethodGet && !strings.HasPrefix(c.Request.URL.Path, "/api/") {
			serveUI(c, cfg.UIDir, ui)
			return
		}
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Static("/uploads", cfg.UploadDir)

	if ui != "" {
		r.GET("/", func(c *gin.Context) { c.File(ui) })
	} else {
		r.GET("/", h.Root)
	}

	api := r.Group("/api")
	api.GET("/health", h.Health)
	api.GET("/ws", h.WebSocket)

	api.POST("/session", h.CreateSession)
	api.GET("/session/demo", h.DemoSession)
	api.GET("/session", h.GetSession)

	api.GET("/messages", h.ListMessages)
	api.POST("/chat", h.SendMessage)
	api.POST("/audio", h.UploadAudio)
	api.GET("/search", h.SearchMessages)
	api.POST("/summary", h.Summary)
	api.POST("/clear/:session_id", h.ClearHistory)
	return r
}

// uiIndex returns the client bundle's index.html, or "" when no bundle is present.
func uiIndex(dir string) string {
	if dir == "" {
		return ""
	}
	index := filepath.Join(dir, "index.html")
	if st, err := os.Stat(index); err != nil || st.IsDir() {
		return ""
	}
	return index
}

// serveUI serves a bundle asset when it exists and index.html otherwise, so client-side
// routes survive a reload.
func serveUI(c *gin.Context, dir, index string) {
	rel := filepath.FromSlash(strings.TrimPrefix(filepath.Clean("/"+c.Request.URL.Path), "/"))
	if rel != "" {
		p := filepath.Join(dir, rel)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			c.File(p)
			return
		}
	}
	c.File(index)
}
