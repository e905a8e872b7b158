package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/naomedical/bilingual-chat/internal/ai"
	"github.com/naomedical/bilingual-chat/internal/chat"
	"github.com/naomedical/bilingual-chat/internal/config"
	"github.com/naomedical/bilingual-chat/internal/db"
	"github.com/naomedical/bilingual-chat/internal/httpapi"
	"github.com/naomedical/bilingual-chat/internal/httpapi/handlers"
	"github.com/naomedical/bilingual-chat/internal/realtime"
	"github.com/naomedical/bilingual-chat/internal/speech"
	"github.com/naomedical/bilingual-chat/internal/store/filestore"
	"github.com/naomedical/bilingual-chat/internal/store/rabbitmq"
	"github.com/naomedical/bilingual-chat/internal/store/redisstore"
	"github.com/naomedical/bilingual-chat/internal/summary"
	"github.com/naomedical/bilingual-chat/internal/translate"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	repo := chat.NewRepo(gdb)

	// Provider registry; a provider is built per call with that call's credential
	reg := ai.NewRegistry()
	reg.Register("gemini", ai.GeminiFactory(cfg.GeminiBaseURL))
	reg.Register("openrouter", ai.OpenRouterFactory(cfg.OpenRouterBaseURL, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName))

	provider := strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	var model, llmKey string
	switch provider {
	case "", "gemini":
		provider, model, llmKey = "gemini", cfg.GeminiModel, cfg.GeminiAPIKey
	case "openrouter":
		model, llmKey = cfg.OpenRouterModel, cfg.OpenRouterAPIKey
	default:
		log.Fatalf("unsupported LLM_PROVIDER=%q", cfg.LLMProvider)
	}
	names := reg.Names()
	sort.Strings(names)
	log.Printf("llm providers=%v using=%s model=%s default_key=%t", names, provider, model, llmKey != "")

	translator := translate.New(reg, provider, model, llmKey, cfg.TranslationTemperature)
	summarizer := summary.New(reg, provider, model, llmKey, cfg.SummaryTemperature)

	if cfg.RedisAddr != "" {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SummaryCacheTTL)
		pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rds.Ping(pctx); err != nil {
			log.Printf("redis unavailable, summary cache disabled addr=%s err=%v", cfg.RedisAddr, err)
			_ = rds.Close()
		} else {
			summarizer.WithCache(rds)
			defer rds.Close()
		}
		cancel()
	}

	whisper := speech.NewWhisper(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.WhisperModel)

	files, err := filestore.New(cfg.UploadDir, "/uploads")
	if err != nil {
		log.Fatalf("upload dir: %v", err)
	}

	hub := realtime.NewHub(cfg.WSWriteTimeout)
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			log.Printf("rabbit unavailable, event mirror disabled err=%v", err)
		} else {
			hub.SetMirror(pub)
			defer pub.Close()
		}
	}

	svc := chat.NewService(repo, chat.Deps{
		Translator:  translator,
		Transcriber: whisper,
		Summarizer:  summarizer,
		Audio:       files,
		Events:      hub,
	}, chat.Options{
		DemoSessionID: cfg.DemoSession,
		DoctorLang:    cfg.DoctorLang,
		PatientLang:   cfg.PatientLang,
		Fallback:      translate.Fallback,
	})

	r := httpapi.NewRouter(cfg, handlers.NewHandler(cfg, svc, hub))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server listening addr=%s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("server shutting down")

	hub.CloseAll()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
