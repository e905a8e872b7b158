package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	DBDSN       string
	UploadDir   string
	UIDir       string
	MaxUploadMB int
	DemoSession string
	DoctorLang  string
	PatientLang string

	// LLM provider (translation + summary)
	LLMProvider            string
	GeminiAPIKey           string
	GeminiModel            string
	GeminiBaseURL          string
	OpenRouterBaseURL      string
	OpenRouterAPIKey       string
	OpenRouterModel        string
	OpenRouterSiteURL      string
	OpenRouterAppName      string
	TranslationTemperature float32
	SummaryTemperature     float32

	// speech-to-text
	OpenAIAPIKey  string
	OpenAIBaseURL string
	WhisperModel  string

	// redis summary cache, disabled when RedisAddr is empty
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	SummaryCacheTTL time.Duration

	// rabbitMQ event mirror, disabled when RabbitURL is empty
	RabbitURL      string
	RabbitExchange string

	// websocket
	WSPingInterval time.Duration
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
}

func Load() Config {
	return Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		DBDSN:       getEnv("DB_DSN", "nao_medical.db"),
		UploadDir:   getEnv("UPLOAD_DIR", "uploads"),
		UIDir:       lookupEnv("UI_DIR", "ui/dist"),
		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 25),
		DemoSession: getEnv("DEMO_SESSION_ID", "demo"),
		DoctorLang:  getEnv("DEFAULT_DOCTOR_LANG", "en"),
		PatientLang: getEnv("DEFAULT_PATIENT_LANG", "es"),

		LLMProvider:            getEnv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey:           os.Getenv("GEMINI_API_KEY"),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:          os.Getenv("GEMINI_BASE_URL"),
		OpenRouterBaseURL:      getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:       os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:        getEnv("OPENROUTER_MODEL", "openrouter/auto"),
		OpenRouterSiteURL:      os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName:      os.Getenv("OPENROUTER_APP_NAME"),
		TranslationTemperature: getEnvFloat32("TRANSLATION_TEMPERATURE", 0.1),
		SummaryTemperature:     getEnvFloat32("SUMMARY_TEMPERATURE", 0.3),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		WhisperModel:  getEnv("WHISPER_MODEL", "whisper-1"),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		SummaryCacheTTL: time.Duration(getEnvInt("SUMMARY_CACHE_TTL_SECONDS", 30)) * time.Second,

		RabbitURL:      os.Getenv("RABBIT_URL"),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "chat.events"),

		WSPingInterval: time.Duration(getEnvInt("WS_PING_INTERVAL_SECONDS", 30)) * time.Second,
		WSReadTimeout:  time.Duration(getEnvInt("WS_READ_TIMEOUT_SECONDS", 60)) * time.Second,
		WSWriteTimeout: time.Duration(getEnvInt("WS_WRITE_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// lookupEnv is like getEnv but an explicitly empty value wins over the default.
func lookupEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat32(key string, def float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return def
}
