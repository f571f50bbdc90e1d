package ofstats

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config carries process-level settings, loaded from the environment with a
// .env file overlay.
type Config struct {
	SiteURL     string
	BackendURL  string
	Proxy       string
	CookiesFile string
	TokenFile   string
	LogLevel    string
	ProbeDelay  time.Duration
}

// LoadConfig reads configuration from the environment. A missing .env file
// is not an error.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		SiteURL:     getEnv("OFSTATS_SITE_URL", "https://onlyfans.com"),
		BackendURL:  getEnv("OFSTATS_BACKEND_URL", "http://localhost:8080"),
		Proxy:       getEnv("OFSTATS_PROXY", ""),
		CookiesFile: getEnv("OFSTATS_COOKIES_FILE", "cookies.json"),
		TokenFile:   getEnv("OFSTATS_TOKEN_FILE", ".ofstats-token"),
		LogLevel:    getEnv("OFSTATS_LOG_LEVEL", "info"),
		ProbeDelay:  getEnvDuration("OFSTATS_PROBE_DELAY", time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// NewLogger builds a console logger at the given level. Diagnostics stay
// opt-in: library code defaults to a nop logger until one is injected.
func NewLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.ConsoleSeparator = " | "

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		zapLevel,
	)
	return zap.New(core)
}
