// Package config loads process configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/justsurfingit/jobops-pipeline/internal/settings"
)

const defaultDatabaseURL = "host=localhost user=postgres password=password dbname=jobtracker port=5432 sslmode=disable"

type Config struct {
	DatabaseURL string
	Port        int

	// Plugin root scanned for extractor manifests.
	ExtractorsDir string
	// Duplicate source ownership fails registry initialization when true.
	ExtractorRegistryStrict bool

	GeminiAPIKey string
	Model        string

	ProfilePath       string
	ResumeRendererURL string
	PDFOutputDir      string
	WebhookSecret     string

	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables, after merging a .env file
// from the working directory when one exists.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PORT: %w", err)
	}

	strict := false
	if raw := os.Getenv("EXTRACTOR_REGISTRY_STRICT"); raw != "" {
		v, ok := settings.ParseBool(raw)
		if !ok {
			return Config{}, fmt.Errorf("invalid EXTRACTOR_REGISTRY_STRICT: %q", raw)
		}
		strict = v
	}

	return Config{
		DatabaseURL:             getEnv("DATABASE_URL", defaultDatabaseURL),
		Port:                    port,
		ExtractorsDir:           getEnv("EXTRACTORS_DIR", "extractors"),
		ExtractorRegistryStrict: strict,
		GeminiAPIKey:            os.Getenv("GEMINI_API_KEY"),
		Model:                   getEnv("MODEL", "gemini-2.5-flash"),
		ProfilePath:             getEnv("PROFILE_PATH", "data/profile.json"),
		ResumeRendererURL:       os.Getenv("RESUME_RENDERER_URL"),
		PDFOutputDir:            getEnv("PDF_OUTPUT_DIR", "data/pdfs"),
		WebhookSecret:           os.Getenv("WEBHOOK_SECRET"),
		LogFile:                 getEnv("JOBOPS_LOG_FILE", "/tmp/jobops.log"),
		LogLevel:                parseLogLevel(getEnv("JOBOPS_LOG_LEVEL", "INFO")),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
