package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Port         string
	DatabasePath string // SQLite database file path

	// Model provider (OpenAI-compatible chat completions endpoint)
	ProviderBaseURL string
	ProviderAPIKey  string
	ChatModel       string

	// Speech-to-text provider (Whisper-compatible transcription endpoint)
	AudioBaseURL string
	AudioAPIKey  string
	AudioModel   string

	// Digest email delivery (Brevo transactional API)
	BrevoAPIKey string
	SenderEmail string
	SenderName  string

	// Digest generation
	DigestDailyCap int    // max digests per user per UTC day
	DigestCron     string // cron expression for the periodic digest job

	// Chat context assembly
	ContextLogLimit int // most recent log entries included in the system prompt
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "3001"),
		DatabasePath: getEnv("DATABASE_PATH", "lifetracker.db"),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "https://api.openai.com/v1"),
		ProviderAPIKey:  getEnv("PROVIDER_API_KEY", ""),
		ChatModel:       getEnv("CHAT_MODEL", "gpt-4o-mini"),

		AudioBaseURL: getEnv("AUDIO_BASE_URL", getEnv("PROVIDER_BASE_URL", "https://api.openai.com/v1")),
		AudioAPIKey:  getEnv("AUDIO_API_KEY", getEnv("PROVIDER_API_KEY", "")),
		AudioModel:   getEnv("AUDIO_MODEL", "whisper-large-v3"),

		BrevoAPIKey: getEnv("BREVO_API_KEY", ""),
		SenderEmail: getEnv("DIGEST_SENDER_EMAIL", ""),
		SenderName:  getEnv("DIGEST_SENDER_NAME", "Life Tracker"),

		DigestDailyCap: getIntEnv("DIGEST_DAILY_CAP", 1),
		DigestCron:     getEnv("DIGEST_CRON", "0 7 * * *"),

		ContextLogLimit: getIntEnv("CONTEXT_LOG_LIMIT", 20),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
