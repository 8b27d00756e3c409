// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything the agent and the API server need to run.
type Config struct {
	// LiveKit media server.
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string

	// AI providers.
	DeepgramAPIKey   string
	ElevenLabsAPIKey string
	ElevenLabsVoice  string
	GroqAPIKey       string

	// Storage.
	RedisAddr string
	DBPath    string

	// HTTP API.
	Port string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	return &Config{
		LiveKitURL:       os.Getenv("LIVEKIT_URL"),
		LiveKitAPIKey:    os.Getenv("LIVEKIT_API_KEY"),
		LiveKitAPISecret: os.Getenv("LIVEKIT_API_SECRET"),
		DeepgramAPIKey:   os.Getenv("DEEPGRAM_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoice:  getEnv("ELEVENLABS_VOICE_ID", "nPczCjzI2devNBz1zQrb"),
		GroqAPIKey:       os.Getenv("GROQ_API_KEY"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		DBPath:           getEnv("DB_PATH", "interviews.db"),
		Port:             getEnv("PORT", "8080"),
	}, nil
}

// ValidateAgent checks the variables the voice agent needs.
func (c *Config) ValidateAgent() error {
	required := map[string]string{
		"LIVEKIT_URL":        c.LiveKitURL,
		"LIVEKIT_API_KEY":    c.LiveKitAPIKey,
		"LIVEKIT_API_SECRET": c.LiveKitAPISecret,
		"DEEPGRAM_API_KEY":   c.DeepgramAPIKey,
		"ELEVENLABS_API_KEY": c.ElevenLabsAPIKey,
		"GROQ_API_KEY":       c.GroqAPIKey,
	}
	return validate(required)
}

// ValidateServer checks the variables the HTTP API server needs.
func (c *Config) ValidateServer() error {
	required := map[string]string{
		"LIVEKIT_API_KEY":    c.LiveKitAPIKey,
		"LIVEKIT_API_SECRET": c.LiveKitAPISecret,
	}
	return validate(required)
}

func validate(required map[string]string) error {
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
