package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	GeminiAPIKey string
	GeminiModel  string
	LiveEndpoint string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Println("Warning: GEMINI_API_KEY not set - the voice session will not connect")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.0-flash-live-001"
	}

	endpoint := os.Getenv("GEMINI_LIVE_URL")

	log.Printf("config: GEMINI_MODEL=%s", model)
	return Config{
		GeminiAPIKey: apiKey,
		GeminiModel:  model,
		LiveEndpoint: endpoint,
	}
}
