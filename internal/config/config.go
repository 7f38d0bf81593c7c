package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	GeminiAPIKey string
	DatabaseURL  string
	HTTPPort     string
	LogLevel     string
	JWTSecret    string

	// Corpus source: URL takes precedence, path is the local fallback.
	CorpusURL  string
	CorpusPath string

	// Generation sampling and retry knobs.
	GenModel       string
	GenTemperature float64
	GenTopP        float64
	GenMaxTokens   int
	GenMaxRetries  int
}

var AppConfig Config

func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:    getEnv("DATABASE_URL", "assistant.db"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		CorpusURL:      getEnv("CORPUS_URL", ""),
		CorpusPath:     getEnv("CORPUS_PATH", "embeddings.json"),
		GenModel:       getEnv("GEN_MODEL", "gemini-1.5-flash-latest"),
		GenTemperature: getEnvAsFloat("GEN_TEMPERATURE", 0.7),
		GenTopP:        getEnvAsFloat("GEN_TOP_P", 0.9),
		GenMaxTokens:   getEnvAsInt("GEN_MAX_TOKENS", 1000),
		GenMaxRetries:  getEnvAsInt("GEN_MAX_RETRIES", 2),
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY environment variable is required")
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
