package env

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvService reads configuration from the process environment after loading
// .env and the APP_ENV-specific overlay file.
type EnvService struct{}

func NewEnvService() *EnvService {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("no .env file found, using process environment only")
	}
	if err := godotenv.Overload(".env." + appEnv); err != nil {
		log.Printf("no .env.%s overlay: %v", appEnv, err)
	}

	return &EnvService{}
}

func (e *EnvService) Get(key string) string { return os.Getenv(key) }

func (e *EnvService) GetDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustGet exits the process when the variable is unset.
func (e *EnvService) MustGet(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("required environment variable %s is not set", key)
	}
	return v
}

func (e *EnvService) GetBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func (e *EnvService) GetInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func (e *EnvService) GetDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
