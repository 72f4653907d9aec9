package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

// Settings holds all application configuration loaded from environment variables.
type Settings struct {
	Env  string
	Port string `validate:"required"`

	MongoURI      string `validate:"required"`
	MongoDatabase string `validate:"required"`

	RedisAddress     string `validate:"required"`
	RedisPassword    string
	IssueLimitPrefix string   `validate:"required"`
	IssueDailyLimit  int      `validate:"gte=1"`
	JWTSecret        string   `validate:"required"`
	PrivilegedRoles  []string `validate:"min=1"`
	AllowedOrigins   []string

	GeminiAPIKey    string
	GeminiModel     string        `validate:"required"`
	GeminiBaseURL   string        `validate:"required,url"`
	ClassifyTimeout time.Duration `validate:"gt=0"`

	MediaRequired bool
	MaxMediaBytes int64 `validate:"gt=0"`

	S3 S3Settings

	MutationWorkers    int `validate:"gte=1,lte=255"`
	UpvoteOncePerActor bool
}

type S3Settings struct {
	Endpoint        string
	Region          string `validate:"required"`
	Bucket          string `validate:"required"`
	AccessKeyID     string `validate:"required"`
	SecretAccessKey string `validate:"required"`
	PublicURL       string `validate:"required,url"`
}

// Load reads settings from the environment and validates required fields.
func Load() (Settings, error) {
	timeout, err := cast.ToDurationE(getEnv("CLASSIFY_TIMEOUT", "10s"))
	if err != nil {
		return Settings{}, fmt.Errorf("parse CLASSIFY_TIMEOUT: %w", err)
	}
	dailyLimit, err := cast.ToIntE(getEnv("ISSUE_DAILY_LIMIT", "20"))
	if err != nil {
		return Settings{}, fmt.Errorf("parse ISSUE_DAILY_LIMIT: %w", err)
	}
	maxMedia, err := cast.ToInt64E(getEnv("MAX_MEDIA_BYTES", cast.ToString(int64(50<<20))))
	if err != nil {
		return Settings{}, fmt.Errorf("parse MAX_MEDIA_BYTES: %w", err)
	}
	mediaRequired, err := cast.ToBoolE(getEnv("MEDIA_REQUIRED", "true"))
	if err != nil {
		return Settings{}, fmt.Errorf("parse MEDIA_REQUIRED: %w", err)
	}
	workers, err := cast.ToIntE(getEnv("MUTATION_WORKERS", "4"))
	if err != nil {
		return Settings{}, fmt.Errorf("parse MUTATION_WORKERS: %w", err)
	}
	oncePerActor, err := cast.ToBoolE(getEnv("UPVOTE_ONCE_PER_ACTOR", "false"))
	if err != nil {
		return Settings{}, fmt.Errorf("parse UPVOTE_ONCE_PER_ACTOR: %w", err)
	}

	s := Settings{
		Env:                getEnv("GO_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		MongoURI:           os.Getenv("MONGODB_URI"),
		MongoDatabase:      getEnv("MONGODB_DATABASE", "civic"),
		RedisAddress:       getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		IssueLimitPrefix:   getEnv("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue-limit"),
		IssueDailyLimit:    dailyLimit,
		JWTSecret:          os.Getenv("JWT_SECRET"),
		PrivilegedRoles:    splitList(getEnv("PRIVILEGED_ROLES", "admin")),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		ClassifyTimeout:    timeout,
		MediaRequired:      mediaRequired,
		MaxMediaBytes:      maxMedia,
		MutationWorkers:    workers,
		UpvoteOncePerActor: oncePerActor,
		S3: S3Settings{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          getEnv("S3_REGION", "auto"),
			Bucket:          os.Getenv("S3_BUCKET"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			PublicURL:       os.Getenv("S3_PUBLIC_URL"),
		},
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func (s Settings) IsProduction() bool {
	return s.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
