package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration.
type Config struct {
	Port            string   `envconfig:"PORT" default:"8080"`
	CORSAllowOrigin []string `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:5173"`
	Env             string   `envconfig:"ENV" default:"dev"`
	DatabaseURL     string   `envconfig:"DATABASE_URL"`
	RedisURL        string   `envconfig:"REDIS_URL"`
	JWTSecret       string   `envconfig:"JWT_SECRET"`

	ObjectStoreType string `envconfig:"OBJECT_STORE" default:"local"`
	LocalStoreDir   string `envconfig:"LOCAL_STORE_DIR" default:"./data/resumes"`
	AWSRegion       string `envconfig:"AWS_REGION"`
	S3Bucket        string `envconfig:"S3_BUCKET"`
	S3Prefix        string `envconfig:"S3_PREFIX"`
	SSEKMSKeyID     string `envconfig:"SSE_KMS_KEY_ID"`

	LLMProvider          string        `envconfig:"LLM_PROVIDER" default:"openai"`
	LLMModel             string        `envconfig:"LLM_MODEL"`
	OpenAIAPIKey         string        `envconfig:"OPENAI_API_KEY"`
	GeminiAPIKey         string        `envconfig:"GEMINI_API_KEY"`
	InputCostPerMTok     float64       `envconfig:"LLM_INPUT_COST_PER_MTOK" default:"0.15"`
	OutputCostPerMTok    float64       `envconfig:"LLM_OUTPUT_COST_PER_MTOK" default:"0.60"`
	AnalysisTimeout      time.Duration `envconfig:"ANALYSIS_TIMEOUT" default:"120s"`
	AnalyzeRatePerMinute float64       `envconfig:"ANALYZE_RATE_PER_MIN" default:"6"`
	AnalyzeBurst         int           `envconfig:"ANALYZE_BURST" default:"3"`

	Lifecycle
}

// Lifecycle configures temporary resume staging and reclamation.
type Lifecycle struct {
	TempStore        string        `envconfig:"TEMP_STORE"`
	TTL              time.Duration `envconfig:"TEMP_RESUME_TTL" default:"1h"`
	StagingDir       string        `envconfig:"STAGING_DIR" default:"./data/staging"`
	MaxUploadBytes   int64         `envconfig:"MAX_UPLOAD_BYTES" default:"5242880"`
	SaveClaimLease   time.Duration `envconfig:"SAVE_CLAIM_LEASE" default:"2m"`
	SweepInterval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	OrphanGrace      time.Duration `envconfig:"ORPHAN_GRACE" default:"10m"`
	SweepConcurrency int           `envconfig:"SWEEP_CONCURRENCY" default:"4"`
	SweepBatchSize   int           `envconfig:"SWEEP_BATCH_SIZE" default:"500"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg, err := LoadE()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// LoadE is Load without the fatal exit.
func LoadE() (Config, error) {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.ObjectStoreType = normalizeStoreType(cfg.ObjectStoreType)
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.Lifecycle.TempStore = normalizeTempStore(cfg.Lifecycle.TempStore, cfg.DatabaseURL != "")

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}
	if cfg.Lifecycle.TTL <= 0 {
		return Config{}, fmt.Errorf("TEMP_RESUME_TTL must be positive")
	}
	if cfg.Lifecycle.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return cfg, nil
}

// IsDevLike reports whether env permits in-memory fallbacks.
func IsDevLike(env string) bool {
	switch normalizeEnv(env) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

// loadEnvFiles sets variables from the given files without overriding the process environment.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		_ = godotenv.Load(path)
	}
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeTempStore(raw string, hasDB bool) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "memory":
		return "memory"
	case "postgres", "pg":
		return "postgres"
	case "redis":
		return "redis"
	}
	if hasDB {
		return "postgres"
	}
	return "memory"
}
