package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// LLMConfig configures the language service and the dispatch discipline.
type LLMConfig struct {
	Provider        string // "googleai"|"openai"|"anthropic"
	Model           string
	Temperature     float64
	MaxConcurrent   int
	RequestsPerMin  int
	MaxRetries      int
	RetryBaseDelay  time.Duration
	RequestTimeout  time.Duration
	GoogleAPIKey    string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string

	// Question structuring runs with its own, wider limits.
	QuestionRPM         int
	QuestionConcurrency int
}

// ImageFilterConfig holds the thresholds an embedded image must meet to be kept.
type ImageFilterConfig struct {
	MinWidth        int
	MinHeight       int
	MinSizeBytes    int
	MaxRepetitions  int
	MinUniqueColors int
	MaxAspect       float64
	MinAspect       float64
}

// QuestionConfig controls header detection, cleanup and answer-key splitting.
type QuestionConfig struct {
	SplitPattern       string
	Marker             string
	CleanMinRepeats    int
	AnswerKeySeparator string
}

// ServerConfig holds HTTP front-end settings.
type ServerConfig struct {
	Port         string
	APISecretKey string
	UploadMaxMB  int
}

// RedisConfig defines run-status store connectivity.
type RedisConfig struct {
	URL       string
	StatusTTL time.Duration
}

// StorageConfig defines optional S3 artifact publication. Endpoint and the
// static keys are only needed for S3-compatible stores.
type StorageConfig struct {
	Bucket           string
	ResultPrefix     string
	ArtifactPassword string
	Region           string
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
}

// PathsConfig holds local output locations.
type PathsConfig struct {
	OutputDir string
}

// Config is the top-level configuration.
type Config struct {
	Logging     LoggingConfig
	Axiom       AxiomConfig
	LLM         LLMConfig
	ImageFilter ImageFilterConfig
	Question    QuestionConfig
	Server      ServerConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Paths       PathsConfig
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/examparser.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_examparser",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.LLM = LLMConfig{
		Provider:        strings.ToLower(getEnv("LLM_PROVIDER", "googleai")),
		Model:           getEnv("LLM_MODEL", "gemini-2.5-flash"),
		Temperature:     parseFloat(getEnv("LLM_TEMPERATURE", "0"), 0),
		MaxConcurrent:   parseInt(getEnv("MAX_CONCURRENT_REQUESTS", "10"), 10),
		RequestsPerMin:  parseInt(getEnv("LLM_RPM", "50"), 50),
		MaxRetries:      parseInt(getEnv("LLM_MAX_RETRIES", "3"), 3),
		RetryBaseDelay:  parseSeconds(getEnv("LLM_RETRY_BASE_DELAY", "2s"), 2*time.Second),
		RequestTimeout:  parseDuration(getEnv("LLM_REQUEST_TIMEOUT", "120s"), 120*time.Second),
		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		QuestionRPM:         parseInt(getEnv("QUESTION_RPM", "50"), 50),
		QuestionConcurrency: parseInt(getEnv("QUESTION_CONCURRENCY", "30"), 30),
	}

	cfg.ImageFilter = DefaultImageFilter()
	cfg.ImageFilter.MinWidth = parseInt(getEnv("IMAGE_MIN_WIDTH", ""), cfg.ImageFilter.MinWidth)
	cfg.ImageFilter.MinHeight = parseInt(getEnv("IMAGE_MIN_HEIGHT", ""), cfg.ImageFilter.MinHeight)
	cfg.ImageFilter.MinSizeBytes = parseInt(getEnv("IMAGE_MIN_SIZE_BYTES", ""), cfg.ImageFilter.MinSizeBytes)
	cfg.ImageFilter.MaxRepetitions = parseInt(getEnv("IMAGE_MAX_REPETITIONS", ""), cfg.ImageFilter.MaxRepetitions)
	cfg.ImageFilter.MinUniqueColors = parseInt(getEnv("IMAGE_MIN_UNIQUE_COLORS", ""), cfg.ImageFilter.MinUniqueColors)
	cfg.ImageFilter.MaxAspect = parseFloat(getEnv("IMAGE_MAX_ASPECT", ""), cfg.ImageFilter.MaxAspect)
	cfg.ImageFilter.MinAspect = parseFloat(getEnv("IMAGE_MIN_ASPECT", ""), cfg.ImageFilter.MinAspect)

	cfg.Question = DefaultQuestion()
	cfg.Question.SplitPattern = getEnv("QUESTION_SPLIT_PATTERN", cfg.Question.SplitPattern)
	cfg.Question.Marker = getEnv("QUESTION_MARKER", cfg.Question.Marker)
	cfg.Question.CleanMinRepeats = parseInt(getEnv("CLEAN_MIN_REPEATS", ""), cfg.Question.CleanMinRepeats)
	cfg.Question.AnswerKeySeparator = getEnv("ANSWER_KEY_SEPARATOR", cfg.Question.AnswerKeySeparator)

	cfg.Server = ServerConfig{
		Port:         getEnv("PORT", "8080"),
		APISecretKey: getEnv("API_SECRET_KEY", ""),
		UploadMaxMB:  parseInt(getEnv("UPLOAD_MAX_MB", "64"), 64),
	}

	cfg.Redis = RedisConfig{
		URL:       getEnv("REDIS_URL", ""),
		StatusTTL: parseDuration(getEnv("RUN_STATUS_TTL", "168h"), 7*24*time.Hour),
	}

	cfg.Storage = StorageConfig{
		Bucket:           getEnv("AWS_S3_BUCKET", ""),
		ResultPrefix:     strings.Trim(getEnv("S3_RESULT_PREFIX", "exams"), "/"),
		ArtifactPassword: getEnv("ARTIFACT_PASSWORD", ""),
		Region:           getEnv("AWS_REGION", ""),
		Endpoint:         getEnv("S3_ENDPOINT", ""),
		AccessKeyID:      getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey:  getEnv("S3_SECRET_ACCESS_KEY", ""),
	}

	cfg.Paths = PathsConfig{
		OutputDir: getEnv("OUTPUT_DIR", "output"),
	}

	return cfg
}

// DefaultImageFilter returns the stock image thresholds.
func DefaultImageFilter() ImageFilterConfig {
	return ImageFilterConfig{
		MinWidth:        300,
		MinHeight:       300,
		MinSizeBytes:    10 * 1024,
		MaxRepetitions:  1,
		MinUniqueColors: 50,
		MaxAspect:       4.0,
		MinAspect:       0.25,
	}
}

// DefaultQuestion returns the stock question settings.
func DefaultQuestion() QuestionConfig {
	return QuestionConfig{
		SplitPattern:       `(?i)(QUESTÃO\s+\d+)`,
		Marker:             "QUESTÃO",
		CleanMinRepeats:    3,
		AnswerKeySeparator: "--- Answer Key ---",
	}
}

// DiagnosticConcurrency caps diagnostic calls at the smaller of the two limits.
func (c LLMConfig) DiagnosticConcurrency() int {
	if c.RequestsPerMin > 0 && c.RequestsPerMin < c.MaxConcurrent {
		return c.RequestsPerMin
	}
	return c.MaxConcurrent
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// parseSeconds accepts either a Go duration or a bare number of seconds.
func parseSeconds(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return parseDuration(s, def)
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
