// Package config holds the typed configuration structs consumed by every
// component, in place of free-form dictionaries.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// LLMConfig configures an NLPBackend implementation. Mirrors the shape
// exercised by this package's own LLM client tests.
type LLMConfig struct {
	Provider       string        `validate:"required,oneof=anthropic bedrock"`
	Endpoint       string        `validate:"omitempty,url"`
	Model          string        `validate:"required"`
	Timeout        time.Duration `validate:"required"`
	MaxContextSize int           `validate:"required,gt=0"`
	APIKey         string        `validate:"omitempty"`
	Region         string        `validate:"omitempty"`
}

// Validate checks LLMConfig against its struct tags.
func (c LLMConfig) Validate() error { return validate.Struct(c) }

// PolicyConfig holds the tunables for sensitivity scoring, approval
// thresholds, and deliverable validation policy.
type PolicyConfig struct {
	ApprovalScoreThreshold int      `validate:"gte=0,lte=100"`
	AutoMask               bool
	MaxDeliverableSize     int64    `validate:"gt=0"`
	AllowedFileTypes       []string `validate:"required,min=1"`
	BlockedFileTypes       []string
	QualityGateThreshold   float64 `validate:"gte=0,lte=100"`
	TopKWorkgroups         int     `validate:"gt=0"`
}

// DefaultPolicyConfig returns the documented defaults.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		ApprovalScoreThreshold: 50,
		AutoMask:               true,
		MaxDeliverableSize:     100 * 1024 * 1024,
		AllowedFileTypes:       []string{"txt", "md", "pdf", "png", "jpg", "json", "yaml", "zip"},
		BlockedFileTypes:       []string{"exe", "sh", "bat", "cmd", "ps1", "msi"},
		QualityGateThreshold:   70,
		TopKWorkgroups:         5,
	}
}

// TimeoutConfig holds the per-operation deadlines used throughout the
// orchestrator.
type TimeoutConfig struct {
	SensitivityScan    time.Duration
	AnalysisPipeline   time.Duration
	BackendCall        time.Duration
	BackendRetries     int
	BackendBackoffBase time.Duration
	BackendBackoffCap  time.Duration
	BackendJitter      float64
	TodoUpdateStatus   time.Duration
	DeliverablePipeline time.Duration
	AppendMessage      time.Duration
	SessionIdleTimeout time.Duration
	SummaryThreshold   int
}

// DefaultTimeoutConfig returns the documented defaults.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		SensitivityScan:     10 * time.Second,
		AnalysisPipeline:    180 * time.Second,
		BackendCall:         10 * time.Second,
		BackendRetries:      3,
		BackendBackoffBase:  time.Second,
		BackendBackoffCap:   30 * time.Second,
		BackendJitter:       0.2,
		TodoUpdateStatus:    5 * time.Second,
		DeliverablePipeline: 120 * time.Second,
		AppendMessage:       5 * time.Second,
		SessionIdleTimeout:  24 * time.Hour,
		SummaryThreshold:    20,
	}
}

// CircuitConfig holds the breaker tunables shared by every external
// backend circuit breaker.
type CircuitConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	HalfOpenTrials   int
}

// DefaultCircuitConfig returns the documented defaults.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenTrials:   3,
	}
}

// StoreConfig configures the Postgres-backed TaskStore/SessionStore.
type StoreConfig struct {
	DSN             string `validate:"required"`
	MaxOpenConns    int    `validate:"gt=0"`
	MaxIdleConns    int    `validate:"gte=0"`
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

// Validate checks StoreConfig against its struct tags.
func (c StoreConfig) Validate() error { return validate.Struct(c) }

// RedisConfig configures the optional Redis-backed cache layer. When Addr
// is empty, callers fall back to the in-memory cache implementation.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NotificationConfig configures outbound notification transports.
type NotificationConfig struct {
	SlackToken     string
	SlackChannel   string
	FileDeliveryDir string
}

// ServerConfig aggregates every sub-config the orchestrator binary
// needs to wire itself together.
type ServerConfig struct {
	HTTPAddr     string
	LLM          LLMConfig
	Policy       PolicyConfig
	Timeouts     TimeoutConfig
	Circuit      CircuitConfig
	Store        StoreConfig
	Redis        RedisConfig
	Notification NotificationConfig
	CORSOrigins  []string
}

// LoadFromEnvironment builds a ServerConfig from environment variables,
// falling back to the documented defaults for anything unset. A
// missing TASKFORGE_STORE_DSN or TASKFORGE_REDIS_ADDR is not an error:
// callers fall back to the in-memory store/cache implementations.
func LoadFromEnvironment() (ServerConfig, error) {
	cfg := ServerConfig{
		HTTPAddr: envOr("TASKFORGE_HTTP_ADDR", ":8080"),
		LLM: LLMConfig{
			Provider:       envOr("TASKFORGE_LLM_PROVIDER", "anthropic"),
			Endpoint:       os.Getenv("TASKFORGE_LLM_ENDPOINT"),
			Model:          envOr("TASKFORGE_LLM_MODEL", "claude-3-5-sonnet-20241022"),
			Timeout:        envDuration("TASKFORGE_LLM_TIMEOUT", 10*time.Second),
			MaxContextSize: envInt("TASKFORGE_LLM_MAX_CONTEXT", 8000),
			APIKey:         os.Getenv("TASKFORGE_LLM_API_KEY"),
			Region:         envOr("TASKFORGE_LLM_REGION", "us-east-1"),
		},
		Policy:   DefaultPolicyConfig(),
		Timeouts: DefaultTimeoutConfig(),
		Circuit:  DefaultCircuitConfig(),
		Store: StoreConfig{
			DSN:             os.Getenv("TASKFORGE_STORE_DSN"),
			MaxOpenConns:    envInt("TASKFORGE_STORE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("TASKFORGE_STORE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("TASKFORGE_STORE_CONN_MAX_LIFETIME", 30*time.Minute),
			MigrationsDir:   envOr("TASKFORGE_STORE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("TASKFORGE_REDIS_ADDR"),
			Password: os.Getenv("TASKFORGE_REDIS_PASSWORD"),
			DB:       envInt("TASKFORGE_REDIS_DB", 0),
		},
		Notification: NotificationConfig{
			SlackToken:      os.Getenv("TASKFORGE_SLACK_TOKEN"),
			SlackChannel:    os.Getenv("TASKFORGE_SLACK_CHANNEL"),
			FileDeliveryDir: envOr("TASKFORGE_FILE_DELIVERY_DIR", "/tmp/taskforge-deliveries"),
		},
		CORSOrigins: envList("TASKFORGE_CORS_ORIGINS", []string{"*"}),
	}

	if err := cfg.LLM.Validate(); err != nil {
		return ServerConfig{}, err
	}
	if cfg.Store.DSN != "" {
		if err := cfg.Store.Validate(); err != nil {
			return ServerConfig{}, err
		}
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.Split(v, ",")
}
