package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	RedisAddr     string
	RedisPassword string

	MeiliHost   string
	MeiliAPIKey string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	// APITokenKeys maps site label to its HS256 signing key.
	APITokenKeys map[string]string

	AllowedOrigins []string

	Auth   AuthTunables
	Stream StreamTunables
	Sweep  SweepTunables

	MaxItemsPerUser int
	VisitorWindow   time.Duration
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts      string
	Listings      string
	Reviews       string
	ListingOwners string
	Checkpoints   string
}

// AuthTunables controls lockout thresholds and session lifetimes.
type AuthTunables struct {
	MaxAuthAttempts   int
	AuthLockTTL       time.Duration
	MaxVerifyAttempts int
	VerifyLockTTL     time.Duration
	MaxCodesSent      int
	CodeLockTTL       time.Duration
	TempSessionTTL    time.Duration
	SessionTTL        time.Duration
	MaxSessions       int
	FreezeTTL         time.Duration
	CodeLength        int
	MinPasswordLen    int
	MaxFieldChars     int
}

// StreamTunables controls the change-log consumer.
type StreamTunables struct {
	PollInterval       time.Duration
	WindowSize         int32
	SafetyInterval     time.Duration
	CheckpointInterval time.Duration
}

// SweepTunables controls the expired-listing sweep.
type SweepTunables struct {
	PageSize int32
	Schedule string
}

// Load reads all configuration from environment variables. Secret material
// missing in production is a misconfiguration and returns an error.
func Load() (*Config, error) {
	cfg := &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Accounts:      getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),
			Listings:      getEnv("DYNAMO_TABLE_LISTINGS", "listings"),
			Reviews:       getEnv("DYNAMO_TABLE_REVIEWS", "reviews"),
			ListingOwners: getEnv("DYNAMO_TABLE_LISTING_OWNERS", "listing_owners"),
			Checkpoints:   getEnv("DYNAMO_TABLE_CHECKPOINTS", "stream_checkpoints"),
		},

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		MeiliHost:   getEnv("MEILI_HOST", "http://localhost:7700"),
		MeiliAPIKey: getEnv("MEILI_API_KEY", ""),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		APITokenKeys: map[string]string{
			"swap":    getEnv("API_TOKEN_KEY_SWAP", ""),
			"housing": getEnv("API_TOKEN_KEY_HOUSING", ""),
			"home":    getEnv("API_TOKEN_KEY_HOME", ""),
		},

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),

		Auth: AuthTunables{
			MaxAuthAttempts:   getEnvInt("AUTH_MAX_ATTEMPTS", 15),
			AuthLockTTL:       getEnvDuration("AUTH_LOCK_TTL", 30*time.Minute),
			MaxVerifyAttempts: getEnvInt("VERIFY_MAX_ATTEMPTS", 10),
			VerifyLockTTL:     getEnvDuration("VERIFY_LOCK_TTL", 30*time.Minute),
			MaxCodesSent:      getEnvInt("MAX_CODES_SENT", 5),
			CodeLockTTL:       getEnvDuration("CODE_LOCK_TTL", 30*time.Minute),
			TempSessionTTL:    getEnvDuration("TEMP_SESSION_TTL", 10*time.Minute),
			SessionTTL:        getEnvDuration("SESSION_TTL", 30*24*time.Hour),
			MaxSessions:       getEnvInt("MAX_SESSIONS", 3),
			FreezeTTL:         getEnvDuration("FREEZE_TTL", 15*time.Minute),
			CodeLength:        getEnvInt("CODE_LENGTH", 6),
			MinPasswordLen:    getEnvInt("MIN_PASSWORD_LEN", 10),
			MaxFieldChars:     getEnvInt("MAX_FIELD_CHARS", 100),
		},
		Stream: StreamTunables{
			PollInterval:       getEnvDuration("STREAM_POLL_INTERVAL", 10*time.Second),
			WindowSize:         int32(getEnvInt("STREAM_WINDOW_SIZE", 100)),
			SafetyInterval:     getEnvDuration("STREAM_SAFETY_INTERVAL", 30*time.Second),
			CheckpointInterval: getEnvDuration("STREAM_CHECKPOINT_INTERVAL", 10*time.Second),
		},
		Sweep: SweepTunables{
			PageSize: int32(getEnvInt("SWEEP_PAGE_SIZE", 100)),
			Schedule: getEnv("SWEEP_SCHEDULE", "1 0 0 * * *"),
		},

		MaxItemsPerUser: getEnvInt("MAX_ITEMS_PER_USER", 4),
		VisitorWindow:   getEnvDuration("VISITOR_WINDOW", 24*time.Hour),
	}

	if cfg.AppEnv == "production" {
		for site, key := range cfg.APITokenKeys {
			if key == "" {
				return nil, fmt.Errorf("config: missing API token key for site %q", site)
			}
		}
		if cfg.RedisPassword == "" {
			return nil, fmt.Errorf("config: missing REDIS_PASSWORD")
		}
		if cfg.MeiliAPIKey == "" {
			return nil, fmt.Errorf("config: missing MEILI_API_KEY")
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
