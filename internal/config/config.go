package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the process configuration, read from the environment.
type Config struct {
	ListenAddr string

	LogLevel  string
	LogFormat string

	// StorageDriver selects the repository backend: s3, dynamodb or memory.
	StorageDriver string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3Prefix    string
	S3PathStyle bool

	DynamoTable    string
	DynamoRegion   string
	DynamoEndpoint string

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string

	ExtractEndpoint string
	ExtractAPIKey   string
	ExtractModel    string
	ExtractTimeout  time.Duration

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTExpiry   time.Duration

	// EnforceSitePattern turns on the alphabetic-first site format rule.
	EnforceSitePattern bool
	// AliasFile optionally points at a YAML header-alias table.
	AliasFile string

	EnableMetrics bool
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	cfg := &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		StorageDriver: getEnv("STORAGE_DRIVER", "s3"),

		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Prefix:    getEnv("S3_PREFIX", "assets/"),
		S3PathStyle: boolEnv("S3_PATH_STYLE"),

		DynamoTable:    os.Getenv("DYNAMO_TABLE"),
		DynamoRegion:   getEnv("DYNAMO_REGION", "us-east-1"),
		DynamoEndpoint: os.Getenv("DYNAMO_ENDPOINT"),

		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSSessionToken:    os.Getenv("AWS_SESSION_TOKEN"),

		ExtractEndpoint: getEnv("EXTRACT_ENDPOINT", "https://api.openai.com/v1"),
		ExtractAPIKey:   os.Getenv("EXTRACT_API_KEY"),
		ExtractModel:    getEnv("EXTRACT_MODEL", "gpt-4o-mini"),
		ExtractTimeout:  30 * time.Second,

		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTIssuer:   getEnv("JWT_ISS", "assettrack-api"),
		JWTAudience: getEnv("JWT_AUD", "assettrack-api"),
		JWTExpiry:   24 * time.Hour,

		EnforceSitePattern: boolEnv("ENFORCE_SITE_PATTERN"),
		AliasFile:          os.Getenv("ALIAS_FILE"),
		EnableMetrics:      boolEnv("ENABLE_METRICS"),
	}

	if expiryStr := os.Getenv("JWT_EXPIRY"); expiryStr != "" {
		if expiry, err := time.ParseDuration(expiryStr); err == nil {
			cfg.JWTExpiry = expiry
		}
	}
	if timeoutStr := os.Getenv("EXTRACT_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.ExtractTimeout = timeout
		}
	}

	return cfg
}

// Validate checks settings knowable at startup. Missing backend targets
// (bucket, table) are deliberately not checked here; they surface as a
// configuration error on first repository use.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "s3", "dynamodb", "memory":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q (want s3, dynamodb or memory)", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive")
	}
	return nil
}

// LoadAndValidate loads the environment configuration and validates it.
func LoadAndValidate() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func boolEnv(key string) bool {
	return strings.EqualFold(os.Getenv(key), "true")
}
