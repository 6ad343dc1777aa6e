package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMemory = "memory"
	StoreDynamo = "dynamo"
	StoreRedis  = "redis"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string // CORS allowed origins

	StoreDriver   string
	CodeTTL       time.Duration
	StoreShards   int
	SweepInterval time.Duration // 0 disables the memory-store sweeper

	DeliveryTimeout      time.Duration
	HashPendingPasswords bool
	RateLimitRPS         float64 // 0 disables the per-IP limiter
	RateLimitBurst       int

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SMTPTLSMode  string // "auto" | "ssl" | "none"

	EmailSubject          string
	EmailTemplateS3Bucket string
	EmailTemplateS3Key    string

	SNSTopicARN string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	PendingRegistrations string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		CodeTTL:       getEnvDuration("VERIFICATION_CODE_TTL", 10*time.Minute),
		StoreShards:   getEnvInt("STORE_SHARDS", 32),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", time.Minute),

		DeliveryTimeout:      getEnvDuration("DELIVERY_TIMEOUT", 10*time.Second),
		HashPendingPasswords: getEnvBool("HASH_PENDING_PASSWORDS", false),
		RateLimitRPS:         getEnvFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst:       getEnvInt("RATE_LIMIT_BURST", 10),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			PendingRegistrations: getEnv("DYNAMO_TABLE_PENDING_REGISTRATIONS", "pending_registrations"),
		},

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPrefix:   getEnv("REDIS_PREFIX", "verify"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPTLSMode:  getEnv("SMTP_TLS_MODE", "auto"),

		EmailSubject:          getEnv("EMAIL_SUBJECT", "Your verification code"),
		EmailTemplateS3Bucket: getEnv("EMAIL_TEMPLATE_S3_BUCKET", ""),
		EmailTemplateS3Key:    getEnv("EMAIL_TEMPLATE_S3_KEY", ""),

		SNSTopicARN: getEnv("SNS_TOPIC_ARN", ""),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 15*time.Minute),
	}
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

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "10m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
