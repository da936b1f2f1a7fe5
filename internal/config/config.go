package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"dealflow/internal/pkg/logger"
)

// Config holds all configuration for the application
type Config struct {
	AppMode  string
	Port     string
	Database DatabaseConfig
	JWT      JWTConfig
	Cookie   CookieConfig
	Policy   PolicyConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Notify   NotifyConfig
	Log      logger.Config
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string

	MaxOpenConns int
	MaxIdleConns int
	// ConnectRetries is how many extra attempts are made while the database
	// is still starting.
	ConnectRetries int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	RefreshSecret    string
	AccessTokenMins  int
	RefreshTokenDays int
}

// CookieConfig holds refresh cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// PolicyConfig holds the business policy values of the deal flow.
type PolicyConfig struct {
	PlatformFeeRate    decimal.Decimal
	InvitationTTL      time.Duration
	OTPTTL             time.Duration
	OTPResendCooldown  time.Duration
	OTPMaxAttempts     int
	HoldPeriod         time.Duration
	ContractTTL        time.Duration
	DisputeWindow      time.Duration
	ExpiryCron         string
	DefaultOwnerSplit  decimal.Decimal
	SigningLinkBaseURL string
}

// RedisConfig enables the Redis OTP store when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig enables transition event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// NotifyConfig configures the transition notification webhook.
type NotifyConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// .env is optional in production
	if err := godotenv.Load(); err != nil {
		logger.Get().Warn(".env file not found, using environment variables")
	}

	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	policy, err := loadPolicyConfig()
	if err != nil {
		return nil, err
	}

	config := &Config{
		AppMode:  appMode,
		Port:     getEnv("PORT", "3000"),
		Database: loadDatabaseConfig(appMode),
		JWT:      loadJWTConfig(appMode),
		Cookie:   loadCookieConfig(appMode),
		Policy:   policy,
		Redis:    loadRedisConfig(),
		Kafka:    loadKafkaConfig(),
		Notify:   loadNotifyConfig(),
		Log:      loadLogConfig(appMode),
	}

	AppConfig = config
	return config, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := modePrefix(mode)

	return DatabaseConfig{
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "dealflow"),

		MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 50),
		MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 10),
		ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := modePrefix(mode)

	return JWTConfig{
		Secret:           getEnv(prefix+"JWT_SECRET", "default_secret"),
		RefreshSecret:    getEnv(prefix+"JWT_REFRESH_SECRET", "default_refresh_secret"),
		AccessTokenMins:  getEnvInt("ACCESS_TOKEN_MINUTES", 15),
		RefreshTokenDays: getEnvInt("REFRESH_TOKEN_DAYS", 7),
	}
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(mode string) CookieConfig {
	secure, _ := strconv.ParseBool(getEnv(modePrefix(mode)+"COOKIE_SECURE", "false"))

	return CookieConfig{
		Secure:   secure,
		SameSite: getEnv("COOKIE_SAMESITE", "lax"),
		Domain:   getEnv("COOKIE_DOMAIN", ""),
	}
}

func loadPolicyConfig() (PolicyConfig, error) {
	feeRate, err := decimal.NewFromString(getEnv("PLATFORM_FEE_RATE", "0.10"))
	if err != nil {
		return PolicyConfig{}, fmt.Errorf("invalid PLATFORM_FEE_RATE: %w", err)
	}
	if feeRate.IsNegative() || feeRate.GreaterThan(decimal.NewFromInt(1)) {
		return PolicyConfig{}, fmt.Errorf("invalid PLATFORM_FEE_RATE: %s (must be within 0..1)", feeRate)
	}
	ownerSplit, err := decimal.NewFromString(getEnv("DEFAULT_OWNER_SPLIT", "100"))
	if err != nil {
		return PolicyConfig{}, fmt.Errorf("invalid DEFAULT_OWNER_SPLIT: %w", err)
	}

	p := PolicyConfig{
		PlatformFeeRate:    feeRate,
		InvitationTTL:      time.Duration(getEnvInt("INVITATION_TTL_HOURS", 72)) * time.Hour,
		OTPTTL:             time.Duration(getEnvInt("OTP_TTL_SECONDS", 300)) * time.Second,
		OTPResendCooldown:  time.Duration(getEnvInt("OTP_RESEND_COOLDOWN_SECONDS", 60)) * time.Second,
		OTPMaxAttempts:     getEnvInt("OTP_MAX_ATTEMPTS", 5),
		HoldPeriod:         time.Duration(getEnvInt("HOLD_PERIOD_DAYS", 14)) * 24 * time.Hour,
		ContractTTL:        time.Duration(getEnvInt("CONTRACT_TTL_DAYS", 30)) * 24 * time.Hour,
		DisputeWindow:      time.Duration(getEnvInt("DISPUTE_WINDOW_DAYS", 7)) * 24 * time.Hour,
		ExpiryCron:         getEnv("EXPIRY_CRON", "@every 5m"),
		DefaultOwnerSplit:  ownerSplit,
		SigningLinkBaseURL: strings.TrimRight(getEnv("SIGNING_LINK_BASE_URL", "http://localhost:3000/sign"), "/"),
	}
	if p.InvitationTTL <= 0 || p.OTPTTL <= 0 || p.ContractTTL <= 0 || p.HoldPeriod <= 0 {
		return PolicyConfig{}, fmt.Errorf("policy durations must be positive")
	}
	if p.OTPMaxAttempts <= 0 {
		return PolicyConfig{}, fmt.Errorf("invalid OTP_MAX_ATTEMPTS: %d", p.OTPMaxAttempts)
	}
	return p, nil
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

func loadKafkaConfig() KafkaConfig {
	var brokers []string
	for _, b := range strings.Split(getEnv("KAFKA_BROKERS", ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return KafkaConfig{
		Brokers: brokers,
		Topic:   getEnv("KAFKA_TOPIC", "deal.transitions"),
	}
}

func loadNotifyConfig() NotifyConfig {
	return NotifyConfig{
		WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		Timeout:    time.Duration(getEnvInt("NOTIFY_TIMEOUT_SECONDS", 5)) * time.Second,
	}
}

func loadLogConfig(mode string) logger.Config {
	level := "debug"
	format := "text"
	if mode == "prod" {
		level = "info"
		format = "json"
	}
	compress, _ := strconv.ParseBool(getEnv("LOG_COMPRESS", "true"))
	return logger.Config{
		Level:      getEnv("LOG_LEVEL", level),
		Format:     getEnv("LOG_FORMAT", format),
		Output:     getEnv("LOG_OUTPUT", "stdout"),
		FilePath:   getEnv("LOG_FILE", "logs/dealflow.log"),
		MaxSize:    getEnvInt("LOG_MAX_SIZE_MB", 100),
		MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
		MaxAge:     getEnvInt("LOG_MAX_AGE_DAYS", 30),
		Compress:   compress,
		WithCaller: mode == "dev",
	}
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return defaultValue
	}
	return v
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://app.dealflow.example"
	}
	return origins
}
