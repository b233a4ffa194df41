package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Browser    BrowserConfig
	Cache      CacheConfig
	Redis      RedisConfig
	Resilience ResilienceConfig
	Events     EventsConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string `validate:"required,numeric"`
	Environment  string `validate:"required"`
	ServiceName  string
	ReadTimeout  int `validate:"min=1"`
	WriteTimeout int `validate:"min=1"`
}

// BrowserConfig controls the headless browser sessions used for lookups
type BrowserConfig struct {
	TimeoutSeconds int `validate:"min=1,max=300"`
	MaxSessions    int `validate:"min=0,max=64"`
	ExecPath       string
	Headless       bool
	NoSandbox      bool
	UserAgent      string
	Language       string
}

// CacheConfig holds the optional lookup result cache settings
type CacheConfig struct {
	Enabled    bool
	TTLSeconds int `validate:"min=1,max=3600"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int `validate:"min=0"`
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures default and per-service breaker tuning
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific upstream service
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// EventsConfig holds NATS JetStream publishing configuration
type EventsConfig struct {
	Enabled    bool
	URL        string
	StreamName string
}

// envKeys maps validated struct fields back to the variable a user would set.
var envKeys = map[string]string{
	"Port":           "PORT",
	"Environment":    "ENVIRONMENT",
	"ReadTimeout":    "READ_TIMEOUT",
	"WriteTimeout":   "WRITE_TIMEOUT",
	"TimeoutSeconds": "BROWSER_TIMEOUT_SECONDS",
	"MaxSessions":    "BROWSER_MAX_SESSIONS",
	"TTLSeconds":     "CACHE_TTL_SECONDS",
	"DB":             "REDIS_DB",
}

var validate = validator.New()

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "3000"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 60),
		},
		Browser: BrowserConfig{
			TimeoutSeconds: getEnvAsInt("BROWSER_TIMEOUT_SECONDS", 30),
			MaxSessions:    getEnvAsInt("BROWSER_MAX_SESSIONS", 4),
			ExecPath:       getEnv("BROWSER_EXEC_PATH", ""),
			Headless:       getEnvAsBool("BROWSER_HEADLESS", true),
			NoSandbox:      getEnvAsBool("BROWSER_NO_SANDBOX", false),
			UserAgent:      getEnv("BROWSER_USER_AGENT", ""),
			Language:       getEnv("BROWSER_LANG", ""),
		},
		Cache: CacheConfig{
			Enabled:    getEnvAsBool("CACHE_ENABLED", false),
			TTLSeconds: getEnvAsInt("CACHE_TTL_SECONDS", 60),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", false),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
		Events: EventsConfig{
			Enabled:    getEnvAsBool("EVENTS_ENABLED", false),
			URL:        getEnv("NATS_URL", "nats://127.0.0.1:4222"),
			StreamName: getEnv("NATS_STREAM", "TRAFFIC"),
		},
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if cfg.Resilience.CircuitBreaker.TimeoutSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.TimeoutSeconds = 30
	}

	if cfg.Resilience.CircuitBreaker.IntervalSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.IntervalSeconds = 60
	}

	if cfg.Resilience.CircuitBreaker.FailureThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.FailureThreshold = 5
	}

	if cfg.Resilience.CircuitBreaker.SuccessThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.SuccessThreshold = 1
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values against their allowed ranges
func (c *Config) Validate() error {
	for _, section := range []interface{}{c.Server, c.Browser, c.Cache, c.Redis} {
		if err := validate.Struct(section); err != nil {
			validationErrors, ok := err.(validator.ValidationErrors)
			if !ok {
				return err
			}
			messages := make([]string, 0, len(validationErrors))
			for _, fe := range validationErrors {
				key := envKeys[fe.Field()]
				if key == "" {
					key = fe.Field()
				}
				messages = append(messages, fmt.Sprintf("%s failed %q (value %v)", key, fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
		}
	}
	return nil
}

// SettingsFor returns effective breaker settings for a specific upstream service name
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if override, ok := c.ServiceOverrides[service]; ok {
		if override.FailureThreshold > 0 {
			settings.FailureThreshold = override.FailureThreshold
		}
		if override.SuccessThreshold > 0 {
			settings.SuccessThreshold = override.SuccessThreshold
		}
		if override.TimeoutSeconds > 0 {
			settings.TimeoutSeconds = override.TimeoutSeconds
		}
		if override.IntervalSeconds > 0 {
			settings.IntervalSeconds = override.IntervalSeconds
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// Timeout returns the per-lookup browser deadline
func (c BrowserConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TTL returns the cache entry lifetime
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
