package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App    AppConfig       `mapstructure:"app"`
	Store  StoreConfig     `mapstructure:"store"`
	Oracle OracleConfig    `mapstructure:"oracle"`
	API    APIConfig       `mapstructure:"api"`
	Market MarketConfig    `mapstructure:"market"`
	Vault  VaultFileConfig `mapstructure:"vault"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
}

// StoreConfig contains the Redis persistence gateway's connection settings.
type StoreConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OracleConfig contains the reasoning oracle client's settings.
type OracleConfig struct {
	Endpoint       string  `mapstructure:"endpoint"` // OpenRouter-compatible chat completions endpoint
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"` // e.g. "openrouter/auto"
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutMS      int     `mapstructure:"timeout_ms"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Timeout returns the oracle request timeout as a time.Duration.
func (c *OracleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// APIConfig contains REST/WebSocket API server settings.
type APIConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// MarketConfig contains the accountability market's own tunables.
type MarketConfig struct {
	NumAgents int `mapstructure:"num_agents"` // roster size auto-seeded across the whole market
	// StartingCash is loaded and validated, but nothing reads it: seeded
	// agents, and manual agents created without a cash override, always
	// start with 1000.
	StartingCash float64 `mapstructure:"starting_cash"`
}

// VaultFileConfig mirrors the Vault settings accepted from the config file
// (or MARKET_VAULT_* environment variables); cmd/api builds its VaultConfig
// from these fields. GetVaultConfigFromEnv is a separate builder over plain
// VAULT_* variables that the service does not call.
type VaultFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address"`
	AuthMethod string `mapstructure:"auth_method"`
	MountPath  string `mapstructure:"mount_path"`
	SecretPath string `mapstructure:"secret_path"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // store.host -> MARKET_STORE_HOST

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "accountability-market")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("store.host", "localhost")
	v.SetDefault("store.port", 6379)
	v.SetDefault("store.db", 0)
	v.SetDefault("store.password", "")

	v.SetDefault("oracle.endpoint", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.model", "openrouter/auto")
	v.SetDefault("oracle.temperature", 0.7)
	v.SetDefault("oracle.max_tokens", 800)
	v.SetDefault("oracle.timeout_ms", 30000)
	v.SetDefault("oracle.rate_limit_rps", 5.0)
	v.SetDefault("oracle.rate_limit_burst", 5)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8081)
	v.SetDefault("api.prometheus_port", 9100)

	v.SetDefault("market.num_agents", 3)
	v.SetDefault("market.starting_cash", 1000.0)

	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.auth_method", "token")
	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.secret_path", "accountability-market/production")
}

// GetStoreAddr returns the Redis address.
func (c *StoreConfig) GetStoreAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address.
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
