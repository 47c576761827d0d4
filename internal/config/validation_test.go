package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Name: "accountability-market", Environment: "development", LogLevel: "info"},
		Store:  StoreConfig{Host: "localhost", Port: 6379},
		Oracle: OracleConfig{Endpoint: "https://openrouter.ai/api/v1/chat/completions", MaxTokens: 800, TimeoutMS: 30000, RateLimitRPS: 5},
		API:    APIConfig{Host: "0.0.0.0", Port: 8081},
		Market: MarketConfig{NumAgents: 3, StartingCash: 1000},
	}
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsUnknownEnvironment(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "sandbox"
	err := cfg.Validate()
	assertHasField(t, err, "app.environment")
}

func TestValidate_RejectsBadStorePort(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Port = 70000
	err := cfg.Validate()
	assertHasField(t, err, "store.port")
}

func TestValidate_RejectsNonPositiveNumAgents(t *testing.T) {
	cfg := validConfig()
	cfg.Market.NumAgents = 0
	err := cfg.Validate()
	assertHasField(t, err, "market.num_agents")
}

func assertHasField(t *testing.T, err error, field string) {
	t.Helper()
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	for _, e := range verrs {
		if e.Field == field {
			return
		}
	}
	t.Fatalf("expected a validation error on field %q, got %v", field, verrs)
}
