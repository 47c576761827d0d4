package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Validate performs configuration validation across every section.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateOracle()...)
	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validateMarket()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{Field: "app.name", Message: "application name is required"})
	}

	validEnvs := []string{"development", "staging", "production"}
	valid := false
	for _, env := range validEnvs {
		if c.App.Environment == env {
			valid = true
			break
		}
	}
	if !valid {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: fmt.Sprintf("invalid environment %q, must be one of %v", c.App.Environment, validEnvs),
		})
	}

	return errors
}

func (c *Config) validateStore() ValidationErrors {
	var errors ValidationErrors

	if c.Store.Host == "" {
		errors = append(errors, ValidationError{Field: "store.host", Message: "store host is required"})
	}
	if c.Store.Port <= 0 || c.Store.Port > 65535 {
		errors = append(errors, ValidationError{Field: "store.port", Message: "store port must be between 1 and 65535"})
	}

	return errors
}

func (c *Config) validateOracle() ValidationErrors {
	var errors ValidationErrors

	if c.Oracle.Endpoint == "" {
		errors = append(errors, ValidationError{Field: "oracle.endpoint", Message: "oracle endpoint is required"})
	}
	if c.Oracle.MaxTokens <= 0 {
		errors = append(errors, ValidationError{Field: "oracle.max_tokens", Message: "max_tokens must be positive"})
	}
	if c.Oracle.TimeoutMS <= 0 {
		errors = append(errors, ValidationError{Field: "oracle.timeout_ms", Message: "timeout_ms must be positive"})
	}
	if c.Oracle.RateLimitRPS <= 0 {
		errors = append(errors, ValidationError{Field: "oracle.rate_limit_rps", Message: "rate_limit_rps must be positive"})
	}

	return errors
}

func (c *Config) validateAPI() ValidationErrors {
	var errors ValidationErrors

	if c.API.Port <= 0 || c.API.Port > 65535 {
		errors = append(errors, ValidationError{Field: "api.port", Message: "api port must be between 1 and 65535"})
	}

	return errors
}

func (c *Config) validateMarket() ValidationErrors {
	var errors ValidationErrors

	if c.Market.NumAgents <= 0 {
		errors = append(errors, ValidationError{Field: "market.num_agents", Message: "num_agents must be positive"})
	}
	if c.Market.StartingCash <= 0 {
		errors = append(errors, ValidationError{Field: "market.starting_cash", Message: "starting_cash must be positive"})
	}

	return errors
}
