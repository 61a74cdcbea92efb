package config

import (
	"fmt"
	"net/url"
	"strings"

	"webauthz/pkg/logging"
	"webauthz/pkg/store"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: "is required",
		}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateAbsoluteURL checks that value is an absolute http or https URL.
func ValidateAbsoluteURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: "must be an absolute http or https URL",
		}
	}
	return nil
}

// Validate checks the configuration and returns a ConfigurationError that
// lists every problem found.
func (c WebauthzConfig) Validate() error {
	var errs ValidationErrors
	add := func(err error) {
		if ve, ok := err.(ValidationError); ok {
			errs = append(errs, ve)
		}
	}

	add(ValidateRequired("client.name", c.Client.Name))
	add(ValidateAbsoluteURL("client.grantRedirectURI", c.Client.GrantRedirectURI))
	if c.Client.HTTPTimeout <= 0 {
		errs.Add("client.httpTimeout", "must be positive", c.Client.HTTPTimeout)
	}

	add(ValidateRequired("server.listenAddr", c.Server.ListenAddr))
	add(ValidateRequired("server.userHeader", c.Server.UserHeader))

	if !c.Store.Type.IsValid() {
		add(ValidateOneOf("store.type", string(c.Store.Type), []string{
			string(store.TypeMemory), string(store.TypeRedis), string(store.TypePostgres), string(store.TypeSQLite),
		}))
	}
	switch c.Store.Type {
	case store.TypeRedis:
		add(ValidateRequired("store.redis.addr", c.Store.Redis.Addr))
	case store.TypePostgres:
		add(ValidateRequired("store.dsn", c.Store.DSN))
	}

	if _, err := logging.ParseLogLevel(c.Log.Level); err != nil {
		errs.Add("log.level", err.Error(), c.Log.Level)
	}
	if c.Log.Format != "" {
		add(ValidateOneOf("log.format", c.Log.Format, []string{"text", "json"}))
	}

	if !errs.HasErrors() {
		return nil
	}

	suggestions := make([]string, 0, len(errs))
	for _, e := range errs {
		suggestions = append(suggestions, fmt.Sprintf("Check '%s' in config.yaml or its WEBAUTHZ_* override", e.Field))
	}
	return ConfigurationError{
		ErrorType:   "validation",
		Message:     errs.Error(),
		Suggestions: suggestions,
	}
}
