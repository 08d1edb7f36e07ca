package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// MONGO_URI is required
	if cfg.MongoURI == "" {
		errs = append(errs, ValidationError{
			Field:   "MONGO_URI",
			Message: "required",
		})
	}

	// CACHE_BACKEND must be "redis" or "memcache"
	switch cfg.CacheBackend {
	case "", "redis":
	case "memcache":
		if cfg.MemcachedAddr == "" {
			errs = append(errs, ValidationError{
				Field:   "MEMCACHED_ADDR",
				Message: "required when CACHE_BACKEND is 'memcache'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "CACHE_BACKEND",
			Message: fmt.Sprintf("must be 'redis' or 'memcache', got %q", cfg.CacheBackend),
		})
	}

	// SMS_PROVIDER must be "log" or "twilio"
	switch cfg.SMSProvider {
	case "", "log":
	case "twilio":
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "" {
			errs = append(errs, ValidationError{
				Field:   "SMS_PROVIDER",
				Message: "twilio requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "SMS_PROVIDER",
			Message: fmt.Sprintf("must be 'log' or 'twilio', got %q", cfg.SMSProvider),
		})
	}

	// DB_OP_TIMEOUT must be a valid positive duration
	if cfg.DBOpTimeoutStr != "" {
		d, err := time.ParseDuration(cfg.DBOpTimeoutStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "DB_OP_TIMEOUT",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "DB_OP_TIMEOUT",
				Message: "must be positive",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
