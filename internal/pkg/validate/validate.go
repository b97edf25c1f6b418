// Package validate wraps go-playground/validator and renders its field errors
// as short, human-readable messages.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
	})
	return instance
}

// Struct validates v and joins every field failure into one error.
func Struct(v any) error {
	if err := get().Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, fieldError(fe))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// fieldError converts a single FieldError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := jsonish(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_with", "required_without":
		return fmt.Sprintf("%s is required when %s is %s", field, jsonish(fe.Param()), presence(fe.Tag()))
	case "excluded_with":
		return fmt.Sprintf("%s cannot be combined with %s", field, jsonish(fe.Param()))
	case "alpha":
		return field + " must contain letters only"
	case "alphanum":
		return field + " must contain letters and digits only"
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "url":
		return field + " must be a valid URL"
	case "timezone":
		return field + " must be an IANA time zone name"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// jsonish lower-cases the first rune so messages read like the config keys
// users write (SearchEndpoint -> searchEndpoint).
func jsonish(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func presence(tag string) string {
	if tag == "required_without" {
		return "missing"
	}
	return "set"
}
