package validator

import (
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spounge-ai/auditchain/internal/domain"
)

var arnRegex = regexp.MustCompile(`^arn:aws:[a-z0-9\-]+:[a-z0-9\-]*:[0-9]{12}:.*$`)

// isARN checks if a string is a valid AWS ARN.
func isARN(fl validator.FieldLevel) bool {
	return arnRegex.MatchString(fl.Field().String())
}

// isEventType checks the value against the closed set of audit event types.
func isEventType(fl validator.FieldLevel) bool {
	return domain.EventType(fl.Field().String()).Valid()
}

// isDurationMin checks a time.Duration field against a minimum given as a duration string,
// e.g. `validate:"duration_min=1m"`.
func isDurationMin(fl validator.FieldLevel) bool {
	minimum, err := time.ParseDuration(fl.Param())
	if err != nil {
		return false
	}
	d, ok := fl.Field().Interface().(time.Duration)
	if !ok {
		return false
	}
	return d >= minimum
}

// RegisterCustomValidators registers custom validation functions with the validator.
func RegisterCustomValidators(validate *validator.Validate) error {
	for tag, fn := range map[string]validator.Func{
		"arn":          isARN,
		"event_type":   isEventType,
		"duration_min": isDurationMin,
	} {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %q: %w", tag, err)
		}
	}
	return nil
}
