package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var ErrInvalidDateFormat = errors.New("invalid date format, use YYYY-MM-DD")

// RegisterBindingValidators adds the custom binding tags to gin's validator.
// complaint_category accepts values for which known returns true.
func RegisterBindingValidators(known func(string) bool) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return v.RegisterValidation("complaint_category", func(fl validator.FieldLevel) bool {
		return known(strings.TrimSpace(fl.Field().String()))
	})
}

// ParseErrors turns binding errors into readable messages.
func ParseErrors(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}
	errs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		errs = append(errs, prettyError(e))
	}
	return errs
}

func prettyError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " field is required"
	case "email":
		return e.Field() + " must be a valid email address"
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s length must be at most %s", e.Field(), e.Param())
		}
		return fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
	case "url":
		return e.Field() + " must be a URL"
	case "complaint_category":
		return e.Field() + " is not a known complaint category"
	default:
		return e.Error()
	}
}

// NormalizeDate accepts YYYY-MM-DD, YYYY/MM/DD and unpadded variants and
// returns the canonical YYYY-MM-DD form.
func NormalizeDate(dateStr string) (string, error) {
	trimmed := strings.TrimSpace(dateStr)
	if trimmed == "" {
		return "", ErrInvalidDateFormat
	}
	normalized := strings.ReplaceAll(trimmed, "/", "-")
	for _, layout := range []string{"2006-01-02", "2006-1-2", "2006-01-2", "2006-1-02"} {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", ErrInvalidDateFormat
}
