package utils

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator with the custom rules used by the
// schema checks and the analytics configuration.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	validate := validator.New()
	RegisterCustomValidators(validate)
	return &Validator{validate: validate}
}

// Struct validates a struct against its validate tags.
func (v *Validator) Struct(s interface{}) error {
	return v.validate.Struct(s)
}

// ValidateTrendGranularity accepts the two supported calendar bucket sizes.
func ValidateTrendGranularity(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "daily", "weekly":
		return true
	}
	return false
}

// ValidateAccuracyRate accepts a rate in the closed unit interval.
func ValidateAccuracyRate(fl validator.FieldLevel) bool {
	value := fl.Field().Float()
	return value >= 0 && value <= 1
}

// RegisterCustomValidators registers all custom validators
func RegisterCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("trend_granularity", ValidateTrendGranularity)
	validate.RegisterValidation("accuracy_rate", ValidateAccuracyRate)

	// Register custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
