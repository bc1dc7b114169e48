package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"farmadvisory/internal/types"
)

// Validator wraps go-playground/validator with JSON field names and the
// domain tags used by request DTOs.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers custom tags:
//
//	crop_name - letters, spaces, hyphens and apostrophes only
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("crop_name", validateCropName); err != nil {
		logger.Error("failed to register crop_name validation", "error", err)
	}

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s and converts the first failure into an
// AppError. A missing required field maps to
// validation_missing_required_field; everything else maps to
// validation_invalid_input with the offending field and rule in Details.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		v.logger.Error("unexpected validator error", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fe := verrs[0]
	details := map[string]any{"field": fieldPath(fe), "rule": fe.Tag()}
	if fe.Param() != "" {
		details["param"] = fe.Param()
	}

	if fe.Tag() == "required" {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			fmt.Sprintf("%s is required", fieldPath(fe)), err, details)
	}
	return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidInput,
		fmt.Sprintf("%s failed %s validation", fieldPath(fe), fe.Tag()), err, details)
}

// fieldPath strips the top-level struct name from the namespace
// ("RegisterFarmRequest.primary_crops[0]" -> "primary_crops[0]").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func validateCropName(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r == ' ', r == '-', r == '\'':
		default:
			return false
		}
	}
	return true
}
