package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ValidationErrors wraps the validator's ValidationErrors
type ValidationErrors []playgroundvalidator.FieldError

// CustomValidator wraps go-playground/validator
type CustomValidator struct {
	validator *playgroundvalidator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() echo.Validator {
	v := playgroundvalidator.New()

	// Report json field names instead of Go struct field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validations
	err := v.RegisterValidation("visibility", validateVisibility)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("creation_policy", validateCreationPolicy)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("join_mode", validateJoinMode)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("target_type", validateTargetType)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("rule_type", validateRuleType)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("invite_status", validateInviteStatus)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("join_request_status", validateJoinRequestStatus)
	if err != nil {
		return nil
	}

	return &CustomValidator{validator: v}
}

// Custom validation functions
func validateVisibility(fl playgroundvalidator.FieldLevel) bool {
	v := fl.Field().String()
	return v == "public" || v == "hidden" || v == "system"
}

func validateCreationPolicy(fl playgroundvalidator.FieldLevel) bool {
	policy := fl.Field().String()
	return policy == "anyone" || policy == "admin_only"
}

func validateJoinMode(fl playgroundvalidator.FieldLevel) bool {
	mode := fl.Field().String()
	return mode == "open" || mode == "approval" || mode == "invitation_only"
}

func validateTargetType(fl playgroundvalidator.FieldLevel) bool {
	target := fl.Field().String()
	validTargets := map[string]bool{
		"all_members":      true,
		"all_admins":       true,
		"owner_only":       true,
		"owner_and_admins": true,
	}
	return validTargets[target]
}

func validateRuleType(fl playgroundvalidator.FieldLevel) bool {
	rule := fl.Field().String()
	validRules := map[string]bool{
		"parent_child": true,
		"role_based":   true,
		"union":        true,
		"conditional":  true,
	}
	return validRules[rule]
}

func validateInviteStatus(fl playgroundvalidator.FieldLevel) bool {
	status := fl.Field().String()
	return status == "PENDING" || status == "ACCEPTED" || status == "DECLINED" || status == "EXPIRED"
}

func validateJoinRequestStatus(fl playgroundvalidator.FieldLevel) bool {
	status := fl.Field().String()
	return status == "PENDING" || status == "APPROVED" || status == "REJECTED" || status == "CANCELLED"
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		var validationErrors playgroundvalidator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return ValidationErrors(validationErrors)
		}
		return err
	}
	return nil
}

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var fields []string
	for _, err := range ve {
		fields = append(fields, err.Field())
	}
	return fmt.Sprintf("validation failed on fields: %s", strings.Join(fields, ", "))
}
