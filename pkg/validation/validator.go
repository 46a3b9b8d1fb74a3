// Package validation provides validation utilities for node-banana workflows
// built on go-playground/validator.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ttmouse/node-banana/internal/core/graph"
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
	Message string      `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate is the shared validator instance with the workflow rules
// registered.
var Validate *validator.Validate

var nodeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,100}$`)

func init() {
	Validate = validator.New()

	Validate.RegisterValidation("node_id", validateNodeID)
	Validate.RegisterValidation("node_type", validateNodeType)
	Validate.RegisterValidation("handle", validateHandle)
	Validate.RegisterValidation("edge_style", validateEdgeStyle)
	Validate.RegisterValidation("group_color", validateGroupColor)

	// Register tag name function to use JSON tags for field names
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// ValidateStruct validates s against its validate tags.
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	return formatValidationErrors(fieldErrs)
}

// formatValidationErrors converts validator errors to our custom format
func formatValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, 0, len(errs))
	for _, fe := range errs {
		out = append(out, ValidationError{
			Field:   fe.Namespace(),
			Value:   fe.Value(),
			Message: getErrorMessage(fe),
		})
	}
	return out
}

// getErrorMessage returns a human-readable error message
func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min", "gte":
		return fmt.Sprintf("minimum value/length is %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("maximum value/length is %s", fe.Param())
	case "node_id":
		return "must be a valid node identifier (alphanumeric, underscore, hyphen)"
	case "node_type":
		return "must be a known node type"
	case "handle":
		return "must be one of image, text, reference"
	case "edge_style":
		return "must be angular or curved"
	case "group_color":
		return "must be a palette color"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}

func validateNodeID(fl validator.FieldLevel) bool {
	return nodeIDPattern.MatchString(fl.Field().String())
}

func validateNodeType(fl validator.FieldLevel) bool {
	return graph.NodeType(fl.Field().String()).Valid()
}

func validateHandle(fl validator.FieldLevel) bool {
	return graph.Handle(fl.Field().String()).Valid()
}

func validateEdgeStyle(fl validator.FieldLevel) bool {
	return graph.EdgeStyle(fl.Field().String()).Valid()
}

func validateGroupColor(fl validator.FieldLevel) bool {
	return graph.GroupColor(fl.Field().String()).Valid()
}
