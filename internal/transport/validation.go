package transport

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MissingFieldsMessage is returned whenever a required value or the image is absent.
const MissingFieldsMessage = "Please provide name, description, price, quantity, and an image."

type Reason string

const (
	ReasonMissing    Reason = "missing"
	ReasonNotANumber Reason = "not_a_number"
	ReasonNegative   Reason = "negative"
)

type FieldError struct {
	Field  string
	Reason Reason
}

// ValidationError lists every offending field of a request. Summary, when set,
// replaces the per field message.
type ValidationError struct {
	Fields  []FieldError
	Summary string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+string(f.Reason))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Has(reason Reason) bool {
	for _, f := range e.Fields {
		if f.Reason == reason {
			return true
		}
	}
	return false
}

// Message is the client facing text of the first offending field.
func (e *ValidationError) Message() string {
	if e.Summary != "" {
		return e.Summary
	}
	if len(e.Fields) == 0 {
		return "invalid request"
	}
	f := e.Fields[0]
	switch f.Reason {
	case ReasonMissing:
		return fmt.Sprintf("%s must not be empty", f.Field)
	case ReasonNegative:
		return fmt.Sprintf("%s must not be negative", f.Field)
	default:
		return fmt.Sprintf("%s must be a number", f.Field)
	}
}

// Missing builds the creation error for absent fields, e.g. the image part.
func Missing(fields ...string) *ValidationError {
	out := &ValidationError{Summary: MissingFieldsMessage}
	for _, f := range fields {
		out.Fields = append(out.Fields, FieldError{Field: f, Reason: ReasonMissing})
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

func reasonFor(tag string) Reason {
	switch tag {
	case "numeric", "number":
		return ReasonNotANumber
	case "gte", "min_value":
		return ReasonNegative
	default:
		return ReasonMissing
	}
}

// check runs struct validation and folds the result into a *ValidationError.
func check(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Reason: reasonFor(fe.Tag())})
	}
	return out
}
