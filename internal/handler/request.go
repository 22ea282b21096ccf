package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dukerupert/kirana/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON reads a JSON body into dst and runs struct validation.
// Malformed bodies yield an EINVALID error; failed rules yield a
// domain.ValidationError keyed by json field path.
func DecodeJSON(r *http.Request, op string, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid(op, "Request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.Invalid(op, "Request body too large")
		}
		return &domain.Error{Code: domain.EINVALID, Op: op, Message: "Malformed JSON body", Err: err}
	}
	return Validate(op, dst)
}

// Validate runs struct validation on v.
func Validate(op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Internal(err, op, "validation failed")
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fieldPath(fe.Namespace())
		fields[name] = fieldMessage(fe)
	}
	return &domain.ValidationError{Op: op, Fields: fields}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	_, rest, found := strings.Cut(ns, ".")
	if !found {
		return ns
	}
	return rest
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "uuid":
		return "must be a valid UUID"
	case "e164":
		return "must be a phone number in E.164 format"
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// PathUUID parses a path wildcard as a UUID.
func PathUUID(r *http.Request, name, op string) (uuid.UUID, error) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(op, name, "must be a valid UUID")
	}
	return id, nil
}
