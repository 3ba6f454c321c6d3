package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns the configured validator shared by all handlers.
func New() *validatorv10.Validate {
	return validatorv10.New()
}

// RequestError describes why a request body was rejected.
type RequestError struct {
	Fields map[string]string
}

func (e *RequestError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid request body"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// DecodeAndValidate decodes the JSON request body into out and validates it.
// It returns a *RequestError describing violations so handlers can respond 400.
func DecodeAndValidate(r *http.Request, v *validatorv10.Validate, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return &RequestError{}
	}
	if err := v.Struct(out); err != nil {
		return &RequestError{Fields: errorsToMap(err)}
	}
	return nil
}

func errorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Field()] = fmt.Sprintf("failed %q validation", fe.Tag())
		}
		return out
	}
	out["body"] = err.Error()
	return out
}
