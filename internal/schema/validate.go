package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// paramsField names the whole params object in validation errors.
const paramsField = "params"

var printer = message.NewPrinter(language.English)

// ValidationError reports which field failed validation and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid params: %s: %s", e.Field, e.Reason)
}

// Validate checks raw params against s and returns the validated object.
//
// Absent or null params validate as an empty object. Declared defaults are
// filled in for absent properties before validation. Values are never coerced
// between types, but integers written as 5.0 or 1e2 are put in canonical form
// and integers beyond the int64 range are rejected. When s declares properties, undeclared ones are dropped from
// the result. A nil schema accepts any object.
func Validate(s *Schema, raw json.RawMessage) (Params, error) {
	params, err := decodeParams(raw)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return params, nil
	}

	if err := s.applyDefaults(params); err != nil {
		return nil, err
	}

	if err := s.compiled.Validate(map[string]any(params)); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return nil, fromSchemaError(verr)
		}
		return nil, &ValidationError{Field: paramsField, Reason: err.Error()}
	}

	if _, err := s.integers.normalize(map[string]any(params), nil); err != nil {
		return nil, err
	}

	s.stripUnknown(params)
	return params, nil
}

func decodeParams(raw json.RawMessage) (Params, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Params{}, nil
	}

	v, err := decodeValue(trimmed)
	if err != nil {
		return nil, &ValidationError{Field: paramsField, Reason: "malformed JSON: " + err.Error()}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ValidationError{Field: paramsField, Reason: "expected object, got " + jsonTypeName(v)}
	}
	return Params(obj), nil
}

// fromSchemaError reduces a validation tree to its first leaf cause.
func fromSchemaError(verr *jsonschema.ValidationError) *ValidationError {
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}

	field := strings.Join(leaf.InstanceLocation, ".")

	switch k := leaf.ErrorKind.(type) {
	case *kind.Required:
		missing := strings.Join(k.Missing, ", ")
		if field != "" {
			missing = field + "." + missing
		}
		return &ValidationError{Field: missing, Reason: "missing required property"}
	case *kind.Type:
		if field == "" {
			field = paramsField
		}
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("expected %s, got %s", strings.Join(k.Want, " or "), k.Got),
		}
	}

	if field == "" {
		field = paramsField
	}
	return &ValidationError{Field: field, Reason: leaf.ErrorKind.LocalizedString(printer)}
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
