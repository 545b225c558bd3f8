package schema

import (
	"encoding/json"
	"fmt"
)

// Property is one top-level (or nested) schema property under construction.
type Property struct {
	name     string
	doc      map[string]any
	required bool
}

// PropertyOption customizes a Property.
type PropertyOption func(*Property)

// Required marks the property as required.
func Required() PropertyOption {
	return func(p *Property) { p.required = true }
}

// Default sets the value used when the property is absent.
func Default(v any) PropertyOption {
	return func(p *Property) { p.doc["default"] = v }
}

// Description documents the property.
func Description(text string) PropertyOption {
	return func(p *Property) { p.doc["description"] = text }
}

// Minimum sets an inclusive lower bound for numeric properties.
func Minimum(n float64) PropertyOption {
	return func(p *Property) { p.doc["minimum"] = n }
}

// Maximum sets an inclusive upper bound for numeric properties.
func Maximum(n float64) PropertyOption {
	return func(p *Property) { p.doc["maximum"] = n }
}

// MinItems sets the minimum length of an array property.
func MinItems(n int) PropertyOption {
	return func(p *Property) { p.doc["minItems"] = n }
}

// MaxItems sets the maximum length of an array property.
func MaxItems(n int) PropertyOption {
	return func(p *Property) { p.doc["maxItems"] = n }
}

// Enum restricts the property to the given values.
func Enum(values ...any) PropertyOption {
	return func(p *Property) { p.doc["enum"] = values }
}

func newProperty(name, typ string, opts []PropertyOption) Property {
	p := Property{name: name, doc: map[string]any{"type": typ}}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Integer declares an integer property. Numeric strings are rejected.
func Integer(name string, opts ...PropertyOption) Property {
	return newProperty(name, "integer", opts)
}

// Number declares a numeric property.
func Number(name string, opts ...PropertyOption) Property {
	return newProperty(name, "number", opts)
}

// String declares a string property.
func String(name string, opts ...PropertyOption) Property {
	return newProperty(name, "string", opts)
}

// Boolean declares a boolean property.
func Boolean(name string, opts ...PropertyOption) Property {
	return newProperty(name, "boolean", opts)
}

// ObjectProperty declares a nested object property with its own fields.
func ObjectProperty(name string, fields []Property, opts ...PropertyOption) Property {
	p := newProperty(name, "object", opts)
	props, required := objectFields(fields)
	if len(props) > 0 {
		p.doc["properties"] = props
	}
	if len(required) > 0 {
		p.doc["required"] = required
	}
	return p
}

// Array declares an array property whose elements match items. The items
// property's name is ignored.
func Array(name string, items Property, opts ...PropertyOption) Property {
	p := newProperty(name, "array", opts)
	p.doc["items"] = items.doc
	return p
}

func objectFields(fields []Property) (map[string]any, []string) {
	props := make(map[string]any, len(fields))
	var required []string
	for _, f := range fields {
		props[f.name] = f.doc
		if f.required {
			required = append(required, f.name)
		}
	}
	return props, required
}

// Object builds and compiles an object schema from properties.
func Object(fields ...Property) (*Schema, error) {
	doc := map[string]any{"type": "object"}
	props, required := objectFields(fields)
	if len(props) > 0 {
		doc["properties"] = props
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return New(raw)
}

// MustObject is like Object but panics on error.
func MustObject(fields ...Property) *Schema {
	s, err := Object(fields...)
	if err != nil {
		panic(err)
	}
	return s
}
