package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"slices"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const resourceURL = "params.json"

// Schema is a compiled JSON Schema describing an operation's parameters.
type Schema struct {
	raw      json.RawMessage
	compiled *jsonschema.Schema
	// properties is nil when the schema declares none, in which case
	// validated params pass through unfiltered.
	properties map[string]bool
	defaults   map[string]json.RawMessage
	required   []string
	// integers locates integer-typed values; nil when there are none.
	integers *integerShape
}

// document is the subset of a schema this package inspects directly.
type document struct {
	Properties map[string]struct {
		Default json.RawMessage `json:"default"`
	} `json:"properties"`
	Required []string `json:"required"`
}

// New compiles a JSON Schema document.
func New(raw []byte) (*Schema, error) {
	var schemaDoc any
	if err := json.Unmarshal(raw, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("inspect schema: %w", err)
	}

	s := &Schema{
		raw:      slices.Clone(raw),
		compiled: compiled,
		defaults: make(map[string]json.RawMessage),
		required: doc.Required,
	}
	if doc.Properties != nil {
		s.properties = make(map[string]bool, len(doc.Properties))
		for name, p := range doc.Properties {
			s.properties[name] = true
			if len(p.Default) > 0 {
				s.defaults[name] = p.Default
			}
		}
	}

	var shape shapeDoc
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("inspect schema types: %w", err)
	}
	s.integers = shape.integerShape()
	return s, nil
}

// MustNew is like New but panics on error. Intended for package-level schemas.
func MustNew(raw []byte) *Schema {
	s, err := New(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Empty returns a schema accepting any object and declaring no properties.
func Empty() *Schema {
	return MustNew([]byte(`{"type":"object"}`))
}

// JSON returns the schema document.
func (s *Schema) JSON() json.RawMessage {
	return slices.Clone(s.raw)
}

// MarshalJSON implements json.Marshaler.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return s.JSON(), nil
}

// Required returns the names of required top-level properties.
func (s *Schema) Required() []string {
	return slices.Clone(s.required)
}

// PropertyNames returns the declared top-level property names, sorted.
func (s *Schema) PropertyNames() []string {
	names := make([]string, 0, len(s.properties))
	for name := range s.properties {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate checks raw params against s. See the package-level Validate.
func (s *Schema) Validate(raw json.RawMessage) (Params, error) {
	return Validate(s, raw)
}

func (s *Schema) applyDefaults(p Params) error {
	for name, def := range s.defaults {
		if _, ok := p[name]; ok {
			continue
		}
		v, err := decodeValue(def)
		if err != nil {
			return fmt.Errorf("decode default for %s: %w", name, err)
		}
		p[name] = v
	}
	return nil
}

func (s *Schema) stripUnknown(p Params) {
	if s.properties == nil {
		return
	}
	for name := range p {
		if !s.properties[name] {
			delete(p, name)
		}
	}
}

// decodeValue decodes JSON keeping numbers as json.Number so integers and
// numeric strings stay distinguishable.
func decodeValue(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

// shapeDoc is the part of a schema that says where integers live.
type shapeDoc struct {
	Type       json.RawMessage     `json:"type"`
	Properties map[string]shapeDoc `json:"properties"`
	Items      *shapeDoc           `json:"items"`
}

// integerShape mirrors the schema down to its integer-typed leaves.
type integerShape struct {
	integer    bool
	properties map[string]*integerShape
	items      *integerShape
}

func (d shapeDoc) integerShape() *integerShape {
	sh := &integerShape{integer: d.isInteger()}
	for name, p := range d.Properties {
		if child := p.integerShape(); child != nil {
			if sh.properties == nil {
				sh.properties = make(map[string]*integerShape)
			}
			sh.properties[name] = child
		}
	}
	if d.Items != nil {
		sh.items = d.Items.integerShape()
	}
	if !sh.integer && sh.properties == nil && sh.items == nil {
		return nil
	}
	return sh
}

// isInteger reports whether the type keyword admits integers but not
// arbitrary numbers.
func (d shapeDoc) isInteger() bool {
	if len(d.Type) == 0 {
		return false
	}
	var types []string
	var single string
	if err := json.Unmarshal(d.Type, &single); err == nil {
		types = []string{single}
	} else if err := json.Unmarshal(d.Type, &types); err != nil {
		return false
	}
	return slices.Contains(types, "integer") && !slices.Contains(types, "number")
}

// normalize rewrites integer-valued numbers at integer positions in their
// canonical form, so 5.0 and 1e2 become 5 and 100. Values outside the int64
// range are rejected.
func (sh *integerShape) normalize(v any, path []string) (any, error) {
	if sh == nil {
		return v, nil
	}
	switch v := v.(type) {
	case json.Number:
		if !sh.integer {
			return v, nil
		}
		return canonicalInteger(v, path)
	case map[string]any:
		for name, child := range sh.properties {
			value, ok := v[name]
			if !ok {
				continue
			}
			n, err := child.normalize(value, append(path, name))
			if err != nil {
				return nil, err
			}
			v[name] = n
		}
	case []any:
		for i, value := range v {
			n, err := sh.items.normalize(value, append(path, strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			v[i] = n
		}
	}
	return v, nil
}

func canonicalInteger(n json.Number, path []string) (json.Number, error) {
	if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return n, nil
	}
	r, ok := new(big.Rat).SetString(n.String())
	if !ok || !r.IsInt() {
		return n, nil
	}
	if !r.Num().IsInt64() {
		return "", &ValidationError{Field: fieldPath(path), Reason: "integer out of range"}
	}
	return json.Number(strconv.FormatInt(r.Num().Int64(), 10)), nil
}

func fieldPath(path []string) string {
	if len(path) == 0 {
		return paramsField
	}
	return strings.Join(path, ".")
}
