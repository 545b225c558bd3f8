// Package schema validates operation parameters against JSON Schema.
//
// Schemas are compiled once with github.com/santhosh-tekuri/jsonschema/v6 and
// checked on every request. Validation is stateless and never caches results.
//
//	getDeal := schema.MustObject(
//		schema.Integer("dealId", schema.Required(), schema.Minimum(1)),
//	)
//	params, err := schema.Validate(getDeal, raw)
//
// Numbers decode as json.Number, so an integer property given "5" fails with
// a type error instead of being coerced. Failures are *ValidationError values
// naming the offending field.
package schema
