// Package dispatch routes request envelopes to registered operations.
//
// A Registry holds Operations, each pairing a name and a parameter schema
// with a handler of one of three kinds: no arguments, the params object, or
// params decoded into a typed struct. The Dispatcher parses an envelope,
// looks the method up, validates params, records telemetry around the
// handler call and always produces exactly one Response:
//
//	-32700  envelope could not be parsed (id is null)
//	-32601  method not registered
//	-32602  params failed schema validation
//	-32603  handler returned an error or panicked
//
// "initialize" and "shutdown" are answered by the Dispatcher itself and
// cannot be registered.
package dispatch
