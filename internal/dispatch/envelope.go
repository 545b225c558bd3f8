package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the envelope protocol version written on every response.
const Version = "2.0"

// Error codes returned in response envelopes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// nullID is the id used when a request could not be parsed far enough to
// read one.
var nullID = json.RawMessage("null")

// Request is an inbound envelope. ID is kept as raw JSON so it can be echoed
// back exactly as received.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error is the error member of a response envelope.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Response is an outbound envelope. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult builds a success response. A nil result is encoded as null.
func NewResult(id json.RawMessage, result any) *Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return NewError(id, CodeInternalError, fmt.Sprintf("encode result: %v", err))
	}
	return &Response{JSONRPC: Version, ID: normalizeID(id), Result: raw}
}

// NewError builds an error response.
func NewError(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      normalizeID(id),
		Error:   &Error{Code: code, Message: message},
	}
}

// IsError reports whether the response carries an error.
func (r *Response) IsError() bool {
	return r.Error != nil
}

// IDString returns the id as it appears on the wire, for logging.
func (r *Request) IDString() string {
	return string(normalizeID(r.ID))
}

// ParseRequest decodes an envelope. On failure it returns a parse-error
// response with a null id.
func ParseRequest(data []byte) (*Request, *Response) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, NewError(nullID, CodeParseError, "parse error: envelope must be a JSON object")
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, NewError(nullID, CodeParseError, "parse error: "+describeJSONError(err))
	}
	if req.Method == "" {
		return nil, NewError(nullID, CodeParseError, "parse error: method is required")
	}
	if !validID(req.ID) {
		return nil, NewError(nullID, CodeParseError, "parse error: id must be a string, number or null")
	}
	req.ID = normalizeID(req.ID)
	return &req, nil
}

// validID accepts absent, null, string and number ids.
func validID(id json.RawMessage) bool {
	if len(id) == 0 {
		return true
	}
	switch id[0] {
	case 'n', '"', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(id)) == 0 {
		return nullID
	}
	return id
}

func describeJSONError(err error) string {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("%s (offset %d)", syntaxErr.Error(), syntaxErr.Offset)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field %q has invalid type %s", typeErr.Field, typeErr.Value)
	}
	return err.Error()
}
