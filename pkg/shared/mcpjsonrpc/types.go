package mcpjsonrpc

// Based on JSON-RPC 2.0 Specification: https://www.jsonrpc.org/specification

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Version is the only accepted value of the "jsonrpc" member.
const Version = "2.0"

// Request represents a JSON-RPC request object.
// A request whose ID is absent is a notification and gets no response.
type Request struct {
	Version string          `json:"jsonrpc"`          // MUST be "2.0"
	ID      ID              `json:"id,omitzero"`      // Request identifier (string, number, or null)
	Method  string          `json:"method"`           // Method to be invoked
	Params  json.RawMessage `json:"params,omitempty"` // Parameters (structured value)
}

// IsNotification reports whether the request carries no id member.
func (r Request) IsNotification() bool {
	return r.ID.IsAbsent()
}

// Response represents a JSON-RPC response object.
// Exactly one of Result and Error is set; use NewResult and NewError to build one.
type Response struct {
	Version string          `json:"jsonrpc"`          // MUST be "2.0"
	ID      ID              `json:"id"`               // Must match request ID (or null if could not be determined)
	Result  json.RawMessage `json:"result,omitempty"` // Required on success
	Error   *Error          `json:"error,omitempty"`  // Required on error
}

// NewResult builds a success response carrying result encoded as JSON.
func NewResult(id ID, result any) (Response, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	return Response{Version: Version, ID: id.orNull(), Result: data}, nil
}

// NewError builds an error response.
func NewError(id ID, rpcErr *Error) Response {
	if rpcErr == nil {
		rpcErr = &Error{Code: CodeInternalError, Message: "Internal error"}
	}
	return Response{Version: Version, ID: id.orNull(), Error: rpcErr}
}

// Validate checks the envelope rules a receiver relies on.
func (r Response) Validate() error {
	if r.Version != Version {
		return fmt.Errorf("unsupported jsonrpc version %q", r.Version)
	}
	hasResult := len(r.Result) > 0
	hasError := r.Error != nil
	switch {
	case hasResult && hasError:
		return errors.New("response carries both result and error")
	case !hasResult && !hasError:
		return errors.New("response carries neither result nor error")
	}
	return nil
}

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`           // Error code
	Message string `json:"message"`        // Error message
	Data    any    `json:"data,omitempty"` // Additional data about the error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Error codes (subset, based on JSON-RPC spec)
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// NewParseError reports a body that is not valid JSON.
func NewParseError(err error) *Error {
	return &Error{Code: CodeParseError, Message: "Parse error", Data: err.Error()}
}

// NewInvalidRequest reports a malformed envelope.
func NewInvalidRequest(reason string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: "Invalid Request", Data: reason}
}

// NewMethodNotFound reports a method outside the supported set.
func NewMethodNotFound(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: "Method not found: " + method}
}

// NewInvalidParams reports params that do not decode into the method's shape.
func NewInvalidParams(err error) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid params", Data: err.Error()}
}

// NewInternalError reports a server-side fault.
func NewInternalError(message string, data any) *Error {
	return &Error{Code: CodeInternalError, Message: message, Data: data}
}

type idKind uint8

const (
	idAbsent idKind = iota
	idNull
	idNumber
	idString
)

// ID is a JSON-RPC request identifier: an integer, a string, null, or absent.
// It re-encodes exactly as it was received.
type ID struct {
	kind idKind
	num  int64
	str  string
}

// NullID is the explicit null identifier used when a request id cannot be determined.
var NullID = ID{kind: idNull}

// NewIntID returns a numeric identifier.
func NewIntID(n int64) ID { return ID{kind: idNumber, num: n} }

// NewStringID returns a string identifier.
func NewStringID(s string) ID { return ID{kind: idString, str: s} }

// IsAbsent reports whether the id member was missing (a notification).
func (id ID) IsAbsent() bool { return id.kind == idAbsent }

// IsNull reports whether the id was an explicit null.
func (id ID) IsNull() bool { return id.kind == idNull }

// IsZero lets encoding/json omit an absent id.
func (id ID) IsZero() bool { return id.kind == idAbsent }

// Int returns the numeric value of the id, if it is a number.
func (id ID) Int() (int64, bool) {
	return id.num, id.kind == idNumber
}

func (id ID) String() string {
	switch id.kind {
	case idNumber:
		return strconv.FormatInt(id.num, 10)
	case idString:
		return strconv.Quote(id.str)
	case idNull:
		return "null"
	default:
		return "<absent>"
	}
}

func (id ID) orNull() ID {
	if id.kind == idAbsent {
		return NullID
	}
	return id
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case idNumber:
		return []byte(strconv.FormatInt(id.num, 10)), nil
	case idString:
		return json.Marshal(id.str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*id = NullID
		return nil
	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = NewStringID(s)
		return nil
	}

	n, err := strconv.ParseInt(string(trimmed), 10, 64)
	if err != nil {
		return fmt.Errorf("id must be an integer, a string or null: %s", trimmed)
	}
	*id = NewIntID(n)
	return nil
}
