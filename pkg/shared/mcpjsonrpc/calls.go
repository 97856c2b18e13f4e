package mcpjsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Method names a supported protocol method.
type Method string

const (
	MethodInitialize  Method = "initialize"
	MethodInitialized Method = "notifications/initialized" // notification only
	MethodToolsList   Method = "tools/list"
	MethodToolsCall   Method = "tools/call"
)

// Call is the decoded, typed form of a request. The set of implementations is
// closed: InitializeCall, InitializedNotification, ListToolsCall, CallToolCall.
type Call interface {
	Method() Method
	isCall()
}

// InitializeCall is a decoded initialize request.
type InitializeCall struct {
	Params InitializeParams
}

// InitializedNotification is sent by a client once it has processed the handshake.
type InitializedNotification struct{}

// ListToolsCall is a decoded tools/list request.
type ListToolsCall struct{}

// CallToolCall is a decoded tools/call request.
// A name or arguments member of the wrong JSON type does not fail decoding;
// it is reported in NameErr or ArgumentsErr and answered as a tool error.
type CallToolCall struct {
	Params       CallToolParams
	NameErr      error
	ArgumentsErr error
}

func (InitializeCall) Method() Method          { return MethodInitialize }
func (InitializedNotification) Method() Method { return MethodInitialized }
func (ListToolsCall) Method() Method           { return MethodToolsList }
func (CallToolCall) Method() Method            { return MethodToolsCall }

func (InitializeCall) isCall()          {}
func (InitializedNotification) isCall() {}
func (ListToolsCall) isCall()           {}
func (CallToolCall) isCall()            {}

// DecodeCall maps an envelope that already passed version checks onto its typed call.
// Unknown methods yield CodeMethodNotFound and undecodable params CodeInvalidParams.
func DecodeCall(req Request) (Call, *Error) {
	switch Method(req.Method) {
	case MethodInitialize:
		var params InitializeParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, NewInvalidParams(err)
		}
		return InitializeCall{Params: params}, nil

	case MethodInitialized:
		return InitializedNotification{}, nil

	case MethodToolsList:
		return ListToolsCall{}, nil

	case MethodToolsCall:
		var raw struct {
			Name      json.RawMessage `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := decodeParams(req.Params, &raw); err != nil {
			return nil, NewInvalidParams(err)
		}
		return decodeToolCall(raw.Name, raw.Arguments), nil

	default:
		return nil, NewMethodNotFound(req.Method)
	}
}

func decodeToolCall(name, arguments json.RawMessage) CallToolCall {
	call := CallToolCall{Params: CallToolParams{Arguments: map[string]any{}}}
	if present(name) {
		if err := json.Unmarshal(name, &call.Params.Name); err != nil {
			call.NameErr = fmt.Errorf("tool name must be a string, got %s", jsonKind(name))
		}
	}
	if present(arguments) {
		var args map[string]any
		if err := json.Unmarshal(arguments, &args); err != nil {
			call.ArgumentsErr = fmt.Errorf("arguments must be an object, got %s", jsonKind(arguments))
		} else if args != nil {
			call.Params.Arguments = args
		}
	}
	return call
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// jsonKind names the JSON type of a raw value for error messages.
func jsonKind(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "nothing"
	}
	switch trimmed[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func decodeParams(raw json.RawMessage, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' {
		return errors.New("params must be an object")
	}
	return json.Unmarshal(trimmed, out)
}
