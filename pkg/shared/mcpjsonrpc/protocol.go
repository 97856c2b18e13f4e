package mcpjsonrpc

import "encoding/json"

// ProtocolVersion is the MCP revision spoken by both sides.
const ProtocolVersion = "2024-11-05"

// Implementation identifies a client or server by name and version.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsCapability advertises tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ServerCapabilities lists the method families a server supports.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// InitializeParams is sent in the initialize request.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult is returned by the initialize request.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
}

// ToolDescriptor describes one tool as advertised by tools/list.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is returned by the tools/list request.
type ListToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// CallToolParams is sent in the tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ContentTypeText is the only content block type produced today.
const ContentTypeText = "text"

// ContentBlock is one typed item of a tool result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is returned by the tools/call request.
// IsError marks a tool-level failure; the content still carries a readable message.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

// NewTextResult wraps text as a successful tool result.
func NewTextResult(text string) ToolResult {
	return ToolResult{Content: []ContentBlock{{Type: ContentTypeText, Text: text}}}
}

// NewErrorResult wraps message as a failed tool result.
func NewErrorResult(message string) ToolResult {
	return ToolResult{Content: []ContentBlock{{Type: ContentTypeText, Text: message}}, IsError: true}
}

// Text returns the first text block, or "" when there is none.
func (r ToolResult) Text() string {
	for _, block := range r.Content {
		if block.Type == ContentTypeText {
			return block.Text
		}
	}
	return ""
}
