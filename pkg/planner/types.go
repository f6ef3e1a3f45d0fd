// Package planner wraps the chat-completions model that drives a turn. The
// model proposes tool calls and phrasing only; it never touches order state
// directly.
package planner

import (
	"context"
	"encoding/json"
)

// Message is one chat-completions message. AssistantToolCalls carries the
// model's proposed calls when echoing an assistant turn back, and ToolCallID
// links a tool-role result to the call it answers.
type Message struct {
	Role               string     `json:"role"`
	Content            string     `json:"content"`
	AssistantToolCalls []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID         string     `json:"tool_call_id,omitempty"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Client interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition, options *SamplingOptions) (*Response, error)
}

type SamplingOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	Seed        int64   `json:"seed"`
}

type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type Response struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls"`
}

// ToolCall keeps arguments as raw JSON so the registry can validate them
// against the declared schema before anything is parsed.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}
