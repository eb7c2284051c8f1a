package models

// Role identifies who produced a conversation turn
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// Turn is one entry in a session transcript. Transcripts are append-only
// and held in memory for the lifetime of a session; they do not survive
// process restart.
type Turn struct {
	Role  Role       `json:"role"`
	Parts []TurnPart `json:"parts"`
}

// PartKind tags the variant carried by a TurnPart
type PartKind string

const (
	PartText       PartKind = "text"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
)

// TurnPart is a tagged union of the three content shapes a turn can carry.
// Exactly one of Text, ToolCall, ToolResult is set, selected by Kind.
type TurnPart struct {
	Kind       PartKind    `json:"kind"`
	Text       string      `json:"text,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// ToolCall is a structured request emitted by the model, naming one
// registered operation and its raw JSON arguments.
type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args string `json:"args"` // raw JSON object as received from the model
}

// ToolResult records the outcome of one dispatched tool call, kept in the
// transcript so the model sees it as context on later turns.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Payload string `json:"payload"`
	IsError bool   `json:"is_error,omitempty"`
}

// TextPart builds a text turn part
func TextPart(s string) TurnPart {
	return TurnPart{Kind: PartText, Text: s}
}

// ToolCallPart builds a tool-call turn part
func ToolCallPart(c ToolCall) TurnPart {
	return TurnPart{Kind: PartToolCall, ToolCall: &c}
}

// ToolResultPart builds a tool-result turn part
func ToolResultPart(r ToolResult) TurnPart {
	return TurnPart{Kind: PartToolResult, ToolResult: &r}
}
