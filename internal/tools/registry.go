// Package tools declares the closed set of operations the model may call
// and validates and routes incoming call requests.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"lifetracker/internal/models"
)

// Tool represents a callable operation with its metadata and execution
// function. Parameters is the JSON-Schema object advertised to the model.
type Tool struct {
	Name        string
	DisplayName string
	Description string
	Parameters  map[string]any
	Execute     ExecuteFunc
}

// ExecuteFunc runs a tool for one user. The returned string is the
// human-readable outcome folded into the turn's reply.
type ExecuteFunc func(ctx context.Context, userID int64, args map[string]any) (string, error)

// Registry manages all available tools. It is constructed explicitly and
// passed to the orchestrator; there is no ambient global registry.
type Registry struct {
	tools map[string]*Tool
	mutex sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a new tool to the registry
func (r *Registry) Register(tool *Tool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Execute == nil {
		return fmt.Errorf("tool %s must have an Execute function", tool.Name)
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s is already registered", tool.Name)
	}

	r.tools[tool.Name] = tool
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all registered tools in OpenAI tool format, ready to be
// advertised on a model invocation.
func (r *Registry) List() []map[string]any {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	tools := make([]map[string]any, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			},
		})
	}
	return tools
}

// Execute validates and dispatches one tool call. The raw argument string
// comes straight from the model and is parsed defensively: an unknown
// name fails with ErrUnknownTool, unparseable arguments with
// ErrMalformedPayload. Callers fold these errors into the reply instead
// of aborting the turn.
func (r *Registry) Execute(ctx context.Context, userID int64, name, argsJSON string) (string, error) {
	tool, exists := r.Get(name)
	if !exists {
		return "", fmt.Errorf("%w: %s", models.ErrUnknownTool, name)
	}

	args := map[string]any{}
	if strings.TrimSpace(argsJSON) != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("%w: arguments for %s are not a JSON object: %v", models.ErrMalformedPayload, name, err)
		}
	}

	return tool.Execute(ctx, userID, args)
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.tools)
}

// decodeArgs round-trips the loosely typed argument map into a typed
// request struct. Decode-then-validate: the typed struct carries the
// field contract, validation happens in the tool before any side effect.
func decodeArgs(args map[string]any, dest any) error {
	encoded, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}
	if err := json.Unmarshal(encoded, dest); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}
	return nil
}
