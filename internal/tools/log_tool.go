package tools

import (
	"context"
	"fmt"
	"strings"

	"lifetracker/internal/models"
	"lifetracker/internal/store"
)

// NewLogEntryTool creates the add_log_entry tool
func NewLogEntryTool(st *store.Store) *Tool {
	return &Tool{
		Name:        "add_log_entry",
		DisplayName: "Add Log Entry",
		Description: "Record something the user said as a log entry. Use this whenever the user shares a thought, event, decision or feeling worth remembering.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text_input": map[string]any{
					"type":        "string",
					"description": "The content to log, in the user's own words",
				},
				"category_suggestion": map[string]any{
					"type":        "string",
					"description": "Optional category: Note, Decision, Action, Plan, Observation, Reflection or Feeling",
				},
			},
			"required": []string{"text_input"},
		},
		Execute: func(ctx context.Context, userID int64, args map[string]any) (string, error) {
			var req logEntryRequest
			if err := decodeArgs(args, &req); err != nil {
				return "", err
			}
			return req.run(ctx, st, userID)
		},
	}
}

type logEntryRequest struct {
	TextInput          string `json:"text_input"`
	CategorySuggestion string `json:"category_suggestion"`
}

func (r logEntryRequest) run(ctx context.Context, st *store.Store, userID int64) (string, error) {
	if strings.TrimSpace(r.TextInput) == "" {
		return "", fmt.Errorf("%w: text_input is required", models.ErrInvalidArgument)
	}

	entry, err := st.CreateLog(ctx, userID, r.TextInput, r.CategorySuggestion)
	if err != nil {
		return "", err
	}

	if entry.Category != "" {
		return fmt.Sprintf("Logged entry #%d (%s).", entry.ID, entry.Category), nil
	}
	return fmt.Sprintf("Logged entry #%d.", entry.ID), nil
}
