package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"lifetracker/internal/models"
	"lifetracker/internal/store"
)

// NewProfileTool creates the update_background_info tool
func NewProfileTool(st *store.Store) *Tool {
	return &Tool{
		Name:        "update_background_info",
		DisplayName: "Update Background Info",
		Description: "Merge new facts about the user into their background profile. Pass a JSON object mirroring the profile structure (goals, values, challenges, habits, user_profile). Only include fields that changed; existing data is preserved.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"update_json": map[string]any{
					"type":        "string",
					"description": "A JSON object with the profile fields to merge, e.g. {\"user_profile\":{\"location\":{\"city\":\"Berlin\"}}}",
				},
			},
			"required": []string{"update_json"},
		},
		Execute: func(ctx context.Context, userID int64, args map[string]any) (string, error) {
			var req profileUpdateRequest
			if err := decodeArgs(args, &req); err != nil {
				return "", err
			}
			return req.run(ctx, st, userID)
		},
	}
}

type profileUpdateRequest struct {
	UpdateJSON string `json:"update_json"`
}

func (r profileUpdateRequest) run(ctx context.Context, st *store.Store, userID int64) (string, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(r.UpdateJSON), &doc); err != nil {
		return "", fmt.Errorf("%w: update_json is not a JSON object: %v", models.ErrMalformedPayload, err)
	}
	if doc == nil {
		return "", fmt.Errorf("%w: update_json must be a JSON object", models.ErrMalformedPayload)
	}

	if _, err := st.PutProfile(ctx, userID, doc, models.ProfileWriteMerge); err != nil {
		return "", err
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("Background info updated (%s).", strings.Join(keys, ", ")), nil
}
