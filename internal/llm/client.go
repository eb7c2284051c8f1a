// Package llm is the model invocation boundary: a single opaque,
// potentially slow, potentially failing call against an OpenAI-compatible
// chat completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lifetracker/internal/models"
)

// Request is one model invocation: system instruction, prior transcript
// and the tool schemas advertised for this turn.
type Request struct {
	System string
	Turns  []models.Turn
	Tools  []map[string]any
}

// Response is the model's reply, split into free-text segments and
// structured tool-call requests. One response may carry both.
type Response struct {
	TextSegments []string
	ToolCalls    []models.ToolCall
}

// Invoker is implemented by Client and by test fakes
type Invoker interface {
	Invoke(ctx context.Context, req *Request) (*Response, error)
}

// Client calls an OpenAI-compatible /chat/completions endpoint
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient builds a client for the given provider. The 120s timeout
// covers slow generations; a timeout surfaces as ErrModelUnavailable like
// any other transport failure.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Invoke performs one non-streaming chat completion. Transport errors,
// non-200 statuses and responses without candidates all map to
// ErrModelUnavailable so callers have a single turn-level failure to
// handle.
func (c *Client) Invoke(ctx context.Context, req *Request) (*Response, error) {
	reqBody := map[string]any{
		"model":    c.model,
		"messages": buildMessages(req.System, req.Turns),
		"stream":   false,
	}
	if len(req.Tools) > 0 {
		reqBody["tools"] = req.Tools
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: API error (status %d): %s", models.ErrModelUnavailable, resp.StatusCode, string(body))
	}

	var apiResult struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Type     string `json:"type"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResult); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", models.ErrModelUnavailable, err)
	}

	if len(apiResult.Choices) == 0 {
		return nil, fmt.Errorf("%w: no candidates in response", models.ErrModelUnavailable)
	}

	message := apiResult.Choices[0].Message
	out := &Response{}
	if message.Content != "" {
		out.TextSegments = append(out.TextSegments, message.Content)
	}
	for _, tc := range message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: tc.Function.Arguments,
		})
	}
	return out, nil
}

// buildMessages flattens the sum-typed transcript into OpenAI chat
// messages. Tool calls ride on assistant messages; tool results become
// role=tool messages keyed by the originating call id.
func buildMessages(system string, turns []models.Turn) []map[string]any {
	messages := make([]map[string]any, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, map[string]any{"role": "system", "content": system})
	}

	for _, turn := range turns {
		switch turn.Role {
		case models.RoleUser:
			for _, part := range turn.Parts {
				if part.Kind == models.PartText {
					messages = append(messages, map[string]any{"role": "user", "content": part.Text})
				}
			}

		case models.RoleModel:
			msg := map[string]any{"role": "assistant"}
			var text string
			var toolCalls []map[string]any
			for _, part := range turn.Parts {
				switch part.Kind {
				case models.PartText:
					if text != "" {
						text += "\n"
					}
					text += part.Text
				case models.PartToolCall:
					toolCalls = append(toolCalls, map[string]any{
						"id":   part.ToolCall.ID,
						"type": "function",
						"function": map[string]any{
							"name":      part.ToolCall.Name,
							"arguments": part.ToolCall.Args,
						},
					})
				}
			}
			if text != "" {
				msg["content"] = text
			}
			if len(toolCalls) > 0 {
				msg["tool_calls"] = toolCalls
			}
			if text != "" || len(toolCalls) > 0 {
				messages = append(messages, msg)
			}

		case models.RoleTool:
			for _, part := range turn.Parts {
				if part.Kind == models.PartToolResult {
					messages = append(messages, map[string]any{
						"role":         "tool",
						"tool_call_id": part.ToolResult.CallID,
						"name":         part.ToolResult.Name,
						"content":      part.ToolResult.Payload,
					})
				}
			}
		}
	}
	return messages
}
