package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lifetracker/internal/audio"
	"lifetracker/internal/llm"
	"lifetracker/internal/logging"
	"lifetracker/internal/models"
	"lifetracker/internal/store"
	"lifetracker/internal/tools"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
)

// fallbackReply is used when the model produced neither text nor any tool
// call for a turn.
const fallbackReply = "I'm not sure how to respond to that."

// ChatService orchestrates one conversation turn: it assembles model
// input, invokes the model, dispatches tool calls against the store and
// composes the final reply and updated transcript.
type ChatService struct {
	store           *store.Store
	invoker         llm.Invoker
	transcriber     audio.Transcriber
	registry        *tools.Registry
	transcripts     *cache.Cache // sessionID -> []models.Turn
	contextLogLimit int
}

// NewChatService creates the orchestrator. Transcripts live in a TTL
// cache: they only need to survive for the duration of a live session.
func NewChatService(st *store.Store, invoker llm.Invoker, transcriber audio.Transcriber, registry *tools.Registry, contextLogLimit int) *ChatService {
	if contextLogLimit <= 0 {
		contextLogLimit = 20
	}
	return &ChatService{
		store:           st,
		invoker:         invoker,
		transcriber:     transcriber,
		registry:        registry,
		transcripts:     cache.New(30*time.Minute, 10*time.Minute),
		contextLogLimit: contextLogLimit,
	}
}

// NewSessionID issues an id for a fresh conversation session
func (s *ChatService) NewSessionID() string {
	return uuid.New().String()
}

// Transcript returns a copy of the session's transcript
func (s *ChatService) Transcript(sessionID string) []models.Turn {
	if v, ok := s.transcripts.Get(sessionID); ok {
		turns := v.([]models.Turn)
		out := make([]models.Turn, len(turns))
		copy(out, turns)
		return out
	}
	return nil
}

func (s *ChatService) setTranscript(sessionID string, turns []models.Turn) {
	s.transcripts.Set(sessionID, turns, cache.DefaultExpiration)
}

// ClearSession drops the session's transcript
func (s *ChatService) ClearSession(sessionID string) {
	s.transcripts.Delete(sessionID)
}

// Respond processes one text turn for the user. On success the reply is
// returned and the transcript is extended with the user turn, the model
// turn and any tool results. On a turn-level failure (model unavailable,
// no candidates) the transcript is left untouched so the next message can
// retry cleanly.
func (s *ChatService) Respond(ctx context.Context, userID int64, sessionID, userText string) (string, error) {
	if strings.TrimSpace(userText) == "" {
		return "", fmt.Errorf("%w: empty user input", models.ErrInvalidArgument)
	}

	system, err := s.buildSystemInstruction(ctx, userID)
	if err != nil {
		return "", err
	}

	history := s.Transcript(sessionID)
	userTurn := models.Turn{Role: models.RoleUser, Parts: []models.TurnPart{models.TextPart(userText)}}

	resp, err := s.invoker.Invoke(ctx, &llm.Request{
		System: system,
		Turns:  append(append([]models.Turn{}, history...), userTurn),
		Tools:  s.registry.List(),
	})
	if err != nil {
		logging.WithTurn(userID, sessionID).Error("model invocation failed", "error", err)
		return "", err
	}

	modelParts := make([]models.TurnPart, 0, len(resp.TextSegments)+len(resp.ToolCalls))
	for _, seg := range resp.TextSegments {
		modelParts = append(modelParts, models.TextPart(seg))
	}

	// Every tool call runs in the order received, independently of the
	// others: one failure never blocks the calls after it.
	var resultParts []models.TurnPart
	var outcomes []string
	for _, call := range resp.ToolCalls {
		if call.ID == "" {
			call.ID = uuid.New().String()
		}
		modelParts = append(modelParts, models.ToolCallPart(call))

		outcome, execErr := s.registry.Execute(ctx, userID, call.Name, call.Args)
		result := models.ToolResult{CallID: call.ID, Name: call.Name, Payload: outcome}
		if execErr != nil {
			logging.WithTurn(userID, sessionID).Warn("tool call failed", "tool", call.Name, "error", execErr)
			result.Payload = execErr.Error()
			result.IsError = true
			outcomes = append(outcomes, fmt.Sprintf("[%s] error: %s", call.Name, execErr.Error()))
		} else {
			outcomes = append(outcomes, outcome)
		}
		resultParts = append(resultParts, models.ToolResultPart(result))
	}

	reply := composeReply(resp.TextSegments, outcomes)
	if reply == "" {
		reply = fallbackReply
		modelParts = append(modelParts, models.TextPart(fallbackReply))
	}

	updated := append(history, userTurn, models.Turn{Role: models.RoleModel, Parts: modelParts})
	if len(resultParts) > 0 {
		updated = append(updated, models.Turn{Role: models.RoleTool, Parts: resultParts})
	}
	s.setTranscript(sessionID, updated)

	logging.WithTurn(userID, sessionID).Info("turn completed",
		"tool_calls", len(resp.ToolCalls), "reply_chars", len(reply))
	return reply, nil
}

// RespondAudio transcribes the recording and processes the transcript as
// a text turn. A transcription failure terminates the turn before any
// model call.
func (s *ChatService) RespondAudio(ctx context.Context, userID int64, sessionID string, audioBytes []byte, mimeType string) (string, error) {
	text, err := s.transcriber.Transcribe(ctx, audioBytes, mimeType)
	if err != nil {
		logging.WithTurn(userID, sessionID).Error("transcription failed", "error", err)
		return "", fmt.Errorf("could not understand audio: %w", err)
	}
	return s.Respond(ctx, userID, sessionID, text)
}

// composeReply concatenates the model's own text segments and appends the
// tool outcome messages below, separated clearly. If the model produced
// only tool calls, the outcomes become the entire reply.
func composeReply(segments, outcomes []string) string {
	var parts []string
	if text := strings.TrimSpace(strings.Join(segments, "\n\n")); text != "" {
		parts = append(parts, text)
	}
	if len(outcomes) > 0 {
		parts = append(parts, strings.Join(outcomes, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// buildSystemInstruction assembles the per-turn system context: current
// time, a schema hint for the profile document, the most recent log
// entries and the user's active tasks.
func (s *ChatService) buildSystemInstruction(ctx context.Context, userID int64) (string, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	logs, err := s.store.ListLogs(ctx, userID, s.contextLogLimit)
	if err != nil {
		return "", err
	}
	tasks, err := s.store.ListTasks(ctx, userID, nil)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are a personal life-tracking assistant. You help the user capture thoughts, manage tasks and maintain their background profile.\n\n")
	b.WriteString("Use the available tools whenever the user shares something worth recording:\n")
	b.WriteString("- add_log_entry for thoughts, events, decisions and feelings\n")
	b.WriteString("- manage_tasks to add, update or list tasks\n")
	b.WriteString("- update_background_info for lasting facts about the user (location, goals, habits)\n")
	b.WriteString("One message may warrant several tool calls. Always confirm in plain language what you did.\n\n")

	fmt.Fprintf(&b, "Current time: %s\n\n", time.Now().UTC().Format("Monday, 2 January 2006 15:04 MST"))

	profileJSON, _ := json.Marshal(profile)
	fmt.Fprintf(&b, "Background profile (nested JSON; merge updates into this structure):\n%s\n\n", profileJSON)

	if len(logs) > 0 {
		fmt.Fprintf(&b, "Most recent log entries (newest first, up to %d):\n", s.contextLogLimit)
		for _, e := range logs {
			category := e.Category
			if category == "" {
				category = models.CategoryNote
			}
			fmt.Fprintf(&b, "- [%s] %s: %s\n", e.CreatedAt.Format("2006-01-02"), category, e.Content)
		}
		b.WriteString("\n")
	}

	var active []models.Task
	for _, t := range tasks {
		if t.Status != models.TaskStatusCompleted {
			active = append(active, t)
		}
	}
	if len(active) > 0 {
		b.WriteString("Open and in-progress tasks:\n")
		for _, t := range active {
			fmt.Fprintf(&b, "- #%d [%s] %s", t.ID, t.Status, t.Description)
			if t.Deadline != nil {
				fmt.Fprintf(&b, " (due %s)", t.Deadline.Format("2006-01-02"))
			}
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
