package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lifetracker/internal/merge"
	"lifetracker/internal/models"
	"lifetracker/internal/store"
)

// NewTaskTool creates the manage_tasks tool
func NewTaskTool(st *store.Store) *Tool {
	return &Tool{
		Name:        "manage_tasks",
		DisplayName: "Manage Tasks",
		Description: "Add, update or list the user's tasks. Use action=add with task_description to create a task, action=update with task_id to change status/description/deadline, and action=list to see current tasks.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"enum":        []string{"add", "update", "list"},
					"description": "The operation to perform",
				},
				"task_description": map[string]any{
					"type":        "string",
					"description": "Task description. Required for add, optional for update.",
				},
				"task_id": map[string]any{
					"type":        "integer",
					"description": "Id of the task to update. Required for update.",
				},
				"task_status": map[string]any{
					"type":        "string",
					"enum":        []string{"open", "in_progress", "completed"},
					"description": "New status for update, or filter for list",
				},
				"deadline": map[string]any{
					"type":        "string",
					"description": "Deadline as an ISO timestamp or bare date (YYYY-MM-DD)",
				},
			},
			"required": []string{"action"},
		},
		Execute: func(ctx context.Context, userID int64, args map[string]any) (string, error) {
			var req taskRequest
			if err := decodeArgs(args, &req); err != nil {
				return "", err
			}
			return req.run(ctx, st, userID)
		},
	}
}

type taskRequest struct {
	Action          string `json:"action"`
	TaskDescription string `json:"task_description"`
	TaskID          int64  `json:"task_id"`
	TaskStatus      string `json:"task_status"`
	Deadline        string `json:"deadline"`
}

func (r taskRequest) run(ctx context.Context, st *store.Store, userID int64) (string, error) {
	switch r.Action {
	case "add":
		return r.add(ctx, st, userID)
	case "update":
		return r.update(ctx, st, userID)
	case "list":
		return r.list(ctx, st, userID)
	default:
		return "", fmt.Errorf("%w: unknown action %q", models.ErrInvalidArgument, r.Action)
	}
}

func (r taskRequest) add(ctx context.Context, st *store.Store, userID int64) (string, error) {
	if strings.TrimSpace(r.TaskDescription) == "" {
		return "", fmt.Errorf("%w: task_description is required for add", models.ErrInvalidArgument)
	}

	var deadline *time.Time
	if r.Deadline != "" {
		t, err := merge.NormalizeDeadline(r.Deadline, time.Now())
		if err != nil {
			return "", err
		}
		deadline = &t
	}

	task, err := st.CreateTask(ctx, userID, r.TaskDescription, deadline)
	if err != nil {
		return "", err
	}

	if task.Deadline != nil {
		return fmt.Sprintf("Added task #%d: %s (due %s).", task.ID, task.Description,
			task.Deadline.Format("2006-01-02 15:04 MST")), nil
	}
	return fmt.Sprintf("Added task #%d: %s.", task.ID, task.Description), nil
}

func (r taskRequest) update(ctx context.Context, st *store.Store, userID int64) (string, error) {
	if r.TaskID == 0 {
		return "", fmt.Errorf("%w: task_id is required for update", models.ErrInvalidArgument)
	}

	var upd models.TaskUpdate
	if r.TaskDescription != "" {
		upd.Description = &r.TaskDescription
	}
	if r.TaskStatus != "" {
		status := models.TaskStatus(r.TaskStatus)
		upd.Status = &status
	}
	if r.Deadline != "" {
		t, err := merge.NormalizeDeadline(r.Deadline, time.Now())
		if err != nil {
			return "", err
		}
		upd.Deadline = &t
	}

	// An update with nothing to change is a no-op reported as success
	task, err := st.UpdateTask(ctx, userID, r.TaskID, upd)
	if err != nil {
		return "", err
	}
	if upd.Empty() {
		return fmt.Sprintf("Task #%d unchanged: %s [%s].", task.ID, task.Description, task.Status), nil
	}
	return fmt.Sprintf("Updated task #%d: %s [%s].", task.ID, task.Description, task.Status), nil
}

func (r taskRequest) list(ctx context.Context, st *store.Store, userID int64) (string, error) {
	var filter *models.TaskStatus
	if r.TaskStatus != "" {
		status := models.TaskStatus(r.TaskStatus)
		if !status.Valid() {
			return "", fmt.Errorf("%w: invalid task status %q", models.ErrInvalidArgument, r.TaskStatus)
		}
		filter = &status
	}

	tasks, err := st.ListTasks(ctx, userID, filter)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "No tasks found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current tasks (%d):\n", len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(&b, "- #%d [%s] %s", t.ID, t.Status, t.Description)
		if t.Deadline != nil {
			fmt.Fprintf(&b, " (due %s)", t.Deadline.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
