package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"lifetracker/internal/merge"
	"lifetracker/internal/models"
	"lifetracker/internal/store"
)

// RecordsHandler serves the log, task and profile collections edited
// through the UI tables.
type RecordsHandler struct {
	store *store.Store
}

// NewRecordsHandler creates a new records handler
func NewRecordsHandler(st *store.Store) *RecordsHandler {
	return &RecordsHandler{store: st}
}

// ---------- Log entries ----------

// ListLogs returns all of the user's log entries, newest first
// GET /api/logs
func (h *RecordsHandler) ListLogs(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	logs, err := h.store.ListLogs(c.Context(), user.ID, 0)
	if err != nil {
		return storeError(c, err)
	}
	if logs == nil {
		logs = []models.LogEntry{}
	}
	return c.JSON(logs)
}

type createLogRequest struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

// CreateLog adds a log entry from the UI form
// POST /api/logs
func (h *RecordsHandler) CreateLog(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req createLogRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	entry, err := h.store.CreateLog(c.Context(), user.ID, req.Content, req.Category)
	if err != nil {
		return storeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// ReplaceLogs reconciles the stored log list against the edited table
// PUT /api/logs
func (h *RecordsHandler) ReplaceLogs(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var submitted []models.LogEntry
	if err := c.BodyParser(&submitted); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := h.store.ReplaceLogs(c.Context(), user.ID, submitted); err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Logs updated"})
}

// ---------- Tasks ----------

// ListTasks returns the user's tasks in display order, optionally
// filtered by ?status=
// GET /api/tasks
func (h *RecordsHandler) ListTasks(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var filter *models.TaskStatus
	if raw := c.Query("status"); raw != "" {
		status := models.TaskStatus(raw)
		if !status.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status filter"})
		}
		filter = &status
	}

	tasks, err := h.store.ListTasks(c.Context(), user.ID, filter)
	if err != nil {
		return storeError(c, err)
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return c.JSON(tasks)
}

type createTaskRequest struct {
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
}

// CreateTask adds a task from the UI form. The deadline, if present, is an
// absolute RFC3339 timestamp (the form submits date and time combined).
// POST /api/tasks
func (h *RecordsHandler) CreateTask(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req createTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var deadline *time.Time
	if req.Deadline != "" {
		t, derr := merge.NormalizeDeadline(req.Deadline, time.Now())
		if derr != nil {
			return storeError(c, derr)
		}
		deadline = &t
	}

	task, err := h.store.CreateTask(c.Context(), user.ID, req.Description, deadline)
	if err != nil {
		return storeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// ReplaceTasks reconciles the stored task list against the edited table
// PUT /api/tasks
func (h *RecordsHandler) ReplaceTasks(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var submitted []models.Task
	if err := c.BodyParser(&submitted); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := h.store.ReplaceTasks(c.Context(), user.ID, submitted); err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Task changes saved"})
}

// ---------- Background profile ----------

// GetProfile returns the user's current background document
// GET /api/profile
func (h *RecordsHandler) GetProfile(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	profile, err := h.store.GetProfile(c.Context(), user.ID)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(profile)
}

type putProfileRequest struct {
	Content map[string]any `json:"content"`
	Replace bool           `json:"replace"`
}

// PutProfile writes the profile document. UI edits set replace=true and
// overwrite the document wholesale; merge mode goes through the merge
// engine.
// PUT /api/profile
func (h *RecordsHandler) PutProfile(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req putProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	mode := models.ProfileWriteMerge
	if req.Replace {
		mode = models.ProfileWriteReplace
	}
	result, err := h.store.PutProfile(c.Context(), user.ID, req.Content, mode)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(result)
}

// storeError maps store failures to HTTP responses
func storeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidArgument), errors.Is(err, models.ErrInvalidDeadline),
		errors.Is(err, models.ErrMalformedPayload):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal error"})
	}
}
