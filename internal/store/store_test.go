package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"lifetracker/internal/database"
	"lifetracker/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(); err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	return New(db)
}

func newTestUser(t *testing.T, st *Store) *models.User {
	t.Helper()
	user, err := st.GetOrCreateUserByEmail(context.Background(), "test@example.com", "Test User")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func TestGetOrCreateUserByEmail_Idempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := st.GetOrCreateUserByEmail(ctx, "a@example.com", "A")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := st.GetOrCreateUserByEmail(ctx, "a@example.com", "A")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %d vs %d", first.ID, second.ID)
	}
}

func TestCreateLog_EmptyContent(t *testing.T) {
	st := newTestStore(t)
	user := newTestUser(t, st)

	_, err := st.CreateLog(context.Background(), user.ID, "   ", "")
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}

func TestTaskStatusInvariant(t *testing.T) {
	st := newTestStore(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	task, err := st.CreateTask(ctx, user.ID, "Write the report", nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.CompletedAt != nil {
		t.Fatal("new task has completed_at set")
	}

	// Transition into completed sets completed_at
	completed := models.TaskStatusCompleted
	updated, err := st.UpdateTask(ctx, user.ID, task.ID, models.TaskUpdate{Status: &completed})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Status != models.TaskStatusCompleted || updated.CompletedAt == nil {
		t.Errorf("after completing: status=%s completed_at=%v", updated.Status, updated.CompletedAt)
	}

	// Transition out of completed clears completed_at
	open := models.TaskStatusOpen
	updated, err = st.UpdateTask(ctx, user.ID, task.ID, models.TaskUpdate{Status: &open})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Status != models.TaskStatusOpen || updated.CompletedAt != nil {
		t.Errorf("after reopening: status=%s completed_at=%v", updated.Status, updated.CompletedAt)
	}

	// Invariant holds for every task after the updates
	tasks, err := st.ListTasks(ctx, user.ID, nil)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	for _, tk := range tasks {
		gotCompleted := tk.CompletedAt != nil
		wantCompleted := tk.Status == models.TaskStatusCompleted
		if gotCompleted != wantCompleted {
			t.Errorf("task %d violates invariant: status=%s completed_at=%v", tk.ID, tk.Status, tk.CompletedAt)
		}
	}
}

func TestUpdateTask_EmptyUpdateIsNoOp(t *testing.T) {
	st := newTestStore(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	task, err := st.CreateTask(ctx, user.ID, "Plan trip", nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	unchanged, err := st.UpdateTask(ctx, user.ID, task.ID, models.TaskUpdate{})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if unchanged.Description != task.Description || unchanged.Status != task.Status {
		t.Errorf("no-op update changed the task: %+v", unchanged)
	}
}

func TestUpdateTask_WrongOwnerIsNotFound(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	owner, _ := st.GetOrCreateUserByEmail(ctx, "owner@example.com", "Owner")
	other, _ := st.GetOrCreateUserByEmail(ctx, "other@example.com", "Other")

	task, err := st.CreateTask(ctx, owner.ID, "Private task", nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	desc := "hijacked"
	_, err = st.UpdateTask(ctx, other.ID, task.ID, models.TaskUpdate{Description: &desc})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListTasks_Ordering(t *testing.T) {
	st := newTestStore(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	openTask, _ := st.CreateTask(ctx, user.ID, "open one", nil)
	progressTask, _ := st.CreateTask(ctx, user.ID, "busy one", nil)
	doneTask, _ := st.CreateTask(ctx, user.ID, "done one", nil)

	inProgress := models.TaskStatusInProgress
	if _, err := st.UpdateTask(ctx, user.ID, progressTask.ID, models.TaskUpdate{Status: &inProgress}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	completed := models.TaskStatusCompleted
	if _, err := st.UpdateTask(ctx, user.ID, doneTask.ID, models.TaskUpdate{Status: &completed}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	tasks, err := st.ListTasks(ctx, user.ID, nil)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	wantOrder := []int64{progressTask.ID, openTask.ID, doneTask.ID}
	for i, id := range wantOrder {
		if tasks[i].ID != id {
			t.Errorf("position %d: got task %d (%s), want %d", i, tasks[i].ID, tasks[i].Status, id)
		}
	}
}

func TestReplaceTasks_Reconciliation(t *testing.T) {
	st := newTestStore(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	keep, _ := st.CreateTask(ctx, user.ID, "keep me", nil)
	drop, _ := st.CreateTask(ctx, user.ID, "drop me", nil)

	// Submit a list missing the second task, with the first renamed and a
	// brand new row
	submitted := []models.Task{
		{ID: keep.ID, Description: "kept and renamed", Status: models.TaskStatusInProgress},
		{Description: "freshly added", Status: models.TaskStatusOpen},
	}
	if err := st.ReplaceTasks(ctx, user.ID, submitted); err != nil {
		t.Fatalf("ReplaceTasks: %v", err)
	}

	tasks, err := st.ListTasks(ctx, user.ID, nil)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}

	byID := map[int64]models.Task{}
	for _, tk := range tasks {
		byID[tk.ID] = tk
		if tk.ID == drop.ID {
			t.Errorf("task %d should have been deleted", drop.ID)
		}
	}
	if got := byID[keep.ID]; got.Description != "kept and renamed" || got.Status != models.TaskStatusInProgress {
		t.Errorf("kept task not updated: %+v", got)
	}
}

func TestReplaceTasks_CompletedAtFollowsStatus(t *testing.T) {
	st := newTestStore(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	task, _ := st.CreateTask(ctx, user.ID, "finish me", nil)

	submitted := []models.Task{
		{ID: task.ID, Description: "finish me", Status: models.TaskStatusCompleted},
	}
	if err := st.ReplaceTasks(ctx, user.ID, submitted); err != nil {
		t.Fatalf("ReplaceTasks: %v", err)
	}

	got, err := st.GetTask(ctx, user.ID, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.CompletedAt == nil {
		t.Error("completed task has no completed_at after bulk replace")
	}
}

func TestReplaceTasks_RepairsMissingCompletedAt(t *testing.T) {
	st := newTestStore(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	task, _ := st.CreateTask(ctx, user.ID, "corrupted row", nil)
	completed := models.TaskStatusCompleted
	if _, err := st.UpdateTask(ctx, user.ID, task.ID, models.TaskUpdate{Status: &completed}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	// Simulate a row that lost its completion timestamp
	if _, err := st.db.ExecContext(ctx,
		`UPDATE tasks SET completed_at = NULL WHERE id = ?`, task.ID); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	submitted := []models.Task{
		{ID: task.ID, Description: "corrupted row", Status: models.TaskStatusCompleted},
	}
	if err := st.ReplaceTasks(ctx, user.ID, submitted); err != nil {
		t.Fatalf("ReplaceTasks: %v", err)
	}

	got, err := st.GetTask(ctx, user.ID, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.CompletedAt == nil {
		t.Error("completed task still has no completed_at after bulk replace")
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)

	got, err := parseTime("2026-09-01T10:30:00Z")
	if err != nil || !got.Equal(want) {
		t.Errorf("RFC3339: got %v, %v", got, err)
	}

	got, err = parseTime("2026-09-01 10:30:00")
	if err != nil || !got.Equal(want) {
		t.Errorf("CURRENT_TIMESTAMP layout: got %v, %v", got, err)
	}

	if _, err := parseTime("not-a-timestamp"); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}

func TestListLogs_CorruptTimestampSurfaces(t *testing.T) {
	st := newTestStore(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	if _, err := st.db.ExecContext(ctx,
		`INSERT INTO log_entries (user_id, content, created_at) VALUES (?, ?, ?)`,
		user.ID, "bad row", "garbage"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := st.ListLogs(ctx, user.ID, 0); err == nil {
		t.Error("expected error for corrupt stored timestamp")
	}
}

func TestReplaceLogs_Reconciliation(t *testing.T) {
	st := newTestStore(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	keep, _ := st.CreateLog(ctx, user.ID, "keep", models.CategoryNote)
	drop, _ := st.CreateLog(ctx, user.ID, "drop", models.CategoryNote)

	submitted := []models.LogEntry{
		{ID: keep.ID, Content: "keep edited", Category: models.CategoryDecision},
	}
	if err := st.ReplaceLogs(ctx, user.ID, submitted); err != nil {
		t.Fatalf("ReplaceLogs: %v", err)
	}

	logs, err := st.ListLogs(ctx, user.ID, 0)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if logs[0].ID == drop.ID {
		t.Errorf("log %d should have been deleted", drop.ID)
	}
	if logs[0].Content != "keep edited" || logs[0].Category != models.CategoryDecision {
		t.Errorf("kept log not updated: %+v", logs[0])
	}
}

func TestPutProfile_MergeAndReplaceModes(t *testing.T) {
	st := newTestStore(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	if _, err := st.PutProfile(ctx, user.ID, map[string]any{
		"goals":        []any{"run"},
		"user_profile": map[string]any{"name": "Dominik"},
	}, models.ProfileWriteMerge); err != nil {
		t.Fatalf("first put: %v", err)
	}

	merged, err := st.PutProfile(ctx, user.ID, map[string]any{
		"user_profile": map[string]any{"location": map[string]any{"city": "Berlin"}},
	}, models.ProfileWriteMerge)
	if err != nil {
		t.Fatalf("merge put: %v", err)
	}

	profile := merged["user_profile"].(map[string]any)
	if profile["name"] != "Dominik" {
		t.Errorf("merge lost existing field: %v", merged)
	}
	if profile["location"].(map[string]any)["city"] != "Berlin" {
		t.Errorf("merge missed new field: %v", merged)
	}

	// Replace mode overwrites wholesale
	replaced, err := st.PutProfile(ctx, user.ID, map[string]any{"only": "this"}, models.ProfileWriteReplace)
	if err != nil {
		t.Fatalf("replace put: %v", err)
	}
	if len(replaced) != 1 || replaced["only"] != "this" {
		t.Errorf("replace did not overwrite: %v", replaced)
	}

	stored, err := st.GetProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if len(stored) != 1 || stored["only"] != "this" {
		t.Errorf("stored profile = %v, want the replaced document", stored)
	}
}

func TestCountDigestsSince(t *testing.T) {
	st := newTestStore(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := st.CreateDigestLog(ctx, user.ID, "digest body"); err != nil {
			t.Fatalf("CreateDigestLog: %v", err)
		}
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	count, err := st.CountDigestsSince(ctx, user.ID, midnight)
	if err != nil {
		t.Fatalf("CountDigestsSince: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	tomorrow := midnight.Add(24 * time.Hour)
	count, err = st.CountDigestsSince(ctx, user.ID, tomorrow)
	if err != nil {
		t.Fatalf("CountDigestsSince: %v", err)
	}
	if count != 0 {
		t.Errorf("count after cutoff = %d, want 0", count)
	}
}

func TestPurgeUser_DeletesEverything(t *testing.T) {
	st := newTestStore(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	st.CreateLog(ctx, user.ID, "a log", "")
	st.CreateTask(ctx, user.ID, "a task", nil)
	st.PutProfile(ctx, user.ID, map[string]any{"k": "v"}, models.ProfileWriteMerge)
	st.CreateDigestLog(ctx, user.ID, "a digest")

	if err := st.PurgeUser(ctx, user.ID); err != nil {
		t.Fatalf("PurgeUser: %v", err)
	}

	if _, err := st.GetUser(ctx, user.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("user still present after purge: %v", err)
	}
	logs, _ := st.ListLogs(ctx, user.ID, 0)
	if len(logs) != 0 {
		t.Errorf("%d logs survived purge", len(logs))
	}
	tasks, _ := st.ListTasks(ctx, user.ID, nil)
	if len(tasks) != 0 {
		t.Errorf("%d tasks survived purge", len(tasks))
	}
	profile, _ := st.GetProfile(ctx, user.ID)
	if len(profile) != 0 {
		t.Errorf("profile survived purge: %v", profile)
	}
}
