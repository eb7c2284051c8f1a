// Package store owns the persisted entity types (log entries, tasks,
// background profile, digest log) and their per-user CRUD operations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lifetracker/internal/database"
	"lifetracker/internal/merge"
	"lifetracker/internal/models"
)

// Store provides per-user access to all persisted collections. All
// mutations are scoped by user id, so distinct users never contend.
type Store struct {
	db *database.DB
}

// New creates a store on top of an initialized database
func New(db *database.DB) *Store {
	return &Store{db: db}
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Fall back to the layout SQLite's CURRENT_TIMESTAMP produces
		if fallback, fbErr := time.Parse("2006-01-02 15:04:05", s); fbErr == nil {
			return fallback.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// ---------- Users ----------

// GetOrCreateUserByEmail fetches the user with the given email, creating
// the row on first contact.
func (s *Store) GetOrCreateUserByEmail(ctx context.Context, email, username string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrInvalidArgument)
	}

	u, err := s.getUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, created_at) VALUES (?, ?, ?)`,
		username, email, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	id, _ := res.LastInsertId()
	return &models.User{ID: id, Username: username, Email: email, CreatedAt: now}, nil
}

func (s *Store) getUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Username, &u.Email, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by id
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Email, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns all users, oldest first. Used by the digest job to
// fan out over recipients.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, email, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		var created string
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &created); err != nil {
			return nil, err
		}
		if u.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ---------- Log entries ----------

// CreateLog appends a log entry for the user
func (s *Store) CreateLog(ctx context.Context, userID int64, content, category string) (*models.LogEntry, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: log content is required", models.ErrInvalidArgument)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO log_entries (user_id, content, category, created_at) VALUES (?, ?, ?, ?)`,
		userID, content, category, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to create log entry: %w", err)
	}
	id, _ := res.LastInsertId()
	return &models.LogEntry{ID: id, UserID: userID, Content: content, Category: category, CreatedAt: now}, nil
}

// ListLogs returns the user's log entries, newest first. limit <= 0 means
// no limit.
func (s *Store) ListLogs(ctx context.Context, userID int64, limit int) ([]models.LogEntry, error) {
	query := `SELECT id, user_id, content, COALESCE(category, ''), created_at
		FROM log_entries WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list log entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var created string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Content, &e.Category, &created); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReplaceLogs reconciles the stored log list against the submitted one in
// a single transaction: rows absent from the submission are deleted, the
// rest get their editable fields updated, and rows with a zero id are
// inserted. Used when the user edits the log table in the UI.
func (s *Store) ReplaceLogs(ctx context.Context, userID int64, submitted []models.LogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	keep := make(map[int64]bool, len(submitted))
	for _, e := range submitted {
		if e.ID != 0 {
			keep[e.ID] = true
		}
	}

	if err := deleteAbsent(ctx, tx, "log_entries", userID, keep); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, e := range submitted {
		if e.ID == 0 {
			if strings.TrimSpace(e.Content) == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO log_entries (user_id, content, category, created_at) VALUES (?, ?, ?, ?)`,
				userID, e.Content, e.Category, formatTime(now)); err != nil {
				return fmt.Errorf("failed to insert log entry: %w", err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE log_entries SET content = ?, category = ? WHERE id = ? AND user_id = ?`,
			e.Content, e.Category, e.ID, userID); err != nil {
			return fmt.Errorf("failed to update log entry %d: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// ---------- Tasks ----------

// CreateTask adds a new open task
func (s *Store) CreateTask(ctx context.Context, userID int64, description string, deadline *time.Time) (*models.Task, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: task description is required", models.ErrInvalidArgument)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (user_id, description, status, deadline, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, description, models.TaskStatusOpen, nullTime(deadline), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	id, _ := res.LastInsertId()
	return &models.Task{
		ID:          id,
		UserID:      userID,
		Description: description,
		Status:      models.TaskStatusOpen,
		Deadline:    deadline,
		CreatedAt:   now,
	}, nil
}

// GetTask fetches one task, scoped to the owning user. A task id that
// exists but belongs to another user is reported as not found.
func (s *Store) GetTask(ctx context.Context, userID, taskID int64) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, description, status, deadline, created_at, completed_at
		FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: task %d", models.ErrNotFound, taskID)
	}
	return t, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var created string
	var deadline, completed sql.NullString
	err := row.Scan(&t.ID, &t.UserID, &t.Description, &t.Status, &deadline, &created, &completed)
	if err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if deadline.Valid {
		d, err := parseTime(deadline.String)
		if err != nil {
			return nil, err
		}
		t.Deadline = &d
	}
	if completed.Valid {
		c, err := parseTime(completed.String)
		if err != nil {
			return nil, err
		}
		t.CompletedAt = &c
	}
	return &t, nil
}

// UpdateTask applies a partial update to a task. The completed_at column
// follows the status transition: set when moving into completed, cleared
// when moving out, untouched otherwise.
func (s *Store) UpdateTask(ctx context.Context, userID, taskID int64, upd models.TaskUpdate) (*models.Task, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	current, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if upd.Empty() {
		return current, nil
	}

	if upd.Description != nil {
		current.Description = *upd.Description
	}
	if upd.Deadline != nil {
		current.Deadline = upd.Deadline
	}
	if upd.Status != nil && *upd.Status != current.Status {
		if *upd.Status == models.TaskStatusCompleted {
			now := time.Now().UTC()
			current.CompletedAt = &now
		} else {
			current.CompletedAt = nil
		}
		current.Status = *upd.Status
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET description = ?, status = ?, deadline = ?, completed_at = ? WHERE id = ? AND user_id = ?`,
		current.Description, current.Status, nullTime(current.Deadline), nullTime(current.CompletedAt),
		taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update task %d: %w", taskID, err)
	}
	return current, nil
}

// ListTasks returns the user's tasks ordered for display: in_progress
// first, then open, then completed, newest-first within each group. A
// non-nil filter restricts to one status.
func (s *Store) ListTasks(ctx context.Context, userID int64, filter *models.TaskStatus) ([]models.Task, error) {
	query := `SELECT id, user_id, description, status, deadline, created_at, completed_at
		FROM tasks WHERE user_id = ?`
	args := []any{userID}
	if filter != nil {
		query += ` AND status = ?`
		args = append(args, *filter)
	}
	query += ` ORDER BY CASE status
			WHEN 'in_progress' THEN 0
			WHEN 'open' THEN 1
			ELSE 2
		END, created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ReplaceTasks reconciles the stored task list against the submitted one
// in a single transaction, mirroring ReplaceLogs. Status changes applied
// through this path maintain the completed_at invariant the same way
// UpdateTask does.
func (s *Store) ReplaceTasks(ctx context.Context, userID int64, submitted []models.Task) error {
	for _, t := range submitted {
		if t.Status != "" && !t.Status.Valid() {
			return fmt.Errorf("%w: invalid task status %q", models.ErrInvalidArgument, t.Status)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	keep := make(map[int64]bool, len(submitted))
	for _, t := range submitted {
		if t.ID != 0 {
			keep[t.ID] = true
		}
	}

	if err := deleteAbsent(ctx, tx, "tasks", userID, keep); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, t := range submitted {
		status := t.Status
		if status == "" {
			status = models.TaskStatusOpen
		}

		if t.ID == 0 {
			if strings.TrimSpace(t.Description) == "" {
				continue
			}
			var completedAt any
			if status == models.TaskStatusCompleted {
				completedAt = formatTime(now)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tasks (user_id, description, status, deadline, created_at, completed_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				userID, t.Description, status, nullTime(t.Deadline), formatTime(now), completedAt); err != nil {
				return fmt.Errorf("failed to insert task: %w", err)
			}
			continue
		}

		// completed_at derives from the stored status vs the submitted one
		var storedStatus models.TaskStatus
		var storedCompleted sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT status, completed_at FROM tasks WHERE id = ? AND user_id = ?`,
			t.ID, userID).Scan(&storedStatus, &storedCompleted)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read task %d: %w", t.ID, err)
		}

		var completedAt any
		switch {
		case status == models.TaskStatusCompleted && storedStatus != models.TaskStatusCompleted:
			completedAt = formatTime(now)
		case status == models.TaskStatusCompleted && storedCompleted.Valid:
			completedAt = storedCompleted.String
		case status == models.TaskStatusCompleted:
			// Stored row violated the invariant; repair instead of
			// writing an empty string
			completedAt = formatTime(now)
		default:
			completedAt = nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET description = ?, status = ?, deadline = ?, completed_at = ? WHERE id = ? AND user_id = ?`,
			t.Description, status, nullTime(t.Deadline), completedAt, t.ID, userID); err != nil {
			return fmt.Errorf("failed to update task %d: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

func deleteAbsent(ctx context.Context, tx *sql.Tx, table string, userID int64, keep map[int64]bool) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM `+table+` WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", table, err)
	}
	var toDelete []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if !keep[id] {
			toDelete = append(toDelete, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range toDelete {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	return nil
}

// ---------- Background profile ----------

// GetProfile returns the user's most recent background document, or an
// empty document if none exists yet.
func (s *Store) GetProfile(ctx context.Context, userID int64) (map[string]any, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM background_profiles WHERE user_id = ? ORDER BY id DESC LIMIT 1`,
		userID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("stored profile is not valid JSON: %w", err)
	}
	return doc, nil
}

// PutProfile writes a new profile revision. In merge mode the document is
// deep-merged into the stored one; in replace mode it overwrites the
// stored document wholesale, bypassing the merge engine. Replace is
// reserved for UI edits, which are authoritative.
func (s *Store) PutProfile(ctx context.Context, userID int64, doc map[string]any, mode models.ProfileWriteMode) (map[string]any, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: profile document is required", models.ErrMalformedPayload)
	}

	result := doc
	if mode == models.ProfileWriteMerge {
		base, err := s.GetProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		result = merge.DeepMerge(base, doc)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO background_profiles (user_id, content, created_at) VALUES (?, ?, ?)`,
		userID, string(encoded), formatTime(time.Now().UTC())); err != nil {
		return nil, fmt.Errorf("failed to write profile: %w", err)
	}
	return result, nil
}

// ---------- Digest log ----------

// CreateDigestLog appends a digest audit record
func (s *Store) CreateDigestLog(ctx context.Context, userID int64, content string) (*models.DigestLogEntry, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO digest_logs (user_id, content, created_at) VALUES (?, ?, ?)`,
		userID, content, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to create digest log: %w", err)
	}
	id, _ := res.LastInsertId()
	return &models.DigestLogEntry{ID: id, UserID: userID, Content: content, CreatedAt: now}, nil
}

// CountDigestsSince counts digest rows created at or after the cutoff.
// The rate limiter passes midnight UTC of the current day.
func (s *Store) CountDigestsSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM digest_logs WHERE user_id = ? AND created_at >= ?`,
		userID, formatTime(since)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count digests: %w", err)
	}
	return count, nil
}

// ListRecentDigests returns the user's latest digests, newest first
func (s *Store) ListRecentDigests(ctx context.Context, userID int64, limit int) ([]models.DigestLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, content, created_at FROM digest_logs
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list digests: %w", err)
	}
	defer rows.Close()

	var digests []models.DigestLogEntry
	for rows.Next() {
		var d models.DigestLogEntry
		var created string
		if err := rows.Scan(&d.ID, &d.UserID, &d.Content, &created); err != nil {
			return nil, err
		}
		if d.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		digests = append(digests, d)
	}
	return digests, rows.Err()
}

// ---------- Purge ----------

// PurgeUser deletes the user and every owned row in one transaction. Used
// when the user withdraws consent.
func (s *Store) PurgeUser(ctx context.Context, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"log_entries", "tasks", "background_profiles", "digest_logs"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to purge %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("failed to purge user: %w", err)
	}

	return tx.Commit()
}
