package models

import "time"

// Log entry categories. The column is free text; these are the values the
// assistant is prompted to pick from.
const (
	CategoryNote        = "Note"
	CategoryDecision    = "Decision"
	CategoryAction      = "Action"
	CategoryPlan        = "Plan"
	CategoryObservation = "Observation"
	CategoryReflection  = "Reflection"
	CategoryFeeling     = "Feeling"
)

// LogEntry is a free-form journal entry. Immutable once created except
// through the bulk-replace edit path used by the table editor.
type LogEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
