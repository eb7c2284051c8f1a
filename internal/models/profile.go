package models

import "time"

// BackgroundProfile is the user's most recent background document: an
// arbitrarily nested JSON object of profile facts (goals, values, habits,
// free-form user_profile fields) with no fixed schema. Fields accumulate
// over the user's lifetime via deep merge.
type BackgroundProfile struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Content   map[string]any `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
}

// ProfileWriteMode selects how PutProfile applies the submitted document
type ProfileWriteMode string

const (
	// ProfileWriteMerge deep-merges the document into the stored one.
	// Used for model-driven updates.
	ProfileWriteMerge ProfileWriteMode = "merge"
	// ProfileWriteReplace overwrites the stored document wholesale,
	// bypassing the merge engine. Used for UI edits, which are the user's
	// authoritative intent and must not be merged against stale
	// model-written state.
	ProfileWriteReplace ProfileWriteMode = "replace"
)
