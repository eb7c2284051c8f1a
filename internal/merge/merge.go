// Package merge implements the pure document-combination rules used for
// background profile updates and the deadline normalizer used for tasks.
package merge

import (
	"fmt"
	"reflect"
	"time"

	"lifetracker/internal/models"
)

// DeepMerge combines patch into base and returns the result. Neither input
// is mutated. Rules, applied per key in patch:
//   - both values are objects: recurse
//   - both values are arrays: patch elements not already present in base
//     are appended (set-like, first-appearance order preserved)
//   - anything else: the patch value replaces the base value
func DeepMerge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}

	for k, pv := range patch {
		bv, exists := out[k]
		if !exists {
			out[k] = pv
			continue
		}

		bm, bIsMap := bv.(map[string]any)
		pm, pIsMap := pv.(map[string]any)
		if bIsMap && pIsMap {
			out[k] = DeepMerge(bm, pm)
			continue
		}

		bs, bIsSlice := bv.([]any)
		ps, pIsSlice := pv.([]any)
		if bIsSlice && pIsSlice {
			out[k] = unionSlices(bs, ps)
			continue
		}

		// Scalar or mismatched types: newer value wins
		out[k] = pv
	}
	return out
}

func unionSlices(base, patch []any) []any {
	out := make([]any, len(base), len(base)+len(patch))
	copy(out, base)
	for _, pe := range patch {
		if !containsElement(out, pe) {
			out = append(out, pe)
		}
	}
	return out
}

func containsElement(s []any, e any) bool {
	for _, v := range s {
		if reflect.DeepEqual(v, e) {
			return true
		}
	}
	return false
}

// Deadline layouts accepted from the model, tried in order. Timestamps
// without a zone are taken as UTC.
var deadlineLayouts = []struct {
	layout   string
	dateOnly bool
}{
	{time.RFC3339, false},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02", true},
}

// NormalizeDeadline turns a free-text deadline from the model into an
// absolute UTC timestamp. A full timestamp passes through unchanged apart
// from timezone normalization; a bare date is combined with now's UTC
// time-of-day. Anything unparseable fails with ErrInvalidDeadline — a bad
// deadline rejects the operation, it is never silently dropped.
func NormalizeDeadline(raw string, now time.Time) (time.Time, error) {
	for _, dl := range deadlineLayouts {
		t, err := time.ParseInLocation(dl.layout, raw, time.UTC)
		if err != nil {
			continue
		}
		if dl.dateOnly {
			clock := now.UTC()
			t = time.Date(t.Year(), t.Month(), t.Day(),
				clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse %q", models.ErrInvalidDeadline, raw)
}
