package audit

import "time"

// Entry is an immutable record of a state-changing action.
type Entry struct {
	ID          string    `json:"id,omitempty"`
	Description string    `json:"description"`
	Actor       string    `json:"actor"`
	OldValue    string    `json:"old_value"`
	NewValue    string    `json:"new_value"`
	Timestamp   time.Time `json:"timestamp"`
}
