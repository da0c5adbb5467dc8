package email

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
)

// Submission is one email address handed in for order verification.
// A user has at most one pending submission at any time: re-submitting
// while pending overwrites the address instead of adding a row.
type Submission struct {
	SubmittedAt time.Time  `json:"submitted_at" db:"submitted_at"`
	ProcessedAt *time.Time `json:"processed_at" db:"processed_at"`
	AdminNotes  *string    `json:"admin_notes" db:"admin_notes"`
	UserID      string     `json:"user_id" db:"user_id"`
	Username    string     `json:"username" db:"username"`
	Address     string     `json:"email_address" db:"email_address"`
	Status      Status     `json:"status" db:"status"`
	ID          int64      `json:"id" db:"id"`
}

type Counts struct {
	Total     int64 `json:"total" db:"total"`
	Pending   int64 `json:"pending" db:"pending"`
	Processed int64 `json:"processed" db:"processed"`
}
