package achievement

import "time"

// Achievement is an immutable award record. At most one row exists per
// (UserID, Type) pair, enforced by a uniqueness constraint in storage.
type Achievement struct {
	EarnedAt     time.Time `json:"earned_at" db:"earned_at"`
	UserID       string    `json:"user_id" db:"user_id"`
	Type         string    `json:"achievement_type" db:"achievement_type"`
	Name         string    `json:"achievement_name" db:"achievement_name"`
	ID           int64     `json:"id" db:"id"`
	PointsEarned int64     `json:"points_earned" db:"points_earned"`
}
