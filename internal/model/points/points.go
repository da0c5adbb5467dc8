package points

import "time"

type Kind string

const (
	KindAdd    Kind = "add"
	KindRemove Kind = "remove"
	KindSet    Kind = "set"
)

// Transaction is an append-only audit record of a single balance mutation.
// ActorID is nil for mutations made by the system itself.
type Transaction struct {
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	ActorID    *string   `json:"actor_id" db:"actor_id"`
	Reason     *string   `json:"reason" db:"reason"`
	UserID     string    `json:"user_id" db:"user_id"`
	Kind       Kind      `json:"kind" db:"kind"`
	ID         int64     `json:"id" db:"id"`
	Delta      int64     `json:"delta" db:"delta"`
	OldBalance int64     `json:"old_balance" db:"old_balance"`
	NewBalance int64     `json:"new_balance" db:"new_balance"`
}

type LeaderboardEntry struct {
	UserID  string `json:"user_id" db:"user_id"`
	Balance int64  `json:"balance" db:"balance"`
}

type Totals struct {
	Users  int64 `json:"users" db:"users"`
	Points int64 `json:"points" db:"points"`
}

// Stats is the denormalized per-user rollup kept alongside the audit trail,
// so analytics reads don't re-aggregate transactions.
type Stats struct {
	FirstActivity     time.Time `json:"first_activity" db:"first_activity"`
	LastActivity      time.Time `json:"last_activity" db:"last_activity"`
	UserID            string    `json:"user_id" db:"user_id"`
	TotalEarned       int64     `json:"total_points_earned" db:"total_points_earned"`
	TotalSpent        int64     `json:"total_points_spent" db:"total_points_spent"`
	HighestBalance    int64     `json:"highest_balance" db:"highest_balance"`
	TransactionCount  int64     `json:"transactions_count" db:"transactions_count"`
	AchievementsCount int64     `json:"achievements_count" db:"achievements_count"`
}
