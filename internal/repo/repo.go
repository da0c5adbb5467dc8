// Package repo declares the storage port of the points ledger. Three
// implementations live in the subpackages: pg (PostgreSQL via pgx),
// sqlite (file-backed, via sqlx) and memory (tests and the no-database
// fallback mode).
package repo

import (
	"context"

	"github.com/guildpoints/points-ledger/internal/model/achievement"
	"github.com/guildpoints/points-ledger/internal/model/email"
	"github.com/guildpoints/points-ledger/internal/model/points"
)

// LedgerTx is the set of mutations that must land atomically for a single
// balance change. Implementations hold an exclusive lock on the affected
// user row for the lifetime of the transaction.
type LedgerTx interface {
	// BalanceForUpdate returns the current balance and whether an account
	// row exists, locking the row until the transaction ends.
	BalanceForUpdate(ctx context.Context, userID string) (int64, bool, error)
	SaveBalance(ctx context.Context, userID string, balance int64) error
	AppendTransaction(ctx context.Context, t *points.Transaction) error
	// BumpStats folds one mutation into the per-user rollup, creating the
	// row on first activity.
	BumpStats(ctx context.Context, userID string, earned, spent, newBalance int64) error
	// AwardAchievement inserts the award row and increments the rollup
	// counter. Returns false without error when the (user, type) pair is
	// already recorded.
	AwardAchievement(ctx context.Context, a *achievement.Achievement) (bool, error)
}

type Store interface {
	// InTx runs fn inside a single storage transaction; any error rolls
	// everything back.
	InTx(ctx context.Context, fn func(tx LedgerTx) error) error

	Balance(ctx context.Context, userID string) (int64, error)
	Leaderboard(ctx context.Context, limit int) ([]points.LeaderboardEntry, error)
	Rank(ctx context.Context, userID string) (int64, error)
	Totals(ctx context.Context) (points.Totals, error)
	// Transactions returns newest-first history; empty userID means all users.
	Transactions(ctx context.Context, userID string, limit int) ([]points.Transaction, error)
	UserStats(ctx context.Context, userID string) (points.Stats, error)
	DeleteAccount(ctx context.Context, userID string) error

	AchievementTypes(ctx context.Context, userID string) (map[string]struct{}, error)
	UserAchievements(ctx context.Context, userID string) ([]achievement.Achievement, error)
	RecentAchievements(ctx context.Context, limit int) ([]achievement.Achievement, error)

	EmailStore

	Ping(ctx context.Context) error
	Close() error
}

type EmailStore interface {
	// UpsertPendingEmail rewrites the user's pending submission if one
	// exists, otherwise inserts a fresh pending row. Reports whether an
	// existing submission was overwritten.
	UpsertPendingEmail(ctx context.Context, userID, username, address string) (bool, error)
	// EmailSubmission returns the user's most recent submission.
	EmailSubmission(ctx context.Context, userID string) (email.Submission, error)
	EmailSubmissions(ctx context.Context) ([]email.Submission, error)
	HasProcessedEmail(ctx context.Context, userID string) (bool, error)
	MarkEmailProcessed(ctx context.Context, id int64) error
	DeleteEmailSubmission(ctx context.Context, id int64) error
	ClearProcessedEmails(ctx context.Context) (int64, error)
	EmailCounts(ctx context.Context) (email.Counts, error)
}
