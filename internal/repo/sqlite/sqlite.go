// Package sqlite implements the ledger storage port on a local SQLite file
// via sqlx with the CGo-free modernc driver. The schema is created inline
// at open time; SQLite serializes writers on its own, so transactions opened
// with _txlock=immediate give the same isolation the Postgres backend gets
// from row locks.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/guildpoints/points-ledger/internal/model/achievement"
	"github.com/guildpoints/points-ledger/internal/model/email"
	"github.com/guildpoints/points-ledger/internal/model/points"
	"github.com/guildpoints/points-ledger/internal/repo"
	"github.com/guildpoints/points-ledger/internal/serviceerrs"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    user_id TEXT PRIMARY KEY,
    balance INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accounts_balance ON accounts (balance DESC);

CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    delta INTEGER NOT NULL,
    kind TEXT NOT NULL,
    actor_id TEXT,
    reason TEXT,
    old_balance INTEGER NOT NULL,
    new_balance INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions (user_id);

CREATE TABLE IF NOT EXISTS achievements (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    achievement_type TEXT NOT NULL,
    achievement_name TEXT NOT NULL,
    points_earned INTEGER NOT NULL DEFAULT 0,
    earned_at TIMESTAMP NOT NULL,
    UNIQUE (user_id, achievement_type)
);
CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements (user_id);

CREATE TABLE IF NOT EXISTS user_stats (
    user_id TEXT PRIMARY KEY,
    total_points_earned INTEGER NOT NULL DEFAULT 0,
    total_points_spent INTEGER NOT NULL DEFAULT 0,
    highest_balance INTEGER NOT NULL DEFAULT 0,
    transactions_count INTEGER NOT NULL DEFAULT 0,
    achievements_count INTEGER NOT NULL DEFAULT 0,
    first_activity TIMESTAMP NOT NULL,
    last_activity TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS email_submissions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    username TEXT NOT NULL,
    email_address TEXT NOT NULL,
    submitted_at TIMESTAMP NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    processed_at TIMESTAMP,
    admin_notes TEXT
);
CREATE INDEX IF NOT EXISTS idx_email_submissions_user ON email_submissions (user_id);
`

type Store struct {
	db  *sqlx.DB
	log *slog.Logger
}

func Open(path string, log *slog.Logger) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite DB %s: %w", path, err)
	}
	// a single writer connection avoids SQLITE_BUSY churn
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx repo.LedgerTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin TX: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.LogAttrs(ctx,
				slog.LevelError,
				"failed to rollback TX",
				slog.Any("error", rbErr),
			)
		}
	}()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit TX: %w", err)
	}
	return nil
}

func (s *Store) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance,
		`SELECT balance FROM accounts WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance for user %s: %w", userID, err)
	}
	return balance, nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]points.LeaderboardEntry, error) {
	var entries []points.LeaderboardEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT user_id, balance
		 FROM accounts
		 WHERE balance > 0
		 ORDER BY balance DESC, user_id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	return entries, nil
}

func (s *Store) Rank(ctx context.Context, userID string) (int64, error) {
	var rank int64
	err := s.db.GetContext(ctx, &rank,
		`SELECT COUNT(*) + 1
		 FROM accounts
		 WHERE balance > COALESCE(
			(SELECT balance FROM accounts WHERE user_id = ?), 0)`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get rank for user %s: %w", userID, err)
	}
	return rank, nil
}

func (s *Store) Totals(ctx context.Context) (points.Totals, error) {
	var t points.Totals
	err := s.db.GetContext(ctx, &t,
		`SELECT COUNT(*) FILTER (WHERE balance > 0) AS users,
		        COALESCE(SUM(balance), 0) AS points
		 FROM accounts`)
	if err != nil {
		return points.Totals{}, fmt.Errorf("failed to get totals: %w", err)
	}
	return t, nil
}

func (s *Store) Transactions(ctx context.Context, userID string, limit int) ([]points.Transaction, error) {
	const query = `SELECT id, user_id, delta, kind, actor_id, reason,
	                      old_balance, new_balance, created_at
	               FROM transactions`

	var (
		list []points.Transaction
		err  error
	)
	if userID == "" {
		err = s.db.SelectContext(ctx, &list,
			query+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	} else {
		err = s.db.SelectContext(ctx, &list,
			query+` WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
			userID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return list, nil
}

func (s *Store) UserStats(ctx context.Context, userID string) (points.Stats, error) {
	var st points.Stats
	err := s.db.GetContext(ctx, &st,
		`SELECT user_id, total_points_earned, total_points_spent,
		        highest_balance, transactions_count, achievements_count,
		        first_activity, last_activity
		 FROM user_stats WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return points.Stats{UserID: userID}, nil
	}
	if err != nil {
		return points.Stats{}, fmt.Errorf("failed to get stats for user %s: %w", userID, err)
	}
	return st, nil
}

func (s *Store) DeleteAccount(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete account %s: %w", userID, err)
	}
	return nil
}

func (s *Store) AchievementTypes(ctx context.Context, userID string) (map[string]struct{}, error) {
	var list []string
	err := s.db.SelectContext(ctx, &list,
		`SELECT achievement_type FROM achievements WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievement types: %w", err)
	}

	types := make(map[string]struct{}, len(list))
	for _, t := range list {
		types[t] = struct{}{}
	}
	return types, nil
}

func (s *Store) UserAchievements(ctx context.Context, userID string) ([]achievement.Achievement, error) {
	var list []achievement.Achievement
	err := s.db.SelectContext(ctx, &list,
		`SELECT id, user_id, achievement_type, achievement_name,
		        points_earned, earned_at
		 FROM achievements
		 WHERE user_id = ?
		 ORDER BY earned_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	return list, nil
}

func (s *Store) RecentAchievements(ctx context.Context, limit int) ([]achievement.Achievement, error) {
	var list []achievement.Achievement
	err := s.db.SelectContext(ctx, &list,
		`SELECT id, user_id, achievement_type, achievement_name,
		        points_earned, earned_at
		 FROM achievements
		 ORDER BY earned_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent achievements: %w", err)
	}
	return list, nil
}

func (s *Store) UpsertPendingEmail(ctx context.Context, userID, username, address string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE email_submissions
		 SET username = ?, email_address = ?, submitted_at = ?
		 WHERE user_id = ? AND status = 'pending'`,
		username, address, now, userID)
	if err != nil {
		return false, fmt.Errorf("failed to update pending submission: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return true, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO email_submissions (user_id, username, email_address, submitted_at)
		 VALUES (?, ?, ?, ?)`,
		userID, username, address, now)
	if err != nil {
		return false, fmt.Errorf("failed to insert submission: %w", err)
	}
	return false, nil
}

func (s *Store) EmailSubmission(ctx context.Context, userID string) (email.Submission, error) {
	var sub email.Submission
	err := s.db.GetContext(ctx, &sub,
		`SELECT id, user_id, username, email_address, submitted_at,
		        status, processed_at, admin_notes
		 FROM email_submissions
		 WHERE user_id = ?
		 ORDER BY submitted_at DESC, id DESC
		 LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return email.Submission{}, serviceerrs.ErrNotFound
	}
	if err != nil {
		return email.Submission{}, fmt.Errorf("failed to get submission for user %s: %w", userID, err)
	}
	return sub, nil
}

func (s *Store) EmailSubmissions(ctx context.Context) ([]email.Submission, error) {
	var list []email.Submission
	err := s.db.SelectContext(ctx, &list,
		`SELECT id, user_id, username, email_address, submitted_at,
		        status, processed_at, admin_notes
		 FROM email_submissions
		 ORDER BY submitted_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	return list, nil
}

func (s *Store) HasProcessedEmail(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(
			SELECT 1 FROM email_submissions
			WHERE user_id = ? AND status = 'processed')`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check processed email for user %s: %w", userID, err)
	}
	return exists, nil
}

func (s *Store) MarkEmailProcessed(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE email_submissions
		 SET status = 'processed', processed_at = ?
		 WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark submission %d processed: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return serviceerrs.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteEmailSubmission(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM email_submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete submission %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return serviceerrs.ErrNotFound
	}
	return nil
}

func (s *Store) ClearProcessedEmails(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM email_submissions WHERE status = 'processed'`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear processed submissions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared submissions: %w", err)
	}
	return n, nil
}

func (s *Store) EmailCounts(ctx context.Context) (email.Counts, error) {
	var c email.Counts
	err := s.db.GetContext(ctx, &c,
		`SELECT COUNT(*) AS total,
		        COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		        COUNT(*) FILTER (WHERE status = 'processed') AS processed
		 FROM email_submissions`)
	if err != nil {
		return email.Counts{}, fmt.Errorf("failed to get submission counts: %w", err)
	}
	return c, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping sqlite DB: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close sqlite DB: %w", err)
	}
	return nil
}
