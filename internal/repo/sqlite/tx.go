package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/guildpoints/points-ledger/internal/model/achievement"
	"github.com/guildpoints/points-ledger/internal/model/points"
)

type ledgerTx struct {
	tx *sqlx.Tx
}

func (t *ledgerTx) BalanceForUpdate(ctx context.Context, userID string) (int64, bool, error) {
	// SQLite takes a database-level write lock at BEGIN IMMEDIATE, so a
	// plain read inside the transaction is already exclusive.
	var balance int64
	err := t.tx.GetContext(ctx, &balance,
		`SELECT balance FROM accounts WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read account %s: %w", userID, err)
	}
	return balance, true, nil
}

func (t *ledgerTx) SaveBalance(ctx context.Context, userID string, balance int64) error {
	now := time.Now().UTC()
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO accounts (user_id, balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id)
		 DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`,
		userID, balance, now, now)
	if err != nil {
		return fmt.Errorf("failed to save balance for user %s: %w", userID, err)
	}
	return nil
}

func (t *ledgerTx) AppendTransaction(ctx context.Context, tr *points.Transaction) error {
	tr.CreatedAt = time.Now().UTC()
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions
		     (user_id, delta, kind, actor_id, reason, old_balance, new_balance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.UserID, tr.Delta, tr.Kind, tr.ActorID, tr.Reason,
		tr.OldBalance, tr.NewBalance, tr.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append transaction for user %s: %w", tr.UserID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		tr.ID = id
	}
	return nil
}

func (t *ledgerTx) BumpStats(ctx context.Context, userID string, earned, spent, newBalance int64) error {
	now := time.Now().UTC()
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO user_stats
		     (user_id, total_points_earned, total_points_spent,
		      highest_balance, transactions_count, first_activity, last_activity)
		 VALUES (?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		     total_points_earned = total_points_earned + excluded.total_points_earned,
		     total_points_spent = total_points_spent + excluded.total_points_spent,
		     highest_balance = MAX(highest_balance, excluded.highest_balance),
		     transactions_count = transactions_count + 1,
		     last_activity = excluded.last_activity`,
		userID, earned, spent, newBalance, now, now)
	if err != nil {
		return fmt.Errorf("failed to bump stats for user %s: %w", userID, err)
	}
	return nil
}

func (t *ledgerTx) AwardAchievement(ctx context.Context, a *achievement.Achievement) (bool, error) {
	a.EarnedAt = time.Now().UTC()
	res, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO achievements
		     (user_id, achievement_type, achievement_name, points_earned, earned_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.UserID, a.Type, a.Name, a.PointsEarned, a.EarnedAt)
	if err != nil {
		return false, fmt.Errorf("failed to award achievement %s to user %s: %w", a.Type, a.UserID, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, nil
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}

	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO user_stats (user_id, achievements_count, first_activity, last_activity)
		 VALUES (?, 1, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		     achievements_count = achievements_count + 1,
		     last_activity = excluded.last_activity`,
		a.UserID, a.EarnedAt, a.EarnedAt)
	if err != nil {
		return false, fmt.Errorf("failed to bump achievements count for user %s: %w", a.UserID, err)
	}
	return true, nil
}
