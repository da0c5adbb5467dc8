package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/guildpoints/points-ledger/internal/model/achievement"
	"github.com/guildpoints/points-ledger/internal/model/points"
)

// ledgerTx runs the mutation set of one balance change inside an open
// pgx transaction. The account row stays locked until commit.
type ledgerTx struct {
	conn connectionPool
}

func (t *ledgerTx) BalanceForUpdate(ctx context.Context, userID string) (int64, bool, error) {
	var balance int64
	err := t.conn.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to lock account %s: %w", userID, err)
	}
	return balance, true, nil
}

func (t *ledgerTx) SaveBalance(ctx context.Context, userID string, balance int64) error {
	_, err := t.conn.Exec(ctx,
		`INSERT INTO accounts (user_id, balance)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id)
		 DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()`,
		userID, balance)
	if err != nil {
		return fmt.Errorf("failed to save balance for user %s: %w", userID, err)
	}
	return nil
}

func (t *ledgerTx) AppendTransaction(ctx context.Context, tr *points.Transaction) error {
	err := t.conn.QueryRow(ctx,
		`INSERT INTO transactions
		     (user_id, delta, kind, actor_id, reason, old_balance, new_balance)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		tr.UserID, tr.Delta, tr.Kind, tr.ActorID, tr.Reason,
		tr.OldBalance, tr.NewBalance,
	).Scan(&tr.ID, &tr.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append transaction for user %s: %w", tr.UserID, err)
	}
	return nil
}

func (t *ledgerTx) BumpStats(ctx context.Context, userID string, earned, spent, newBalance int64) error {
	_, err := t.conn.Exec(ctx,
		`INSERT INTO user_stats
		     (user_id, total_points_earned, total_points_spent,
		      highest_balance, transactions_count)
		 VALUES ($1, $2, $3, $4, 1)
		 ON CONFLICT (user_id) DO UPDATE SET
		     total_points_earned = user_stats.total_points_earned + EXCLUDED.total_points_earned,
		     total_points_spent = user_stats.total_points_spent + EXCLUDED.total_points_spent,
		     highest_balance = GREATEST(user_stats.highest_balance, EXCLUDED.highest_balance),
		     transactions_count = user_stats.transactions_count + 1,
		     last_activity = now()`,
		userID, earned, spent, newBalance)
	if err != nil {
		return fmt.Errorf("failed to bump stats for user %s: %w", userID, err)
	}
	return nil
}

func (t *ledgerTx) AwardAchievement(ctx context.Context, a *achievement.Achievement) (bool, error) {
	err := t.conn.QueryRow(ctx,
		`INSERT INTO achievements
		     (user_id, achievement_type, achievement_name, points_earned)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, achievement_type) DO NOTHING
		 RETURNING id, earned_at`,
		a.UserID, a.Type, a.Name, a.PointsEarned,
	).Scan(&a.ID, &a.EarnedAt)
	if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
		// already awarded
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to award achievement %s to user %s: %w", a.Type, a.UserID, err)
	}

	_, err = t.conn.Exec(ctx,
		`INSERT INTO user_stats (user_id, achievements_count)
		 VALUES ($1, 1)
		 ON CONFLICT (user_id) DO UPDATE SET
		     achievements_count = user_stats.achievements_count + 1,
		     last_activity = now()`,
		a.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to bump achievements count for user %s: %w", a.UserID, err)
	}
	return true, nil
}
