package pg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/guildpoints/points-ledger/internal/model/achievement"
	"github.com/guildpoints/points-ledger/internal/model/email"
	"github.com/guildpoints/points-ledger/internal/model/points"
	"github.com/guildpoints/points-ledger/internal/repo"
	"github.com/guildpoints/points-ledger/internal/serviceerrs"
)

type Store struct {
	pool Pool
	log  *slog.Logger
}

func NewStore(pool Pool, log *slog.Logger) *Store {
	return &Store{
		pool: pool,
		log:  log,
	}
}

func (s *Store) InTx(ctx context.Context, fn func(tx repo.LedgerTx) error) error {
	txLogic := func(ctx context.Context, conn connectionPool) (any, error) {
		return struct{}{}, fn(&ledgerTx{conn: conn})
	}

	withTX := func() (struct{}, error) {
		return WithTX[struct{}](ctx, s.pool, s.log, txLogic)
	}

	_, err := WithRetry[struct{}](withTX, 0)
	if err != nil {
		return err //nolint: wrapcheck // error from wrapped function
	}
	return nil
}

func (s *Store) Balance(ctx context.Context, userID string) (int64, error) {
	balanceLogic := func() (int64, error) {
		var balance int64
		err := s.pool.QueryRow(ctx,
			`SELECT balance FROM accounts WHERE user_id = $1`,
			userID,
		).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to get balance for user %s: %w", userID, err)
		}
		return balance, nil
	}

	return WithRetry[int64](balanceLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]points.LeaderboardEntry, error) {
	leaderboardLogic := func() ([]points.LeaderboardEntry, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT user_id, balance
			 FROM accounts
			 WHERE balance > 0
			 ORDER BY balance DESC, user_id
			 LIMIT $1`,
			limit,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query leaderboard: %w", err)
		}
		defer rows.Close()

		var entries []points.LeaderboardEntry
		for rows.Next() {
			var e points.LeaderboardEntry
			if err := rows.Scan(&e.UserID, &e.Balance); err != nil {
				return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
			}
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read leaderboard rows: %w", err)
		}
		return entries, nil
	}

	return WithRetry[[]points.LeaderboardEntry](leaderboardLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) Rank(ctx context.Context, userID string) (int64, error) {
	rankLogic := func() (int64, error) {
		var rank int64
		err := s.pool.QueryRow(ctx,
			`SELECT COUNT(*) + 1
			 FROM accounts
			 WHERE balance > COALESCE(
				(SELECT balance FROM accounts WHERE user_id = $1), 0)`,
			userID,
		).Scan(&rank)
		if err != nil {
			return 0, fmt.Errorf("failed to get rank for user %s: %w", userID, err)
		}
		return rank, nil
	}

	return WithRetry[int64](rankLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) Totals(ctx context.Context) (points.Totals, error) {
	totalsLogic := func() (points.Totals, error) {
		var t points.Totals
		err := s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FILTER (WHERE balance > 0),
			        COALESCE(SUM(balance), 0)
			 FROM accounts`,
		).Scan(&t.Users, &t.Points)
		if err != nil {
			return points.Totals{}, fmt.Errorf("failed to get totals: %w", err)
		}
		return t, nil
	}

	return WithRetry[points.Totals](totalsLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) Transactions(ctx context.Context, userID string, limit int) ([]points.Transaction, error) {
	transactionsLogic := func() ([]points.Transaction, error) {
		const query = `SELECT id, user_id, delta, kind, actor_id, reason,
		                      old_balance, new_balance, created_at
		               FROM transactions`

		var (
			rows pgx.Rows
			err  error
		)
		if userID == "" {
			rows, err = s.pool.Query(ctx,
				query+` ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
		} else {
			rows, err = s.pool.Query(ctx,
				query+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
				userID, limit)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query transactions: %w", err)
		}
		defer rows.Close()

		var list []points.Transaction
		for rows.Next() {
			var t points.Transaction
			if err := rows.Scan(&t.ID, &t.UserID, &t.Delta, &t.Kind,
				&t.ActorID, &t.Reason, &t.OldBalance, &t.NewBalance, &t.CreatedAt,
			); err != nil {
				return nil, fmt.Errorf("failed to scan transaction row: %w", err)
			}
			list = append(list, t)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read transaction rows: %w", err)
		}
		return list, nil
	}

	return WithRetry[[]points.Transaction](transactionsLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) UserStats(ctx context.Context, userID string) (points.Stats, error) {
	statsLogic := func() (points.Stats, error) {
		st := points.Stats{UserID: userID}
		err := s.pool.QueryRow(ctx,
			`SELECT total_points_earned, total_points_spent, highest_balance,
			        transactions_count, achievements_count,
			        first_activity, last_activity
			 FROM user_stats WHERE user_id = $1`,
			userID,
		).Scan(&st.TotalEarned, &st.TotalSpent, &st.HighestBalance,
			&st.TransactionCount, &st.AchievementsCount,
			&st.FirstActivity, &st.LastActivity)
		if errors.Is(err, pgx.ErrNoRows) {
			return points.Stats{UserID: userID}, nil
		}
		if err != nil {
			return points.Stats{}, fmt.Errorf("failed to get stats for user %s: %w", userID, err)
		}
		return st, nil
	}

	return WithRetry[points.Stats](statsLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) DeleteAccount(ctx context.Context, userID string) error {
	deleteLogic := func() (struct{}, error) {
		_, err := s.pool.Exec(ctx,
			`DELETE FROM accounts WHERE user_id = $1`, userID)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to delete account %s: %w", userID, err)
		}
		return struct{}{}, nil
	}

	_, err := WithRetry[struct{}](deleteLogic, 0)
	return err //nolint: wrapcheck // error from wrapped function
}

func (s *Store) AchievementTypes(ctx context.Context, userID string) (map[string]struct{}, error) {
	typesLogic := func() (map[string]struct{}, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT achievement_type FROM achievements WHERE user_id = $1`,
			userID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query achievement types: %w", err)
		}
		defer rows.Close()

		types := make(map[string]struct{})
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				return nil, fmt.Errorf("failed to scan achievement type: %w", err)
			}
			types[t] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read achievement types: %w", err)
		}
		return types, nil
	}

	return WithRetry[map[string]struct{}](typesLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) UserAchievements(ctx context.Context, userID string) ([]achievement.Achievement, error) {
	listLogic := func() ([]achievement.Achievement, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT id, user_id, achievement_type, achievement_name,
			        points_earned, earned_at
			 FROM achievements
			 WHERE user_id = $1
			 ORDER BY earned_at DESC, id DESC`,
			userID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query achievements: %w", err)
		}
		return scanAchievements(rows)
	}

	return WithRetry[[]achievement.Achievement](listLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) RecentAchievements(ctx context.Context, limit int) ([]achievement.Achievement, error) {
	recentLogic := func() ([]achievement.Achievement, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT id, user_id, achievement_type, achievement_name,
			        points_earned, earned_at
			 FROM achievements
			 ORDER BY earned_at DESC, id DESC
			 LIMIT $1`,
			limit,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query recent achievements: %w", err)
		}
		return scanAchievements(rows)
	}

	return WithRetry[[]achievement.Achievement](recentLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func scanAchievements(rows pgx.Rows) ([]achievement.Achievement, error) {
	defer rows.Close()

	var list []achievement.Achievement
	for rows.Next() {
		var a achievement.Achievement
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Name,
			&a.PointsEarned, &a.EarnedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan achievement row: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read achievement rows: %w", err)
	}
	return list, nil
}

func (s *Store) UpsertPendingEmail(ctx context.Context, userID, username, address string) (bool, error) {
	upsertLogic := func(ctx context.Context, conn connectionPool) (any, error) {
		tag, err := conn.Exec(ctx,
			`UPDATE email_submissions
			 SET username = $2, email_address = $3, submitted_at = now()
			 WHERE user_id = $1 AND status = 'pending'`,
			userID, username, address)
		if err != nil {
			return false, fmt.Errorf("failed to update pending submission: %w", err)
		}
		if tag.RowsAffected() > 0 {
			return true, nil
		}

		_, err = conn.Exec(ctx,
			`INSERT INTO email_submissions (user_id, username, email_address)
			 VALUES ($1, $2, $3)`,
			userID, username, address)
		if err != nil {
			return false, fmt.Errorf("failed to insert submission: %w", err)
		}
		return false, nil
	}

	withTX := func() (bool, error) {
		return WithTX[bool](ctx, s.pool, s.log, upsertLogic)
	}

	return WithRetry[bool](withTX, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) EmailSubmission(ctx context.Context, userID string) (email.Submission, error) {
	findLogic := func() (email.Submission, error) {
		var sub email.Submission
		err := s.pool.QueryRow(ctx,
			`SELECT id, user_id, username, email_address, submitted_at,
			        status, processed_at, admin_notes
			 FROM email_submissions
			 WHERE user_id = $1
			 ORDER BY submitted_at DESC, id DESC
			 LIMIT 1`,
			userID,
		).Scan(&sub.ID, &sub.UserID, &sub.Username, &sub.Address,
			&sub.SubmittedAt, &sub.Status, &sub.ProcessedAt, &sub.AdminNotes)
		if errors.Is(err, pgx.ErrNoRows) {
			return email.Submission{}, serviceerrs.ErrNotFound
		}
		if err != nil {
			return email.Submission{}, fmt.Errorf("failed to get submission for user %s: %w", userID, err)
		}
		return sub, nil
	}

	return WithRetry[email.Submission](findLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) EmailSubmissions(ctx context.Context) ([]email.Submission, error) {
	listLogic := func() ([]email.Submission, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT id, user_id, username, email_address, submitted_at,
			        status, processed_at, admin_notes
			 FROM email_submissions
			 ORDER BY submitted_at DESC, id DESC`,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query submissions: %w", err)
		}
		defer rows.Close()

		var list []email.Submission
		for rows.Next() {
			var sub email.Submission
			if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Username, &sub.Address,
				&sub.SubmittedAt, &sub.Status, &sub.ProcessedAt, &sub.AdminNotes,
			); err != nil {
				return nil, fmt.Errorf("failed to scan submission row: %w", err)
			}
			list = append(list, sub)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read submission rows: %w", err)
		}
		return list, nil
	}

	return WithRetry[[]email.Submission](listLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) HasProcessedEmail(ctx context.Context, userID string) (bool, error) {
	existsLogic := func() (bool, error) {
		var exists bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(
				SELECT 1 FROM email_submissions
				WHERE user_id = $1 AND status = 'processed')`,
			userID,
		).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("failed to check processed email for user %s: %w", userID, err)
		}
		return exists, nil
	}

	return WithRetry[bool](existsLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) MarkEmailProcessed(ctx context.Context, id int64) error {
	markLogic := func() (struct{}, error) {
		tag, err := s.pool.Exec(ctx,
			`UPDATE email_submissions
			 SET status = 'processed', processed_at = now()
			 WHERE id = $1`,
			id)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to mark submission %d processed: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return struct{}{}, serviceerrs.ErrNotFound
		}
		return struct{}{}, nil
	}

	_, err := WithRetry[struct{}](markLogic, 0)
	return err //nolint: wrapcheck // error from wrapped function
}

func (s *Store) DeleteEmailSubmission(ctx context.Context, id int64) error {
	deleteLogic := func() (struct{}, error) {
		tag, err := s.pool.Exec(ctx,
			`DELETE FROM email_submissions WHERE id = $1`, id)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to delete submission %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return struct{}{}, serviceerrs.ErrNotFound
		}
		return struct{}{}, nil
	}

	_, err := WithRetry[struct{}](deleteLogic, 0)
	return err //nolint: wrapcheck // error from wrapped function
}

func (s *Store) ClearProcessedEmails(ctx context.Context) (int64, error) {
	clearLogic := func() (int64, error) {
		tag, err := s.pool.Exec(ctx,
			`DELETE FROM email_submissions WHERE status = 'processed'`)
		if err != nil {
			return 0, fmt.Errorf("failed to clear processed submissions: %w", err)
		}
		return tag.RowsAffected(), nil
	}

	return WithRetry[int64](clearLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) EmailCounts(ctx context.Context) (email.Counts, error) {
	countsLogic := func() (email.Counts, error) {
		var c email.Counts
		err := s.pool.QueryRow(ctx,
			`SELECT COUNT(*),
			        COUNT(*) FILTER (WHERE status = 'pending'),
			        COUNT(*) FILTER (WHERE status = 'processed')
			 FROM email_submissions`,
		).Scan(&c.Total, &c.Pending, &c.Processed)
		if err != nil {
			return email.Counts{}, fmt.Errorf("failed to get submission counts: %w", err)
		}
		return c, nil
	}

	return WithRetry[email.Counts](countsLogic, 0) //nolint: wrapcheck // error from wrapped function
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping the DB: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
