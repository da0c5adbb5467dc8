// Package ledger owns the points balance of every user: clamped deltas,
// absolute sets, the append-only audit trail, the per-user rollup stats
// and the achievement award workflow. All mutations of one balance change
// land in a single storage transaction.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guildpoints/points-ledger/internal/model"
	"github.com/guildpoints/points-ledger/internal/model/achievement"
	"github.com/guildpoints/points-ledger/internal/model/points"
	"github.com/guildpoints/points-ledger/internal/repo"
	"github.com/guildpoints/points-ledger/internal/serviceerrs"
)

type Service struct {
	store repo.Store
	log   *slog.Logger
}

func New(store repo.Store, log *slog.Logger) *Service {
	return &Service{
		store: store,
		log:   log,
	}
}

// ApplyDelta credits or debits a user and returns the new balance. The
// balance is clamped at zero: a debit larger than the current balance
// caps at zero instead of failing. The audit row keeps the raw requested
// delta; the stats rollup keeps the applied change.
func (s *Service) ApplyDelta(ctx context.Context,
	userID string, delta int64, actorID, reason *string,
) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: empty user ID", serviceerrs.ErrInvalidArgument)
	}
	if delta == 0 {
		return 0, fmt.Errorf("%w: zero delta", serviceerrs.ErrInvalidArgument)
	}

	kind := points.KindAdd
	if delta < 0 {
		kind = points.KindRemove
	}

	var newBalance int64
	err := s.store.InTx(ctx, func(tx repo.LedgerTx) error {
		oldBalance, _, err := tx.BalanceForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		newBalance = oldBalance + delta
		if newBalance < 0 {
			newBalance = 0
		}

		return applyMutation(ctx, tx, &points.Transaction{
			UserID:     userID,
			Delta:      delta,
			Kind:       kind,
			ActorID:    actorID,
			Reason:     reason,
			OldBalance: oldBalance,
			NewBalance: newBalance,
		})
	})
	if err != nil {
		return 0, err //nolint: wrapcheck // error from wrapped function
	}

	s.log.LogAttrs(ctx,
		slog.LevelInfo,
		"points updated",
		slog.String("user_id", userID),
		slog.Int64("delta", delta),
		slog.Int64("balance", newBalance),
	)
	return newBalance, nil
}

// SetBalance overwrites a user's balance with an absolute amount.
// Negative amounts are rejected.
func (s *Service) SetBalance(ctx context.Context,
	userID string, amount int64, actorID, reason *string,
) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: empty user ID", serviceerrs.ErrInvalidArgument)
	}
	if amount < 0 {
		return 0, fmt.Errorf("%w: negative amount", serviceerrs.ErrInvalidArgument)
	}

	err := s.store.InTx(ctx, func(tx repo.LedgerTx) error {
		oldBalance, _, err := tx.BalanceForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		return applyMutation(ctx, tx, &points.Transaction{
			UserID:     userID,
			Delta:      amount - oldBalance,
			Kind:       points.KindSet,
			ActorID:    actorID,
			Reason:     reason,
			OldBalance: oldBalance,
			NewBalance: amount,
		})
	})
	if err != nil {
		return 0, err //nolint: wrapcheck // error from wrapped function
	}

	s.log.LogAttrs(ctx,
		slog.LevelInfo,
		"points set",
		slog.String("user_id", userID),
		slog.Int64("balance", amount),
	)
	return amount, nil
}

// applyMutation persists the new balance, the audit row and the stats
// bump. Must run inside an open ledger transaction.
func applyMutation(ctx context.Context, tx repo.LedgerTx, tr *points.Transaction) error {
	if err := tx.SaveBalance(ctx, tr.UserID, tr.NewBalance); err != nil {
		return err
	}
	if err := tx.AppendTransaction(ctx, tr); err != nil {
		return err
	}

	var earned, spent int64
	if applied := tr.NewBalance - tr.OldBalance; applied > 0 {
		earned = applied
	} else {
		spent = -applied
	}
	return tx.BumpStats(ctx, tr.UserID, earned, spent, tr.NewBalance)
}

// EvaluateAchievements awards every catalog entry whose predicate holds
// for the given balance and is not yet recorded for the user. Reward
// points are credited through the regular mutation path with a nil actor.
// Awards never re-trigger evaluation, so reward credits cannot loop.
// The call is idempotent.
func (s *Service) EvaluateAchievements(ctx context.Context,
	userID string, balance int64,
) ([]string, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user ID", serviceerrs.ErrInvalidArgument)
	}

	existing, err := s.store.AchievementTypes(ctx, userID)
	if err != nil {
		return nil, err //nolint: wrapcheck // error from wrapped function
	}

	var awarded []string
	for _, def := range Catalog {
		if _, ok := existing[def.Type]; ok {
			continue
		}

		emailProcessed := false
		if def.RequiresEmail {
			emailProcessed, err = s.store.HasProcessedEmail(ctx, userID)
			if err != nil {
				return awarded, err //nolint: wrapcheck // error from wrapped function
			}
		}
		if !def.due(balance, emailProcessed) {
			continue
		}

		granted, err := s.award(ctx, userID, def)
		if err != nil {
			return awarded, err
		}
		if granted {
			awarded = append(awarded, def.Type)
		}
	}
	return awarded, nil
}

func (s *Service) award(ctx context.Context, userID string, def Definition) (bool, error) {
	granted := false
	err := s.store.InTx(ctx, func(tx repo.LedgerTx) error {
		ok, err := tx.AwardAchievement(ctx, &achievement.Achievement{
			UserID:       userID,
			Type:         def.Type,
			Name:         def.Name,
			PointsEarned: def.Reward,
		})
		if err != nil {
			return err
		}
		if !ok {
			// a concurrent evaluation got there first
			return nil
		}
		granted = true

		if def.Reward == 0 {
			return nil
		}
		oldBalance, _, err := tx.BalanceForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		reason := "Achievement: " + def.Name
		return applyMutation(ctx, tx, &points.Transaction{
			UserID:     userID,
			Delta:      def.Reward,
			Kind:       points.KindAdd,
			Reason:     &reason,
			OldBalance: oldBalance,
			NewBalance: oldBalance + def.Reward,
		})
	})
	if err != nil {
		return false, err //nolint: wrapcheck // error from wrapped function
	}

	if granted {
		s.log.LogAttrs(ctx,
			slog.LevelInfo,
			"achievement awarded",
			slog.String("user_id", userID),
			slog.String("type", def.Type),
			slog.Int64("reward", def.Reward),
		)
	}
	return granted, nil
}

// GetBalance returns 0 for unknown users; absence is a valid zero
// balance, not an error.
func (s *Service) GetBalance(ctx context.Context, userID string) (int64, error) {
	return s.store.Balance(ctx, userID) //nolint: wrapcheck // error from wrapped function
}

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]points.LeaderboardEntry, error) {
	return s.store.Leaderboard(ctx, clampLimit(limit, model.DefaultLeaderboardLimit)) //nolint: wrapcheck // error from wrapped function
}

func (s *Service) Rank(ctx context.Context, userID string) (int64, error) {
	return s.store.Rank(ctx, userID) //nolint: wrapcheck // error from wrapped function
}

func (s *Service) Totals(ctx context.Context) (points.Totals, error) {
	return s.store.Totals(ctx) //nolint: wrapcheck // error from wrapped function
}

// Transactions returns newest-first history; empty userID means all users.
func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]points.Transaction, error) {
	return s.store.Transactions(ctx, userID, clampLimit(limit, model.DefaultHistoryLimit)) //nolint: wrapcheck // error from wrapped function
}

func (s *Service) UserStats(ctx context.Context, userID string) (points.Stats, error) {
	return s.store.UserStats(ctx, userID) //nolint: wrapcheck // error from wrapped function
}

func (s *Service) UserAchievements(ctx context.Context, userID string) ([]achievement.Achievement, error) {
	return s.store.UserAchievements(ctx, userID) //nolint: wrapcheck // error from wrapped function
}

func (s *Service) RecentAchievements(ctx context.Context, limit int) ([]achievement.Achievement, error) {
	return s.store.RecentAchievements(ctx, clampLimit(limit, model.DefaultHistoryLimit)) //nolint: wrapcheck // error from wrapped function
}

// DeleteAccount removes the balance row; audit rows stay.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user ID", serviceerrs.ErrInvalidArgument)
	}
	return s.store.DeleteAccount(ctx, userID) //nolint: wrapcheck // error from wrapped function
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > model.MaxListLimit {
		return model.MaxListLimit
	}
	return limit
}
