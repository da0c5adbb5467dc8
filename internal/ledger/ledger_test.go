package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildpoints/points-ledger/internal/model/points"
	"github.com/guildpoints/points-ledger/internal/repo/memory"
	"github.com/guildpoints/points-ledger/internal/serviceerrs"
)

func newTestService() *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(memory.New(), log)
}

func TestApplyDelta(t *testing.T) {
	tests := []struct {
		name    string
		deltas  []int64
		want    int64
		wantErr error
	}{
		{
			name:   "single credit",
			deltas: []int64{100},
			want:   100,
		},
		{
			name:   "credits accumulate",
			deltas: []int64{100, 50, 25},
			want:   175,
		},
		{
			name:   "debit below zero clamps",
			deltas: []int64{40, -100},
			want:   0,
		},
		{
			name:   "credit after clamp starts from zero",
			deltas: []int64{40, -100, 30},
			want:   30,
		},
		{
			name:    "zero delta rejected",
			deltas:  []int64{0},
			wantErr: serviceerrs.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService()
			ctx := context.Background()

			var (
				balance int64
				err     error
			)
			for _, d := range tt.deltas {
				balance, err = svc.ApplyDelta(ctx, "u1", d, nil, nil)
			}
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, balance)

			stored, err := svc.GetBalance(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored)
		})
	}
}

func TestApplyDeltaEmptyUser(t *testing.T) {
	svc := newTestService()

	_, err := svc.ApplyDelta(context.Background(), "", 10, nil, nil)
	require.ErrorIs(t, err, serviceerrs.ErrInvalidArgument)
}

func TestApplyDeltaAuditRow(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.ApplyDelta(ctx, "u1", 40, nil, nil)
	require.NoError(t, err)

	actor := "mod-1"
	reason := "spam cleanup"
	balance, err := svc.ApplyDelta(ctx, "u1", -100, &actor, &reason)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	history, err := svc.Transactions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// newest first; the audit row keeps the raw requested delta
	last := history[0]
	assert.Equal(t, int64(-100), last.Delta)
	assert.Equal(t, points.KindRemove, last.Kind)
	assert.Equal(t, int64(40), last.OldBalance)
	assert.Equal(t, int64(0), last.NewBalance)
	require.NotNil(t, last.ActorID)
	assert.Equal(t, "mod-1", *last.ActorID)
	require.NotNil(t, last.Reason)
	assert.Equal(t, "spam cleanup", *last.Reason)
}

func TestSetBalance(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.ApplyDelta(ctx, "u1", 150, nil, nil)
	require.NoError(t, err)

	balance, err := svc.SetBalance(ctx, "u1", 500, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	stored, err := svc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), stored)

	history, err := svc.Transactions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, points.KindSet, history[0].Kind)
	assert.Equal(t, int64(350), history[0].Delta)
	assert.Equal(t, int64(150), history[0].OldBalance)
	assert.Equal(t, int64(500), history[0].NewBalance)
}

func TestSetBalanceNegative(t *testing.T) {
	svc := newTestService()

	_, err := svc.SetBalance(context.Background(), "u1", -1, nil, nil)
	require.ErrorIs(t, err, serviceerrs.ErrInvalidArgument)
}

func TestGetBalanceUnknownUser(t *testing.T) {
	svc := newTestService()

	balance, err := svc.GetBalance(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestUserStatsRollup(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.ApplyDelta(ctx, "u1", 200, nil, nil)
	require.NoError(t, err)
	_, err = svc.ApplyDelta(ctx, "u1", -50, nil, nil)
	require.NoError(t, err)
	// clamped debit: only the applied part counts as spent
	_, err = svc.ApplyDelta(ctx, "u1", -500, nil, nil)
	require.NoError(t, err)

	stats, err := svc.UserStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), stats.TotalEarned)
	assert.Equal(t, int64(200), stats.TotalSpent)
	assert.Equal(t, int64(200), stats.HighestBalance)
	assert.Equal(t, int64(3), stats.TransactionCount)
	assert.False(t, stats.FirstActivity.IsZero())
	assert.False(t, stats.LastActivity.Before(stats.FirstActivity))
}

func TestLeaderboardExcludesZeroBalances(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	seed := map[string]int64{"A": 300, "C": 150, "D": 500}
	for id, amount := range seed {
		_, err := svc.SetBalance(ctx, id, amount, nil, nil)
		require.NoError(t, err)
	}
	_, err := svc.SetBalance(ctx, "B", 0, nil, nil)
	require.NoError(t, err)

	board, err := svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, "D", board[0].UserID)
	assert.Equal(t, int64(500), board[0].Balance)
	assert.Equal(t, "A", board[1].UserID)
	assert.Equal(t, "C", board[2].UserID)

	rank, err := svc.Rank(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)

	totals, err := svc.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), totals.Users)
	assert.Equal(t, int64(950), totals.Points)
}

func TestLeaderboardLimitClamped(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.SetBalance(ctx, "u1", 10, nil, nil)
	require.NoError(t, err)

	board, err := svc.Leaderboard(ctx, -5)
	require.NoError(t, err)
	assert.Len(t, board, 1)
}

func TestEvaluateAchievements(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	balance, err := svc.ApplyDelta(ctx, "u1", 150, nil, nil)
	require.NoError(t, err)

	awarded, err := svc.EvaluateAchievements(ctx, "u1", balance)
	require.NoError(t, err)
	assert.Equal(t, []string{TypeFirstPoints, TypeMilestone100}, awarded)

	// rewards landed on the balance through the regular mutation path
	stored, err := svc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(225), stored)

	got, err := svc.UserAchievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, a := range got {
		assert.NotEmpty(t, a.Name)
		assert.False(t, a.EarnedAt.IsZero())
	}

	history, err := svc.Transactions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.NotNil(t, history[0].Reason)
	assert.Contains(t, *history[0].Reason, "Achievement:")
}

func TestEvaluateAchievementsIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	balance, err := svc.ApplyDelta(ctx, "u1", 150, nil, nil)
	require.NoError(t, err)

	first, err := svc.EvaluateAchievements(ctx, "u1", balance)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	stored, err := svc.GetBalance(ctx, "u1")
	require.NoError(t, err)

	again, err := svc.EvaluateAchievements(ctx, "u1", stored)
	require.NoError(t, err)
	assert.Empty(t, again)

	after, err := svc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, stored, after)
}

func TestEvaluateAchievementsEmailGated(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	store := svc.store

	_, err := svc.ApplyDelta(ctx, "u1", 10, nil, nil)
	require.NoError(t, err)
	awarded, err := svc.EvaluateAchievements(ctx, "u1", 10)
	require.NoError(t, err)
	assert.NotContains(t, awarded, TypeEmailVerified)

	_, err = store.UpsertPendingEmail(ctx, "u1", "user one", "u1@example.com")
	require.NoError(t, err)
	sub, err := store.EmailSubmission(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, store.MarkEmailProcessed(ctx, sub.ID))

	balance, err := svc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	awarded, err = svc.EvaluateAchievements(ctx, "u1", balance)
	require.NoError(t, err)
	assert.Contains(t, awarded, TypeEmailVerified)
}

func TestDeleteAccount(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.SetBalance(ctx, "u1", 100, nil, nil)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAccount(ctx, "u1"))

	balance, err := svc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	// audit trail stays
	history, err := svc.Transactions(ctx, "u1", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, history)

	err = svc.DeleteAccount(ctx, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, serviceerrs.ErrInvalidArgument))
}
