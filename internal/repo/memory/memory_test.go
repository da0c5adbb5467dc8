package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildpoints/points-ledger/internal/model/achievement"
	"github.com/guildpoints/points-ledger/internal/model/points"
	"github.com/guildpoints/points-ledger/internal/repo"
	"github.com/guildpoints/points-ledger/internal/serviceerrs"
)

func TestInTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx repo.LedgerTx) error {
		require.NoError(t, tx.SaveBalance(ctx, "u1", 100))
		require.NoError(t, tx.AppendTransaction(ctx, &points.Transaction{
			UserID: "u1", Delta: 100, Kind: points.KindAdd, NewBalance: 100,
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := s.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	history, err := s.Transactions(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestInTxCommits(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.InTx(ctx, func(tx repo.LedgerTx) error {
		return tx.SaveBalance(ctx, "u1", 42)
	})
	require.NoError(t, err)

	balance, err := s.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), balance)
}

func TestAwardAchievementDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()

	award := func() bool {
		var ok bool
		err := s.InTx(ctx, func(tx repo.LedgerTx) error {
			var err error
			ok, err = tx.AwardAchievement(ctx, &achievement.Achievement{
				UserID: "u1", Type: "first_points", Name: "First Points",
			})
			return err
		})
		require.NoError(t, err)
		return ok
	}

	assert.True(t, award())
	assert.False(t, award())

	stats, err := s.UserStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.AchievementsCount)
}

func TestRankUnknownUser(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(tx repo.LedgerTx) error {
		return tx.SaveBalance(ctx, "u1", 50)
	}))

	rank, err := s.Rank(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)
}

func TestEmailWorkflow(t *testing.T) {
	s := New()
	ctx := context.Background()

	overwritten, err := s.UpsertPendingEmail(ctx, "u1", "user one", "old@example.com")
	require.NoError(t, err)
	assert.False(t, overwritten)

	// second pending submission replaces the first
	overwritten, err = s.UpsertPendingEmail(ctx, "u1", "user one", "new@example.com")
	require.NoError(t, err)
	assert.True(t, overwritten)

	sub, err := s.EmailSubmission(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", sub.Address)

	processed, err := s.HasProcessedEmail(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, s.MarkEmailProcessed(ctx, sub.ID))

	processed, err = s.HasProcessedEmail(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, processed)

	sub, err = s.EmailSubmission(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, sub.ProcessedAt)

	// a processed submission no longer blocks a fresh pending one
	overwritten, err = s.UpsertPendingEmail(ctx, "u1", "user one", "third@example.com")
	require.NoError(t, err)
	assert.False(t, overwritten)

	counts, err := s.EmailCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Total)
	assert.Equal(t, int64(1), counts.Pending)
	assert.Equal(t, int64(1), counts.Processed)

	removed, err := s.ClearProcessedEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	counts, err = s.EmailCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Total)
	assert.Equal(t, int64(0), counts.Processed)
}

func TestEmailNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.EmailSubmission(ctx, "ghost")
	require.ErrorIs(t, err, serviceerrs.ErrNotFound)

	err = s.MarkEmailProcessed(ctx, 99)
	require.ErrorIs(t, err, serviceerrs.ErrNotFound)

	err = s.DeleteEmailSubmission(ctx, 99)
	require.ErrorIs(t, err, serviceerrs.ErrNotFound)
}
