// Package memory keeps the whole ledger in process memory. It backs unit
// tests and the degraded mode the service falls back to when no database
// is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/guildpoints/points-ledger/internal/model/achievement"
	"github.com/guildpoints/points-ledger/internal/model/email"
	"github.com/guildpoints/points-ledger/internal/model/points"
	"github.com/guildpoints/points-ledger/internal/repo"
	"github.com/guildpoints/points-ledger/internal/serviceerrs"
)

type state struct {
	balances     map[string]int64
	stats        map[string]points.Stats
	transactions []points.Transaction
	achievements []achievement.Achievement
	emails       []email.Submission
	nextTxID     int64
	nextAchID    int64
	nextEmailID  int64
}

func (s *state) clone() *state {
	c := &state{
		balances:     make(map[string]int64, len(s.balances)),
		stats:        make(map[string]points.Stats, len(s.stats)),
		transactions: append([]points.Transaction(nil), s.transactions...),
		achievements: append([]achievement.Achievement(nil), s.achievements...),
		emails:       append([]email.Submission(nil), s.emails...),
		nextTxID:     s.nextTxID,
		nextAchID:    s.nextAchID,
		nextEmailID:  s.nextEmailID,
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.stats {
		c.stats[k] = v
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{
		st: &state{
			balances:    make(map[string]int64),
			stats:       make(map[string]points.Stats),
			nextTxID:    1,
			nextAchID:   1,
			nextEmailID: 1,
		},
	}
}

// InTx runs fn against a copy of the state and swaps the copy in on
// success, so a failed callback leaves nothing behind.
func (s *Store) InTx(_ context.Context, fn func(tx repo.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.st.clone()
	if err := fn(&memTx{st: working}); err != nil {
		return err
	}
	s.st = working
	return nil
}

type memTx struct {
	st *state
}

func (t *memTx) BalanceForUpdate(_ context.Context, userID string) (int64, bool, error) {
	b, ok := t.st.balances[userID]
	return b, ok, nil
}

func (t *memTx) SaveBalance(_ context.Context, userID string, balance int64) error {
	t.st.balances[userID] = balance
	return nil
}

func (t *memTx) AppendTransaction(_ context.Context, tr *points.Transaction) error {
	tr.ID = t.st.nextTxID
	t.st.nextTxID++
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	t.st.transactions = append(t.st.transactions, *tr)
	return nil
}

func (t *memTx) BumpStats(_ context.Context, userID string, earned, spent, newBalance int64) error {
	now := time.Now().UTC()
	st, ok := t.st.stats[userID]
	if !ok {
		st = points.Stats{UserID: userID, FirstActivity: now}
	}
	st.TotalEarned += earned
	st.TotalSpent += spent
	st.TransactionCount++
	if newBalance > st.HighestBalance {
		st.HighestBalance = newBalance
	}
	st.LastActivity = now
	t.st.stats[userID] = st
	return nil
}

func (t *memTx) AwardAchievement(_ context.Context, a *achievement.Achievement) (bool, error) {
	for _, existing := range t.st.achievements {
		if existing.UserID == a.UserID && existing.Type == a.Type {
			return false, nil
		}
	}
	a.ID = t.st.nextAchID
	t.st.nextAchID++
	if a.EarnedAt.IsZero() {
		a.EarnedAt = time.Now().UTC()
	}
	t.st.achievements = append(t.st.achievements, *a)

	st := t.st.stats[a.UserID]
	if st.UserID == "" {
		st = points.Stats{UserID: a.UserID, FirstActivity: a.EarnedAt}
	}
	st.AchievementsCount++
	st.LastActivity = a.EarnedAt
	t.st.stats[a.UserID] = st
	return true, nil
}

func (s *Store) Balance(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.balances[userID], nil
}

func (s *Store) Leaderboard(_ context.Context, limit int) ([]points.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]points.LeaderboardEntry, 0, len(s.st.balances))
	for id, b := range s.st.balances {
		if b > 0 {
			entries = append(entries, points.LeaderboardEntry{UserID: id, Balance: b})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Balance != entries[j].Balance {
			return entries[i].Balance > entries[j].Balance
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) Rank(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	own := s.st.balances[userID]
	var rank int64 = 1
	for _, b := range s.st.balances {
		if b > own {
			rank++
		}
	}
	return rank, nil
}

func (s *Store) Totals(_ context.Context) (points.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var t points.Totals
	for _, b := range s.st.balances {
		if b > 0 {
			t.Users++
		}
		t.Points += b
	}
	return t, nil
}

func (s *Store) Transactions(_ context.Context, userID string, limit int) ([]points.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]points.Transaction, 0, limit)
	for i := len(s.st.transactions) - 1; i >= 0; i-- {
		tr := s.st.transactions[i]
		if userID != "" && tr.UserID != userID {
			continue
		}
		out = append(out, tr)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) UserStats(_ context.Context, userID string) (points.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.st.stats[userID]
	if !ok {
		return points.Stats{UserID: userID}, nil
	}
	return st, nil
}

func (s *Store) DeleteAccount(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.balances, userID)
	return nil
}

func (s *Store) AchievementTypes(_ context.Context, userID string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make(map[string]struct{})
	for _, a := range s.st.achievements {
		if a.UserID == userID {
			types[a.Type] = struct{}{}
		}
	}
	return types, nil
}

func (s *Store) UserAchievements(_ context.Context, userID string) ([]achievement.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []achievement.Achievement
	for i := len(s.st.achievements) - 1; i >= 0; i-- {
		if s.st.achievements[i].UserID == userID {
			out = append(out, s.st.achievements[i])
		}
	}
	return out, nil
}

func (s *Store) RecentAchievements(_ context.Context, limit int) ([]achievement.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []achievement.Achievement
	for i := len(s.st.achievements) - 1; i >= 0; i-- {
		out = append(out, s.st.achievements[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) UpsertPendingEmail(_ context.Context, userID, username, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for i := range s.st.emails {
		sub := &s.st.emails[i]
		if sub.UserID == userID && sub.Status == email.StatusPending {
			sub.Username = username
			sub.Address = address
			sub.SubmittedAt = now
			return true, nil
		}
	}
	s.st.emails = append(s.st.emails, email.Submission{
		ID:          s.st.nextEmailID,
		UserID:      userID,
		Username:    username,
		Address:     address,
		Status:      email.StatusPending,
		SubmittedAt: now,
	})
	s.st.nextEmailID++
	return false, nil
}

func (s *Store) EmailSubmission(_ context.Context, userID string) (email.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.st.emails) - 1; i >= 0; i-- {
		if s.st.emails[i].UserID == userID {
			return s.st.emails[i], nil
		}
	}
	return email.Submission{}, serviceerrs.ErrNotFound
}

func (s *Store) EmailSubmissions(_ context.Context) ([]email.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]email.Submission, len(s.st.emails))
	for i := range s.st.emails {
		out[i] = s.st.emails[len(s.st.emails)-1-i]
	}
	return out, nil
}

func (s *Store) HasProcessedEmail(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.st.emails {
		if sub.UserID == userID && sub.Status == email.StatusProcessed {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) MarkEmailProcessed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.st.emails {
		if s.st.emails[i].ID == id {
			now := time.Now().UTC()
			s.st.emails[i].Status = email.StatusProcessed
			s.st.emails[i].ProcessedAt = &now
			return nil
		}
	}
	return serviceerrs.ErrNotFound
}

func (s *Store) DeleteEmailSubmission(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.st.emails {
		if s.st.emails[i].ID == id {
			s.st.emails = append(s.st.emails[:i], s.st.emails[i+1:]...)
			return nil
		}
	}
	return serviceerrs.ErrNotFound
}

func (s *Store) ClearProcessedEmails(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.st.emails[:0]
	var removed int64
	for _, sub := range s.st.emails {
		if sub.Status == email.StatusProcessed {
			removed++
			continue
		}
		kept = append(kept, sub)
	}
	s.st.emails = kept
	return removed, nil
}

func (s *Store) EmailCounts(_ context.Context) (email.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c email.Counts
	for _, sub := range s.st.emails {
		c.Total++
		switch sub.Status {
		case email.StatusPending:
			c.Pending++
		case email.StatusProcessed:
			c.Processed++
		}
	}
	return c, nil
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }
