// Package email implements the submission workflow: users hand in an
// address, admins review the queue, mark entries processed or drop them,
// and export the list for mailing tools.
package email

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/guildpoints/points-ledger/internal/model/email"
	"github.com/guildpoints/points-ledger/internal/repo"
	"github.com/guildpoints/points-ledger/internal/serviceerrs"
)

var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

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

// Submit records a pending submission for the user, replacing any earlier
// pending one. The address is lowercased before validation and storage.
// Reports whether an existing pending submission was overwritten.
func (s *Service) Submit(ctx context.Context, userID, username, address string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("%w: empty user ID", serviceerrs.ErrInvalidArgument)
	}
	address = strings.ToLower(strings.TrimSpace(address))
	if !addressPattern.MatchString(address) {
		return false, fmt.Errorf("%w: malformed email address", serviceerrs.ErrInvalidArgument)
	}

	overwritten, err := s.store.UpsertPendingEmail(ctx, userID, username, address)
	if err != nil {
		return false, err //nolint: wrapcheck // error from wrapped function
	}

	s.log.LogAttrs(ctx,
		slog.LevelInfo,
		"email submitted",
		slog.String("user_id", userID),
		slog.Bool("overwritten", overwritten),
	)
	return overwritten, nil
}

func (s *Service) Submission(ctx context.Context, userID string) (email.Submission, error) {
	return s.store.EmailSubmission(ctx, userID) //nolint: wrapcheck // error from wrapped function
}

func (s *Service) List(ctx context.Context) ([]email.Submission, error) {
	return s.store.EmailSubmissions(ctx) //nolint: wrapcheck // error from wrapped function
}

// MarkProcessed flips a submission to processed and returns it, so the
// caller can run achievement evaluation for its owner.
func (s *Service) MarkProcessed(ctx context.Context, id int64) (email.Submission, error) {
	subs, err := s.store.EmailSubmissions(ctx)
	if err != nil {
		return email.Submission{}, err //nolint: wrapcheck // error from wrapped function
	}

	for _, sub := range subs {
		if sub.ID != id {
			continue
		}
		if err := s.store.MarkEmailProcessed(ctx, id); err != nil {
			return email.Submission{}, err //nolint: wrapcheck // error from wrapped function
		}
		s.log.LogAttrs(ctx,
			slog.LevelInfo,
			"email processed",
			slog.Int64("id", id),
			slog.String("user_id", sub.UserID),
		)
		return sub, nil
	}
	return email.Submission{}, fmt.Errorf("%w: submission %d", serviceerrs.ErrNotFound, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteEmailSubmission(ctx, id) //nolint: wrapcheck // error from wrapped function
}

func (s *Service) ClearProcessed(ctx context.Context) (int64, error) {
	removed, err := s.store.ClearProcessedEmails(ctx)
	if err != nil {
		return 0, err //nolint: wrapcheck // error from wrapped function
	}
	s.log.LogAttrs(ctx,
		slog.LevelInfo,
		"processed emails cleared",
		slog.Int64("removed", removed),
	)
	return removed, nil
}

func (s *Service) Counts(ctx context.Context) (email.Counts, error) {
	return s.store.EmailCounts(ctx) //nolint: wrapcheck // error from wrapped function
}

// ExportCSV streams every submission as CSV with a header row.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	subs, err := s.store.EmailSubmissions(ctx)
	if err != nil {
		return err //nolint: wrapcheck // error from wrapped function
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "user_id", "username", "email", "status", "submitted_at"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, sub := range subs {
		record := []string{
			strconv.FormatInt(sub.ID, 10),
			sub.UserID,
			sub.Username,
			sub.Address,
			string(sub.Status),
			sub.SubmittedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
