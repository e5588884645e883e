package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"proposal-review/internal/config"
	"proposal-review/internal/events"
	"proposal-review/internal/metrics"
	"proposal-review/internal/models"
)

// ReputationService is the reputation ledger. The completed Review and
// PeerReview records are the source of truth; the balance cached on the
// reviewer row is a display counter reconciled against them.
type ReputationService struct {
	reviewers        ReviewerDirectory
	completions      CompletionLog
	balances         *cache.Cache
	publisher        events.Publisher
	metrics          *metrics.EngineMetrics
	peerReviewTarget int
	leaderboardLimit int
}

// ReputationSummary is a reviewer's ledger position
type ReputationSummary struct {
	ReviewerID    uuid.UUID               `json:"reviewer_id"`
	Counts        models.CompletionCounts `json:"counts"`
	Balance       int                     `json:"balance"`
	CachedBalance int                     `json:"cached_balance"`
	InSync        bool                    `json:"in_sync"`
}

// ReconcileReport summarises a full ledger reconciliation run
type ReconcileReport struct {
	Checked   int `json:"checked"`
	Corrected int `json:"corrected"`
	Drift     int `json:"drift"`
}

// NewReputationService creates a new reputation ledger
func NewReputationService(
	reviewers ReviewerDirectory,
	completions CompletionLog,
	publisher events.Publisher,
	m *metrics.EngineMetrics,
	cfg *config.AssignmentConfig,
) *ReputationService {
	ttl := cfg.BalanceCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ReputationService{
		reviewers:        reviewers,
		completions:      completions,
		balances:         cache.New(ttl, ttl*2),
		publisher:        publisher,
		metrics:          m,
		peerReviewTarget: cfg.PeerReviewTarget,
		leaderboardLimit: cfg.LeaderboardLimit,
	}
}

// RecordCompletion appends a completion and awards its fixed points.
// Replaying a completion returns *DuplicateCompletionError and awards nothing.
func (s *ReputationService) RecordCompletion(ctx context.Context, c *models.Completion) (uuid.UUID, error) {
	if !c.Kind.Valid() {
		return uuid.Nil, ErrInvalidKind
	}
	c.Points = c.Kind.Points()
	if c.CompletedAt.IsZero() {
		c.CompletedAt = time.Now().UTC()
	}

	recordID, err := s.completions.RecordCompletion(ctx, c, s.peerReviewTarget)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateCompletion) {
			s.metrics.RecordCompletion(string(c.Kind), metrics.ResultDuplicate)
			slog.Warn("Rejected duplicate completion",
				"reviewer_id", c.ReviewerID,
				"item_id", c.ItemID,
				"kind", c.Kind,
				"assignment_id", c.AssignmentID,
			)
			return uuid.Nil, &DuplicateCompletionError{ReviewerID: c.ReviewerID, ItemID: c.ItemID, Kind: c.Kind}
		}
		s.metrics.RecordCompletion(string(c.Kind), metrics.ResultError)
		return uuid.Nil, fmt.Errorf("failed to record completion: %w", err)
	}

	s.balances.Delete(c.ReviewerID.String())
	s.metrics.RecordCompletion(string(c.Kind), metrics.ResultRecorded)
	slog.Info("Completion recorded",
		"reviewer_id", c.ReviewerID,
		"item_id", c.ItemID,
		"kind", c.Kind,
		"points", c.Points,
		"record_id", recordID,
	)
	publish(ctx, s.publisher, events.New(events.AssignmentCompleted, c.ReviewerID, c))

	return recordID, nil
}

// Balance returns the reviewer's derived balance. Values may be served from
// cache for up to the configured staleness window.
func (s *ReputationService) Balance(ctx context.Context, reviewerID uuid.UUID) (int, error) {
	key := reviewerID.String()
	if v, ok := s.balances.Get(key); ok {
		s.metrics.RecordBalanceLookup(true)
		return v.(int), nil
	}
	s.metrics.RecordBalanceLookup(false)

	counts, err := s.completions.CountCompletions(ctx, reviewerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count completions: %w", err)
	}
	balance := counts.Points()
	s.balances.Set(key, balance, cache.DefaultExpiration)
	return balance, nil
}

// Summary returns counts, the authoritative balance and the cached counter
func (s *ReputationService) Summary(ctx context.Context, reviewerID uuid.UUID) (*ReputationSummary, error) {
	reviewer, err := s.reviewers.GetReviewer(ctx, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}
	counts, err := s.completions.CountCompletions(ctx, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completions: %w", err)
	}
	balance := counts.Points()
	return &ReputationSummary{
		ReviewerID:    reviewerID,
		Counts:        counts,
		Balance:       balance,
		CachedBalance: reviewer.RepPoints,
		InSync:        balance == reviewer.RepPoints,
	}, nil
}

// maxReconcileAttempts bounds how often Reconcile retries while
// completions keep moving the cached balance under it
const maxReconcileAttempts = 5

// Reconcile corrects the reviewer's cached balance to the derived sum and
// returns the applied correction. The write is a compare-and-set against
// the cached value read before counting, so a completion committing
// in between makes the attempt retry instead of being credited twice.
func (s *ReputationService) Reconcile(ctx context.Context, reviewerID uuid.UUID) (int, error) {
	for attempt := 0; attempt < maxReconcileAttempts; attempt++ {
		summary, err := s.Summary(ctx, reviewerID)
		if err != nil {
			return 0, err
		}
		delta := summary.Balance - summary.CachedBalance
		if delta == 0 {
			return 0, nil
		}

		swapped, err := s.reviewers.SetRepPoints(ctx, reviewerID, summary.CachedBalance, summary.Balance)
		if err != nil {
			return 0, fmt.Errorf("failed to correct balance: %w", err)
		}
		if !swapped {
			slog.Debug("Reputation balance moved during reconcile, retrying",
				"reviewer_id", reviewerID,
				"attempt", attempt+1,
			)
			continue
		}

		s.balances.Delete(reviewerID.String())
		s.metrics.RecordLedgerDrift(delta)

		slog.Warn("Reputation drift corrected",
			"reviewer_id", reviewerID,
			"cached", summary.CachedBalance,
			"derived", summary.Balance,
			"delta", delta,
		)
		publish(ctx, s.publisher, events.New(events.LedgerReconciled, reviewerID, map[string]int{
			"cached":  summary.CachedBalance,
			"derived": summary.Balance,
			"delta":   delta,
		}))
		return delta, nil
	}
	return 0, ErrReconcileContended
}

// ReconcileAll reconciles every reviewer, continuing past individual failures
func (s *ReputationService) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	reviewers, err := s.reviewers.ListReviewers(ctx, "")
	if err != nil {
		return report, fmt.Errorf("failed to list reviewers: %w", err)
	}

	var errs []error
	for _, r := range reviewers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		delta, err := s.Reconcile(ctx, r.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("reviewer %s: %w", r.ID, err))
			continue
		}
		report.Checked++
		if delta != 0 {
			report.Corrected++
			report.Drift += abs(delta)
		}
	}

	slog.Info("Reputation reconciliation finished",
		"checked", report.Checked,
		"corrected", report.Corrected,
		"drift", report.Drift,
		"errors", len(errs),
	)
	return report, errors.Join(errs...)
}

// Leaderboard returns the top reviewers by cached balance
func (s *ReputationService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = s.leaderboardLimit
	}
	if limit <= 0 {
		limit = 20
	}
	entries, err := s.reviewers.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return entries, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
