// Package matching pairs lost and found reports by face similarity and
// records candidate matches for admin review.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/lost-found/internal/config"
	"github.com/kozaktomas/lost-found/internal/database"
	"github.com/kozaktomas/lost-found/internal/facematch"
	"github.com/kozaktomas/lost-found/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Trigger labels for metrics and logs.
const (
	TriggerDirect      = "direct"
	TriggerIncremental = "incremental"
	TriggerSweep       = "sweep"
)

const defaultConcurrency = 4

// ConfirmHook runs after a match was confirmed. The service wires it to the
// report transitions (lost -> found, found -> matched).
type ConfirmHook func(ctx context.Context, match *database.MatchRecord) error

// SweepResult reports what a full sweep looked at and created.
type SweepResult struct {
	LostPersonsChecked  int `json:"lostPersonsChecked"`
	FoundPersonsChecked int `json:"foundPersonsChecked"`
	NewMatches          int `json:"newMatches"`
}

// SweepOptions tunes a full sweep.
type SweepOptions struct {
	// Concurrency overrides the number of found reports scored in parallel.
	Concurrency int
	// Progress, when set, is called once per found report that finished scoring.
	Progress func(done, total int)
}

// Candidate is a lost report ranked against a found report.
type Candidate struct {
	Report database.LostReport
	Score  float64
	Match  bool // score passes the current threshold
}

// Matcher runs the per-pair decision and both matching entry points.
type Matcher struct {
	lost        database.LostReader
	found       database.FoundReader
	matches     database.MatchWriter
	policy      *facematch.Policy
	log         *zap.Logger
	concurrency int
	onConfirm   ConfirmHook

	inflight sync.WaitGroup
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithPolicy sets the match decision policy.
func WithPolicy(p *facematch.Policy) Option {
	return func(m *Matcher) { m.policy = p }
}

// WithLogger sets the logger used for background failures.
func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) { m.log = l }
}

// WithConcurrency sets the default sweep worker count.
func WithConcurrency(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithConfirmHook sets the hook fired when a match is confirmed.
func WithConfirmHook(h ConfirmHook) Option {
	return func(m *Matcher) { m.onConfirm = h }
}

// New creates a Matcher over the given stores. Without WithPolicy the
// threshold comes from the environment on every decision.
func New(lost database.LostReader, found database.FoundReader, matches database.MatchWriter, opts ...Option) *Matcher {
	m := &Matcher{
		lost:        lost,
		found:       found,
		matches:     matches,
		log:         zap.NewNop(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.policy == nil {
		m.policy = facematch.NewPolicy(config.MatchThreshold)
	}
	return m
}

// Policy returns the decision policy in use.
func (m *Matcher) Policy() *facematch.Policy {
	return m.policy
}

// ConsiderPair scores one pair and creates a pending match when the score passes
// the threshold and no record exists yet. A record created concurrently by
// another run is not an error.
func (m *Matcher) ConsiderPair(ctx context.Context, lost *database.LostReport, found *database.FoundReport) (bool, error) {
	return m.considerPair(ctx, TriggerDirect, lost, found)
}

func (m *Matcher) considerPair(ctx context.Context, trigger string, lost *database.LostReport, found *database.FoundReport) (bool, error) {
	if len(lost.Descriptor) == 0 || len(found.Descriptor) == 0 {
		return false, nil
	}

	metrics.PairsComparedTotal.WithLabelValues(trigger).Inc()
	score := facematch.Similarity(lost.Descriptor, found.Descriptor)
	if !m.policy.IsMatch(score) {
		return false, nil
	}

	// Advisory only; the store's uniqueness constraint is what prevents duplicates.
	exists, err := m.matches.MatchExists(ctx, lost.ID, found.ID)
	if err != nil {
		return false, fmt.Errorf("check existing match: %w", err)
	}
	if exists {
		return false, nil
	}

	record := &database.MatchRecord{
		LostID:  lost.ID,
		FoundID: found.ID,
		Score:   score,
		Status:  database.MatchPending,
	}
	if err := m.matches.CreateMatch(ctx, record); err != nil {
		if errors.Is(err, database.ErrDuplicateMatch) {
			metrics.DuplicateConflictsTotal.Inc()
			return false, nil
		}
		return false, fmt.Errorf("create match: %w", err)
	}

	metrics.MatchesCreatedTotal.WithLabelValues(trigger).Inc()
	m.log.Debug("match created",
		zap.String("lost_id", lost.ID),
		zap.String("found_id", found.ID),
		zap.Float64("score", score),
		zap.String("trigger", trigger),
	)
	return true, nil
}

// MatchNewFound scores one found report against every eligible lost report and
// returns the number of matches it created. A missing report or one without a
// descriptor is a no-op.
func (m *Matcher) MatchNewFound(ctx context.Context, foundID string) (int, error) {
	found, err := m.found.GetFound(ctx, foundID)
	if err != nil {
		return 0, fmt.Errorf("get found report: %w", err)
	}
	if found == nil || len(found.Descriptor) == 0 {
		return 0, nil
	}

	lost, err := m.lost.ListEligibleLost(ctx)
	if err != nil {
		return 0, fmt.Errorf("list eligible lost reports: %w", err)
	}

	created := 0
	for i := range lost {
		ok, err := m.considerPair(ctx, TriggerIncremental, &lost[i], found)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// MatchNewFoundAsync runs MatchNewFound in the background, detached from the
// caller's context. Failures are logged and counted, never retried.
func (m *Matcher) MatchNewFoundAsync(foundID string) {
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.BackgroundFailuresTotal.Inc()
				m.log.Error("background matching panicked",
					zap.String("found_id", foundID),
					zap.Any("panic", r),
				)
			}
		}()

		created, err := m.MatchNewFound(context.Background(), foundID)
		if err != nil {
			metrics.BackgroundFailuresTotal.Inc()
			m.log.Error("background matching failed",
				zap.String("found_id", foundID),
				zap.Error(err),
			)
			return
		}
		if created > 0 {
			m.log.Info("background matching created matches",
				zap.String("found_id", foundID),
				zap.Int("new_matches", created),
			)
		}
	}()
}

// Wait blocks until all background runs started so far have finished.
func (m *Matcher) Wait() {
	m.inflight.Wait()
}

// RunFullMatch scores every eligible found report against every eligible lost
// report. Any store error fails the sweep.
func (m *Matcher) RunFullMatch(ctx context.Context, opts SweepOptions) (SweepResult, error) {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	var lost []database.LostReport
	var found []database.FoundReport

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lost, err = m.lost.ListEligibleLost(gctx)
		if err != nil {
			return fmt.Errorf("list eligible lost reports: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		found, err = m.found.ListEligibleFound(gctx)
		if err != nil {
			return fmt.Errorf("list eligible found reports: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return SweepResult{}, err
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = m.concurrency
	}

	var created, done atomic.Int64
	var progressMu sync.Mutex

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range found {
		g.Go(func() error {
			for j := range lost {
				ok, err := m.considerPair(gctx, TriggerSweep, &lost[j], &found[i])
				if err != nil {
					return err
				}
				if ok {
					created.Add(1)
				}
			}
			if opts.Progress != nil {
				progressMu.Lock()
				opts.Progress(int(done.Add(1)), len(found))
				progressMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{
		LostPersonsChecked:  len(lost),
		FoundPersonsChecked: len(found),
		NewMatches:          int(created.Load()),
	}
	m.log.Info("full match sweep finished",
		zap.Int("lost_checked", result.LostPersonsChecked),
		zap.Int("found_checked", result.FoundPersonsChecked),
		zap.Int("new_matches", result.NewMatches),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}

// UpdateMatchStatus applies an admin review decision. Confirming a match fires
// the confirm hook; a hook failure is returned after the status was stored.
func (m *Matcher) UpdateMatchStatus(ctx context.Context, id string, status database.MatchStatus, notes string) (*database.MatchRecord, error) {
	if !database.ValidMatchStatus(status) {
		return nil, database.ErrInvalidStatus
	}

	record, err := m.matches.UpdateMatchStatus(ctx, id, status, notes)
	if err != nil {
		return nil, err
	}

	if status == database.MatchConfirmed && m.onConfirm != nil {
		if err := m.onConfirm(ctx, record); err != nil {
			return record, fmt.Errorf("confirm hook: %w", err)
		}
	}
	return record, nil
}

// Candidates ranks the eligible lost reports closest to a found report without
// creating any records. A found report without a descriptor has no candidates.
func (m *Matcher) Candidates(ctx context.Context, foundID string, limit int) ([]Candidate, error) {
	found, err := m.found.GetFound(ctx, foundID)
	if err != nil {
		return nil, fmt.Errorf("get found report: %w", err)
	}
	if found == nil {
		return nil, database.ErrNotFound
	}
	if len(found.Descriptor) == 0 {
		return []Candidate{}, nil
	}

	reports, scores, err := m.lost.NearestLost(ctx, found.Descriptor, limit)
	if err != nil {
		return nil, fmt.Errorf("nearest lost reports: %w", err)
	}

	threshold := m.policy.Threshold()
	candidates := make([]Candidate, len(reports))
	for i := range reports {
		candidates[i] = Candidate{
			Report: reports[i],
			Score:  scores[i],
			Match:  scores[i] >= threshold,
		}
	}
	return candidates, nil
}

// ResolvePairHook returns a ConfirmHook that applies the report transitions
// through the given resolver.
func ResolvePairHook(r database.PairResolver) ConfirmHook {
	return func(ctx context.Context, match *database.MatchRecord) error {
		return r.ResolvePair(ctx, match.LostID, match.FoundID)
	}
}
