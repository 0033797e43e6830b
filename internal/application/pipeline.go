// Package application wires the aggregation components into a pipeline that
// always yields a valid desirability lookup.
package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-desirability/internal/domain"
	"github.com/ahrav/go-desirability/internal/logging"
	"github.com/ahrav/go-desirability/internal/ports"
)

// Pipeline errors.
var (
	// ErrNoStakeResolver is returned by Refresh when the pipeline was built
	// without a stake resolver.
	ErrNoStakeResolver = errors.New("pipeline has no stake resolver")

	// ErrPassPanicked wraps a panic recovered from aggregation or lookup
	// construction.
	ErrPassPanicked = errors.New("aggregation pass panicked")
)

// PipelineOptions configures NewPipeline. Store, Aggregator and Builder are
// required.
type PipelineOptions struct {
	// Defaults is the network default document. It must build into a valid
	// lookup on its own.
	Defaults domain.PreferenceDocument
	// Store retrieves participant documents.
	Store ports.PreferenceStore
	// Stakes supplies participants to Refresh. Optional for Run.
	Stakes     ports.StakeResolver
	Aggregator domain.Aggregator
	Builder    domain.LookupBuilder
	// RetrievalTimeout bounds the whole retrieval phase of a pass.
	RetrievalTimeout time.Duration
	// MaxConcurrency caps in-flight fetches.
	MaxConcurrency int
	Logger         *slog.Logger
	// Observer, if set, is notified around every pass.
	Observer ports.PassObserver
}

// Pipeline runs aggregation passes: it retrieves participant documents
// concurrently, aggregates them with the network default and builds a
// desirability lookup. Any failure after retrieval yields the default-only
// lookup, which is built once when the pipeline is created.
//
// The most recent lookup published by Refresh is available lock-free
// through Current. Pipeline is safe for concurrent use.
type Pipeline struct {
	defaults       domain.PreferenceDocument
	store          ports.PreferenceStore
	stakes         ports.StakeResolver
	aggregator     domain.Aggregator
	builder        domain.LookupBuilder
	timeout        time.Duration
	maxConcurrency int
	logger         *slog.Logger
	observer       ports.PassObserver

	fallback *domain.DesirabilityLookup
	current  atomic.Pointer[domain.DesirabilityLookup]
	sf       singleflight.Group
}

// NewPipeline validates opts and pre-builds the default-only lookup. A
// default document that cannot produce a valid lookup is reported here, so
// that every later pass has a valid lookup to fall back to.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Store == nil || opts.Aggregator == nil || opts.Builder == nil {
		return nil, fmt.Errorf("%w: pipeline requires a store, an aggregator and a builder",
			domain.ErrInvalidConfiguration)
	}
	if opts.RetrievalTimeout <= 0 {
		opts.RetrievalTimeout = DefaultRetrievalTimeoutSeconds * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	p := &Pipeline{
		defaults:       opts.Defaults,
		store:          opts.Store,
		stakes:         opts.Stakes,
		aggregator:     opts.Aggregator,
		builder:        opts.Builder,
		timeout:        opts.RetrievalTimeout,
		maxConcurrency: opts.MaxConcurrency,
		logger:         opts.Logger,
		observer:       opts.Observer,
	}

	fallback, err := p.build(nil)
	if err != nil {
		return nil, fmt.Errorf("build default lookup: %w", err)
	}
	p.fallback = fallback
	p.current.Store(fallback)
	return p, nil
}

// Fallback returns the lookup derived from the default document alone.
func (p *Pipeline) Fallback() *domain.DesirabilityLookup { return p.fallback }

// Current returns the most recently published lookup. Before the first
// Refresh it is the default-only lookup.
func (p *Pipeline) Current() *domain.DesirabilityLookup { return p.current.Load() }

// Run executes one aggregation pass over participants and returns the
// resulting lookup, which is never nil. The lookup is not published; use
// Refresh for that.
func (p *Pipeline) Run(ctx context.Context, participants []domain.Participant) (*domain.DesirabilityLookup, domain.PassReport) {
	start := time.Now()
	if p.observer != nil {
		ctx = p.observer.PassStarted(ctx, len(participants))
	}

	submissions, skipped := p.collect(ctx, participants)
	report := domain.PassReport{Participants: len(participants), Skipped: skipped}

	lookup, err := p.build(submissions)
	if err != nil {
		report.Fallback = true
		report.Err = err
		lookup = p.fallback
		p.logger.Error("aggregation failed, using default lookup",
			"error", err, "participants", len(participants))
	} else {
		for _, s := range submissions {
			if s.Submitted {
				report.Submitters++
			}
		}
	}
	report.Duration = time.Since(start)

	if !report.Fallback {
		p.logger.Info("aggregation pass complete",
			"participants", report.Participants,
			"submitters", report.Submitters,
			"skipped", len(report.Skipped),
			"duration", report.Duration)
	}

	if p.observer != nil {
		p.observer.PassFinished(ctx, lookup, report)
	}
	return lookup, report
}

type refreshResult struct {
	lookup *domain.DesirabilityLookup
	report domain.PassReport
}

// Refresh resolves the current participants, runs a pass and atomically
// publishes its lookup. Concurrent calls share a single pass.
//
// A failure to resolve participants is handled like any other pass failure:
// the default-only lookup is published and reported as a fallback.
func (p *Pipeline) Refresh(ctx context.Context) (*domain.DesirabilityLookup, domain.PassReport, error) {
	if p.stakes == nil {
		return nil, domain.PassReport{}, ErrNoStakeResolver
	}

	v, _, _ := p.sf.Do("refresh", func() (any, error) {
		var res refreshResult
		participants, err := p.stakes.Participants(ctx)
		if err != nil {
			p.logger.Error("stake resolution failed, using default lookup", "error", err)
			res = refreshResult{
				lookup: p.fallback,
				report: domain.PassReport{Fallback: true, Err: fmt.Errorf("resolve participants: %w", err)},
			}
		} else {
			res.lookup, res.report = p.Run(ctx, participants)
		}

		p.current.Store(res.lookup)
		return res, nil
	})

	res := v.(refreshResult)
	return res.lookup, res.report, nil
}

// build aggregates submissions with the defaults and builds the lookup.
// A panic in either step is converted to ErrPassPanicked.
func (p *Pipeline) build(submissions []domain.Submission) (lookup *domain.DesirabilityLookup, err error) {
	defer func() {
		if r := recover(); r != nil {
			lookup, err = nil, fmt.Errorf("%w: %v", ErrPassPanicked, r)
		}
	}()

	totals, err := p.aggregator.Aggregate(p.defaults, submissions)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	lookup, err = p.builder.Build(totals)
	if err != nil {
		return nil, fmt.Errorf("build lookup: %w", err)
	}
	return lookup, nil
}

type fetchResult struct {
	submission domain.Submission
	skipped    *domain.SkippedParticipant
}

// collect retrieves and parses every participant's document under the
// retrieval deadline. Participants whose document is missing, unavailable
// or malformed are returned as non-submitting.
func (p *Pipeline) collect(ctx context.Context, participants []domain.Participant) ([]domain.Submission, []domain.SkippedParticipant) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	results := make([]fetchResult, len(participants))
	g := new(errgroup.Group)
	g.SetLimit(p.maxConcurrency)
	for i, participant := range participants {
		g.Go(func() error {
			results[i] = p.fetch(ctx, participant)
			return nil
		})
	}
	_ = g.Wait()

	submissions := make([]domain.Submission, 0, len(results))
	var skipped []domain.SkippedParticipant
	for _, r := range results {
		submissions = append(submissions, r.submission)
		if r.skipped != nil {
			skipped = append(skipped, *r.skipped)
		}
	}
	slices.SortFunc(skipped, func(a, b domain.SkippedParticipant) int {
		return cmp.Compare(a.Hotkey, b.Hotkey)
	})
	return submissions, skipped
}

// fetch retrieves one document. The store call runs in its own goroutine so
// that a store ignoring ctx still cannot hold the pass past its deadline.
func (p *Pipeline) fetch(ctx context.Context, participant domain.Participant) fetchResult {
	res := fetchResult{submission: domain.Submission{
		Hotkey:    participant.Hotkey,
		StakeInfo: domain.StakeInfo{Stake: participant.StakeOrDefault()},
	}}
	skip := func(reason string, err error) fetchResult {
		p.logger.Warn("participant treated as non-submitting",
			"hotkey", participant.Hotkey, "reason", reason, "error", err)
		res.skipped = &domain.SkippedParticipant{Hotkey: participant.Hotkey, Reason: reason}
		return res
	}

	if err := ctx.Err(); err != nil {
		return skip("retrieval deadline exceeded", err)
	}

	type fetched struct {
		data []byte
		err  error
	}
	done := make(chan fetched, 1)
	go func() {
		data, err := p.store.Fetch(ctx, participant.Hotkey)
		done <- fetched{data, err}
	}()

	var data []byte
	select {
	case <-ctx.Done():
		return skip("retrieval deadline exceeded", ctx.Err())
	case f := <-done:
		if errors.Is(f.err, ports.ErrNoSubmission) {
			p.logger.Debug("participant has no submission", "hotkey", participant.Hotkey)
			return res
		}
		if f.err != nil {
			return skip("retrieval failed", f.err)
		}
		data = f.data
	}

	doc, err := ParseDocument(participant.Hotkey, data)
	if err != nil {
		return skip("malformed document", err)
	}

	// Any listed source is a vote, even one with no label weights.
	res.submission.Document = doc
	res.submission.Submitted = len(doc) > 0
	return res
}
