// Package labelers builds the ranked labeler directory: it looks up labeler
// DIDs, fetches their detailed views in batches, splits each description
// into link and mention segments and sorts the result by likes.
package labelers

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"labelerdir/internal/fanout"
	"labelerdir/internal/richtext"
)

// DefaultBatchSize is the number of DIDs sent per getServices request.
const DefaultBatchSize = 10

// Directory lists the DIDs of known labelers.
type Directory interface {
	ListLabelers(ctx context.Context) ([]string, error)
}

// ProfileService returns detailed labeler views for a batch of DIDs. Unknown
// DIDs are omitted from the result.
type ProfileService interface {
	GetServices(ctx context.Context, dids []string) ([]RawProfile, error)
}

// ChunkError reports a failed getServices batch.
type ChunkError struct {
	Index int
	DIDs  []string
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("fetch batch %d (%d dids): %v", e.Index, len(e.DIDs), e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Options tunes a Pipeline.
type Options struct {
	// BatchSize is the maximum number of DIDs per profile request.
	BatchSize int

	// Partial keeps the profiles of successful batches when other batches
	// fail, reporting the DIDs of failed batches in ResultSet.Failed.
	// When false any failed batch fails the run.
	Partial bool

	// RateLimitRPS limits profile requests per second. <=0 disables.
	RateLimitRPS float64

	// RequestTimeout bounds each profile batch request. <=0 disables.
	RequestTimeout time.Duration

	// ResolveWorkers caps concurrent description resolution. <=0 resolves
	// every profile at once.
	ResolveWorkers int
}

// Pipeline produces a ResultSet from its injected services.
type Pipeline struct {
	directory Directory
	profiles  ProfileService
	detector  *richtext.Detector
	opts      Options
	logger    *log.Logger
	now       func() time.Time
}

// NewPipeline creates a pipeline. resolver may be nil, in which case every
// mention degrades to plain text.
func NewPipeline(directory Directory, profiles ProfileService, resolver richtext.Resolver, opts Options, logger *log.Logger) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Pipeline{
		directory: directory,
		profiles:  profiles,
		detector:  richtext.NewDetector(resolver),
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes one full pass of the pipeline.
func (p *Pipeline) Run(ctx context.Context) (*ResultSet, error) {
	runID := fmt.Sprintf("run-%d", p.now().UnixNano())
	start := p.now()

	dids, err := p.directory.ListLabelers(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory lookup: %w", err)
	}
	p.logger.Printf("[PIPELINE] run=%s directory returned %d labelers", runID, len(dids))

	raw, failed, err := p.FetchProfiles(ctx, dids)
	if err != nil {
		return nil, fmt.Errorf("fetch profiles: %w", err)
	}
	p.logger.Printf("[PIPELINE] run=%s fetched %d profiles (%d dids failed)", runID, len(raw), len(failed))

	enriched, err := p.Enrich(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("resolve facets: %w", err)
	}

	result := &ResultSet{
		Labelers:    Rank(enriched),
		Failed:      failed,
		GeneratedAt: p.now(),
	}
	p.logger.Printf("[PIPELINE] run=%s complete: labelers=%d duration=%s",
		runID, len(result.Labelers), p.now().Sub(start).Round(time.Millisecond))
	return result, nil
}

// FetchProfiles requests detailed views for dids in batches of
// Options.BatchSize, all batches at once, and concatenates the responses in
// batch order. It returns the DIDs of failed batches when Options.Partial is
// set; otherwise the first failure is returned as a *ChunkError.
func (p *Pipeline) FetchProfiles(ctx context.Context, dids []string) ([]RawProfile, []string, error) {
	chunks := Chunk(dids, p.opts.BatchSize)
	type batch struct {
		index int
		dids  []string
	}
	batches := make([]batch, len(chunks))
	for i, c := range chunks {
		batches[i] = batch{index: i, dids: c}
	}

	policy := fanout.FailFast
	if p.opts.Partial {
		policy = fanout.Settle
	}

	results, err := fanout.ProcessAll(ctx, batches, func(ctx context.Context, b batch) ([]RawProfile, error) {
		views, err := p.profiles.GetServices(ctx, b.dids)
		if err != nil {
			return nil, &ChunkError{Index: b.index, DIDs: b.dids, Err: err}
		}
		return views, nil
	}, fanout.Options{
		RequestTimeout: p.opts.RequestTimeout,
		RateLimitRPS:   p.opts.RateLimitRPS,
		FailurePolicy:  policy,
	})
	if err != nil {
		return nil, nil, err
	}

	profiles := []RawProfile{}
	var failed []string
	for _, res := range results {
		if res.Err != nil {
			p.logger.Printf("[PIPELINE] batch %d failed: %v", res.Input.index, res.Err)
			failed = append(failed, res.Input.dids...)
			continue
		}
		profiles = append(profiles, res.Output...)
	}
	return profiles, failed, nil
}

// Enrich splits every profile's description into segments. Mentions that
// cannot be resolved are logged and kept as plain text; only cancellation of
// ctx fails the stage.
func (p *Pipeline) Enrich(ctx context.Context, profiles []RawProfile) ([]EnrichedProfile, error) {
	results, err := fanout.ProcessAll(ctx, profiles, func(ctx context.Context, raw RawProfile) (EnrichedProfile, error) {
		segments, err := p.detector.Segment(ctx, raw.Description)
		if segments == nil {
			return EnrichedProfile{}, err
		}
		if err != nil {
			p.logger.Printf("[PIPELINE] %s: unresolved mentions kept as text: %v", raw.DID, err)
		}
		return Enrich(raw, segments), nil
	}, fanout.Options{
		Workers:       p.opts.ResolveWorkers,
		FailurePolicy: fanout.FailFast,
	})
	if err != nil {
		return nil, err
	}

	enriched := make([]EnrichedProfile, len(results))
	for i, res := range results {
		enriched[i] = res.Output
	}
	return enriched, nil
}
