package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"github.com/indrayudh19/Job-Mapper/internal/logger"
	"github.com/indrayudh19/Job-Mapper/internal/source"
	"golang.org/x/sync/errgroup"
)

// Extractor structures raw listings. *ExtractionAgent is the production
// implementation.
type Extractor interface {
	Extract(ctx context.Context, listing *domain.RawListing) (*domain.JobRecord, error)
}

// Resolver maps raw location text to coordinates. *LocationResolver is the
// production implementation.
type Resolver interface {
	Resolve(ctx context.Context, rawText string) (domain.GeoResult, error)
}

// Committer atomically publishes a new pin snapshot. *store.PinStore is the
// production implementation.
type Committer interface {
	Commit(ctx context.Context, runID string, pins []domain.Pin) (*domain.PinSnapshot, error)
}

// RecordStore persists extracted records and extraction failures.
// *repository.RecordRepository is the production implementation.
type RecordStore interface {
	UpsertBatch(ctx context.Context, records []domain.JobRecord) error
	CreationTimes(ctx context.Context, ids []string) (map[string]time.Time, error)
	RecordFailure(ctx context.Context, failure *domain.ExtractionFailure) error
}

// RunStore persists refresh run progress. *repository.RunRepository is the
// production implementation.
type RunStore interface {
	Create(ctx context.Context, run *domain.RefreshRun) error
	Update(ctx context.Context, run *domain.RefreshRun) error
}

// RawArchiver stores raw listing payloads for replay. May be nil.
type RawArchiver interface {
	ArchiveBatch(ctx context.Context, runID string, listings []domain.RawListing) error
}

// OrchestratorConfig holds configuration for the refresh orchestrator.
type OrchestratorConfig struct {
	Interval       time.Duration
	PullTimeout    time.Duration
	ExtractWorkers int
	ResolveWorkers int
	BatchSize      int
	MaxListings    int
}

// Orchestrator drives the refresh cycle: pull, extract, resolve, dedupe,
// commit. Exactly one cycle runs at a time; triggers arriving mid-cycle
// coalesce into a single pending cycle.
type Orchestrator struct {
	connectors []source.Connector
	extractor  Extractor
	resolver   Resolver
	deduper    *Deduper
	committer  Committer
	records    RecordStore
	runs       RunStore
	archiver   RawArchiver
	indexer    *PinIndexer
	logger     *logger.Logger
	cfg        OrchestratorConfig

	trigger chan struct{}
	running atomic.Bool
}

// NewOrchestrator creates a new refresh orchestrator. archiver and indexer
// may be nil.
func NewOrchestrator(
	connectors []source.Connector,
	extractor Extractor,
	resolver Resolver,
	committer Committer,
	records RecordStore,
	runs RunStore,
	archiver RawArchiver,
	indexer *PinIndexer,
	log *logger.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.ExtractWorkers <= 0 {
		cfg.ExtractWorkers = 4
	}
	if cfg.ResolveWorkers <= 0 {
		cfg.ResolveWorkers = 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxListings <= 0 {
		cfg.MaxListings = 1000
	}
	if cfg.PullTimeout <= 0 {
		cfg.PullTimeout = 10 * time.Minute
	}

	return &Orchestrator{
		connectors: connectors,
		extractor:  extractor,
		resolver:   resolver,
		deduper:    NewDeduper(),
		committer:  committer,
		records:    records,
		runs:       runs,
		archiver:   archiver,
		indexer:    indexer,
		logger:     log,
		cfg:        cfg,
		trigger:    make(chan struct{}, 1),
	}
}

func (o *Orchestrator) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return o.logger
}

// Trigger requests an immediate refresh cycle. It returns false when a
// trigger is already pending; the pending cycle covers this request too.
func (o *Orchestrator) Trigger() bool {
	select {
	case o.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Running reports whether a cycle is currently executing.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Start runs cycles on the configured interval and on Trigger until the
// context is cancelled. It blocks and is meant to run in its own goroutine.
func (o *Orchestrator) Start(ctx context.Context) {
	var tick <-chan time.Time
	if o.cfg.Interval > 0 {
		ticker := time.NewTicker(o.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-o.trigger:
		}

		if _, err := o.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.log(ctx).WithError(err).Error("Refresh cycle failed")
		}
	}
}

// RunOnce executes one full refresh cycle and returns its run record.
// Listing-level failures degrade the run to partial; only a commit failure
// or cancellation leaves the previous snapshot as the served one.
func (o *Orchestrator) RunOnce(ctx context.Context) (*domain.RefreshRun, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("refresh cycle already running")
	}
	defer o.running.Store(false)

	run := &domain.RefreshRun{
		ID:        uuid.New().String(),
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}

	ctx = logger.SetRunID(ctx, run.ID)
	o.log(ctx).WithFields(logger.Fields{
		"sources": len(o.connectors),
	}).Info("Starting refresh cycle")

	var runErrors []string

	listings := o.pull(ctx, run, &runErrors)

	if o.archiver != nil && len(listings) > 0 {
		if err := o.archiver.ArchiveBatch(ctx, run.ID, listings); err != nil {
			o.log(ctx).WithError(err).Warn("Failed to archive raw listings")
		}
	}

	records := o.extractAll(ctx, run, listings)

	if len(records) > 0 {
		if err := o.records.UpsertBatch(ctx, records); err != nil {
			return o.failRun(ctx, run, runErrors, fmt.Errorf("failed to persist records: %w", err))
		}
		o.restoreFirstSeen(ctx, records)
	}

	resolved := o.resolveAll(ctx, run, records)

	pins, unresolved := o.deduper.BuildPins(resolved)
	run.UnresolvedRecords += unresolved
	run.PinCount = len(pins)

	// A cancelled cycle must never publish a half-built snapshot.
	if ctx.Err() != nil {
		run.Status = domain.RunStatusCancelled
		now := time.Now()
		run.CompletedAt = &now
		run.ErrorLog = strings.Join(runErrors, "\n")
		if err := o.runs.Update(context.WithoutCancel(ctx), run); err != nil {
			o.log(ctx).WithError(err).Error("Failed to update cancelled run")
		}
		o.log(ctx).Warn("Refresh cycle cancelled before commit")
		return run, ctx.Err()
	}

	snapshot, err := o.committer.Commit(ctx, run.ID, pins)
	if err != nil {
		return o.failRun(ctx, run, runErrors, err)
	}
	run.SnapshotGeneration = snapshot.Generation

	if o.indexer != nil {
		if indexed, err := o.indexer.IndexPins(ctx, pins); err != nil {
			o.log(ctx).WithFields(logger.Fields{
				"indexed": indexed,
				"total":   len(pins),
			}).WithError(err).Warn("Pin indexing incomplete")
		}
	}

	run.Status = domain.RunStatusCompleted
	if run.FailedSources > 0 || run.FailedExtractions > 0 {
		run.Status = domain.RunStatusPartial
	}
	now := time.Now()
	run.CompletedAt = &now
	run.ErrorLog = strings.Join(runErrors, "\n")
	if err := o.runs.Update(ctx, run); err != nil {
		o.log(ctx).WithError(err).Error("Failed to update run record")
	}

	o.log(ctx).WithFields(logger.Fields{
		"status":     run.Status,
		"fetched":    run.FetchedListings,
		"extracted":  run.ExtractedRecords,
		"unresolved": run.UnresolvedRecords,
		"pins":       run.PinCount,
		"generation": run.SnapshotGeneration,
		"duration":   now.Sub(run.StartedAt).String(),
	}).Info("Refresh cycle completed")

	return run, nil
}

// restoreFirstSeen overwrites the in-memory creation timestamps with the
// persisted ones. Upserts keep the stored created_at for records seen on
// earlier cycles, and the pins' first_seen_at must reflect that, not this
// cycle's re-extraction.
func (o *Orchestrator) restoreFirstSeen(ctx context.Context, records []domain.JobRecord) {
	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].ID
	}

	times, err := o.records.CreationTimes(ctx, ids)
	if err != nil {
		o.log(ctx).WithError(err).Warn("Failed to load record creation times")
		return
	}
	for i := range records {
		if t, ok := times[records[i].ID]; ok && !t.IsZero() {
			records[i].CreatedAt = t
		}
	}
}

func (o *Orchestrator) failRun(ctx context.Context, run *domain.RefreshRun, runErrors []string, cause error) (*domain.RefreshRun, error) {
	run.Status = domain.RunStatusFailed
	now := time.Now()
	run.CompletedAt = &now
	run.ErrorLog = strings.Join(append(runErrors, cause.Error()), "\n")
	if err := o.runs.Update(context.WithoutCancel(ctx), run); err != nil {
		o.log(ctx).WithError(err).Error("Failed to update failed run")
	}
	o.log(ctx).WithError(cause).Error("Refresh cycle failed, previous snapshot stays live")
	return run, cause
}

// pull fetches listings from all connectors concurrently. A failing
// connector contributes what it fetched before failing and is counted, so
// one broken source never empties the cycle.
func (o *Orchestrator) pull(ctx context.Context, run *domain.RefreshRun, runErrors *[]string) []domain.RawListing {
	pullCtx, cancel := context.WithTimeout(ctx, o.cfg.PullTimeout)
	defer cancel()

	var mu sync.Mutex
	var all []domain.RawListing

	g, gctx := errgroup.WithContext(pullCtx)
	for _, conn := range o.connectors {
		conn := conn
		g.Go(func() error {
			sctx := logger.SetSource(gctx, conn.SourceID())
			items, err := o.pullSource(sctx, conn)

			mu.Lock()
			all = append(all, items...)
			run.FetchedListings += len(items)
			if err != nil {
				run.FailedSources++
				*runErrors = append(*runErrors, fmt.Sprintf("source %s: %v", conn.SourceID(), err))
			}
			mu.Unlock()

			if err != nil {
				o.log(sctx).WithFields(logger.Fields{
					"fetched": len(items),
				}).WithError(err).Error("Source pull failed")
			}
			// Connector failures are isolated, never cancel siblings.
			return nil
		})
	}
	g.Wait()

	return all
}

func (o *Orchestrator) pullSource(ctx context.Context, conn source.Connector) ([]domain.RawListing, error) {
	var items []domain.RawListing
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		remaining := o.cfg.MaxListings - len(items)
		if remaining <= 0 {
			return items, nil
		}
		batchLimit := o.cfg.BatchSize
		if batchLimit > remaining {
			batchLimit = remaining
		}

		batch, nextCursor, err := conn.FetchBatch(ctx, cursor, batchLimit)
		items = append(items, batch...)
		if err != nil {
			return items, err
		}
		if nextCursor == "" {
			return items, nil
		}
		cursor = nextCursor
	}
}

type extractResult struct {
	record  *domain.JobRecord
	listing domain.RawListing
	err     error
}

// extractAll runs the extraction agent over all listings with a worker
// pool. Permanent failures are recorded and skipped; transient failures
// that survive the agent's retries are skipped for this cycle only.
func (o *Orchestrator) extractAll(ctx context.Context, run *domain.RefreshRun, listings []domain.RawListing) []domain.JobRecord {
	if len(listings) == 0 {
		return nil
	}

	itemsChan := make(chan domain.RawListing, o.cfg.ExtractWorkers*2)
	resultsChan := make(chan extractResult, o.cfg.ExtractWorkers*2)

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.ExtractWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for listing := range itemsChan {
				if ctx.Err() != nil {
					return
				}
				record, err := o.extractor.Extract(ctx, &listing)
				resultsChan <- extractResult{record: record, listing: listing, err: err}
			}
		}()
	}

	var records []domain.JobRecord
	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range resultsChan {
			if result.err == nil {
				records = append(records, *result.record)
				run.ExtractedRecords++
				continue
			}

			run.FailedExtractions++
			if errors.Is(result.err, domain.ErrPermanentExtraction) {
				failure := &domain.ExtractionFailure{
					RunID:            run.ID,
					SourceID:         result.listing.SourceID,
					SourceListingKey: result.listing.SourceKey,
					Reason:           ClassifyFailure(result.err),
					Message:          result.err.Error(),
				}
				if err := o.records.RecordFailure(ctx, failure); err != nil {
					o.log(ctx).WithError(err).Warn("Failed to record extraction failure")
				}
			} else {
				o.log(ctx).WithFields(logger.Fields{
					logger.FieldSource: result.listing.SourceID,
					"source_key":       result.listing.SourceKey,
				}).WithError(result.err).Warn("Extraction skipped this cycle")
			}
		}
	}()

	for _, listing := range listings {
		select {
		case itemsChan <- listing:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(itemsChan)
	wg.Wait()
	close(resultsChan)
	<-done

	return records
}

type resolveResult struct {
	resolved ResolvedRecord
	err      error
}

// resolveAll resolves record locations with a small worker pool. The
// resolver's cache and request coalescing absorb the duplication across
// records, and the geocoder's own limiter enforces the upstream rate.
func (o *Orchestrator) resolveAll(ctx context.Context, run *domain.RefreshRun, records []domain.JobRecord) []ResolvedRecord {
	if len(records) == 0 {
		return nil
	}

	itemsChan := make(chan domain.JobRecord, o.cfg.ResolveWorkers*2)
	resultsChan := make(chan resolveResult, o.cfg.ResolveWorkers*2)

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.ResolveWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range itemsChan {
				if ctx.Err() != nil {
					return
				}
				geo, err := o.resolver.Resolve(ctx, record.RawLocationText)
				resultsChan <- resolveResult{
					resolved: ResolvedRecord{Record: record, Geo: geo},
					err:      err,
				}
			}
		}()
	}

	resolved := make([]ResolvedRecord, 0, len(records))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range resultsChan {
			if result.err != nil {
				// Keep the record with an unresolved location; a later
				// cycle retries once the upstream recovers.
				o.log(ctx).WithFields(logger.Fields{
					"location": result.resolved.Record.RawLocationText,
				}).WithError(result.err).Warn("Location resolution failed")
				result.resolved.Geo = domain.GeoResult{Resolved: false}
			} else if result.resolved.Geo.Resolved {
				run.ResolvedLocations++
			}
			resolved = append(resolved, result.resolved)
		}
	}()

	for _, record := range records {
		select {
		case itemsChan <- record:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(itemsChan)
	wg.Wait()
	close(resultsChan)
	<-done

	return resolved
}
