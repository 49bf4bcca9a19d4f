package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/internal/events"
	"github.com/kestrelworks/oppintel/internal/scanner"
	"github.com/kestrelworks/oppintel/internal/scoring"
	"github.com/kestrelworks/oppintel/pkg/config"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// Repository persists scored opportunities after each cycle and
// expires stale ones in step with the in-memory sweep. Optional; the
// in-memory store remains the query surface either way.
type Repository interface {
	SaveOpportunities(ctx context.Context, opportunities []contracts.ScoredOpportunity) error
	DeleteOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Orchestrator owns the scanner registry, runs scheduled scan cycles
// through a bounded worker pool, scores candidates, maintains the
// active opportunity store and emits lifecycle events.
type Orchestrator struct {
	mu       sync.Mutex
	scanners map[string]scanner.Scanner
	order    []string // registration order, for stable cycle logging

	store  *activeStore
	engine *scoring.Engine
	bus    *events.Bus
	repo   Repository // may be nil
	cfg    config.PipelineConfig
	logger *logger.Logger

	cron        *cron.Cron
	entryID     cron.EntryID
	running     bool
	cycleCtx    context.Context
	cycleCancel context.CancelFunc

	cycles      int64
	lastCycleAt time.Time
}

// Stats summarizes the orchestrator and its working set
type Stats struct {
	TotalOpportunities int       `json:"total_opportunities"`
	AverageScore       float64   `json:"average_score"`
	HighPriorityCount  int       `json:"high_priority_count"` // score >= 80
	ScannerCount       int       `json:"scanner_count"`
	Running            bool      `json:"running"`
	CyclesCompleted    int64     `json:"cycles_completed"`
	LastCycleAt        time.Time `json:"last_cycle_at,omitempty"`
}

// New creates an orchestrator
func New(cfg config.PipelineConfig, engine *scoring.Engine, bus *events.Bus, repo Repository, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		scanners: make(map[string]scanner.Scanner),
		store:    newActiveStore(),
		engine:   engine,
		bus:      bus,
		repo:     repo,
		cfg:      cfg,
		logger:   log.WithField("module", "orchestrator"),
	}
}

// Register adds a scanner to the registry. Misregistration is a
// programmer error and fails fast, before any cycle runs.
func (o *Orchestrator) Register(s scanner.Scanner) error {
	if s == nil {
		return fmt.Errorf("scanner must not be nil")
	}
	name := s.Name()
	if name == "" {
		return fmt.Errorf("scanner name must not be empty")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.scanners[name]; exists {
		return fmt.Errorf("scanner %s already registered", name)
	}

	o.scanners[name] = s
	o.order = append(o.order, name)

	o.logger.WithField("scanner", name).Info("Scanner registered")
	o.bus.Publish(contracts.ScannerRegistered{Scanner: name})

	return nil
}

// StartScanning performs one immediate cycle and schedules repeating
// cycles at the configured interval. Idempotent: a second call while
// running is a no-op.
func (o *Orchestrator) StartScanning() error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil
	}

	o.cycleCtx, o.cycleCancel = context.WithCancel(context.Background())
	o.cron = cron.New()

	entryID, err := o.cron.AddFunc(fmt.Sprintf("@every %s", o.cfg.ScanInterval), func() {
		o.PerformScan(o.cycleCtx)
	})
	if err != nil {
		o.cycleCancel()
		o.mu.Unlock()
		return fmt.Errorf("schedule scan cycle: %w", err)
	}

	o.entryID = entryID
	o.running = true
	ctx := o.cycleCtx
	o.mu.Unlock()

	o.logger.WithField("interval", o.cfg.ScanInterval).Info("Scanning started")
	o.bus.Publish(contracts.ScanningStarted{Interval: o.cfg.ScanInterval})

	o.cron.Start()

	// Immediate first cycle
	go o.PerformScan(ctx)

	return nil
}

// StopScanning cancels the repeating schedule. An in-flight cycle is
// asked to wind down through its context; it is not hard-aborted.
func (o *Orchestrator) StopScanning() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	o.cron.Stop()
	o.cycleCancel()
	o.mu.Unlock()

	o.logger.Info("Scanning stopped")
	o.bus.Publish(contracts.ScanningStopped{})
}

// Running reports whether the scheduler is active
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

type scanResult struct {
	scanner       string
	opportunities []contracts.Opportunity
	duration      time.Duration
	err           error
}

// PerformScan runs one full scan cycle: sweep stale entries, run every
// registered scanner through a worker pool bounded by
// MaxConcurrentScans, score the flattened candidates, and apply
// qualifying results to the store as a single batch.
func (o *Orchestrator) PerformScan(ctx context.Context) {
	start := time.Now()

	// Expire stale entries before the batch update so readers still
	// see at most one transition per cycle
	for _, id := range o.store.sweepOlderThan(o.cfg.OpportunityMaxAge, start) {
		o.bus.Publish(contracts.OpportunityRemoved{ID: id})
	}
	o.pruneRepository(ctx)

	scanners := o.snapshotScanners()
	if len(scanners) == 0 {
		o.logger.Debug("No scanners registered, skipping cycle")
		return
	}

	results := o.runScanners(ctx, scanners)

	// Flatten, reporting per-scanner outcomes as we go
	candidates := []contracts.Opportunity{}
	for _, result := range results {
		if result.err != nil {
			o.logger.WithError(result.err).WithField("scanner", result.scanner).Warn("Scanner failed")
			o.bus.Publish(contracts.ScanError{Scanner: result.scanner, Err: result.err.Error()})
			continue
		}

		o.bus.Publish(contracts.ScanCompleted{
			Scanner:  result.scanner,
			Duration: result.duration,
			Found:    len(result.opportunities),
		})
		candidates = append(candidates, result.opportunities...)
	}

	qualified := o.scoreCandidates(ctx, candidates)

	if len(qualified) > 0 {
		o.store.applyBatch(qualified)
		o.persist(ctx, qualified)

		sort.Slice(qualified, func(i, j int) bool {
			return qualified[i].Score > qualified[j].Score
		})
		o.bus.Publish(contracts.OpportunitiesFound{Opportunities: qualified})
	}

	o.mu.Lock()
	o.cycles++
	o.lastCycleAt = start
	o.mu.Unlock()

	o.logger.WithFields(map[string]interface{}{
		"scanners":   len(scanners),
		"candidates": len(candidates),
		"qualified":  len(qualified),
		"duration":   time.Since(start),
	}).Info("Scan cycle completed")
}

// snapshotScanners copies the registry in registration order
func (o *Orchestrator) snapshotScanners() []scanner.Scanner {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]scanner.Scanner, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, o.scanners[name])
	}
	return out
}

// runScanners executes every scanner through a worker pool so all
// registered scanners run each cycle while at most MaxConcurrentScans
// execute simultaneously. Each call gets its own deadline, and a
// failure is isolated to its own result.
func (o *Orchestrator) runScanners(ctx context.Context, scanners []scanner.Scanner) []scanResult {
	jobs := make(chan scanner.Scanner, len(scanners))
	resultCh := make(chan scanResult, len(scanners))

	workers := o.cfg.MaxConcurrentScans
	if workers < 1 {
		workers = 1
	}
	if workers > len(scanners) {
		workers = len(scanners)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				resultCh <- o.runOne(ctx, s)
			}
		}()
	}

	for _, s := range scanners {
		jobs <- s
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]scanResult, 0, len(scanners))
	for result := range resultCh {
		results = append(results, result)
	}
	return results
}

// runOne executes a single scanner under its deadline, converting
// panics into scan errors so a broken scanner cannot take down a cycle
func (o *Orchestrator) runOne(ctx context.Context, s scanner.Scanner) (result scanResult) {
	result.scanner = s.Name()
	start := time.Now()

	defer func() {
		result.duration = time.Since(start)
		if r := recover(); r != nil {
			result.err = fmt.Errorf("scanner panic: %v", r)
			result.opportunities = nil
		}
	}()

	scanCtx := ctx
	if o.cfg.ScannerTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, o.cfg.ScannerTimeout)
		defer cancel()
	}

	opportunities, err := s.Scan(scanCtx)
	if err != nil {
		result.err = err
		return result
	}

	result.opportunities = opportunities
	return result
}

// scoreCandidates scores every candidate, dropping (and reporting)
// individual failures, and keeps those at or above the threshold
func (o *Orchestrator) scoreCandidates(ctx context.Context, candidates []contracts.Opportunity) []contracts.ScoredOpportunity {
	qualified := []contracts.ScoredOpportunity{}

	for _, candidate := range candidates {
		scored, err := o.safeScore(ctx, candidate)
		if err != nil {
			o.logger.WithError(err).WithField("title", candidate.Title).Warn("Scoring failed, dropping candidate")
			o.bus.Publish(contracts.ScoringError{
				Source: candidate.Source,
				Title:  candidate.Title,
				Err:    err.Error(),
			})
			continue
		}

		if scored.Score >= o.cfg.MinScore {
			qualified = append(qualified, *scored)
		}
	}

	return qualified
}

// safeScore shields the cycle from analyzer panics
func (o *Orchestrator) safeScore(ctx context.Context, candidate contracts.Opportunity) (scored *contracts.ScoredOpportunity, err error) {
	defer func() {
		if r := recover(); r != nil {
			scored = nil
			err = fmt.Errorf("scoring panic: %v", r)
		}
	}()

	return o.engine.Score(ctx, candidate)
}

// pruneRepository expires the durable snapshot in step with the
// in-memory sweep. Failure is observational only.
func (o *Orchestrator) pruneRepository(ctx context.Context) {
	if o.repo == nil || o.cfg.OpportunityMaxAge <= 0 {
		return
	}

	removed, err := o.repo.DeleteOlderThan(ctx, o.cfg.OpportunityMaxAge)
	if err != nil {
		o.logger.WithError(err).Warn("Failed to prune persisted opportunities")
		return
	}
	if removed > 0 {
		o.logger.WithField("removed", removed).Debug("Pruned persisted opportunities")
	}
}

// persist writes the cycle's batch to the repository when configured.
// Persistence failure is observational only.
func (o *Orchestrator) persist(ctx context.Context, batch []contracts.ScoredOpportunity) {
	if o.repo == nil {
		return
	}
	if err := o.repo.SaveOpportunities(ctx, batch); err != nil {
		o.logger.WithError(err).Warn("Failed to persist opportunity batch")
	}
}

// ActiveOpportunities returns all stored opportunities sorted
// descending by score
func (o *Orchestrator) ActiveOpportunities() []contracts.ScoredOpportunity {
	return o.store.all()
}

// Opportunity returns one stored opportunity by id
func (o *Orchestrator) Opportunity(id string) (contracts.ScoredOpportunity, bool) {
	return o.store.get(id)
}

// RemoveOpportunity deletes one entry and reports whether it existed
func (o *Orchestrator) RemoveOpportunity(id string) bool {
	removed := o.store.remove(id)
	if removed {
		o.bus.Publish(contracts.OpportunityRemoved{ID: id})
	}
	return removed
}

// Stats summarizes the working set and scheduler state
func (o *Orchestrator) Stats() Stats {
	count, avg, high := o.store.stats()

	o.mu.Lock()
	defer o.mu.Unlock()

	return Stats{
		TotalOpportunities: count,
		AverageScore:       avg,
		HighPriorityCount:  high,
		ScannerCount:       len(o.scanners),
		Running:            o.running,
		CyclesCompleted:    o.cycles,
		LastCycleAt:        o.lastCycleAt,
	}
}
