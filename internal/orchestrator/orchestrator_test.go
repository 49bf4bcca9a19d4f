package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/internal/events"
	"github.com/kestrelworks/oppintel/internal/scoring"
	"github.com/kestrelworks/oppintel/pkg/config"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// fakeScanner is a controllable Scanner for cycle tests
type fakeScanner struct {
	name  string
	opps  []contracts.Opportunity
	err   error
	delay time.Duration

	calls   int32
	active  int32
	maxSeen int32
}

func (f *fakeScanner) Name() string { return f.name }

func (f *fakeScanner) Scan(ctx context.Context) ([]contracts.Opportunity, error) {
	atomic.AddInt32(&f.calls, 1)

	active := atomic.AddInt32(&f.active, 1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if active <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, active) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			atomic.AddInt32(&f.active, -1)
			return nil, ctx.Err()
		}
	}
	atomic.AddInt32(&f.active, -1)

	if f.err != nil {
		return nil, f.err
	}
	return f.opps, nil
}

// fakeRepository records persistence calls
type fakeRepository struct {
	mu     sync.Mutex
	saved  [][]contracts.ScoredOpportunity
	prunes []time.Duration
}

func (r *fakeRepository) SaveOpportunities(_ context.Context, opportunities []contracts.ScoredOpportunity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, opportunities)
	return nil
}

func (r *fakeRepository) DeleteOlderThan(_ context.Context, maxAge time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prunes = append(r.prunes, maxAge)
	return 1, nil
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		ScanInterval:       time.Hour,
		MaxConcurrentScans: 5,
		MinScore:           70,
		ScannerTimeout:     5 * time.Second,
		OpportunityMaxAge:  24 * time.Hour,
	}
}

func newTestOrchestrator(t *testing.T, cfg config.PipelineConfig) (*Orchestrator, *events.Bus) {
	return newTestOrchestratorWithRepo(t, cfg, nil)
}

func newTestOrchestratorWithRepo(t *testing.T, cfg config.PipelineConfig, repo Repository) (*Orchestrator, *events.Bus) {
	t.Helper()

	log := logger.NewNop()
	engine, err := scoring.NewEngine(scoring.DefaultWeights(), scoring.NewVelocityAnalyzer(0, log), log)
	require.NoError(t, err)

	bus := events.NewBus(log)
	t.Cleanup(bus.Close)

	return New(cfg, engine, bus, repo, log), bus
}

// strongOpportunity scores well above the default threshold
func strongOpportunity(title string) contracts.Opportunity {
	return contracts.Opportunity{
		Source: contracts.SourceAffiliate,
		Type:   "affiliate_product",
		Title:  title,
		Metrics: map[string]float64{
			"price":                   100,
			"commission_rate":         0.5,
			"cost_per_acquisition":    10,
			"estimated_monthly_sales": 2000,
			"gravity":                 90,
		},
		Competition: &contracts.Competition{Level: contracts.CompetitionLow},
		Market:      &contracts.MarketConditions{Trend: contracts.TrendGrowing, Volatility: contracts.VolatilityLow},
	}
}

// weakOpportunity scores well below the default threshold
func weakOpportunity(title string) contracts.Opportunity {
	return contracts.Opportunity{
		Source:      contracts.SourceSocial,
		Type:        "social_trend",
		Title:       title,
		Metrics:     map[string]float64{"growth_rate": -0.4},
		Competition: &contracts.Competition{Level: contracts.CompetitionHigh, SaturationPct: 80},
	}
}

func drainEvents(ch <-chan contracts.Event) map[contracts.EventKind][]contracts.Event {
	out := make(map[contracts.EventKind][]contracts.Event)
	for {
		select {
		case event := <-ch:
			out[event.Kind()] = append(out[event.Kind()], event)
		default:
			return out
		}
	}
}

func TestRegister_Guards(t *testing.T) {
	orch, _ := newTestOrchestrator(t, testPipelineConfig())

	assert.Error(t, orch.Register(nil), "nil scanner")
	assert.Error(t, orch.Register(&fakeScanner{name: ""}), "empty name")

	require.NoError(t, orch.Register(&fakeScanner{name: "dup"}))
	assert.Error(t, orch.Register(&fakeScanner{name: "dup"}), "duplicate name")
}

func TestPerformScan_FailureIsolation(t *testing.T) {
	orch, bus := newTestOrchestrator(t, testPipelineConfig())
	ch, cancel := bus.Subscribe()
	defer cancel()

	broken := &fakeScanner{name: "broken", err: errors.New("upstream 503")}
	healthy := &fakeScanner{name: "healthy", opps: []contracts.Opportunity{strongOpportunity("Yoga mat bundle")}}

	require.NoError(t, orch.Register(broken))
	require.NoError(t, orch.Register(healthy))

	orch.PerformScan(context.Background())

	active := orch.ActiveOpportunities()
	require.Len(t, active, 1, "healthy scanner's result must survive the broken one")
	assert.Equal(t, "Yoga mat bundle", active[0].Title)
	assert.GreaterOrEqual(t, active[0].Score, 70)

	byKind := drainEvents(ch)
	require.Len(t, byKind[contracts.EventScanError], 1)
	scanErr := byKind[contracts.EventScanError][0].(contracts.ScanError)
	assert.Equal(t, "broken", scanErr.Scanner)
	assert.Contains(t, scanErr.Err, "upstream 503")

	require.Len(t, byKind[contracts.EventScanCompleted], 1)
	assert.Equal(t, "healthy", byKind[contracts.EventScanCompleted][0].(contracts.ScanCompleted).Scanner)

	require.Len(t, byKind[contracts.EventOpportunitiesFound], 1)
	found := byKind[contracts.EventOpportunitiesFound][0].(contracts.OpportunitiesFound)
	require.Len(t, found.Opportunities, 1)
	assert.Equal(t, active[0].ID, found.Opportunities[0].ID)
}

func TestPerformScan_MinScoreFilter(t *testing.T) {
	orch, bus := newTestOrchestrator(t, testPipelineConfig())
	ch, cancel := bus.Subscribe()
	defer cancel()

	require.NoError(t, orch.Register(&fakeScanner{
		name: "social",
		opps: []contracts.Opportunity{weakOpportunity("#fadingtrend")},
	}))

	orch.PerformScan(context.Background())

	assert.Empty(t, orch.ActiveOpportunities(), "below-threshold candidates must not enter the store")

	byKind := drainEvents(ch)
	assert.Empty(t, byKind[contracts.EventOpportunitiesFound], "a cycle with no qualifiers publishes nothing")
	assert.Empty(t, byKind[contracts.EventScanError], "a clean scan with weak results is not an error")
	assert.Len(t, byKind[contracts.EventScanCompleted], 1)
}

func TestPerformScan_AllScannersRunUnderConcurrencyCap(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.MaxConcurrentScans = 2
	orch, _ := newTestOrchestrator(t, cfg)

	scanners := make([]*fakeScanner, 8)
	for i := range scanners {
		scanners[i] = &fakeScanner{name: fmt.Sprintf("scanner-%d", i), delay: 20 * time.Millisecond}
		require.NoError(t, orch.Register(scanners[i]))
	}

	orch.PerformScan(context.Background())

	var maxActive int32
	for _, s := range scanners {
		assert.Equal(t, int32(1), atomic.LoadInt32(&s.calls), "every scanner runs exactly once per cycle")
		if seen := atomic.LoadInt32(&s.maxSeen); seen > maxActive {
			maxActive = seen
		}
	}
	assert.LessOrEqual(t, maxActive, int32(2), "simultaneous scans must respect the cap")
}

func TestPerformScan_PanicIsolatedToScanner(t *testing.T) {
	orch, bus := newTestOrchestrator(t, testPipelineConfig())
	ch, cancel := bus.Subscribe()
	defer cancel()

	require.NoError(t, orch.Register(&panickyScanner{}))
	require.NoError(t, orch.Register(&fakeScanner{
		name: "healthy",
		opps: []contracts.Opportunity{strongOpportunity("Resistance band kit")},
	}))

	orch.PerformScan(context.Background())

	assert.Len(t, orch.ActiveOpportunities(), 1)

	byKind := drainEvents(ch)
	require.Len(t, byKind[contracts.EventScanError], 1)
	assert.Contains(t, byKind[contracts.EventScanError][0].(contracts.ScanError).Err, "panic")
}

type panickyScanner struct{}

func (panickyScanner) Name() string { return "panicky" }
func (panickyScanner) Scan(context.Context) ([]contracts.Opportunity, error) {
	panic("index out of range")
}

func TestPerformScan_UpsertPreservesFirstSeen(t *testing.T) {
	orch, _ := newTestOrchestrator(t, testPipelineConfig())

	require.NoError(t, orch.Register(&fakeScanner{
		name: "affiliate",
		opps: []contracts.Opportunity{strongOpportunity("Yoga mat bundle")},
	}))

	orch.PerformScan(context.Background())
	first := orch.ActiveOpportunities()
	require.Len(t, first, 1)

	time.Sleep(5 * time.Millisecond)
	orch.PerformScan(context.Background())
	second := orch.ActiveOpportunities()
	require.Len(t, second, 1, "rediscovery must upsert, not duplicate")

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].FirstSeen, second[0].FirstSeen, "FirstSeen survives rediscovery")
	assert.True(t, second[0].LastSeen.After(first[0].LastSeen), "LastSeen refreshes on rediscovery")
}

func TestPerformScan_SweepsStaleEntries(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.OpportunityMaxAge = time.Hour
	orch, bus := newTestOrchestrator(t, cfg)
	ch, cancel := bus.Subscribe()
	defer cancel()

	stale := contracts.ScoredOpportunity{
		ID:        "affiliate_scanner:affiliate_product:stale",
		Score:     85,
		FirstSeen: time.Now().Add(-3 * time.Hour),
		LastSeen:  time.Now().Add(-2 * time.Hour),
	}
	fresh := contracts.ScoredOpportunity{
		ID:        "affiliate_scanner:affiliate_product:fresh",
		Score:     75,
		FirstSeen: time.Now(),
		LastSeen:  time.Now(),
	}
	orch.store.applyBatch([]contracts.ScoredOpportunity{stale, fresh})

	orch.PerformScan(context.Background())

	_, ok := orch.Opportunity(stale.ID)
	assert.False(t, ok, "entry past max age must be swept")
	_, ok = orch.Opportunity(fresh.ID)
	assert.True(t, ok, "fresh entry must survive the sweep")

	byKind := drainEvents(ch)
	require.Len(t, byKind[contracts.EventOpportunityRemoved], 1)
	assert.Equal(t, stale.ID, byKind[contracts.EventOpportunityRemoved][0].(contracts.OpportunityRemoved).ID)
}

func TestPerformScan_PersistsAndPrunesRepository(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.OpportunityMaxAge = 6 * time.Hour
	repo := &fakeRepository{}
	orch, _ := newTestOrchestratorWithRepo(t, cfg, repo)

	require.NoError(t, orch.Register(&fakeScanner{
		name: "affiliate",
		opps: []contracts.Opportunity{strongOpportunity("Yoga mat bundle")},
	}))

	orch.PerformScan(context.Background())

	repo.mu.Lock()
	defer repo.mu.Unlock()

	require.Len(t, repo.saved, 1, "qualifying batch must be persisted")
	require.Len(t, repo.saved[0], 1)
	assert.Equal(t, "Yoga mat bundle", repo.saved[0][0].Title)

	require.Len(t, repo.prunes, 1, "cycle must expire the durable snapshot alongside the sweep")
	assert.Equal(t, 6*time.Hour, repo.prunes[0])
}

func TestPerformScan_NoPruneWhenMaxAgeDisabled(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.OpportunityMaxAge = 0
	repo := &fakeRepository{}
	orch, _ := newTestOrchestratorWithRepo(t, cfg, repo)

	require.NoError(t, orch.Register(&fakeScanner{name: "idle"}))
	orch.PerformScan(context.Background())

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Empty(t, repo.prunes, "disabled max age must not touch the repository")
}

func TestRemoveOpportunityAndStats(t *testing.T) {
	orch, bus := newTestOrchestrator(t, testPipelineConfig())
	ch, cancel := bus.Subscribe()
	defer cancel()

	now := time.Now()
	orch.store.applyBatch([]contracts.ScoredOpportunity{
		{ID: "a", Score: 90, FirstSeen: now, LastSeen: now},
		{ID: "b", Score: 70, FirstSeen: now, LastSeen: now},
	})

	stats := orch.Stats()
	assert.Equal(t, 2, stats.TotalOpportunities)
	assert.InDelta(t, 80.0, stats.AverageScore, 0.001)
	assert.Equal(t, 1, stats.HighPriorityCount)

	assert.True(t, orch.RemoveOpportunity("a"))
	assert.False(t, orch.RemoveOpportunity("a"), "second removal reports absence")
	assert.False(t, orch.RemoveOpportunity("missing"))

	byKind := drainEvents(ch)
	require.Len(t, byKind[contracts.EventOpportunityRemoved], 1)

	stats = orch.Stats()
	assert.Equal(t, 1, stats.TotalOpportunities)
	assert.Equal(t, 0, stats.HighPriorityCount)
}

func TestStartStopScanning(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.ScanInterval = time.Hour
	orch, bus := newTestOrchestrator(t, cfg)
	ch, cancel := bus.Subscribe()
	defer cancel()

	require.NoError(t, orch.StartScanning())
	assert.True(t, orch.Running())

	require.NoError(t, orch.StartScanning(), "second start is a no-op")

	orch.StopScanning()
	assert.False(t, orch.Running())
	orch.StopScanning() // idempotent

	byKind := drainEvents(ch)
	assert.Len(t, byKind[contracts.EventScanningStarted], 1)
	assert.Len(t, byKind[contracts.EventScanningStopped], 1)
}
