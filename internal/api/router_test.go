package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/oppintel/internal/api/handlers"
	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/internal/events"
	"github.com/kestrelworks/oppintel/internal/orchestrator"
	"github.com/kestrelworks/oppintel/internal/scoring"
	"github.com/kestrelworks/oppintel/internal/strategy"
	"github.com/kestrelworks/oppintel/pkg/config"
	"github.com/kestrelworks/oppintel/pkg/logger"
	"github.com/kestrelworks/oppintel/pkg/redis"
)

type stubScanner struct {
	opps []contracts.Opportunity
}

func (stubScanner) Name() string { return "stub_affiliate_scanner" }
func (s stubScanner) Scan(context.Context) ([]contracts.Opportunity, error) {
	return s.opps, nil
}

// newTestServer builds the full API around an orchestrator that has
// already completed one scan cycle
func newTestServer(t *testing.T) (*httptest.Server, *events.Bus, string) {
	t.Helper()
	log := logger.NewNop()

	engine, err := scoring.NewEngine(scoring.DefaultWeights(), scoring.NewVelocityAnalyzer(0, log), log)
	require.NoError(t, err)

	bus := events.NewBus(log)
	t.Cleanup(bus.Close)

	cfg := config.PipelineConfig{
		ScanInterval:       time.Hour,
		MaxConcurrentScans: 5,
		MinScore:           70,
		ScannerTimeout:     5 * time.Second,
	}
	orch := orchestrator.New(cfg, engine, bus, nil, log)

	require.NoError(t, orch.Register(stubScanner{opps: []contracts.Opportunity{{
		Source: contracts.SourceAffiliate,
		Type:   "affiliate_product",
		Title:  "Yoga mat bundle",
		Metrics: map[string]float64{
			"price":                   100,
			"commission_rate":         0.5,
			"cost_per_acquisition":    10,
			"estimated_monthly_sales": 2000,
			"gravity":                 90,
		},
		Competition: &contracts.Competition{Level: contracts.CompetitionLow},
		Market:      &contracts.MarketConditions{Trend: contracts.TrendGrowing, Volatility: contracts.VolatilityLow},
	}}}))
	orch.PerformScan(context.Background())

	active := orch.ActiveOpportunities()
	require.Len(t, active, 1)

	redisClient, err := redis.New(&config.Config{})
	require.NoError(t, err)
	cache := redis.NewCache(redisClient, "oppintel")

	router := NewRouter(
		handlers.NewOpportunityHandler(orch, strategy.NewGenerator(log), cache, log),
		handlers.NewEventsHandler(bus, log),
		log,
	)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, bus, active[0].ID
}

func getJSON(t *testing.T, url string, dest interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if dest != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	var body map[string]interface{}
	status := getJSON(t, server.URL+"/health", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestListAndGetOpportunities(t *testing.T) {
	server, _, id := newTestServer(t)

	var list struct {
		Opportunities []contracts.ScoredOpportunity `json:"opportunities"`
	}
	status := getJSON(t, server.URL+"/api/v1/opportunities", &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list.Opportunities, 1)
	assert.Equal(t, id, list.Opportunities[0].ID)
	assert.GreaterOrEqual(t, list.Opportunities[0].Score, 70)

	var single contracts.ScoredOpportunity
	status = getJSON(t, server.URL+"/api/v1/opportunities/"+id, &single)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Yoga mat bundle", single.Title)

	status = getJSON(t, server.URL+"/api/v1/opportunities/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGenerateStrategyEndpoint(t *testing.T) {
	server, _, id := newTestServer(t)

	body := strings.NewReader(`{"total_budget": 5000}`)
	resp, err := http.Post(server.URL+"/api/v1/opportunities/"+id+"/strategy", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result contracts.CampaignStrategy
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	assert.Equal(t, id, result.OpportunityID)
	assert.Equal(t, 5000.0, result.TotalBudget)
	assert.InDelta(t, 500.0, result.ContingencyReserve, 0.001)
	assert.NotEmpty(t, result.Channels)
	assert.NotEmpty(t, result.Phases)

	// A repeated request with identical constraints is served from the
	// strategy cache, so the original generation timestamp comes back
	resp, err = http.Post(server.URL+"/api/v1/opportunities/"+id+"/strategy", "application/json",
		strings.NewReader(`{"total_budget": 5000}`))
	require.NoError(t, err)
	var repeated contracts.CampaignStrategy
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&repeated))
	resp.Body.Close()
	assert.True(t, result.GeneratedAt.Equal(repeated.GeneratedAt))

	// Different constraints miss the cache and generate fresh
	resp, err = http.Post(server.URL+"/api/v1/opportunities/"+id+"/strategy", "application/json",
		strings.NewReader(`{"total_budget": 9000}`))
	require.NoError(t, err)
	var other contracts.CampaignStrategy
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&other))
	resp.Body.Close()
	assert.Equal(t, 9000.0, other.TotalBudget)

	// Unknown opportunity
	resp, err = http.Post(server.URL+"/api/v1/opportunities/nope/strategy", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRemoveOpportunityEndpoint(t *testing.T) {
	server, _, id := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/opportunities/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Second delete reports absence
	resp, err = http.DefaultClient.Do(req.Clone(context.Background()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	var stats orchestrator.Stats
	status := getJSON(t, server.URL+"/api/v1/stats", &stats)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, stats.TotalOpportunities)
	assert.Equal(t, 1, stats.ScannerCount)
	assert.EqualValues(t, 1, stats.CyclesCompleted)
}

func TestEventStream(t *testing.T) {
	server, bus, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Give the stream handler a moment to subscribe before publishing
	time.Sleep(100 * time.Millisecond)
	bus.Publish(contracts.ScanCompleted{Scanner: "stub_affiliate_scanner", Found: 1})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var envelope struct {
		Kind    contracts.EventKind `json:"kind"`
		Payload json.RawMessage     `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&envelope))

	assert.Equal(t, contracts.EventScanCompleted, envelope.Kind)

	var payload contracts.ScanCompleted
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, "stub_affiliate_scanner", payload.Scanner)
}
