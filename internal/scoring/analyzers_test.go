package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

func TestProfitabilityAnalyzer_Analyze(t *testing.T) {
	analyzer := NewProfitabilityAnalyzer(logger.NewNop())

	tests := []struct {
		name        string
		metrics     map[string]float64
		wantScore   float64
		wantROI     float64
		wantMissing bool
	}{
		{
			name: "explicit acquisition cost",
			metrics: map[string]float64{
				"price":                   100,
				"commission_rate":         0.5,
				"cost_per_acquisition":    10,
				"estimated_monthly_sales": 2000,
			},
			// ROI 400% caps the ROI component at 50, margin 0.8 gives 24,
			// volume saturates at 20
			wantScore: 94,
			wantROI:   400,
		},
		{
			name: "default cost share when no cost declared",
			metrics: map[string]float64{
				"price":           50,
				"commission_rate": 0.4,
			},
			// cost = 0.6 * revenue, so ROI = 0.4/0.6 and margin = 0.4
			wantScore: 200.0/3/300*50 + 0.4*100*0.3,
			wantROI:   100.0 * 2 / 3,
		},
		{
			name:        "no monetary metrics floors at 20",
			metrics:     map[string]float64{"engagement_count": 9000},
			wantScore:   20,
			wantMissing: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := contracts.Opportunity{Source: contracts.SourceAffiliate, Title: "x", Metrics: tt.metrics}

			score, detail, err := analyzer.Analyze(opp)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}

			if math.Abs(score-tt.wantScore) > 0.01 {
				t.Errorf("score = %v, want %v", score, tt.wantScore)
			}
			if detail.MissingInputs != tt.wantMissing {
				t.Errorf("MissingInputs = %v, want %v", detail.MissingInputs, tt.wantMissing)
			}
			if !tt.wantMissing && math.Abs(detail.ROIPct-tt.wantROI) > 0.01 {
				t.Errorf("ROIPct = %v, want %v", detail.ROIPct, tt.wantROI)
			}
		})
	}
}

func TestTimingAnalyzer_Analyze(t *testing.T) {
	fixedNow := time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		opp  contracts.Opportunity
		want float64
	}{
		{
			name: "bare opportunity keeps the base",
			opp:  contracts.Opportunity{Source: "x", Title: "x"},
			want: 50,
		},
		{
			name: "peak month bonus",
			opp: contracts.Opportunity{
				Seasonality: &contracts.Seasonality{PeakMonths: []time.Month{time.June}},
			},
			want: 80,
		},
		{
			name: "event 15 days out earns half the event bonus",
			opp: contracts.Opportunity{
				EventTiming: &contracts.EventTiming{Date: fixedNow.AddDate(0, 0, 15)},
			},
			want: 70,
		},
		{
			name: "event beyond the lookahead earns nothing",
			opp: contracts.Opportunity{
				EventTiming: &contracts.EventTiming{Date: fixedNow.AddDate(0, 0, 45)},
			},
			want: 50,
		},
		{
			name: "growing low-volatility market",
			opp: contracts.Opportunity{
				Market: &contracts.MarketConditions{Trend: contracts.TrendGrowing, Volatility: contracts.VolatilityLow},
			},
			want: 75,
		},
		{
			name: "declining high-volatility market",
			opp: contracts.Opportunity{
				Market: &contracts.MarketConditions{Trend: contracts.TrendDeclining, Volatility: contracts.VolatilityHigh},
			},
			want: 35,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := NewTimingAnalyzer(logger.NewNop())
			analyzer.now = func() time.Time { return fixedNow }

			got, err := analyzer.Analyze(tt.opp)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompetitionAnalyzer_Analyze(t *testing.T) {
	analyzer := NewCompetitionAnalyzer(logger.NewNop())

	tests := []struct {
		name string
		comp *contracts.Competition
		want float64
	}{
		{"no competition data is neutral", nil, 70},
		{"low competition", &contracts.Competition{Level: contracts.CompetitionLow}, 90},
		{"high competition", &contracts.Competition{Level: contracts.CompetitionHigh}, 50},
		{
			"saturation drags the score",
			&contracts.Competition{Level: contracts.CompetitionMedium, SaturationPct: 100},
			40,
		},
		{
			"entry barriers protect the mover",
			&contracts.Competition{Level: contracts.CompetitionLow, EntryBarriers: []string{"licensing", "inventory"}},
			100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := analyzer.Analyze(contracts.Opportunity{Competition: tt.comp})
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}
