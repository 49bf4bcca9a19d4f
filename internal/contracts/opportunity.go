package contracts

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Opportunity source identifiers
const (
	SourceAffiliate = "affiliate_scanner"
	SourceSocial    = "social_scanner"
	SourceSeasonal  = "seasonal_scanner"
	SourceTiming    = "timing_scanner"
)

// SourceClass buckets a scanner source for velocity and strategy
// heuristics. Unknown sources fall back to ClassGeneric.
type SourceClass string

const (
	ClassAffiliate SourceClass = "affiliate"
	ClassSocial    SourceClass = "social"
	ClassSeasonal  SourceClass = "seasonal"
	ClassTiming    SourceClass = "timing"
	ClassGeneric   SourceClass = "generic"
)

// ClassifySource maps a scanner source name to its class
func ClassifySource(source string) SourceClass {
	s := strings.ToLower(source)
	switch {
	case strings.Contains(s, "affiliate"):
		return ClassAffiliate
	case strings.Contains(s, "social"):
		return ClassSocial
	case strings.Contains(s, "seasonal"):
		return ClassSeasonal
	case strings.Contains(s, "timing"):
		return ClassTiming
	default:
		return ClassGeneric
	}
}

// Opportunity is a raw candidate record produced by a scanner
type Opportunity struct {
	Source       string             `json:"source"`
	Type         string             `json:"type"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	DiscoveredAt time.Time          `json:"discovered_at"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`

	// Optional hints consumed by the scoring analyzers
	Seasonality *Seasonality      `json:"seasonality,omitempty"`
	EventTiming *EventTiming      `json:"event_timing,omitempty"`
	Competition *Competition      `json:"competition,omitempty"`
	Market      *MarketConditions `json:"market_conditions,omitempty"`
}

// Seasonality declares the calendar months an opportunity peaks in
type Seasonality struct {
	PeakMonths []time.Month `json:"peak_months"`
}

// InPeak reports whether the given month is a declared peak month
func (s *Seasonality) InPeak(month time.Month) bool {
	if s == nil {
		return false
	}
	for _, m := range s.PeakMonths {
		if m == month {
			return true
		}
	}
	return false
}

// EventTiming pins an opportunity to a calendar event
type EventTiming struct {
	Name string    `json:"name,omitempty"`
	Date time.Time `json:"date"`
}

// Competition levels
const (
	CompetitionLow    = "low"
	CompetitionMedium = "medium"
	CompetitionHigh   = "high"
)

// Competition describes the declared competitive landscape
type Competition struct {
	Level         string   `json:"level"`                    // low, medium, high
	SaturationPct float64  `json:"saturation_pct,omitempty"` // 0-100
	EntryBarriers []string `json:"entry_barriers,omitempty"`
}

// Market trend and volatility hints
const (
	TrendGrowing   = "growing"
	TrendStable    = "stable"
	TrendDeclining = "declining"

	VolatilityLow  = "low"
	VolatilityHigh = "high"
)

// MarketConditions carries broad market hints for timing adjustments
type MarketConditions struct {
	Trend      string `json:"trend,omitempty"`      // growing, stable, declining
	Volatility string `json:"volatility,omitempty"` // low, high
}

// ContentID derives a deterministic identifier from what the
// opportunity is: source, type and title. Discovery timestamps and
// measured metrics are deliberately excluded — metrics drift between
// cycles (engagement counts, days until an event) — so the same
// candidate found on a later cycle maps to the same id and upserts the
// existing entry with refreshed measurements.
func (o *Opportunity) ContentID() string {
	h := xxhash.New()
	h.WriteString(o.Source)
	h.WriteString("|")
	h.WriteString(o.Type)
	h.WriteString("|")
	h.WriteString(o.Title)

	return fmt.Sprintf("%s:%s:%016x", o.Source, o.Type, h.Sum64())
}

// ScoreBreakdown holds the four bounded sub-scores, each in [0,100]
type ScoreBreakdown struct {
	Profitability float64 `json:"profitability"`
	TrendVelocity float64 `json:"trend_velocity"`
	Timing        float64 `json:"timing"`
	Competition   float64 `json:"competition"`
}

// ScoredOpportunity is an opportunity that passed through the scoring
// engine. FirstSeen survives re-discovery; LastSeen and Score refresh.
type ScoredOpportunity struct {
	ID            string               `json:"id"`
	Score         int                  `json:"score"` // 0-100
	Breakdown     ScoreBreakdown       `json:"breakdown"`
	Profitability *ProfitabilityDetail `json:"profitability_detail,omitempty"`
	Velocity      *VelocityReport      `json:"velocity,omitempty"`
	FirstSeen     time.Time            `json:"first_seen"`
	LastSeen      time.Time            `json:"last_seen"`

	Opportunity
}

// ProfitabilityDetail carries the profitability analyzer's working
// figures; the strategy generator reads ROIPct for classification.
type ProfitabilityDetail struct {
	ROIPct        float64 `json:"roi_pct"`
	PaybackDays   float64 `json:"payback_days"`
	ProfitMargin  float64 `json:"profit_margin"`
	EstRevenue    float64 `json:"est_revenue"`
	EstCost       float64 `json:"est_cost"`
	MissingInputs bool    `json:"missing_inputs,omitempty"`
}
