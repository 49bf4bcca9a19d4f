package scoring

import (
	"time"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// TimingAnalyzer scores how well the current calendar position suits
// an opportunity: seasonal peaks, approaching events and broad market
// conditions.
type TimingAnalyzer struct {
	logger *logger.Logger
	now    func() time.Time
}

// NewTimingAnalyzer creates a timing analyzer
func NewTimingAnalyzer(log *logger.Logger) *TimingAnalyzer {
	return &TimingAnalyzer{
		logger: log,
		now:    time.Now,
	}
}

const (
	timingBase         = 50.0
	seasonalPeakBonus  = 30.0
	eventMaxBonus      = 40.0
	eventLookaheadDays = 30.0
)

// Analyze returns a timing sub-score in [0,100]
func (a *TimingAnalyzer) Analyze(opp contracts.Opportunity) (float64, error) {
	now := a.now()
	score := timingBase

	// Seasonal peak month
	if opp.Seasonality.InPeak(now.Month()) {
		score += seasonalPeakBonus
	}

	// Event proximity: closer events earn more, 30-day lookahead
	if opp.EventTiming != nil {
		days := opp.EventTiming.Date.Sub(now).Hours() / 24
		if days >= 0 && days <= eventLookaheadDays {
			score += eventMaxBonus * (eventLookaheadDays - days) / eventLookaheadDays
		}
	}

	// Market condition modifiers
	if opp.Market != nil {
		switch opp.Market.Trend {
		case contracts.TrendGrowing:
			score += 15
		case contracts.TrendStable:
			score += 5
		case contracts.TrendDeclining:
			score -= 10
		}

		switch opp.Market.Volatility {
		case contracts.VolatilityLow:
			score += 10
		case contracts.VolatilityHigh:
			score -= 5
		}
	}

	return Clamp(score, 0, 100), nil
}
