package scoring

import (
	"math"
	"sync"
	"time"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// VelocityAnalyzer computes trend velocity per source class. Each
// source implies a different growth shape: affiliate gravity moves
// slowly and steadily, social virality is fast and volatile, seasonal
// velocity ramps as the event date approaches.
//
// The analyzer keeps a bounded rolling history per opportunity id so
// acceleration can compare against the previous recorded velocity.
type VelocityAnalyzer struct {
	mu      sync.Mutex
	history map[string][]velocitySample

	highRiskThreshold float64
	now               func() time.Time
	logger            *logger.Logger
}

type velocitySample struct {
	Velocity   float64
	RecordedAt time.Time
}

// maxHistorySamples bounds the per-id rolling history
const maxHistorySamples = 24

// NewVelocityAnalyzer creates a velocity analyzer. highRiskThreshold
// grades volatility risk; 0 selects the default of 0.5.
func NewVelocityAnalyzer(highRiskThreshold float64, log *logger.Logger) *VelocityAnalyzer {
	if highRiskThreshold <= 0 {
		highRiskThreshold = 0.5
	}
	return &VelocityAnalyzer{
		history:           make(map[string][]velocitySample),
		highRiskThreshold: highRiskThreshold,
		now:               time.Now,
		logger:            log,
	}
}

// Analyze produces the full velocity report for one opportunity
func (a *VelocityAnalyzer) Analyze(opp contracts.Opportunity, id string) (*contracts.VelocityReport, error) {
	short, medium, long := a.windowVelocities(opp)

	// Recency-weighted overall velocity
	overall := Clamp(0.5*short+0.3*medium+0.2*long, 0, 100)

	acceleration := a.recordAndAccelerate(id, overall)

	direction := contracts.DirectionStable
	switch {
	case acceleration > 0.05:
		direction = contracts.DirectionUp
	case acceleration < -0.05:
		direction = contracts.DirectionDown
	}

	consistency := windowConsistency(short, medium, long)

	momentum := contracts.Momentum{
		Strength:       momentumStrength(overall, acceleration, consistency),
		Sustainability: a.sustainability(opp, consistency, acceleration),
	}

	volatility := a.volatility(short, long, acceleration)

	report := &contracts.VelocityReport{
		Overall:      overall,
		ShortTerm:    short,
		MediumTerm:   medium,
		LongTerm:     long,
		Acceleration: acceleration,
		Direction:    direction,
		Consistency:  consistency,
		Momentum:     momentum,
		Volatility:   volatility,
		Predictions:  a.predictions(short, medium, long, momentum, consistency, volatility),
	}

	return report, nil
}

// windowVelocities derives short (~1-6h), medium (~6-24h) and long
// (24h+) velocities from the source class's characteristic metrics
func (a *VelocityAnalyzer) windowVelocities(opp contracts.Opportunity) (short, medium, long float64) {
	switch contracts.ClassifySource(opp.Source) {
	case contracts.ClassAffiliate:
		// Gravity changes slowly; long-term slightly exceeds short
		base := Clamp(metric(opp, "gravity"), 0, 100)
		return Clamp(base*0.9, 0, 100), base, Clamp(base*1.05, 0, 100)

	case contracts.ClassSocial:
		// Virality front-loads the short window and decays
		growth := metric(opp, "growth_rate")
		base := Clamp(50+growth*100, 0, 100)
		ageHours := metric(opp, "trend_age_hours")
		decay := 1.0
		if ageHours > 24 {
			decay = 24 / ageHours
		}
		return Clamp(base*1.3*decay, 0, 100), Clamp(base*decay, 0, 100), Clamp(base*0.6*decay, 0, 100)

	case contracts.ClassSeasonal:
		// Velocity ramps as the event approaches
		days := metric(opp, "days_until_event")
		base := Clamp((90-days)/90*100, 0, 100)
		return Clamp(base*1.1, 0, 100), base, Clamp(base*0.8, 0, 100)

	case contracts.ClassTiming:
		// Deadline-driven: everything compresses into the short window
		days := deadlineDays(opp, a.now())
		base := Clamp((30-days)/30*100, 0, 100)
		return Clamp(base*1.2, 0, 100), Clamp(base*0.9, 0, 100), Clamp(base*0.5, 0, 100)

	default:
		growth := metric(opp, "growth_rate")
		base := Clamp(40+growth*50, 0, 100)
		return base, base, base
	}
}

// recordAndAccelerate appends the new overall velocity to the rolling
// history and returns the normalized change against the previous
// sample for the same id
func (a *VelocityAnalyzer) recordAndAccelerate(id string, overall float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	samples := a.history[id]

	acceleration := 0.0
	if len(samples) > 0 {
		prev := samples[len(samples)-1].Velocity
		acceleration = (overall - prev) / 100
	}

	samples = append(samples, velocitySample{Velocity: overall, RecordedAt: a.now()})
	if len(samples) > maxHistorySamples {
		samples = samples[len(samples)-maxHistorySamples:]
	}
	a.history[id] = samples

	return acceleration
}

// windowConsistency is the inverse coefficient of variation across the
// three window velocities, in [0,1]
func windowConsistency(short, medium, long float64) float64 {
	mean := (short + medium + long) / 3
	if mean == 0 {
		return 0
	}

	variance := (math.Pow(short-mean, 2) + math.Pow(medium-mean, 2) + math.Pow(long-mean, 2)) / 3
	cov := math.Sqrt(variance) / mean

	return Clamp(1-cov, 0, 1)
}

// momentumStrength combines velocity (40%), |acceleration| (30%) and
// consistency (30%) into [0,100]
func momentumStrength(overall, acceleration, consistency float64) float64 {
	return Clamp(0.4*overall+0.3*math.Abs(acceleration)*100+0.3*consistency*100, 0, 100)
}

// sustainability starts from a source-weighted base and adjusts for
// consistency and acceleration sign
func (a *VelocityAnalyzer) sustainability(opp contracts.Opportunity, consistency, acceleration float64) float64 {
	base := 50.0

	switch contracts.ClassifySource(opp.Source) {
	case contracts.ClassAffiliate:
		base += 20
	case contracts.ClassSocial:
		base -= 20
	case contracts.ClassSeasonal:
		base += 15
	case contracts.ClassTiming:
		base -= 30
	}

	base += consistency * 20
	if acceleration > 0 {
		base += 10
	} else if acceleration < 0 {
		base -= 10
	}

	return Clamp(base, 0, 100)
}

// volatility averages the short-long velocity spread with the
// acceleration magnitude
func (a *VelocityAnalyzer) volatility(short, long, acceleration float64) contracts.Volatility {
	spread := math.Abs(short-long) / 100
	level := Clamp((spread+math.Abs(acceleration))/2, 0, 1)

	risk := contracts.RiskMedium
	switch {
	case level > a.highRiskThreshold:
		risk = contracts.RiskHigh
	case level < 0.2:
		risk = contracts.RiskLow
	}

	return contracts.Volatility{Level: level, Risk: risk}
}

// predictions derives a per-horizon predictive score from the window
// velocity, boosted or discounted by momentum, with confidence fading
// over longer horizons
func (a *VelocityAnalyzer) predictions(short, medium, long float64, momentum contracts.Momentum, consistency float64, volatility contracts.Volatility) contracts.Predictions {
	boost := 0.7 + 0.3*momentum.Strength/100
	sustain := 0.6 + 0.4*momentum.Sustainability/100

	baseConfidence := Clamp(consistency*(1-volatility.Level), 0, 1)

	return contracts.Predictions{
		ShortTerm: contracts.WindowPrediction{
			Score:      Clamp(short*boost, 0, 100),
			Confidence: Clamp(baseConfidence*1.0, 0, 1),
		},
		MediumTerm: contracts.WindowPrediction{
			Score:      Clamp(medium*boost, 0, 100),
			Confidence: Clamp(baseConfidence*0.8, 0, 1),
		},
		LongTerm: contracts.WindowPrediction{
			Score:      Clamp(long*boost*sustain, 0, 100),
			Confidence: Clamp(baseConfidence*0.6, 0, 1),
		},
	}
}

// HistoryLen reports how many samples are recorded for an id
func (a *VelocityAnalyzer) HistoryLen(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.history[id])
}

// deadlineDays reads days remaining until expiry, large when unset
func deadlineDays(opp contracts.Opportunity, now time.Time) float64 {
	if opp.ExpiresAt == nil {
		return 30
	}
	return opp.ExpiresAt.Sub(now).Hours() / 24
}
