package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// Weights defines the contribution of each analyzer to the overall
// score. Must sum to 1.0.
type Weights struct {
	Profitability float64
	TrendVelocity float64
	Timing        float64
	Competition   float64
}

// DefaultWeights returns the production weight set
func DefaultWeights() Weights {
	return Weights{
		Profitability: 0.40,
		TrendVelocity: 0.30,
		Timing:        0.20,
		Competition:   0.10,
	}
}

// Validate checks that weights sum to 1.0
func (w Weights) Validate() error {
	sum := w.Profitability + w.TrendVelocity + w.Timing + w.Competition
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("score weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// Engine combines the four analyzers into one overall score
type Engine struct {
	weights       Weights
	profitability *ProfitabilityAnalyzer
	timing        *TimingAnalyzer
	competition   *CompetitionAnalyzer
	velocity      *VelocityAnalyzer
	logger        *logger.Logger
}

// NewEngine creates a scoring engine
func NewEngine(weights Weights, velocity *VelocityAnalyzer, log *logger.Logger) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		weights:       weights,
		profitability: NewProfitabilityAnalyzer(log),
		timing:        NewTimingAnalyzer(log),
		competition:   NewCompetitionAnalyzer(log),
		velocity:      velocity,
		logger:        log.WithField("module", "scoring"),
	}, nil
}

// Score runs every analyzer over a raw opportunity and produces a
// ScoredOpportunity. Each sub-score is clamped to [0,100] before
// weighting; the final score is rounded and clamped to [0,100].
func (e *Engine) Score(ctx context.Context, opp contracts.Opportunity) (*contracts.ScoredOpportunity, error) {
	if opp.Source == "" || opp.Title == "" {
		return nil, fmt.Errorf("opportunity missing source or title")
	}

	id := opp.ContentID()

	profitScore, profitDetail, err := e.profitability.Analyze(opp)
	if err != nil {
		return nil, fmt.Errorf("profitability analysis: %w", err)
	}

	timingScore, err := e.timing.Analyze(opp)
	if err != nil {
		return nil, fmt.Errorf("timing analysis: %w", err)
	}

	competitionScore, err := e.competition.Analyze(opp)
	if err != nil {
		return nil, fmt.Errorf("competition analysis: %w", err)
	}

	velocityReport, err := e.velocity.Analyze(opp, id)
	if err != nil {
		return nil, fmt.Errorf("velocity analysis: %w", err)
	}

	breakdown := contracts.ScoreBreakdown{
		Profitability: Clamp(profitScore, 0, 100),
		TrendVelocity: Clamp(velocityReport.Overall, 0, 100),
		Timing:        Clamp(timingScore, 0, 100),
		Competition:   Clamp(competitionScore, 0, 100),
	}

	weighted := breakdown.Profitability*e.weights.Profitability +
		breakdown.TrendVelocity*e.weights.TrendVelocity +
		breakdown.Timing*e.weights.Timing +
		breakdown.Competition*e.weights.Competition

	score := int(Clamp(math.Round(weighted), 0, 100))

	now := time.Now()
	scored := &contracts.ScoredOpportunity{
		ID:            id,
		Score:         score,
		Breakdown:     breakdown,
		Profitability: profitDetail,
		Velocity:      velocityReport,
		FirstSeen:     now,
		LastSeen:      now,
		Opportunity:   opp,
	}

	e.logger.WithFields(map[string]interface{}{
		"id":            id,
		"score":         score,
		"profitability": breakdown.Profitability,
		"velocity":      breakdown.TrendVelocity,
		"timing":        breakdown.Timing,
		"competition":   breakdown.Competition,
	}).Debug("Scored opportunity")

	return scored, nil
}

// Clamp bounds a value to [lo, hi]
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
