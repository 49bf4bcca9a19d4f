package scoring

import (
	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// CompetitionAnalyzer scores how contested an opportunity's space is.
// Less competition scores higher.
type CompetitionAnalyzer struct {
	logger *logger.Logger
}

// NewCompetitionAnalyzer creates a competition analyzer
func NewCompetitionAnalyzer(log *logger.Logger) *CompetitionAnalyzer {
	return &CompetitionAnalyzer{
		logger: log,
	}
}

const (
	competitionBase  = 70.0
	levelSwing       = 20.0
	saturationFactor = 0.3
	barrierBonus     = 5.0
)

// Analyze returns a competition sub-score in [0,100]. An opportunity
// without declared competition data keeps the neutral base.
func (a *CompetitionAnalyzer) Analyze(opp contracts.Opportunity) (float64, error) {
	score := competitionBase

	if opp.Competition == nil {
		return Clamp(score, 0, 100), nil
	}

	switch opp.Competition.Level {
	case contracts.CompetitionLow:
		score += levelSwing
	case contracts.CompetitionHigh:
		score -= levelSwing
	}

	// Saturation drags the score down, up to 30 points at 100%
	saturation := Clamp(opp.Competition.SaturationPct, 0, 100)
	score -= saturationFactor * saturation

	// Entry barriers protect whoever moves first
	score += barrierBonus * float64(len(opp.Competition.EntryBarriers))

	return Clamp(score, 0, 100), nil
}
