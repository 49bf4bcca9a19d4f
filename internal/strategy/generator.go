package strategy

import (
	"time"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// Generator turns a scored opportunity into a phased campaign
// strategy. Generation never fails outward: any error or panic along
// the way produces the conservative fallback strategy so scan-cycle
// completion is never blocked.
type Generator struct {
	logger *logger.Logger
	now    func() time.Time
}

// NewGenerator creates a strategy generator
func NewGenerator(log *logger.Logger) *Generator {
	return &Generator{
		logger: log.WithField("module", "strategy"),
		now:    time.Now,
	}
}

const (
	defaultBudget      = 1000.0
	contingencyShare   = 0.10
	highUrgencyCutoff  = 70.0
	highProfitROICut   = 150.0
	expiryUrgencyDays  = 14.0
	seasonalBonusDays  = 21.0
	velocityUrgencyCut = 70.0
	accelUrgencyCut    = 0.5
	momentumUrgencyCut = 75.0
)

// Generate builds a campaign strategy for one scored opportunity
func (g *Generator) Generate(opp contracts.ScoredOpportunity, constraints contracts.StrategyConstraints) (strategy contracts.CampaignStrategy) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.WithField("panic", r).WithField("id", opp.ID).Error("Strategy generation failed, using fallback")
			strategy = g.fallback(opp, constraints)
		}
	}()

	budget := constraints.TotalBudget
	if budget <= 0 {
		budget = defaultBudget
	}

	urgency := g.urgencyScore(opp)
	quadrant, approach := classify(urgency, roiOf(opp))

	channels := selectChannels(opp, approach, budget, constraints.PreferredChannels)
	reserve := budget * contingencyShare
	allocation := allocateBudget(approach, channels, budget-reserve)

	strategy = contracts.CampaignStrategy{
		OpportunityID:      opp.ID,
		Quadrant:           quadrant,
		PrimaryApproach:    approach,
		UrgencyScore:       urgency,
		Channels:           channels,
		BudgetAllocation:   allocation,
		ContingencyReserve: reserve,
		TotalBudget:        budget,
		Phases:             phasesFor(approach),
		KPIs:               kpisFor(opp),
		ContingencyPlans:   contingencyPlans(),
		GeneratedAt:        g.now(),
	}

	g.logger.WithFields(map[string]interface{}{
		"id":       opp.ID,
		"quadrant": string(quadrant),
		"approach": string(approach),
		"urgency":  urgency,
		"budget":   budget,
	}).Debug("Strategy generated")

	return strategy
}

// urgencyScore computes how time-critical the opportunity is, 0-100
func (g *Generator) urgencyScore(opp contracts.ScoredOpportunity) float64 {
	now := g.now()
	urgency := 50.0

	// Expiry proximity, scaled up to +40 inside a 14-day window
	if opp.ExpiresAt != nil {
		days := opp.ExpiresAt.Sub(now).Hours() / 24
		if days >= 0 && days <= expiryUrgencyDays {
			urgency += 40 * (expiryUrgencyDays - days) / expiryUrgencyDays
		}
	}

	// Velocity pressure
	if opp.Velocity != nil {
		if opp.Velocity.Overall >= velocityUrgencyCut {
			urgency += 25
		}
		if opp.Velocity.Acceleration > accelUrgencyCut {
			urgency += 20
		}
		if opp.Velocity.Momentum.Strength >= momentumUrgencyCut {
			urgency += 15
		}
	}

	// Source-specific pressure
	switch contracts.ClassifySource(opp.Source) {
	case contracts.ClassSocial:
		urgency += 30
	case contracts.ClassTiming:
		urgency += 35
	case contracts.ClassSeasonal:
		if opp.EventTiming != nil {
			days := opp.EventTiming.Date.Sub(now).Hours() / 24
			if days >= 0 && days <= seasonalBonusDays {
				urgency += 25
			}
		}
	}

	if urgency > 100 {
		urgency = 100
	}
	if urgency < 0 {
		urgency = 0
	}
	return urgency
}

// classify crosses urgency and profitability into a quadrant
func classify(urgency, roiPct float64) (contracts.Quadrant, contracts.Approach) {
	highUrgency := urgency >= highUrgencyCutoff
	highProfit := roiPct >= highProfitROICut

	switch {
	case highUrgency && highProfit:
		return contracts.QuadrantHighUrgencyHighProfit, contracts.ApproachRapidScale
	case highUrgency:
		return contracts.QuadrantHighUrgencyLowProfit, contracts.ApproachQuickTest
	case highProfit:
		return contracts.QuadrantLowUrgencyHighProfit, contracts.ApproachStrategicBuild
	default:
		return contracts.QuadrantLowUrgencyLowProfit, contracts.ApproachMinimalViable
	}
}

// roiOf reads the profitability detail's ROI, 0 when absent
func roiOf(opp contracts.ScoredOpportunity) float64 {
	if opp.Profitability == nil {
		return 0
	}
	return opp.Profitability.ROIPct
}

// fallback is the conservative strategy used when generation fails:
// organic-only, standard split, generic KPIs
func (g *Generator) fallback(opp contracts.ScoredOpportunity, constraints contracts.StrategyConstraints) contracts.CampaignStrategy {
	budget := constraints.TotalBudget
	if budget <= 0 {
		budget = defaultBudget
	}
	reserve := budget * contingencyShare

	return contracts.CampaignStrategy{
		OpportunityID:      opp.ID,
		Quadrant:           contracts.QuadrantLowUrgencyLowProfit,
		PrimaryApproach:    contracts.ApproachMinimalViable,
		UrgencyScore:       50,
		Channels:           []contracts.Channel{contracts.ChannelOrganic},
		BudgetAllocation:   map[contracts.Channel]float64{contracts.ChannelOrganic: budget - reserve},
		ContingencyReserve: reserve,
		TotalBudget:        budget,
		Phases:             phasesFor(contracts.ApproachMinimalViable),
		KPIs: contracts.KPISet{
			Primary: []string{"revenue", "roi", "customer_acquisition"},
			Leading: leadingIndicators(),
			Lagging: laggingIndicators(),
		},
		ContingencyPlans: contingencyPlans(),
		Fallback:         true,
		GeneratedAt:      g.now(),
	}
}
