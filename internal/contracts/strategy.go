package contracts

import "time"

// Quadrant is an urgency x profitability classification
type Quadrant string

const (
	QuadrantHighUrgencyHighProfit Quadrant = "high_urgency_high_profit"
	QuadrantHighUrgencyLowProfit  Quadrant = "high_urgency_low_profit"
	QuadrantLowUrgencyHighProfit  Quadrant = "low_urgency_high_profit"
	QuadrantLowUrgencyLowProfit   Quadrant = "low_urgency_low_profit"
)

// Approach names the campaign template a quadrant maps to
type Approach string

const (
	ApproachRapidScale     Approach = "rapid_scale"
	ApproachQuickTest      Approach = "quick_test"
	ApproachStrategicBuild Approach = "strategic_build"
	ApproachMinimalViable  Approach = "minimal_viable"
)

// Channel is a marketing execution channel
type Channel string

const (
	ChannelPaidSearch  Channel = "paid_search"
	ChannelSocialMedia Channel = "social_media"
	ChannelEmail       Channel = "email_marketing"
	ChannelDisplay     Channel = "display_ads"
	ChannelOrganic     Channel = "organic"
)

// Phase is one ordered step of a campaign plan
type Phase struct {
	Name        string   `json:"name"`
	Duration    string   `json:"duration"`
	BudgetShare float64  `json:"budget_share"` // fraction of working budget
	Objectives  []string `json:"objectives"`
}

// KPISet groups the strategy's success metrics
type KPISet struct {
	Primary []string `json:"primary"`
	Leading []string `json:"leading"`
	Lagging []string `json:"lagging"`
}

// ContingencyPlan prescribes a response to one failure scenario
type ContingencyPlan struct {
	Scenario string   `json:"scenario"`
	Trigger  string   `json:"trigger"`
	Actions  []string `json:"actions"`
}

// StrategyConstraints are optional caller inputs to strategy generation
type StrategyConstraints struct {
	TotalBudget       float64   `json:"total_budget,omitempty"`
	PreferredChannels []Channel `json:"preferred_channels,omitempty"`
}

// CampaignStrategy is the derived, read-only execution plan for one
// scored opportunity. Values are never mutated after generation;
// regenerating produces a fresh value.
type CampaignStrategy struct {
	OpportunityID      string              `json:"opportunity_id"`
	Quadrant           Quadrant            `json:"strategic_quadrant"`
	PrimaryApproach    Approach            `json:"primary_approach"`
	UrgencyScore       float64             `json:"urgency_score"` // 0-100
	Channels           []Channel           `json:"channels"`
	BudgetAllocation   map[Channel]float64 `json:"budget_allocation"`
	ContingencyReserve float64             `json:"contingency_reserve"` // flat 10% of total
	TotalBudget        float64             `json:"total_budget"`
	Phases             []Phase             `json:"phases"`
	KPIs               KPISet              `json:"kpis"`
	ContingencyPlans   []ContingencyPlan   `json:"contingency_plans"`
	Fallback           bool                `json:"fallback,omitempty"`
	GeneratedAt        time.Time           `json:"generated_at"`
}

// AllocatedTotal sums channel allocations plus the contingency reserve
func (s *CampaignStrategy) AllocatedTotal() float64 {
	total := s.ContingencyReserve
	for _, amount := range s.BudgetAllocation {
		total += amount
	}
	return total
}
