package strategy

import (
	"github.com/kestrelworks/oppintel/internal/contracts"
)

// Budget tiers deciding how many channels a campaign can sustain
const (
	tierFull  = 10000.0 // all four paid channels
	tierThree = 2000.0
	tierTwo   = 500.0
)

// phasesFor returns the fixed ordered phase template for an approach.
// Budget shares across phases sum to 1.0 of the working budget.
func phasesFor(approach contracts.Approach) []contracts.Phase {
	switch approach {
	case contracts.ApproachRapidScale:
		return []contracts.Phase{
			{Name: "Immediate Launch", Duration: "1-3 days", BudgetShare: 0.30,
				Objectives: []string{"Launch on all selected channels", "Establish conversion baseline"}},
			{Name: "Scale & Optimize", Duration: "1-2 weeks", BudgetShare: 0.50,
				Objectives: []string{"Shift spend to winning channels", "Optimize creatives and targeting"}},
			{Name: "Maximize & Sustain", Duration: "2-4 weeks", BudgetShare: 0.20,
				Objectives: []string{"Defend position", "Harvest remaining demand"}},
		}
	case contracts.ApproachQuickTest:
		return []contracts.Phase{
			{Name: "Rapid Validation", Duration: "2-4 days", BudgetShare: 0.50,
				Objectives: []string{"Validate demand with minimal spend", "Measure conversion signal"}},
			{Name: "Double Down or Exit", Duration: "1 week", BudgetShare: 0.50,
				Objectives: []string{"Scale if validated", "Cut losses fast otherwise"}},
		}
	case contracts.ApproachStrategicBuild:
		return []contracts.Phase{
			{Name: "Foundation", Duration: "1-2 weeks", BudgetShare: 0.25,
				Objectives: []string{"Build landing assets and tracking", "Seed organic presence"}},
			{Name: "Growth", Duration: "2-6 weeks", BudgetShare: 0.45,
				Objectives: []string{"Expand paid acquisition", "Build email list"}},
			{Name: "Consolidation", Duration: "6-12 weeks", BudgetShare: 0.30,
				Objectives: []string{"Optimize unit economics", "Lock in recurring revenue"}},
		}
	default: // minimal_viable
		return []contracts.Phase{
			{Name: "Probe", Duration: "1-2 weeks", BudgetShare: 0.60,
				Objectives: []string{"Low-cost organic validation", "Collect market signal"}},
			{Name: "Review & Decide", Duration: "2-4 weeks", BudgetShare: 0.40,
				Objectives: []string{"Review signal", "Promote or archive"}},
		}
	}
}

// selectChannels combines the budget-tier heuristic with source and
// caller preferences. Preferred channels lead, then source-specific
// channels, then the default ladder, deduplicated and cut to the tier.
func selectChannels(opp contracts.ScoredOpportunity, approach contracts.Approach, budget float64, preferred []contracts.Channel) []contracts.Channel {
	maxChannels := 1
	switch {
	case budget >= tierFull:
		maxChannels = 4
	case budget >= tierThree:
		maxChannels = 3
	case budget >= tierTwo:
		maxChannels = 2
	}

	if maxChannels == 1 {
		return []contracts.Channel{contracts.ChannelOrganic}
	}

	ladder := []contracts.Channel{}
	ladder = append(ladder, preferred...)
	ladder = append(ladder, sourceChannels(opp)...)
	ladder = append(ladder,
		contracts.ChannelPaidSearch,
		contracts.ChannelSocialMedia,
		contracts.ChannelEmail,
		contracts.ChannelDisplay,
	)

	seen := map[contracts.Channel]bool{}
	channels := []contracts.Channel{}
	for _, ch := range ladder {
		if seen[ch] {
			continue
		}
		seen[ch] = true
		channels = append(channels, ch)
		if len(channels) == maxChannels {
			break
		}
	}

	return channels
}

// sourceChannels returns the channels a source class favors
func sourceChannels(opp contracts.ScoredOpportunity) []contracts.Channel {
	switch contracts.ClassifySource(opp.Source) {
	case contracts.ClassSocial:
		return []contracts.Channel{contracts.ChannelSocialMedia}
	case contracts.ClassAffiliate:
		return []contracts.Channel{contracts.ChannelEmail, contracts.ChannelPaidSearch}
	case contracts.ClassSeasonal:
		return []contracts.Channel{contracts.ChannelPaidSearch, contracts.ChannelDisplay}
	default:
		return nil
	}
}

// Channel weight templates per approach, applied positionally to the
// selected channels and renormalized so allocations sum exactly to the
// working budget.
var approachWeights = map[contracts.Approach][]float64{
	contracts.ApproachRapidScale:     {0.50, 0.30, 0.15, 0.05},
	contracts.ApproachQuickTest:      {0.60, 0.40, 0.00, 0.00},
	contracts.ApproachStrategicBuild: {0.35, 0.30, 0.20, 0.15},
	contracts.ApproachMinimalViable:  {1.00, 0.00, 0.00, 0.00},
}

// allocateBudget splits the working budget (total minus contingency)
// across channels. The last channel absorbs rounding drift so the
// allocation plus the reserve always reproduces the total.
func allocateBudget(approach contracts.Approach, channels []contracts.Channel, workingBudget float64) map[contracts.Channel]float64 {
	weights := approachWeights[approach]
	if weights == nil {
		weights = approachWeights[contracts.ApproachMinimalViable]
	}

	// Renormalize over the channels actually selected
	sum := 0.0
	for i := range channels {
		w := 0.0
		if i < len(weights) {
			w = weights[i]
		}
		sum += w
	}
	if sum == 0 {
		sum = 1
	}

	allocation := make(map[contracts.Channel]float64, len(channels))
	allocated := 0.0
	for i, ch := range channels {
		if i == len(channels)-1 {
			allocation[ch] = workingBudget - allocated
			break
		}
		w := 0.0
		if i < len(weights) {
			w = weights[i]
		}
		amount := workingBudget * w / sum
		allocation[ch] = amount
		allocated += amount
	}

	return allocation
}

// kpisFor selects success metrics per opportunity source
func kpisFor(opp contracts.ScoredOpportunity) contracts.KPISet {
	var primary []string
	switch contracts.ClassifySource(opp.Source) {
	case contracts.ClassAffiliate:
		primary = []string{"commission_revenue", "conversion_rate", "roi"}
	case contracts.ClassSocial:
		primary = []string{"engagement_rate", "virality_coefficient", "brand_awareness"}
	case contracts.ClassSeasonal:
		primary = []string{"seasonal_revenue", "market_share", "timing_efficiency"}
	default:
		primary = []string{"revenue", "roi", "customer_acquisition"}
	}

	return contracts.KPISet{
		Primary: primary,
		Leading: leadingIndicators(),
		Lagging: laggingIndicators(),
	}
}

func leadingIndicators() []string {
	return []string{"traffic_growth", "engagement", "lead_generation"}
}

func laggingIndicators() []string {
	return []string{"revenue", "roi", "customer_ltv"}
}

// contingencyPlans covers the five standing failure scenarios
func contingencyPlans() []contracts.ContingencyPlan {
	return []contracts.ContingencyPlan{
		{
			Scenario: "low_performance",
			Trigger:  "Primary KPI below 50% of target after phase one",
			Actions:  []string{"Pause lowest-performing channel", "Revisit targeting and creatives", "Reallocate 50% of remaining spend to best channel"},
		},
		{
			Scenario: "high_performance",
			Trigger:  "Primary KPI above 150% of target",
			Actions:  []string{"Release contingency reserve into winning channels", "Accelerate next phase start"},
		},
		{
			Scenario: "budget_overrun",
			Trigger:  "Spend pacing above 120% of plan",
			Actions:  []string{"Cap daily budgets", "Freeze lowest-ROI channel"},
		},
		{
			Scenario: "timeline_delay",
			Trigger:  "Phase objectives unmet at phase end",
			Actions:  []string{"Extend phase by 50% duration at reduced spend", "Escalate for go/no-go decision"},
		},
		{
			Scenario: "competitive_response",
			Trigger:  "CPC/CPM rises above 130% of baseline",
			Actions:  []string{"Shift spend toward owned channels", "Differentiate offer positioning"},
		},
	}
}
