package scoring

import (
	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// ProfitabilityAnalyzer scores the monetary upside of an opportunity
// from its price, commission and sales-volume metrics. Missing metrics
// contribute conservatively instead of erroring.
type ProfitabilityAnalyzer struct {
	logger *logger.Logger
}

// NewProfitabilityAnalyzer creates a profitability analyzer
func NewProfitabilityAnalyzer(log *logger.Logger) *ProfitabilityAnalyzer {
	return &ProfitabilityAnalyzer{
		logger: log,
	}
}

// Cost basis assumed when the source declares none: acquisition spend
// as a fraction of the revenue a sale generates.
const defaultCostShare = 0.6

// Analyze returns a sub-score in [0,100] plus the working figures
func (a *ProfitabilityAnalyzer) Analyze(opp contracts.Opportunity) (float64, *contracts.ProfitabilityDetail, error) {
	detail := &contracts.ProfitabilityDetail{}

	price := metric(opp, "price")
	commission := metric(opp, "commission_rate")
	monthlySales := metric(opp, "estimated_monthly_sales")

	if price <= 0 || commission <= 0 {
		// Non-monetary source: conservative floor, no ROI claim
		detail.MissingInputs = true
		return 20, detail, nil
	}

	revenuePerSale := price * commission
	costPerSale := metric(opp, "cost_per_acquisition")
	if costPerSale <= 0 {
		costPerSale = revenuePerSale * defaultCostShare
	}

	profitPerSale := revenuePerSale - costPerSale
	detail.EstRevenue = revenuePerSale
	detail.EstCost = costPerSale

	if costPerSale > 0 {
		detail.ROIPct = profitPerSale / costPerSale * 100
	}
	if revenuePerSale > 0 {
		detail.ProfitMargin = profitPerSale / revenuePerSale
	}

	// Payback: days of profit needed to recover one acquisition spend
	if monthlySales > 0 && profitPerSale > 0 {
		dailyProfit := profitPerSale * monthlySales / 30
		detail.PaybackDays = costPerSale / dailyProfit
	}

	score := a.score(detail, monthlySales)
	return score, detail, nil
}

// score combines ROI (up to 50), margin (up to 30) and volume (up to 20)
func (a *ProfitabilityAnalyzer) score(detail *contracts.ProfitabilityDetail, monthlySales float64) float64 {
	// ROI of 300% saturates the ROI component
	roiScore := Clamp(detail.ROIPct/300*50, 0, 50)

	marginScore := Clamp(detail.ProfitMargin*100*0.3, 0, 30)

	// 1000 sales/month saturates the volume component; missing volume
	// contributes nothing
	volumeScore := Clamp(monthlySales/1000*20, 0, 20)

	return Clamp(roiScore+marginScore+volumeScore, 0, 100)
}

// metric reads a named metric, 0 when absent
func metric(opp contracts.Opportunity, key string) float64 {
	if opp.Metrics == nil {
		return 0
	}
	return opp.Metrics[key]
}
