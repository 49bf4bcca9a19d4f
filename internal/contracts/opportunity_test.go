package contracts

import (
	"strings"
	"testing"
	"time"
)

func TestOpportunityID_ContentStable(t *testing.T) {
	base := Opportunity{
		Source: SourceAffiliate,
		Type:   "affiliate_product",
		Title:  "Yoga mat bundle",
		Metrics: map[string]float64{
			"price":           100,
			"commission_rate": 0.5,
			"gravity":         90,
		},
		DiscoveredAt: time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC),
	}

	// Rediscovery on a later cycle carries a new timestamp and drifted
	// measurements; identity must not change.
	rediscovered := base
	rediscovered.DiscoveredAt = base.DiscoveredAt.Add(48 * time.Hour)
	rediscovered.Metrics = map[string]float64{
		"gravity":         93,
		"commission_rate": 0.5,
		"price":           100,
	}

	if base.ContentID() != rediscovered.ContentID() {
		t.Errorf("same candidate on a later cycle produced ids %s and %s, want equal",
			base.ContentID(), rediscovered.ContentID())
	}

	changed := base
	changed.Title = "Yoga block bundle"
	if base.ContentID() == changed.ContentID() {
		t.Error("different titles must produce different ids")
	}

	otherSource := base
	otherSource.Source = SourceSocial
	if base.ContentID() == otherSource.ContentID() {
		t.Error("different sources must produce different ids")
	}

	if !strings.HasPrefix(base.ContentID(), SourceAffiliate+":affiliate_product:") {
		t.Errorf("id %s must carry the source and type prefix", base.ContentID())
	}
}

func TestOpportunityID_TimeDerivedMetricsExcluded(t *testing.T) {
	first := Opportunity{
		Source:  SourceSeasonal,
		Type:    "seasonal_event",
		Title:   "Black Friday 2026 campaign window",
		Metrics: map[string]float64{"days_until_event": 44.2, "sales_uplift": 3.5},
	}
	later := first
	later.Metrics = map[string]float64{"days_until_event": 44.19, "sales_uplift": 3.5}

	if first.ContentID() != later.ContentID() {
		t.Errorf("drifting days_until_event produced ids %s and %s, want equal",
			first.ContentID(), later.ContentID())
	}

	trend := Opportunity{
		Source:  SourceSocial,
		Type:    "social_trend",
		Title:   "#glowup",
		Metrics: map[string]float64{"trend_age_hours": 6, "engagement_count": 12000},
	}
	aged := trend
	aged.Metrics = map[string]float64{"trend_age_hours": 6.1, "engagement_count": 12400}

	if trend.ContentID() != aged.ContentID() {
		t.Errorf("an aging trend produced ids %s and %s, want equal",
			trend.ContentID(), aged.ContentID())
	}
}

func TestClassifySource(t *testing.T) {
	tests := []struct {
		source string
		want   SourceClass
	}{
		{SourceAffiliate, ClassAffiliate},
		{SourceSocial, ClassSocial},
		{SourceSeasonal, ClassSeasonal},
		{SourceTiming, ClassTiming},
		{"Affiliate_Network_EU", ClassAffiliate},
		{"somewhere_else", ClassGeneric},
		{"", ClassGeneric},
	}

	for _, tt := range tests {
		if got := ClassifySource(tt.source); got != tt.want {
			t.Errorf("ClassifySource(%q) = %s, want %s", tt.source, got, tt.want)
		}
	}
}

func TestSeasonality_InPeak(t *testing.T) {
	var nilSeason *Seasonality
	if nilSeason.InPeak(time.June) {
		t.Error("nil seasonality must never be in peak")
	}

	season := &Seasonality{PeakMonths: []time.Month{time.November, time.December}}
	if !season.InPeak(time.December) {
		t.Error("December must be in peak")
	}
	if season.InPeak(time.March) {
		t.Error("March must not be in peak")
	}
}

func TestCampaignStrategy_AllocatedTotal(t *testing.T) {
	strategy := CampaignStrategy{
		ContingencyReserve: 500,
		BudgetAllocation: map[Channel]float64{
			ChannelPaidSearch:  2250,
			ChannelSocialMedia: 1350,
			ChannelEmail:       900,
		},
	}

	if got := strategy.AllocatedTotal(); got != 5000 {
		t.Errorf("AllocatedTotal() = %v, want 5000", got)
	}
}
