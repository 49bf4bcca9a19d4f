package scanner

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/config"
	"github.com/kestrelworks/oppintel/pkg/httputil"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// AffiliateScanner polls an affiliate network's product feed for
// high-commission offers.
type AffiliateScanner struct {
	base
	httpClient *httputil.Client
	baseURL    string
	apiKey     string
}

// affiliateProduct is the network's wire format
type affiliateProduct struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Description     string  `json:"description"`
	Price           float64 `json:"price"`
	CommissionRate  float64 `json:"commission_rate"`
	Gravity         float64 `json:"gravity"`
	MonthlySales    float64 `json:"estimated_monthly_sales"`
	RefundRate      float64 `json:"refund_rate"`
	CompetitorCount int     `json:"competitor_count"`
}

type affiliateFeedResponse struct {
	Products []affiliateProduct `json:"products"`
}

// NewAffiliateScanner creates an affiliate network scanner. A missing
// API key is a configuration error and fails construction.
func NewAffiliateScanner(cfg config.AffiliateConfig, opts Options, log *logger.Logger) (*AffiliateScanner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("affiliate scanner requires AFFILIATE_API_KEY")
	}

	s := &AffiliateScanner{
		base:    newBase(contracts.SourceAffiliate, opts, log),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s.httpClient = httputil.NewWithTimeout(log, timeout).WithRateLimiter(s.Limiter())

	return s, nil
}

// Scan fetches the product feed and maps offers to raw opportunities
func (s *AffiliateScanner) Scan(ctx context.Context) ([]contracts.Opportunity, error) {
	return s.cachedScan(ctx, s.fetch)
}

func (s *AffiliateScanner) fetch(ctx context.Context) ([]contracts.Opportunity, error) {
	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("min_commission", "0.10")
	params.Set("sort", "gravity")

	var feed affiliateFeedResponse
	endpoint := httputil.BuildURL(s.baseURL, "/v2/products", params)
	if err := s.httpClient.GetJSON(ctx, endpoint, &feed); err != nil {
		return nil, fmt.Errorf("fetch affiliate feed: %w", err)
	}

	now := time.Now()
	opportunities := make([]contracts.Opportunity, 0, len(feed.Products))
	for _, p := range feed.Products {
		opp := contracts.Opportunity{
			Source:      s.Name(),
			Type:        "affiliate_product",
			Title:       p.Name,
			Description: p.Description,
			Metrics: map[string]float64{
				"price":                   p.Price,
				"commission_rate":         p.CommissionRate,
				"gravity":                 p.Gravity,
				"estimated_monthly_sales": p.MonthlySales,
				"refund_rate":             p.RefundRate,
			},
			DiscoveredAt: now,
			Competition:  competitionFromCount(p.CompetitorCount),
		}
		opportunities = append(opportunities, opp)
	}

	s.logger.WithField("count", len(opportunities)).Debug("Affiliate feed fetched")
	return opportunities, nil
}

// competitionFromCount buckets a raw competitor count into a declared
// competition level
func competitionFromCount(count int) *contracts.Competition {
	level := contracts.CompetitionMedium
	switch {
	case count < 10:
		level = contracts.CompetitionLow
	case count > 50:
		level = contracts.CompetitionHigh
	}

	saturation := float64(count)
	if saturation > 100 {
		saturation = 100
	}

	return &contracts.Competition{
		Level:         level,
		SaturationPct: saturation,
	}
}
