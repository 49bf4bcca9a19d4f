package scanner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/config"
	"github.com/kestrelworks/oppintel/pkg/httputil"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// SocialScanner scrapes a social trends page and converts trending
// topics into raw opportunities.
type SocialScanner struct {
	base
	httpClient *httputil.Client
	baseURL    string
}

// NewSocialScanner creates a social trend scanner
func NewSocialScanner(cfg config.SocialConfig, opts Options, log *logger.Logger) *SocialScanner {
	s := &SocialScanner{
		base:    newBase(contracts.SourceSocial, opts, log),
		baseURL: cfg.BaseURL,
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s.httpClient = httputil.NewWithTimeout(log, timeout).WithRateLimiter(s.Limiter())

	return s
}

// Scan fetches and parses the trends page
func (s *SocialScanner) Scan(ctx context.Context) ([]contracts.Opportunity, error) {
	return s.cachedScan(ctx, s.fetch)
}

func (s *SocialScanner) fetch(ctx context.Context) ([]contracts.Opportunity, error) {
	resp, err := s.httpClient.Get(ctx, s.baseURL+"/trending")
	if err != nil {
		return nil, fmt.Errorf("fetch trends page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read trends page: %w", err)
	}

	return s.parseTrends(string(body))
}

// parseTrends extracts trend cards from the page HTML
func (s *SocialScanner) parseTrends(html string) ([]contracts.Opportunity, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse trends HTML: %w", err)
	}

	now := time.Now()
	opportunities := []contracts.Opportunity{}

	doc.Find("div.trend-card").Each(func(i int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(".trend-title").Text())
		if title == "" {
			return
		}

		engagement := parseAttrFloat(sel, "data-engagement")
		growth := parseAttrFloat(sel, "data-growth-rate")
		posts := parseAttrFloat(sel, "data-post-count")
		ageHours := parseAttrFloat(sel, "data-age-hours")

		trend := contracts.TrendStable
		if growth > 0.2 {
			trend = contracts.TrendGrowing
		} else if growth < -0.1 {
			trend = contracts.TrendDeclining
		}

		opportunities = append(opportunities, contracts.Opportunity{
			Source:      s.Name(),
			Type:        "social_trend",
			Title:       title,
			Description: strings.TrimSpace(sel.Find(".trend-summary").Text()),
			Metrics: map[string]float64{
				"engagement_count": engagement,
				"growth_rate":      growth,
				"post_count":       posts,
				"trend_age_hours":  ageHours,
			},
			DiscoveredAt: now,
			Market: &contracts.MarketConditions{
				Trend:      trend,
				Volatility: contracts.VolatilityHigh, // viral trends swing fast
			},
		})
	})

	s.logger.WithField("count", len(opportunities)).Debug("Parsed social trends")
	return opportunities, nil
}

// parseAttrFloat reads a numeric data attribute, 0 when absent
func parseAttrFloat(sel *goquery.Selection, attr string) float64 {
	raw, ok := sel.Attr(attr)
	if !ok {
		return 0
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return value
}
