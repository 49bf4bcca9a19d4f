package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// SeasonalScanner derives opportunities from a calendar of recurring
// retail events. It performs no network I/O; the calendar itself is
// the source.
type SeasonalScanner struct {
	base
	lookahead time.Duration
	now       func() time.Time
}

// seasonalEvent is one recurring calendar entry
type seasonalEvent struct {
	name        string
	category    string
	month       time.Month
	day         int
	peakMonths  []time.Month
	salesUplift float64 // historical revenue multiplier vs. baseline
}

// Recurring retail calendar. Dates are anchored per-year at scan time.
var retailCalendar = []seasonalEvent{
	{"Valentine's Day", "gifting", time.February, 14, []time.Month{time.January, time.February}, 2.1},
	{"Spring Sale Season", "home_garden", time.April, 15, []time.Month{time.March, time.April, time.May}, 1.4},
	{"Back to School", "education", time.August, 25, []time.Month{time.July, time.August, time.September}, 1.8},
	{"Black Friday", "electronics", time.November, 28, []time.Month{time.November}, 3.5},
	{"Christmas", "gifting", time.December, 25, []time.Month{time.November, time.December}, 3.0},
}

// NewSeasonalScanner creates a seasonal calendar scanner
func NewSeasonalScanner(opts Options, log *logger.Logger) *SeasonalScanner {
	return &SeasonalScanner{
		base:      newBase(contracts.SourceSeasonal, opts, log),
		lookahead: 90 * 24 * time.Hour,
		now:       time.Now,
	}
}

// Scan emits an opportunity for each calendar event inside the
// lookahead window
func (s *SeasonalScanner) Scan(ctx context.Context) ([]contracts.Opportunity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	opportunities := []contracts.Opportunity{}

	for _, event := range retailCalendar {
		eventDate := nextOccurrence(now, event.month, event.day)
		until := eventDate.Sub(now)
		if until > s.lookahead {
			continue
		}

		opportunities = append(opportunities, contracts.Opportunity{
			Source:      s.Name(),
			Type:        "seasonal_event",
			Title:       fmt.Sprintf("%s %d campaign window", event.name, eventDate.Year()),
			Description: fmt.Sprintf("Recurring %s demand peak around %s", event.category, event.name),
			Metrics: map[string]float64{
				"days_until_event": until.Hours() / 24,
				"sales_uplift":     event.salesUplift,
			},
			DiscoveredAt: now,
			Seasonality:  &contracts.Seasonality{PeakMonths: event.peakMonths},
			EventTiming: &contracts.EventTiming{
				Name: event.name,
				Date: eventDate,
			},
		})
	}

	s.logger.WithField("count", len(opportunities)).Debug("Seasonal calendar scanned")
	return opportunities, nil
}

// nextOccurrence returns the next calendar date for a month/day pair,
// rolling into next year when the date has already passed
func nextOccurrence(now time.Time, month time.Month, day int) time.Time {
	date := time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location())
	if date.Before(now) {
		date = time.Date(now.Year()+1, month, day, 0, 0, 0, 0, now.Location())
	}
	return date
}
