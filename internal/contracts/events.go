package contracts

import "time"

// EventKind discriminates pipeline lifecycle events
type EventKind string

const (
	EventScannerRegistered  EventKind = "scanner_registered"
	EventScanningStarted    EventKind = "scanning_started"
	EventScanningStopped    EventKind = "scanning_stopped"
	EventScanCompleted      EventKind = "scan_completed"
	EventScanError          EventKind = "scan_error"
	EventOpportunitiesFound EventKind = "opportunities_found"
	EventScoringError       EventKind = "scoring_error"
	EventOpportunityRemoved EventKind = "opportunity_removed"
)

// Event is a typed pipeline lifecycle event
type Event interface {
	Kind() EventKind
}

// ScannerRegistered is emitted when a scanner joins the registry
type ScannerRegistered struct {
	Scanner string `json:"scanner"`
}

func (ScannerRegistered) Kind() EventKind { return EventScannerRegistered }

// ScanningStarted is emitted when the scheduler starts
type ScanningStarted struct {
	Interval time.Duration `json:"interval"`
}

func (ScanningStarted) Kind() EventKind { return EventScanningStarted }

// ScanningStopped is emitted when the scheduler stops
type ScanningStopped struct{}

func (ScanningStopped) Kind() EventKind { return EventScanningStopped }

// ScanCompleted is emitted per scanner per cycle on success
type ScanCompleted struct {
	Scanner  string        `json:"scanner"`
	Duration time.Duration `json:"duration"`
	Found    int           `json:"opportunities_found"`
}

func (ScanCompleted) Kind() EventKind { return EventScanCompleted }

// ScanError is emitted when one scanner fails; the cycle continues
type ScanError struct {
	Scanner string `json:"scanner"`
	Err     string `json:"error"`
}

func (ScanError) Kind() EventKind { return EventScanError }

// OpportunitiesFound carries a cycle's qualifying opportunities,
// sorted descending by score
type OpportunitiesFound struct {
	Opportunities []ScoredOpportunity `json:"opportunities"`
}

func (OpportunitiesFound) Kind() EventKind { return EventOpportunitiesFound }

// ScoringError is emitted when one candidate cannot be scored
type ScoringError struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Err    string `json:"error"`
}

func (ScoringError) Kind() EventKind { return EventScoringError }

// OpportunityRemoved is emitted when a consumer removes an entry
type OpportunityRemoved struct {
	ID string `json:"id"`
}

func (OpportunityRemoved) Kind() EventKind { return EventOpportunityRemoved }
