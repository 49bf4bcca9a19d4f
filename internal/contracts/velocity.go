package contracts

// Direction of a trend's velocity
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// RiskLevel grades volatility risk
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Momentum combines velocity magnitude, acceleration and consistency
type Momentum struct {
	Strength       float64 `json:"strength"`       // 0-100
	Sustainability float64 `json:"sustainability"` // 0-100
}

// Volatility measures dispersion between short- and long-term velocity
type Volatility struct {
	Level float64   `json:"level"` // 0-1
	Risk  RiskLevel `json:"risk"`
}

// WindowPrediction is a predictive score for one time horizon
type WindowPrediction struct {
	Score      float64 `json:"score"`      // 0-100
	Confidence float64 `json:"confidence"` // 0-1
}

// Predictions across the three time horizons
type Predictions struct {
	ShortTerm  WindowPrediction `json:"short_term"`  // ~1-6h
	MediumTerm WindowPrediction `json:"medium_term"` // ~6-24h
	LongTerm   WindowPrediction `json:"long_term"`   // 24h+
}

// VelocityReport is the trend velocity analyzer's full output. The
// scoring engine consumes Overall; the strategy generator consumes the
// rest.
type VelocityReport struct {
	Overall      float64     `json:"overall"`     // 0-100
	ShortTerm    float64     `json:"short_term"`  // velocity over ~1-6h
	MediumTerm   float64     `json:"medium_term"` // velocity over ~6-24h
	LongTerm     float64     `json:"long_term"`   // velocity over 24h+
	Acceleration float64     `json:"acceleration"`
	Direction    Direction   `json:"direction"`
	Consistency  float64     `json:"consistency"` // 0-1, inverse CoV across windows
	Momentum     Momentum    `json:"momentum"`
	Volatility   Volatility  `json:"volatility"`
	Predictions  Predictions `json:"predictions"`
}
