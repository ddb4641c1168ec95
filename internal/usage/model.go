package usage

import "time"

// Entry is one metered analysis call.
type Entry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"-"`
	TempResumeID string    `json:"tempResumeId,omitempty"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	TotalTokens  int       `json:"totalTokens"`
	Cost         float64   `json:"cost"`
	CreatedAt    time.Time `json:"date"`
}

// Ledger holds the running totals for one user. Totals only grow.
type Ledger struct {
	UserID        string  `json:"-"`
	TotalTokens   int64   `json:"totalTokens"`
	TotalCost     float64 `json:"totalCost"`
	AnalysisCount int     `json:"analysisCount"`
}

// MonthlyUsage aggregates entries for one calendar month (UTC, YYYY-MM).
type MonthlyUsage struct {
	Month        string  `json:"month"`
	Analyses     int     `json:"analyses"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	TotalTokens  int64   `json:"totalTokens"`
	Cost         float64 `json:"cost"`
}

// Stats is the ledger view returned to the owner.
type Stats struct {
	Ledger
	Monthly []MonthlyUsage `json:"monthly"`
}

// Pricing converts token counts into cost. Rates are per million tokens.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost returns the price of one call.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*p.InputPerMTok + float64(outputTokens)/1e6*p.OutputPerMTok
}
