package analytics

import "math"

// RiskAssessment scores a prospective transaction against its category.
type RiskAssessment struct {
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	CategoryAvg float64 `json:"category_avg"`
	Deviation   float64 `json:"deviation"`
	RiskLevel   string  `json:"risk_level"`
	RiskScore   int     `json:"risk_score"`
	ZScore      float64 `json:"z_score"`
}

// AssessRisk measures how far amount sits from the category's usual amounts.
func (e *Engine) AssessRisk(amount float64, category string) (*RiskAssessment, error) {
	if !e.Loaded() {
		return nil, ErrNoData
	}

	idx := e.byCategory[category]
	if len(idx) == 0 {
		return nil, ErrNotFound
	}

	amounts := e.amounts(idx)
	avg := mean(amounts)

	deviation := 0.0
	if avg > 0 {
		deviation = (amount - avg) / avg * 100
	}

	z := 0.0
	if sd, ok := sampleStdDev(amounts); ok && sd > 0 {
		z = (amount - avg) / sd
	}

	level, score := RiskBand(z)

	return &RiskAssessment{
		Amount:      amount,
		Category:    category,
		CategoryAvg: round2(avg),
		Deviation:   round1(deviation),
		RiskLevel:   level,
		RiskScore:   score,
		ZScore:      round2(z),
	}, nil
}

// RiskBand maps a z-score to a risk level and score by its magnitude.
func RiskBand(z float64) (string, int) {
	switch abs := math.Abs(z); {
	case abs < 1:
		return "Low Risk", 25
	case abs < 2:
		return "Medium Risk", 55
	default:
		return "High Risk", 85
	}
}
