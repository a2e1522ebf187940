package analytics

import (
	"math"
	"time"
)

// Trust score weights: volume 40, amount consistency 30, activity span 30.
const (
	countWeight       = 40.0
	countSaturation   = 10.0
	consistencyWeight = 30.0
	timeWeight        = 30.0
	timeSaturation    = 30.0
	maxTrustScore     = 100
)

// MerchantTrust is the trust profile of a merchant.
type MerchantTrust struct {
	MerchantName     string  `json:"merchant_name"`
	TrustScore       int     `json:"trust_score"`
	TransactionCount int     `json:"total_transactions"`
	AvgAmount        float64 `json:"avg_amount"`
	TotalAmount      float64 `json:"total_amount"`
	Category         string  `json:"category"`
	Rating           string  `json:"rating"`
}

// MerchantTrust scores the merchant whose name contains name (case-insensitive).
// The reported name is the literal name on the first matching row.
func (e *Engine) MerchantTrust(name string) (*MerchantTrust, error) {
	if !e.Loaded() {
		return nil, ErrNoData
	}

	idx := containing(e.merchantKeys, name)
	if len(idx) == 0 {
		return nil, ErrNotFound
	}

	amounts := e.amounts(idx)
	avg := mean(amounts)
	score := trustScore(len(idx), amounts, e.activeDays(idx))

	return &MerchantTrust{
		MerchantName:     e.records[idx[0]].Merchant,
		TrustScore:       score,
		TransactionCount: len(idx),
		AvgAmount:        round2(avg),
		TotalAmount:      round2(sum(amounts)),
		Category:         e.modalCategory(idx, "Unknown"),
		Rating:           TrustRating(score),
	}, nil
}

// trustScore combines volume, consistency and time span into 0-100.
func trustScore(count int, amounts []float64, spanDays int) int {
	countScore := math.Min(float64(count)*countWeight/countSaturation, countWeight)

	// A mean at or below zero counts as cv = 1. Fewer than two amounts have
	// no dispersion to measure and earn no consistency credit.
	consistencyScore := 0.0
	avg := mean(amounts)
	switch sd, ok := sampleStdDev(amounts); {
	case avg <= 0:
		consistencyScore = consistency(1)
	case ok:
		consistencyScore = consistency(sd / avg)
	}

	timeScore := math.Min(float64(spanDays)*timeWeight/timeSaturation, timeWeight)

	score := int(math.Floor(countScore + consistencyScore + timeScore))
	if score > maxTrustScore {
		score = maxTrustScore
	}
	return score
}

// consistency turns a coefficient of variation into the 0-30 consistency score.
func consistency(cv float64) float64 {
	return math.Max(0, consistencyWeight-cv*10)
}

// activeDays is the whole number of days between the earliest and latest
// dated rows. Rows without a date are ignored; no dated rows yields 0.
func (e *Engine) activeDays(idx []int) int {
	var first, last time.Time
	seen := false
	for _, j := range idx {
		r := &e.records[j]
		if !r.HasDate() {
			continue
		}
		d := r.Date
		if !seen || d.Before(first) {
			first = *d
		}
		if !seen || d.After(last) {
			last = *d
		}
		seen = true
	}
	if !seen {
		return 0
	}
	return int(last.Sub(first).Hours() / 24)
}

// TrustRating maps a trust score to its band.
func TrustRating(score int) string {
	switch {
	case score >= 85:
		return "Excellent"
	case score >= 70:
		return "Good"
	case score >= 50:
		return "Fair"
	default:
		return "Poor"
	}
}
