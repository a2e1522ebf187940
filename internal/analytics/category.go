package analytics

import (
	"sort"
)

// Trend labels.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// CategoryInsights describes volume, trend and popularity of a category.
type CategoryInsights struct {
	Category         string  `json:"category"`
	AvgAmount        float64 `json:"avg_amount"`
	TransactionCount int     `json:"total_transactions"`
	TotalAmount      float64 `json:"total_amount"`
	Trend            string  `json:"trend"`
	Popularity       string  `json:"popularity"`
	MarketShare      float64 `json:"market_share"`
}

// CategoryInsights reports on the category with exactly this name.
func (e *Engine) CategoryInsights(category string) (*CategoryInsights, error) {
	if !e.Loaded() {
		return nil, ErrNoData
	}

	idx := e.byCategory[category]
	if len(idx) == 0 {
		return nil, ErrNotFound
	}

	amounts := e.amounts(idx)
	share := float64(len(idx)) / float64(len(e.records)) * 100

	return &CategoryInsights{
		Category:         category,
		AvgAmount:        round2(mean(amounts)),
		TransactionCount: len(idx),
		TotalAmount:      round2(sum(amounts)),
		Trend:            e.amountTrend(idx),
		Popularity:       Popularity(share),
		MarketShare:      round1(share),
	}, nil
}

// amountTrend compares the mean amount of the oldest half of the rows with the
// newest half. With an odd count the middle row belongs to neither half.
func (e *Engine) amountTrend(idx []int) string {
	mid := len(idx) / 2
	if mid == 0 {
		return TrendStable
	}

	sorted := e.sortedByDate(idx)
	older := mean(e.amounts(sorted[:mid]))
	recent := mean(e.amounts(sorted[len(sorted)-mid:]))

	switch {
	case recent > older*1.1:
		return TrendIncreasing
	case recent < older*0.9:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// sortedByDate returns a copy of idx ordered by transaction date.
// The sort is stable and rows without a date go last.
func (e *Engine) sortedByDate(idx []int) []int {
	out := make([]int, len(idx))
	copy(out, idx)

	sort.SliceStable(out, func(a, b int) bool {
		ra, rb := &e.records[out[a]], &e.records[out[b]]
		switch {
		case !ra.HasDate():
			return false
		case !rb.HasDate():
			return true
		default:
			return ra.Date.Before(*rb.Date)
		}
	})
	return out
}

// Popularity maps a share of all transactions (percent) to its band.
func Popularity(sharePct float64) string {
	switch {
	case sharePct > 20:
		return "Very High"
	case sharePct > 15:
		return "High"
	case sharePct > 10:
		return "Moderate"
	default:
		return "Low"
	}
}
