package analytics

// CityActivity summarises transaction activity in a city.
type CityActivity struct {
	City             string  `json:"city"`
	TransactionCount int     `json:"total_transactions"`
	TotalVolume      float64 `json:"total_volume"`
	AvgTransaction   float64 `json:"avg_transaction"`
	ActivityLevel    string  `json:"activity_level"`
	TopCategory      string  `json:"top_category"`
}

// CityAnalysis reports on rows whose city contains name (case-insensitive).
// The reported city is the literal name on the first matching row.
func (e *Engine) CityAnalysis(name string) (*CityActivity, error) {
	if !e.Loaded() {
		return nil, ErrNoData
	}

	idx := containing(e.cityKeys, name)
	if len(idx) == 0 {
		return nil, ErrNotFound
	}

	amounts := e.amounts(idx)

	return &CityActivity{
		City:             e.records[idx[0]].City,
		TransactionCount: len(idx),
		TotalVolume:      round2(sum(amounts)),
		AvgTransaction:   round2(mean(amounts)),
		ActivityLevel:    ActivityLevel(len(idx), e.meanRowsPerCity()),
		TopCategory:      e.modalCategory(idx, "Various"),
	}, nil
}

// meanRowsPerCity averages the row count over all distinct cities.
func (e *Engine) meanRowsPerCity() float64 {
	if len(e.cityCounts) == 0 {
		return 0
	}
	total := 0
	for _, n := range e.cityCounts {
		total += n
	}
	return float64(total) / float64(len(e.cityCounts))
}

// ActivityLevel compares a city's row count with the per-city mean.
func ActivityLevel(count int, meanPerCity float64) string {
	c := float64(count)
	switch {
	case c > meanPerCity*1.5:
		return "Very High"
	case c > meanPerCity:
		return "High"
	default:
		return "Moderate"
	}
}
