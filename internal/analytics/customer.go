package analytics

import (
	"math"
	"strconv"
	"strings"
)

// CustomerProfile summarises one customer's spending.
type CustomerProfile struct {
	CustomerID       int64   `json:"customer_id"`
	Name             string  `json:"name"`
	Age              *int    `json:"age"`
	Gender           string  `json:"gender"`
	TotalSpending    float64 `json:"total_spending"`
	TransactionCount int     `json:"transaction_count"`
	AvgTransaction   float64 `json:"avg_transaction"`
	SpendingLevel    string  `json:"spending_level"`
	FavoriteCategory string  `json:"favorite_category"`
}

// CustomerAnalysis profiles the customer with the given id.
// Name, age and gender come from the customer's first row.
func (e *Engine) CustomerAnalysis(customerID int64) (*CustomerProfile, error) {
	if !e.Loaded() {
		return nil, ErrNoData
	}

	idx := e.byCustomer[customerID]
	if len(idx) == 0 {
		return nil, ErrNotFound
	}

	amounts := e.amounts(idx)
	avg := mean(amounts)
	first := e.records[idx[0]]

	var age *int
	if first.Age != nil {
		a := *first.Age
		age = &a
	}

	return &CustomerProfile{
		CustomerID:       customerID,
		Name:             first.Name,
		Age:              age,
		Gender:           first.Gender,
		TotalSpending:    round2(sum(amounts)),
		TransactionCount: len(idx),
		AvgTransaction:   round2(avg),
		SpendingLevel:    SpendingLevel(avg, e.globalAverage()),
		FavoriteCategory: e.modalCategory(idx, "Various"),
	}, nil
}

// SpendingLevel classifies an average transaction against the global average.
func SpendingLevel(avg, globalAvg float64) string {
	switch {
	case avg > globalAvg*1.5:
		return "High"
	case avg > globalAvg*0.8:
		return "Medium"
	default:
		return "Low"
	}
}

// ParseCustomerID reads a customer id typed as text. Integral decimals such as
// "1001.0" are accepted; anything else reports false.
func ParseCustomerID(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}
