package analytics

import (
	"math"
)

const (
	ageWindow     = 5
	maxConfidence = 95.0
)

// SpendingPrediction is the demographic spending estimate for an age and gender.
// It is an aggregate over similar customers, not a fitted model.
type SpendingPrediction struct {
	Age                      int     `json:"age"`
	Gender                   string  `json:"gender"`
	AgeGroup                 string  `json:"age_group"`
	PredictedMonthlySpending float64 `json:"predicted_monthly_spending"`
	PredictedFrequency       int     `json:"predicted_frequency"`
	TopCategory              string  `json:"top_category"`
	Confidence               float64 `json:"confidence"`
}

// PredictSpending aggregates rows of customers within five years of age and,
// for "M" or "F", of the same gender. When nothing matches it falls back to
// the whole dataset instead of failing.
func (e *Engine) PredictSpending(age int, gender string) (*SpendingPrediction, error) {
	if !e.Loaded() {
		return nil, ErrNoData
	}
	if len(e.records) == 0 {
		return nil, ErrNotFound
	}

	idx := e.demographicSlice(age, gender)
	if len(idx) == 0 {
		idx = make([]int, len(e.records))
		for i := range idx {
			idx[i] = i
		}
	}

	spend, freq := e.perCustomerMeans(idx)
	confidence := math.Min(float64(len(idx))/100*100, maxConfidence)

	return &SpendingPrediction{
		Age:                      age,
		Gender:                   GenderLabel(gender),
		AgeGroup:                 AgeGroup(age),
		PredictedMonthlySpending: round2(spend),
		PredictedFrequency:       int(math.RoundToEven(freq)),
		TopCategory:              e.modalCategory(idx, "Various"),
		Confidence:               round1(confidence),
	}, nil
}

func (e *Engine) demographicSlice(age int, gender string) []int {
	filterGender := gender == "M" || gender == "F"

	var idx []int
	for i := range e.records {
		r := &e.records[i]
		if r.Age == nil || *r.Age < age-ageWindow || *r.Age > age+ageWindow {
			continue
		}
		if filterGender && r.Gender != gender {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// perCustomerMeans groups rows by customer and returns the mean total spend
// and the mean transaction count per customer.
func (e *Engine) perCustomerMeans(idx []int) (spend, freq float64) {
	totals := make(map[int64]float64)
	counts := make(map[int64]int)
	var order []int64
	for _, j := range idx {
		r := &e.records[j]
		if _, ok := counts[r.CustomerID]; !ok {
			order = append(order, r.CustomerID)
		}
		totals[r.CustomerID] += r.Amount
		counts[r.CustomerID]++
	}

	// Summed in first-appearance order so results do not depend on map order.
	customers := float64(len(order))
	for _, id := range order {
		spend += totals[id]
		freq += float64(counts[id])
	}
	return spend / customers, freq / customers
}

// AgeGroup buckets an age for reporting.
func AgeGroup(age int) string {
	switch {
	case age <= 25:
		return "18-25"
	case age <= 35:
		return "26-35"
	case age <= 50:
		return "36-50"
	case age <= 65:
		return "51-65"
	default:
		return "65+"
	}
}

// GenderLabel names the demographic a prediction covers.
func GenderLabel(gender string) string {
	switch gender {
	case "M":
		return "Male"
	case "F":
		return "Female"
	default:
		return "All"
	}
}
