package analytics

// DashboardStats are whole-dataset totals for the dashboard header.
type DashboardStats struct {
	TotalTransactions int      `json:"total_transactions"`
	TotalCustomers    int      `json:"total_customers"`
	TotalMerchants    int      `json:"total_merchants"`
	TotalVolume       float64  `json:"total_volume"`
	AvgTransaction    float64  `json:"avg_transaction"`
	Categories        []string `json:"categories"`
	Cities            []string `json:"cities"`
}

// DashboardStats computes dataset totals. Categories and cities are listed in
// order of first appearance; empty merchant and city values are not counted.
func (e *Engine) DashboardStats() (*DashboardStats, error) {
	if !e.Loaded() {
		return nil, ErrNoData
	}

	customers := make(map[int64]struct{})
	merchants := make(map[string]struct{})
	seenCategory := make(map[string]struct{})
	seenCity := make(map[string]struct{})
	categories := make([]string, 0)
	cities := make([]string, 0)

	for i := range e.records {
		r := &e.records[i]
		customers[r.CustomerID] = struct{}{}
		if r.Merchant != "" {
			merchants[r.Merchant] = struct{}{}
		}
		if _, ok := seenCategory[r.Category]; !ok {
			seenCategory[r.Category] = struct{}{}
			categories = append(categories, r.Category)
		}
		if _, ok := seenCity[r.City]; !ok && r.City != "" {
			seenCity[r.City] = struct{}{}
			cities = append(cities, r.City)
		}
	}

	return &DashboardStats{
		TotalTransactions: len(e.records),
		TotalCustomers:    len(customers),
		TotalMerchants:    len(merchants),
		TotalVolume:       round2(e.totalAmount),
		AvgTransaction:    round2(e.globalAverage()),
		Categories:        categories,
		Cities:            cities,
	}, nil
}
