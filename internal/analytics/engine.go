// Package analytics computes the dashboard statistics over a loaded card
// transaction dataset.
//
// An Engine is built once over an immutable dataset.Table and only reads from
// it afterwards, so a single Engine can serve concurrent requests without
// locking. Every query is a full or indexed scan followed by aggregation;
// nothing is cached between queries.
package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/card-analytics/internal/dataset"
	"github.com/dvloznov/card-analytics/internal/domain"
)

var (
	// ErrNotFound is returned when a query matches no rows.
	ErrNotFound = errors.New("no matching transactions")

	// ErrNoData is returned by every query when the dataset failed to load.
	// It wraps ErrNotFound.
	ErrNoData = fmt.Errorf("%w: dataset not loaded", ErrNotFound)
)

// Engine answers analytical queries over one dataset snapshot.
type Engine struct {
	table   *dataset.Table
	records []domain.TransactionRecord

	// Lower-cased merchant and city names, aligned with records, for substring search.
	merchantKeys []string
	cityKeys     []string

	byCategory map[string][]int
	byCustomer map[int64][]int
	cityCounts map[string]int

	totalAmount float64
}

// Status describes the dataset behind an Engine.
type Status struct {
	DataLoaded bool       `json:"data_loaded"`
	Records    int        `json:"records"`
	Dropped    int        `json:"dropped"`
	Source     string     `json:"source,omitempty"`
	LoadedAt   *time.Time `json:"loaded_at,omitempty"`
}

// New builds an Engine over table and indexes it by category, customer and city.
// A nil table yields an Engine whose queries all return ErrNoData.
func New(table *dataset.Table) *Engine {
	e := &Engine{
		table:      table,
		byCategory: make(map[string][]int),
		byCustomer: make(map[int64][]int),
		cityCounts: make(map[string]int),
	}
	if table == nil {
		return e
	}

	e.records = table.Records
	e.merchantKeys = make([]string, len(e.records))
	e.cityKeys = make([]string, len(e.records))

	for i := range e.records {
		r := &e.records[i]
		e.merchantKeys[i] = strings.ToLower(r.Merchant)
		e.cityKeys[i] = strings.ToLower(r.City)
		e.byCategory[r.Category] = append(e.byCategory[r.Category], i)
		e.byCustomer[r.CustomerID] = append(e.byCustomer[r.CustomerID], i)
		if r.City != "" {
			e.cityCounts[r.City]++
		}
		e.totalAmount += r.Amount
	}

	return e
}

// Loaded reports whether the Engine has a dataset.
func (e *Engine) Loaded() bool {
	return e.table != nil
}

// Status reports whether data is loaded and where it came from.
func (e *Engine) Status() Status {
	if e.table == nil {
		return Status{}
	}
	loadedAt := e.table.LoadedAt
	return Status{
		DataLoaded: true,
		Records:    len(e.records),
		Dropped:    e.table.Dropped,
		Source:     e.table.Source,
		LoadedAt:   &loadedAt,
	}
}

// globalAverage is the mean amount across the whole table.
func (e *Engine) globalAverage() float64 {
	if len(e.records) == 0 {
		return 0
	}
	return e.totalAmount / float64(len(e.records))
}

// containing returns the indices of rows whose key contains needle, case-insensitively.
// Rows with an empty source value never match.
func containing(keys []string, needle string) []int {
	needle = strings.ToLower(needle)
	var idx []int
	for i, k := range keys {
		if k != "" && strings.Contains(k, needle) {
			idx = append(idx, i)
		}
	}
	return idx
}
