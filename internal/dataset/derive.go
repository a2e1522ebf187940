package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/card-analytics/internal/domain"
)

const daysPerYear = 365.25

// buildRecords parses Rows into records and derives the computed columns.
// now is the load time; ages are computed against it once.
// Rows without a customer id, a finite amount or a category are dropped.
func buildRecords(rows []Row, now time.Time) ([]domain.TransactionRecord, int) {
	records := make([]domain.TransactionRecord, 0, len(rows))
	dropped := 0

	for _, row := range rows {
		rec, ok := buildRecord(row, now)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}

	return records, dropped
}

func buildRecord(row Row, now time.Time) (domain.TransactionRecord, bool) {
	customerID, ok := parseCustomerID(row.CustomerID)
	if !ok {
		return domain.TransactionRecord{}, false
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(row.Amount, ",", ""), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.TransactionRecord{}, false
	}

	if row.Category == "" {
		return domain.TransactionRecord{}, false
	}

	rec := domain.TransactionRecord{
		CustomerID: customerID,
		Name:       row.Name,
		Birthdate:  ParseDate(row.Birthdate),
		Gender:     row.Gender,
		Date:       ParseDate(row.Date),
		Amount:     amount,
		Merchant:   row.Merchant,
		Category:   row.Category,
		City:       row.City,
	}

	if rec.Birthdate != nil {
		age := AgeAt(*rec.Birthdate, now)
		rec.Age = &age
	}

	if rec.Date != nil {
		month := int(rec.Date.Month())
		year := rec.Date.Year()
		rec.Month = &month
		rec.Year = &year
		rec.DayName = rec.Date.Weekday().String()
		rec.MonthName = rec.Date.Month().String()
	}

	return rec, true
}

// ParseDate parses a DateLayout value. Unparseable input yields nil, never an error.
func ParseDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return nil
	}
	return &t
}

// AgeAt returns floor((now - birthdate) / 365.25 days), using whole elapsed days.
func AgeAt(birthdate, now time.Time) int {
	days := math.Floor(now.Sub(birthdate).Hours() / 24)
	return int(math.Floor(days / daysPerYear))
}

// parseCustomerID accepts integers and integral decimals ("1001", "1001.0").
func parseCustomerID(v string) (int64, bool) {
	if v == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(v, 10, 64); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
