package domain

import (
	"time"
)

// TransactionRecord represents one card transaction row of the analytics dataset.
// Derived fields are computed once when the dataset is loaded and never refreshed,
// so Age is frozen to the load time.
// Nil pointers (and empty DayName/MonthName) mean the source date could not be parsed.
type TransactionRecord struct {
	CustomerID int64      // from "Customer ID"
	Name       string     // from "Name"
	Birthdate  *time.Time // from "Birthdate" (DD-MM-YYYY) or nil
	Gender     string     // from "Gender" ("M" / "F")
	Date       *time.Time // from "Date" (DD-MM-YYYY) or nil
	Amount     float64    // from "Transaction_Amount"
	Merchant   string     // from "Merchant_Name"
	Category   string     // from "Category"
	City       string     // from "City"

	Age       *int   // whole years between Birthdate and load time
	Month     *int   // 1-12, from Date
	Year      *int   // from Date
	DayName   string // "Monday", ... from Date
	MonthName string // "January", ... from Date
}

// HasDate reports whether the transaction date was parsed.
func (r *TransactionRecord) HasDate() bool {
	return r.Date != nil
}
