package dataset

import (
	"fmt"
	"strings"
)

// Source column headers of the card transaction dataset.
const (
	ColCustomerID = "Customer ID"
	ColName       = "Name"
	ColBirthdate  = "Birthdate"
	ColGender     = "Gender"
	ColDate       = "Date"
	ColAmount     = "Transaction_Amount"
	ColMerchant   = "Merchant_Name"
	ColCategory   = "Category"
	ColCity       = "City"
)

// DateLayout is the day-month-year format used by the dataset's date columns.
// Single-digit days and months are accepted as well.
const DateLayout = "2-1-2006"

var requiredColumns = []string{
	ColCustomerID, ColName, ColBirthdate, ColGender, ColDate,
	ColAmount, ColMerchant, ColCategory, ColCity,
}

// Row is one undecoded dataset line: every column as source text.
// Decoders and warehouse readers produce Rows; derivation turns them into records.
type Row struct {
	CustomerID string
	Name       string
	Birthdate  string
	Gender     string
	Date       string
	Amount     string
	Merchant   string
	Category   string
	City       string
}

// columnIndex maps each required column to its position in a header line.
type columnIndex map[string]int

// newColumnIndex matches header cells to the required columns.
// Matching ignores case, spaces, underscores and hyphens, so "customer_id"
// and "Customer ID" are the same column. Extra columns are ignored.
func newColumnIndex(headers []string) (columnIndex, error) {
	byKey := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if _, exists := byKey[key]; !exists {
			byKey[key] = i
		}
	}

	idx := make(columnIndex, len(requiredColumns))
	var missing []string
	for _, col := range requiredColumns {
		pos, ok := byKey[normalizeHeader(col)]
		if !ok {
			missing = append(missing, col)
			continue
		}
		idx[col] = pos
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return idx, nil
}

// row builds a Row from one line of cells. Short lines yield empty values.
func (idx columnIndex) row(cells []string) Row {
	get := func(col string) string {
		pos := idx[col]
		if pos >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[pos])
	}

	return Row{
		CustomerID: get(ColCustomerID),
		Name:       get(ColName),
		Birthdate:  get(ColBirthdate),
		Gender:     get(ColGender),
		Date:       get(ColDate),
		Amount:     get(ColAmount),
		Merchant:   get(ColMerchant),
		Category:   get(ColCategory),
		City:       get(ColCity),
	}
}

// normalizeHeader converts "Customer ID" → "customerid".
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}
