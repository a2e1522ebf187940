package bigquery

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-analytics/internal/dataset"
	"github.com/dvloznov/card-analytics/internal/domain"
	"google.golang.org/api/iterator"
)

// TableRef identifies a BigQuery table.
type TableRef struct {
	ProjectID string
	DatasetID string
	TableID   string
}

// String renders the reference in standard SQL quoting form.
func (t TableRef) String() string {
	return fmt.Sprintf("`%s.%s.%s`", t.ProjectID, t.DatasetID, t.TableID)
}

// ParseTableRef parses "bq://project.dataset.table" or "bq://dataset.table".
// The short form uses defaultProject.
func ParseTableRef(source, defaultProject string) (TableRef, error) {
	if !strings.HasPrefix(source, dataset.WarehouseScheme) {
		return TableRef{}, fmt.Errorf("invalid table reference: %s", source)
	}

	parts := strings.Split(strings.TrimPrefix(source, dataset.WarehouseScheme), ".")
	for _, p := range parts {
		if p == "" {
			return TableRef{}, fmt.Errorf("invalid table reference: %s", source)
		}
	}

	switch len(parts) {
	case 3:
		return TableRef{ProjectID: parts[0], DatasetID: parts[1], TableID: parts[2]}, nil
	case 2:
		if defaultProject == "" {
			return TableRef{}, fmt.Errorf("table reference %s has no project and no default project is set", source)
		}
		return TableRef{ProjectID: defaultProject, DatasetID: parts[0], TableID: parts[1]}, nil
	default:
		return TableRef{}, fmt.Errorf("invalid table reference: %s", source)
	}
}

// ReadCardTransactionsWithClient reads every row of the table using the provided client.
func ReadCardTransactionsWithClient(ctx context.Context, client *bigquery.Client, ref TableRef) ([]*CardTransactionRow, error) {
	query := fmt.Sprintf(`
		SELECT
			customer_id,
			name,
			birthdate,
			gender,
			date,
			transaction_amount,
			merchant_name,
			category,
			city
		FROM %s
	`, ref)

	it, err := client.Query(query).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadCardTransactionsWithClient: reading query: %w", err)
	}

	var rows []*CardTransactionRow
	for {
		var row CardTransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadCardTransactionsWithClient: iterating: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}

// ToDatasetRow renders a warehouse row as source text for the dataset loader.
// NULL columns become empty strings, which the loader treats as missing.
func (r *CardTransactionRow) ToDatasetRow() dataset.Row {
	row := dataset.Row{
		Name:     nullString(r.Name),
		Gender:   nullString(r.Gender),
		Merchant: nullString(r.MerchantName),
		Category: nullString(r.Category),
		City:     nullString(r.City),
	}

	if r.CustomerID.Valid {
		row.CustomerID = strconv.FormatInt(r.CustomerID.Int64, 10)
	}
	if r.TransactionAmount.Valid {
		row.Amount = strconv.FormatFloat(r.TransactionAmount.Float64, 'f', -1, 64)
	}
	if r.Birthdate.Valid {
		row.Birthdate = formatCivilDate(r.Birthdate.Date)
	}
	if r.Date.Valid {
		row.Date = formatCivilDate(r.Date.Date)
	}

	return row
}

// formatCivilDate renders a DATE value in the dataset's day-month-year layout.
func formatCivilDate(d civil.Date) string {
	return fmt.Sprintf("%02d-%02d-%04d", d.Day, int(d.Month), d.Year)
}

func nullString(s bigquery.NullString) string {
	if !s.Valid {
		return ""
	}
	return strings.TrimSpace(s.StringVal)
}

// insertBatchSize bounds the rows sent per streaming insert request.
const insertBatchSize = 500

// InsertCardTransactionsWithClient streams rows into the table in batches and
// returns how many rows were written before any failure.
func InsertCardTransactionsWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, rows []*CardTransactionRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	inserter := client.DatasetInProject(ref.ProjectID, ref.DatasetID).Table(ref.TableID).Inserter()

	written := 0
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return written, fmt.Errorf("InsertCardTransactionsWithClient: inserting rows %d-%d: %w", start, end-1, err)
		}
		written = end
	}

	return written, nil
}

// CardTransactionRowFromRecord converts a loaded record back to its warehouse form.
// Undefined dates become NULL.
func CardTransactionRowFromRecord(r domain.TransactionRecord) *CardTransactionRow {
	row := &CardTransactionRow{
		CustomerID:        bigquery.NullInt64{Int64: r.CustomerID, Valid: true},
		Name:              toNullString(r.Name),
		Gender:            toNullString(r.Gender),
		TransactionAmount: bigquery.NullFloat64{Float64: r.Amount, Valid: true},
		MerchantName:      toNullString(r.Merchant),
		Category:          toNullString(r.Category),
		City:              toNullString(r.City),
	}
	if r.Birthdate != nil {
		row.Birthdate = bigquery.NullDate{Date: civil.DateOf(*r.Birthdate), Valid: true}
	}
	if r.Date != nil {
		row.Date = bigquery.NullDate{Date: civil.DateOf(*r.Date), Valid: true}
	}
	return row
}

func toNullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
