package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/card-analytics/internal/dataset"
	"github.com/dvloznov/card-analytics/internal/domain"
)

// CardTransactionRepository is the BigQuery implementation of dataset.WarehouseReader.
// It holds a shared BigQuery client to avoid creating a new connection per load.
type CardTransactionRepository struct {
	client    *bigquery.Client
	projectID string
}

// NewCardTransactionRepository creates a repository billed to projectID.
func NewCardTransactionRepository(ctx context.Context, projectID string) (*CardTransactionRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewCardTransactionRepository: project ID is required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewCardTransactionRepository: creating client: %w", err)
	}
	return &CardTransactionRepository{
		client:    client,
		projectID: projectID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *CardTransactionRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Client exposes the underlying client for schema work.
func (r *CardTransactionRepository) Client() *bigquery.Client {
	return r.client
}

// ReadRows implements dataset.WarehouseReader for "bq://" table references.
func (r *CardTransactionRepository) ReadRows(ctx context.Context, tableRef string) ([]dataset.Row, error) {
	ref, err := ParseTableRef(tableRef, r.projectID)
	if err != nil {
		return nil, err
	}

	rows, err := ReadCardTransactionsWithClient(ctx, r.client, ref)
	if err != nil {
		return nil, err
	}

	out := make([]dataset.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDatasetRow())
	}
	return out, nil
}

// InsertRecords writes loaded records into the "bq://" table reference.
func (r *CardTransactionRepository) InsertRecords(ctx context.Context, tableRef string, records []domain.TransactionRecord) (int, error) {
	ref, err := ParseTableRef(tableRef, r.projectID)
	if err != nil {
		return 0, err
	}

	rows := make([]*CardTransactionRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, CardTransactionRowFromRecord(rec))
	}
	return InsertCardTransactionsWithClient(ctx, r.client, ref, rows)
}

// Ensure CardTransactionRepository implements dataset.WarehouseReader.
var _ dataset.WarehouseReader = (*CardTransactionRepository)(nil)
