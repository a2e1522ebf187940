package bigquery

import (
	"cloud.google.com/go/bigquery"
)

// CardTransactionRow mirrors one row of a card transactions table.
// Column names follow the snake_case form of the dataset headers.
type CardTransactionRow struct {
	CustomerID        bigquery.NullInt64   `bigquery:"customer_id"`        // REQUIRED in practice
	Name              bigquery.NullString  `bigquery:"name"`               // NULLABLE
	Birthdate         bigquery.NullDate    `bigquery:"birthdate"`          // NULLABLE DATE
	Gender            bigquery.NullString  `bigquery:"gender"`             // NULLABLE
	Date              bigquery.NullDate    `bigquery:"date"`               // NULLABLE DATE
	TransactionAmount bigquery.NullFloat64 `bigquery:"transaction_amount"` // REQUIRED in practice
	MerchantName      bigquery.NullString  `bigquery:"merchant_name"`      // NULLABLE
	Category          bigquery.NullString  `bigquery:"category"`           // REQUIRED in practice
	City              bigquery.NullString  `bigquery:"city"`               // NULLABLE
}
