package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dvloznov/card-analytics/internal/domain"
	"github.com/dvloznov/card-analytics/internal/gcs"
	"github.com/dvloznov/card-analytics/internal/logger"
	"github.com/rs/zerolog"
)

// WarehouseScheme prefixes BigQuery table sources: "bq://project.dataset.table".
const WarehouseScheme = "bq://"

var (
	// ErrNoSource is returned when no dataset source is configured.
	ErrNoSource = errors.New("no dataset source configured")

	// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")

	// ErrMissingColumns is returned when the header lacks required columns.
	ErrMissingColumns = errors.New("dataset is missing required columns")
)

// LoadError reports a dataset that could not be loaded.
// The service keeps running without data when it sees one.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load dataset %q: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// WarehouseReader reads dataset rows from a warehouse table reference.
type WarehouseReader interface {
	ReadRows(ctx context.Context, tableRef string) ([]Row, error)
}

// Table is the loaded dataset. It is never modified after Load returns.
type Table struct {
	Records  []domain.TransactionRecord
	Source   string
	LoadedAt time.Time
	Dropped  int
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// NewTable builds a Table from Rows as if they had been read from source.
func NewTable(source string, rows []Row, now time.Time) *Table {
	records, dropped := buildRecords(rows, now)
	return &Table{
		Records:  records,
		Source:   source,
		LoadedAt: now,
		Dropped:  dropped,
	}
}

// Loader resolves a dataset source and loads it into a Table.
type Loader struct {
	storage   gcs.StorageService
	warehouse WarehouseReader
	clock     func() time.Time
	log       zerolog.Logger
}

// NewLoader creates a Loader. storage and warehouse may be nil when gs:// and
// bq:// sources are not used. A nil clock means time.Now.
func NewLoader(storage gcs.StorageService, warehouse WarehouseReader, clock func() time.Time, log zerolog.Logger) *Loader {
	if clock == nil {
		clock = time.Now
	}
	return &Loader{
		storage:   storage,
		warehouse: warehouse,
		clock:     clock,
		log:       log,
	}
}

// Load reads the dataset from source: a local .csv/.xlsx path, a gs:// object
// or a bq:// table. Every failure is returned as *LoadError.
func (l *Loader) Load(ctx context.Context, source string) (*Table, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, &LoadError{Source: source, Err: ErrNoSource}
	}

	start := l.clock()
	rows, malformed, err := l.readRows(ctx, source)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}

	table := NewTable(source, rows, start)
	table.Dropped += malformed

	log := logger.WithFields(l.log, map[string]interface{}{
		"source":  source,
		"dropped": table.Dropped,
	})
	log.Info().
		Int("records", table.Len()).
		Dur("duration", l.clock().Sub(start)).
		Msg("Dataset loaded")

	if table.Dropped > 0 {
		log.Warn().
			Int("malformed", malformed).
			Msg("Malformed rows and rows without customer id, amount or category were skipped")
	}

	return table, nil
}

// readRows returns the source rows and the number of lines that could not be
// parsed at all.
func (l *Loader) readRows(ctx context.Context, source string) ([]Row, int, error) {
	switch {
	case strings.HasPrefix(source, WarehouseScheme):
		if l.warehouse == nil {
			return nil, 0, fmt.Errorf("no warehouse reader configured for %s", source)
		}
		rows, err := l.warehouse.ReadRows(ctx, source)
		if err != nil {
			return nil, 0, fmt.Errorf("read warehouse table: %w", err)
		}
		return rows, 0, nil

	case strings.HasPrefix(source, gcs.URIScheme):
		if l.storage == nil {
			return nil, 0, fmt.Errorf("no storage service configured for %s", source)
		}
		data, err := l.storage.FetchObject(ctx, source)
		if err != nil {
			return nil, 0, fmt.Errorf("fetch object: %w", err)
		}
		return decode(gcs.ObjectFilename(source), data)

	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, 0, fmt.Errorf("read file: %w", err)
		}
		return decode(source, data)
	}
}

// decode picks the decoder from the file extension.
func decode(name string, data []byte) ([]Row, int, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return decodeCSV(data)
	case ".xlsx", ".xlsm":
		rows, err := decodeXLSX(data)
		return rows, 0, err
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path.Ext(name))
	}
}
