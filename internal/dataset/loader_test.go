package dataset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

var loadTime = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return loadTime }

const sampleCSV = `Customer ID,Name,Birthdate,Gender,Date,Transaction_Amount,Merchant_Name,Category,City
1001,Asha Rao,15-06-1990,F,03-01-2024,120.50,Acme Store,Grocery,Mumbai
1002,Ravi Kumar,not-a-date,M,04-01-2024,80,Zen Fuel,Fuel,Delhi
1003,Meera Iyer,1-2-1985,F,bad,45.25,Acme Store,Grocery,Pune
,Missing Id,01-01-1990,M,05-01-2024,10,Acme Store,Grocery,Pune
1004,No Amount,01-01-1990,M,05-01-2024,,Acme Store,Grocery,Pune
1005,No Category,01-01-1990,M,05-01-2024,12,Acme Store,,Pune
`

type fakeStorage struct {
	objects map[string][]byte
	err     error
}

func (f *fakeStorage) FetchObject(ctx context.Context, uri string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[uri]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (f *fakeStorage) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return nil
}

type fakeWarehouse struct {
	rows []Row
	err  error
	ref  string
}

func (f *fakeWarehouse) ReadRows(ctx context.Context, tableRef string) ([]Row, error) {
	f.ref = tableRef
	return f.rows, f.err
}

func newTestLoader(storage *fakeStorage, warehouse *fakeWarehouse) *Loader {
	var l *Loader
	// Typed nil interfaces would defeat the nil checks in readRows.
	switch {
	case storage != nil && warehouse != nil:
		l = NewLoader(storage, warehouse, fixedClock, zerolog.New(io.Discard))
	case storage != nil:
		l = NewLoader(storage, nil, fixedClock, zerolog.New(io.Discard))
	case warehouse != nil:
		l = NewLoader(nil, warehouse, fixedClock, zerolog.New(io.Discard))
	default:
		l = NewLoader(nil, nil, fixedClock, zerolog.New(io.Discard))
	}
	return l
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

func TestLoader_LoadCSV(t *testing.T) {
	p := writeTempFile(t, "cards.csv", []byte(sampleCSV))

	table, err := newTestLoader(nil, nil).Load(context.Background(), p)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", table.Len())
	}
	if table.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", table.Dropped)
	}
	if !table.LoadedAt.Equal(loadTime) {
		t.Errorf("LoadedAt = %v, want %v", table.LoadedAt, loadTime)
	}

	first := table.Records[0]
	if first.CustomerID != 1001 || first.Amount != 120.50 || first.Merchant != "Acme Store" {
		t.Errorf("unexpected first record: %+v", first)
	}
	if first.Age == nil || *first.Age != 35 {
		t.Errorf("Age = %v, want 35", first.Age)
	}
	if first.Month == nil || *first.Month != 1 || first.Year == nil || *first.Year != 2024 {
		t.Errorf("Month/Year = %v/%v, want 1/2024", first.Month, first.Year)
	}
	if first.DayName != "Wednesday" || first.MonthName != "January" {
		t.Errorf("DayName/MonthName = %q/%q", first.DayName, first.MonthName)
	}

	second := table.Records[1]
	if second.Birthdate != nil || second.Age != nil {
		t.Errorf("expected undefined birthdate and age, got %+v", second)
	}

	third := table.Records[2]
	if third.Age == nil || *third.Age != 40 {
		t.Errorf("non-padded birthdate: Age = %v, want 40", third.Age)
	}
	if third.Date != nil || third.Month != nil || third.DayName != "" {
		t.Errorf("expected undefined date fields, got %+v", third)
	}
}

func TestLoader_LoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []interface{}{"Customer ID", "Name", "Birthdate", "Gender", "Date", "Transaction_Amount", "Merchant_Name", "Category", "City"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	row := []interface{}{2001, "Kiran", "10-10-2000", "M", time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), 99.5, "Book Hub", "Books", "Chennai"}
	if err := f.SetSheetRow(sheet, "A2", &row); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	p := writeTempFile(t, "cards.xlsx", buf.Bytes())

	table, err := newTestLoader(nil, nil).Load(context.Background(), p)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", table.Len())
	}

	rec := table.Records[0]
	if rec.CustomerID != 2001 || rec.Category != "Books" || rec.Amount != 99.5 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Date == nil || rec.Date.Month() != time.March || rec.Date.Day() != 5 {
		t.Errorf("expected date cell to convert to 05-03-2024, got %v", rec.Date)
	}
	if rec.Age == nil || *rec.Age != 24 {
		t.Errorf("Age = %v, want 24", rec.Age)
	}
}

func TestLoader_LoadFromStorage(t *testing.T) {
	storage := &fakeStorage{objects: map[string][]byte{
		"gs://analytics/data/cards.csv": []byte(sampleCSV),
	}}

	table, err := newTestLoader(storage, nil).Load(context.Background(), "gs://analytics/data/cards.csv")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if table.Len() != 3 {
		t.Errorf("Len() = %d, want 3", table.Len())
	}
	if table.Source != "gs://analytics/data/cards.csv" {
		t.Errorf("Source = %q", table.Source)
	}
}

func TestLoader_LoadFromWarehouse(t *testing.T) {
	warehouse := &fakeWarehouse{rows: []Row{
		{CustomerID: "7", Name: "Lee", Birthdate: "01-01-1980", Gender: "M", Date: "02-02-2024", Amount: "10.5", Merchant: "Cafe", Category: "Food", City: "Goa"},
	}}

	table, err := newTestLoader(nil, warehouse).Load(context.Background(), "bq://proj.cards.transactions")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if warehouse.ref != "bq://proj.cards.transactions" {
		t.Errorf("warehouse got ref %q", warehouse.ref)
	}
	if table.Len() != 1 || table.Records[0].City != "Goa" {
		t.Errorf("unexpected table: %+v", table.Records)
	}
}

func TestLoader_Failures(t *testing.T) {
	missingCols := writeTempFile(t, "bad.csv", []byte("Customer ID,Name\n1,x\n"))
	unsupported := writeTempFile(t, "cards.json", []byte("[]"))

	tests := []struct {
		name    string
		loader  *Loader
		source  string
		wantErr error
	}{
		{"empty source", newTestLoader(nil, nil), "  ", ErrNoSource},
		{"missing file", newTestLoader(nil, nil), filepath.Join(t.TempDir(), "nope.csv"), os.ErrNotExist},
		{"missing columns", newTestLoader(nil, nil), missingCols, ErrMissingColumns},
		{"unsupported format", newTestLoader(nil, nil), unsupported, ErrUnsupportedFormat},
		{"no storage", newTestLoader(nil, nil), "gs://b/cards.csv", nil},
		{"no warehouse", newTestLoader(nil, nil), "bq://p.d.t", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := tt.loader.Load(context.Background(), tt.source)
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if table != nil {
				t.Error("Load() returned a partial table on failure")
			}

			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("error %v is not a *LoadError", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want wrapping %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_StorageError(t *testing.T) {
	storage := &fakeStorage{err: errors.New("permission denied")}

	_, err := newTestLoader(storage, nil).Load(context.Background(), "gs://b/cards.csv")
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Source != "gs://b/cards.csv" {
		t.Fatalf("expected LoadError for source, got %v", err)
	}
}

func TestLoader_LoadCSVWithByteOrderMark(t *testing.T) {
	p := writeTempFile(t, "cards.csv", append([]byte("\ufeff"), sampleCSV...))

	table, err := newTestLoader(nil, nil).Load(context.Background(), p)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if table.Len() != 3 || table.Records[0].CustomerID != 1001 {
		t.Errorf("unexpected records after BOM header: %+v", table.Records)
	}
}

func TestLoader_MalformedLinesCountAsDropped(t *testing.T) {
	data := `Customer ID,Name,Birthdate,Gender,Date,Transaction_Amount,Merchant_Name,Category,City
1001,Asha Rao,15-06-1990,F,03-01-2024,120.50,Acme Store,Grocery,Mumbai
1002,Bad"Quote,15-06-1990,F,03-01-2024,10,Acme Store,Grocery,Mumbai
1003,Meera Iyer,01-02-1985,F,04-01-2024,45.25,Acme Store,Grocery,Pune
`
	p := writeTempFile(t, "cards.csv", []byte(data))

	var logs bytes.Buffer
	loader := NewLoader(nil, nil, fixedClock, zerolog.New(&logs))
	table, err := loader.Load(context.Background(), p)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
	if table.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", table.Dropped)
	}
	if !strings.Contains(logs.String(), `"malformed":1`) || !strings.Contains(logs.String(), `"source":"`+p+`"`) {
		t.Errorf("expected malformed count and source in logs, got %s", logs.String())
	}
}
