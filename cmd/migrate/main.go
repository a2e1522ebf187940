package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/card-analytics/internal/config"
	"github.com/dvloznov/card-analytics/internal/dataset"
	"github.com/dvloznov/card-analytics/internal/gcs"
	infraBQ "github.com/dvloznov/card-analytics/internal/infra/bigquery"
	"github.com/dvloznov/card-analytics/internal/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// cardTransactionsTable is created by 0001_create_card_transactions.sql.
const cardTransactionsTable = "card_transactions"

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Pattern to match migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	var (
		projectID     = flag.String("project", cfg.Dataset.GCPProject, "GCP project ID (or set GCP_PROJECT env)")
		datasetID     = flag.String("dataset", "cards", "BigQuery dataset ID")
		appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
		seedPath      = flag.String("seed", "", "optional .csv/.xlsx path or gs:// object to load into card_transactions after migrating")
	)
	flag.Parse()

	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
	}

	ctx := context.Background()

	repo, err := infraBQ.NewCardTransactionRepository(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer repo.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	dir, err := resolveMigrationsDir(*migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to locate migrations")
	}

	migrations, err := readMigrations(dir, *projectID, *datasetID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}

	m := &Migrator{
		client:    repo.Client(),
		projectID: *projectID,
		datasetID: *datasetID,
		appliedBy: *appliedBy,
		log:       log,
	}
	if _, err := m.Run(ctx, migrations); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	if *seedPath != "" {
		if err := seed(ctx, repo, *seedPath, *projectID, *datasetID, log); err != nil {
			log.Fatal().Err(err).Msg("Seeding failed")
		}
	}
}

// Migrator applies pending migrations and records them in schema_migrations.
type Migrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
	log       zerolog.Logger
}

// Run applies every migration not yet recorded and returns how many ran.
func (m *Migrator) Run(ctx context.Context, migrations []Migration) (int, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return 0, err
	}
	m.log.Info().Int("found", len(migrations)).Int("applied", len(applied)).Msg("Loaded migrations")

	pending := pendingMigrations(migrations, applied, m.log)

	for _, migration := range pending {
		m.log.Info().Str("migration", migration.Filename).Msg("Applying migration")

		if err := m.exec(ctx, migration.SQL, nil); err != nil {
			return 0, fmt.Errorf("executing migration %s: %w", migration.Filename, err)
		}
		if err := m.record(ctx, migration); err != nil {
			return 0, fmt.Errorf("recording migration %s: %w", migration.Filename, err)
		}
	}

	if len(pending) == 0 {
		m.log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else {
		m.log.Info().Int("count", len(pending)).Msg("Applied migrations")
	}
	return len(pending), nil
}

// pendingMigrations filters out applied versions, warning when an applied
// migration's file has since changed.
func pendingMigrations(migrations []Migration, applied []AppliedMigration, log zerolog.Logger) []Migration {
	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		appliedByVersion[am.Version] = am
	}

	var pending []Migration
	for _, migration := range migrations {
		am, ok := appliedByVersion[migration.Version]
		if !ok {
			pending = append(pending, migration)
			continue
		}
		if am.Checksum != "" && am.Checksum != migration.Checksum {
			log.Warn().Str("migration", migration.Filename).Msg("Applied migration has changed since it ran")
		}
	}
	return pending
}

func (m *Migrator) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", m.projectID, m.datasetID, name)
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func (m *Migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, m.table("schema_migrations"))

	return m.exec(ctx, sql, nil)
}

// appliedMigrations retrieves the list of already applied migrations
func (m *Migrator) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, m.table("schema_migrations"))

	it, err := m.client.Query(sql).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// record records a successfully applied migration in schema_migrations
func (m *Migrator) record(ctx context.Context, migration Migration) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, m.table("schema_migrations"))

	return m.exec(ctx, sql, []bigquery.QueryParameter{
		{Name: "version", Value: migration.Version},
		{Name: "name", Value: migration.Name},
		{Name: "checksum", Value: migration.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	})
}

// exec runs one statement and waits for the job to finish.
func (m *Migrator) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	query := m.client.Query(sql)
	query.Parameters = params

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

// resolveMigrationsDir also tries the path from the repository root, for runs from cmd/migrate.
func resolveMigrationsDir(dir string) (string, error) {
	for _, candidate := range []string{dir, filepath.Join("..", "..", dir)} {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("migrations directory not found: %s", dir)
}

// parseMigrationFilename splits "0001_name.sql" into its version and name.
func parseMigrationFilename(filename string) (int, string, bool) {
	matches := migrationPattern.FindStringSubmatch(filename)
	if matches == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}
	return version, matches[2], true
}

// readMigrations reads all migration files from dir, ordered by version.
// The checksum covers the file as written, before placeholders are replaced,
// so it identifies the migration independently of where it is applied.
func readMigrations(dir, projectID, datasetID string, log zerolog.Logger) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		version, name, ok := parseMigrationFilename(file.Name())
		if !ok {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid migration name")
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, prev, file.Name())
		}
		seen[version] = file.Name()

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: file.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// seed loads a dataset file and streams its valid records into card_transactions.
func seed(ctx context.Context, repo *infraBQ.CardTransactionRepository, source, projectID, datasetID string, log zerolog.Logger) error {
	loader := dataset.NewLoader(gcs.NewClient(), nil, time.Now, logger.Component(log, "dataset"))

	table, err := loader.Load(ctx, source)
	if err != nil {
		return err
	}

	target := fmt.Sprintf("%s%s.%s.%s", dataset.WarehouseScheme, projectID, datasetID, cardTransactionsTable)
	written, err := repo.InsertRecords(ctx, target, table.Records)
	if err != nil {
		return fmt.Errorf("seeding %s after %d rows: %w", target, written, err)
	}

	log.Info().
		Str("source", source).
		Str("target", target).
		Int("rows", written).
		Int("dropped", table.Dropped).
		Msg("Seeded card transactions")
	return nil
}
