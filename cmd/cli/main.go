package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/card-analytics/internal/analytics"
	"github.com/dvloznov/card-analytics/internal/config"
	"github.com/dvloznov/card-analytics/internal/dataset"
	"github.com/dvloznov/card-analytics/internal/gcs"
	infraBQ "github.com/dvloznov/card-analytics/internal/infra/bigquery"
	"github.com/dvloznov/card-analytics/internal/logger"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// errUsage marks invalid invocations; main prints usage for them.
var errUsage = errors.New("invalid usage")

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout carries only the JSON result.
	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: os.Stderr})

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err := run(context.Background(), os.Args[1:], cfg.Dataset, os.Stdout, log); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\n\n", err)
			printUsage(os.Stderr)
			os.Exit(2)
		}
		log.Error().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Card Analytics CLI")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  cli <command> [options]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  merchant  Merchant trust score (-name)")
	fmt.Fprintln(w, "  customer  Customer spending profile (-id)")
	fmt.Fprintln(w, "  category  Category insights (-category)")
	fmt.Fprintln(w, "  risk      Transaction risk assessment (-amount, -category)")
	fmt.Fprintln(w, "  city      City activity (-name)")
	fmt.Fprintln(w, "  predict   Demographic spending prediction (-age, -gender)")
	fmt.Fprintln(w, "  stats     Dashboard statistics")
	fmt.Fprintln(w, "  upload    Upload a dataset file to GCS (-bucket, -file)")
	fmt.Fprintln(w, "  help      Show this help message")
	fmt.Fprintln(w, "\nQuery commands accept -dataset and -project to override DATASET_PATH and GCP_PROJECT.")
}

// run executes one command and writes its JSON result to out.
func run(ctx context.Context, args []string, ds config.DatasetConfig, out io.Writer, log zerolog.Logger) error {
	cmd, rest := args[0], args[1:]
	ctx = logger.WithContext(ctx, log)

	switch cmd {
	case "upload":
		return runUpload(ctx, rest, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	}

	query, ok := queries[cmd]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	source := fs.String("dataset", ds.Path, "dataset source (.csv/.xlsx path, gs:// object or bq:// table)")
	project := fs.String("project", ds.GCPProject, "GCP project for BigQuery sources")
	exec := query(fs)
	if err := fs.Parse(rest); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	engine, err := openEngine(ctx, config.DatasetConfig{Path: *source, GCPProject: *project})
	if err != nil {
		return err
	}

	result, err := exec(engine)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// A queryCommand registers its flags and returns the function that runs it.
type queryCommand func(fs *flag.FlagSet) func(e *analytics.Engine) (interface{}, error)

var queries = map[string]queryCommand{
	"merchant": func(fs *flag.FlagSet) func(*analytics.Engine) (interface{}, error) {
		name := fs.String("name", "", "merchant name or part of it")
		return func(e *analytics.Engine) (interface{}, error) {
			if strings.TrimSpace(*name) == "" {
				return nil, fmt.Errorf("%w: -name is required", errUsage)
			}
			return e.MerchantTrust(strings.TrimSpace(*name))
		}
	},
	"customer": func(fs *flag.FlagSet) func(*analytics.Engine) (interface{}, error) {
		id := fs.String("id", "", "customer id")
		return func(e *analytics.Engine) (interface{}, error) {
			if strings.TrimSpace(*id) == "" {
				return nil, fmt.Errorf("%w: -id is required", errUsage)
			}
			v, ok := analytics.ParseCustomerID(*id)
			if !ok {
				return nil, fmt.Errorf("customer %q: %w", *id, analytics.ErrNotFound)
			}
			return e.CustomerAnalysis(v)
		}
	},
	"category": func(fs *flag.FlagSet) func(*analytics.Engine) (interface{}, error) {
		category := fs.String("category", "", "exact category name")
		return func(e *analytics.Engine) (interface{}, error) {
			if *category == "" {
				return nil, fmt.Errorf("%w: -category is required", errUsage)
			}
			return e.CategoryInsights(*category)
		}
	},
	"risk": func(fs *flag.FlagSet) func(*analytics.Engine) (interface{}, error) {
		amount := fs.Float64("amount", 0, "transaction amount")
		category := fs.String("category", "", "exact category name")
		return func(e *analytics.Engine) (interface{}, error) {
			if *category == "" {
				return nil, fmt.Errorf("%w: -category is required", errUsage)
			}
			if *amount <= 0 {
				return nil, fmt.Errorf("%w: -amount must be positive", errUsage)
			}
			return e.AssessRisk(*amount, *category)
		}
	},
	"city": func(fs *flag.FlagSet) func(*analytics.Engine) (interface{}, error) {
		name := fs.String("name", "", "city name or part of it")
		return func(e *analytics.Engine) (interface{}, error) {
			if strings.TrimSpace(*name) == "" {
				return nil, fmt.Errorf("%w: -name is required", errUsage)
			}
			return e.CityAnalysis(strings.TrimSpace(*name))
		}
	},
	"predict": func(fs *flag.FlagSet) func(*analytics.Engine) (interface{}, error) {
		age := fs.Int("age", 0, "customer age")
		gender := fs.String("gender", "M", "M, F or anything else for all")
		return func(e *analytics.Engine) (interface{}, error) {
			if *age <= 0 {
				return nil, fmt.Errorf("%w: -age must be positive", errUsage)
			}
			return e.PredictSpending(*age, *gender)
		}
	},
	"stats": func(fs *flag.FlagSet) func(*analytics.Engine) (interface{}, error) {
		return func(e *analytics.Engine) (interface{}, error) {
			return e.DashboardStats()
		}
	},
}

// openEngine loads the dataset once for a single command.
func openEngine(ctx context.Context, ds config.DatasetConfig) (*analytics.Engine, error) {
	log := logger.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var warehouse dataset.WarehouseReader
	if ds.WarehouseSource() {
		project := ds.GCPProject
		if project == "" {
			if ref, err := infraBQ.ParseTableRef(ds.Path, ""); err == nil {
				project = ref.ProjectID
			}
		}
		reader, err := infraBQ.NewCardTransactionRepository(ctx, project)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		warehouse = reader
	}

	loader := dataset.NewLoader(gcs.NewClient(), warehouse, time.Now, logger.Component(log, "dataset"))
	table, err := loader.Load(ctx, ds.Path)
	if err != nil {
		return nil, err
	}
	return analytics.New(table), nil
}

func runUpload(ctx context.Context, args []string, out io.Writer) error {
	log := logger.FromContext(ctx)

	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local .csv or .xlsx dataset")
	unique := fs.Bool("unique", false, "prefix the object name with a random UUID")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if *bucketName == "" || *filePath == "" {
		return fmt.Errorf("%w: cli upload -bucket NAME -file PATH [-object NAME] [-unique]", errUsage)
	}

	object := uploadObjectName(*objectName, *filePath, *unique)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", object).
		Str("file", *filePath).
		Msg("Uploading dataset to GCS")

	if err := gcs.NewClient().UploadFile(ctx, *bucketName, object, *filePath); err != nil {
		return err
	}

	fmt.Fprintf(out, "Uploaded %s to %s%s/%s\n", *filePath, gcs.URIScheme, *bucketName, object)
	return nil
}

func uploadObjectName(object, filePath string, unique bool) string {
	if object == "" {
		object = "datasets/" + filepath.Base(filePath)
	}
	if unique {
		dir, base := filepath.Split(object)
		object = dir + uuid.NewString() + "-" + base
	}
	return object
}
