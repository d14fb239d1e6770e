package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/dedup/internal/config"
	"github.com/ehr/dedup/internal/domain/dedup"
	"github.com/ehr/dedup/internal/platform/dataset"
	"github.com/ehr/dedup/internal/platform/db"
	"github.com/ehr/dedup/internal/platform/history"
	"github.com/ehr/dedup/internal/platform/report"
)

type runOptions struct {
	patients      string
	patientsTable string
	tests         string
	testsTable    string
	output        string
	outputTable   string
	indexColumn   string
	numeric       []string
	prepare       bool
	reportPath    string
	noColor       bool
	noHistory     bool
}

func runCmd(load func() (*config.Config, error)) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deduplicate a patient extract",
		Long: `Load patient rows (and optionally test results) from CSV files or Postgres
tables, remove duplicate patients and write the remaining rows.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if (opts.patients == "") == (opts.patientsTable == "") {
				return fmt.Errorf("exactly one of --patients or --patients-table is required")
			}
			if opts.tests != "" && opts.testsTable != "" {
				return fmt.Errorf("--tests and --tests-table are mutually exclusive")
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			return executeRun(cmd, cfg, opts, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.patients, "patients", "", "patient CSV file")
	f.StringVar(&opts.patientsTable, "patients-table", "", "patient table in DATABASE_URL")
	f.StringVar(&opts.tests, "tests", "", "test results CSV file")
	f.StringVar(&opts.testsTable, "tests-table", "", "test results table in DATABASE_URL")
	f.StringVarP(&opts.output, "output", "o", "-", `output CSV file, "-" for stdout`)
	f.StringVar(&opts.outputTable, "output-table", "", "write the result to this table instead of CSV")
	f.StringVar(&opts.indexColumn, "index-column", "", "column holding the row index")
	f.StringSliceVar(&opts.numeric, "numeric-columns", nil, "patient CSV columns parsed as numbers")
	f.BoolVar(&opts.prepare, "prepare", true, "derive full_name, full_address, localisation and born_age")
	f.StringVar(&opts.reportPath, "report", "", "write a YAML run report to this file")
	f.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	f.BoolVar(&opts.noHistory, "no-history", false, "do not record the run")
	return cmd
}

func executeRun(cmd *cobra.Command, cfg *config.Config, opts runOptions, logger zerolog.Logger) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var pool *pgxpool.Pool
	if opts.patientsTable != "" || opts.testsTable != "" || opts.outputTable != "" {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for table sources and outputs")
		}
		p, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return err
		}
		defer p.Close()
		pool = p
		logger.Info().Msg("connected to database")
	}

	csvOpts := dataset.CSVOptions{IndexColumn: opts.indexColumn, NumericColumns: opts.numeric}
	tableOpts := db.TableOptions{IndexColumn: opts.indexColumn}

	var (
		patients *dataset.Dataset
		source   string
		err      error
	)
	if opts.patients != "" {
		source = opts.patients
		patients, err = dataset.LoadCSV(opts.patients, csvOpts)
	} else {
		source = "postgres:" + opts.patientsTable
		patients, err = db.LoadTable(ctx, pool, opts.patientsTable, tableOpts)
	}
	if err != nil {
		return fmt.Errorf("load patients: %w", err)
	}
	logger.Info().Str("source", source).Int("rows", patients.Len()).Msg("patients loaded")

	results, err := loadTests(ctx, cfg, opts, pool)
	if err != nil {
		return err
	}
	if results != nil {
		logger.Info().Int("ids", results.Len()).Msg("test results loaded")
	}

	if opts.prepare {
		patients = dataset.PreparePatients(patients)
	}

	dcfg, err := cfg.DedupConfig()
	if err != nil {
		return err
	}
	runID := uuid.New().String()
	started := time.Now()
	res, err := dedup.NewDeduplicatorWithLogger(dcfg, logger.With().Str("run_id", runID).Logger()).Deduplicate(ctx, patients, results)
	if err != nil {
		return err
	}
	meta := dedup.RunMeta{ID: runID, Source: source, Metric: cfg.Metric, StartedAt: started, FinishedAt: time.Now()}

	if opts.outputTable != "" {
		n, err := db.WriteTable(ctx, pool, opts.outputTable, res.Dataset, tableOpts)
		if err != nil {
			return err
		}
		logger.Info().Str("table", opts.outputTable).Int64("rows", n).Msg("output written")
	} else if opts.output == "-" {
		if err := dataset.WriteCSV(cmd.OutOrStdout(), res.Dataset, csvOpts); err != nil {
			return err
		}
	} else {
		if err := dataset.SaveCSV(opts.output, res.Dataset, csvOpts); err != nil {
			return err
		}
		logger.Info().Str("path", opts.output).Int("rows", res.Dataset.Len()).Msg("output written")
	}

	rep := report.FromResult(meta, dcfg, res)
	if opts.reportPath != "" {
		if err := report.SaveYAML(opts.reportPath, rep); err != nil {
			return err
		}
	}

	if !opts.noHistory && cfg.HistoryPath != "" {
		if err := recordRun(ctx, cfg.HistoryPath, dedup.RunRecord(meta, dcfg, res)); err != nil {
			logger.Warn().Err(err).Msg("failed to record run")
		}
	}

	fmt.Fprint(cmd.ErrOrStderr(), report.NewSummary(opts.noColor).Format(rep))
	return nil
}

// loadTests returns nil when no test source is configured.
func loadTests(ctx context.Context, cfg *config.Config, opts runOptions, pool *pgxpool.Pool) (*dataset.TestResults, error) {
	var (
		ds  *dataset.Dataset
		err error
	)
	switch {
	case opts.tests != "":
		ds, err = dataset.LoadCSV(opts.tests, dataset.CSVOptions{})
	case opts.testsTable != "":
		ds, err = db.LoadTable(ctx, pool, opts.testsTable, db.TableOptions{})
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tests: %w", err)
	}
	return dataset.TestResultsFromDataset(ds, cfg.TestIDField, cfg.TestOutcomeField)
}

func recordRun(ctx context.Context, path string, run history.Run) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.Record(ctx, run)
	return err
}
