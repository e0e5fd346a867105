package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"intake/internal/logging"
	"intake/internal/regression"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	suitePath   string
	dbPath      string
	watchFiles  bool
	workers     int
	historyN    int
	historyCase string
	debounce    time.Duration
)

// regressCmd runs a labelled suite
var regressCmd = &cobra.Command{
	Use:   "regress",
	Short: "Run a labelled regression suite",
	Long: `Evaluates every case of a YAML suite (the embedded suite by default) in
parallel and prints the report. Exits non-zero when any case fails.

With --db, run summaries and per-case outcomes are recorded in a sqlite store;
transcripts are never stored. With --watch, the suite is re-run whenever the
suite, config or lexicon file changes.

Examples:
  intake regress
  intake regress --suite cases.yaml --db runs.db --watch
  intake regress --db runs.db --history 10
  intake regress --db runs.db --history 5 --case process-eviction`,
	Args: cobra.NoArgs,
	RunE: runRegress,
}

func init() {
	regressCmd.Flags().StringVarP(&suitePath, "suite", "s", "", "Suite YAML (default: embedded suite)")
	regressCmd.Flags().StringVar(&dbPath, "db", "", "Record runs in this sqlite database")
	regressCmd.Flags().BoolVarP(&watchFiles, "watch", "w", false, "Re-run when the suite, config or lexicon changes")
	regressCmd.Flags().IntVar(&workers, "workers", 0, "Cases evaluated at once (default: GOMAXPROCS)")
	regressCmd.Flags().IntVar(&historyN, "history", 0, "Print the last N stored runs instead of running")
	regressCmd.Flags().StringVar(&historyCase, "case", "", "With --history, print the outcomes of one case")
	regressCmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "Quiet period before a watched change re-runs")
}

func runRegress(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := logging.For(cliLogger(), logging.CategoryCLI)
	out := cmd.OutOrStdout()

	var store *regression.Store
	if dbPath != "" {
		s, err := regression.OpenStore(dbPath)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	if historyN > 0 {
		if store == nil {
			return fmt.Errorf("--history needs --db")
		}
		return printHistory(ctx, out, store)
	}

	rep, err := regressOnce(ctx, out, store)
	if !watchFiles {
		if err != nil {
			return err
		}
		if !rep.OK() {
			return fmt.Errorf("regression failed: %d of %d cases", rep.Total-rep.Passed, rep.Total)
		}
		return nil
	}
	if err != nil {
		l.Warn("initial regression run failed", zap.Error(err))
	}

	files := watchedFiles()
	if len(files) == 0 {
		return fmt.Errorf("--watch needs --suite, --config or --lexicon")
	}
	w, err := regression.NewWatcher(files, func(ctx context.Context, paths []string) {
		l.Info("watched files changed, re-running", zap.Strings("paths", paths))
		if _, err := regressOnce(ctx, out, store); err != nil {
			l.Warn("regression run failed", zap.Error(err))
		}
	}, regression.WithDebounce(debounce), regression.WithWatcherLogger(cliLogger()))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	l.Info("watching for changes", zap.Int("files", len(files)))
	<-ctx.Done()
	return nil
}

// regressOnce rebuilds the pipeline and suite from disk, runs it, stores and prints the report.
func regressOnce(ctx context.Context, out io.Writer, store *regression.Store) (*regression.Report, error) {
	p, err := buildPipeline()
	if err != nil {
		return nil, err
	}
	suite, err := loadSuite()
	if err != nil {
		return nil, err
	}

	runner := regression.NewRunner(p, regression.WithWorkers(workers), regression.WithLogger(cliLogger()))
	rep, err := runner.Run(ctx, suite)
	if err != nil {
		return nil, err
	}
	if store != nil {
		if err := store.SaveRun(ctx, rep); err != nil {
			return nil, fmt.Errorf("failed to save run: %w", err)
		}
	}
	if err := writeJSON(out, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func loadSuite() (*regression.Suite, error) {
	if suitePath == "" {
		return regression.DefaultSuite()
	}
	return regression.LoadSuite(suitePath)
}

func watchedFiles() []string {
	var files []string
	for _, p := range []string{suitePath, configPath, lexiconPath} {
		if p != "" {
			files = append(files, p)
		}
	}
	return files
}

func printHistory(ctx context.Context, out io.Writer, store *regression.Store) error {
	if historyCase != "" {
		hist, err := store.CaseHistory(ctx, historyCase, historyN)
		if err != nil {
			return err
		}
		return writeJSON(out, hist)
	}
	runs, err := store.RecentRuns(ctx, historyN)
	if err != nil {
		return err
	}
	return writeJSON(out, runs)
}
