package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/pathfinder/internal/baseline"
	"github.com/nao1215/pathfinder/internal/classify"
	"github.com/nao1215/pathfinder/internal/config"
	"github.com/nao1215/pathfinder/internal/database"
	"github.com/nao1215/pathfinder/internal/engine"
	"github.com/nao1215/pathfinder/internal/keyspace"
	"github.com/nao1215/pathfinder/internal/model"
	"github.com/nao1215/pathfinder/internal/pipeline"
	"github.com/nao1215/pathfinder/internal/probe"
	"github.com/nao1215/pathfinder/internal/sink"
	"github.com/nao1215/pathfinder/internal/telemetry"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <origin>",
		Short: "Enumerate the path space of an origin",
		Long: `Scan probes every path of the configured length against the origin and
reports the paths whose responses differ from the not-found page.

Before any worker starts, the origin is asked for paths that cannot exist
and the response is stored as the baseline. Each probe is then classified
against it with one of three strategies:
- size-delta: 2xx response whose size differs by more than --tolerance
- signature-absence: 2xx response that lacks the not-found signature
- combined: both of the above

Findings are appended to the findings log as soon as they are classified.
Press Ctrl-C or run 'pathfinder stop' to stop; the summary shows the index
to resume from.

Examples:
  # Scan all 4-letter paths with one worker per CPU
  pathfinder scan https://example.com

  # Resume a previous scan at a given path
  pathfinder scan https://example.com --start mzaa

  # Use 12 workers and an explicit not-found signature
  pathfinder scan https://example.com -w 12 -s combined --signature "Page Not Found"

  # Go through a SOCKS5 proxy and write a Markdown report
  pathfinder scan https://example.com -x 127.0.0.1:9050 -f markdown -o report.md`,
		Args: cobra.ExactArgs(1),
		RunE: runScanCmd,
	}

	addTargetFlags(cmd)
	addScanFlags(cmd)

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	// SIGINT and SIGTERM raise the cancellation signal of every worker
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := acquireRunLock(config.XDGStateDir())
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release run lock", "error", err)
		}
	}()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// newProbeClient creates the transport for cfg.
func newProbeClient(cfg *config.Config, logger *slog.Logger) (*probe.Client, error) {
	client, err := probe.NewClient(cfg.Origin,
		probe.WithMethod(cfg.Method),
		probe.WithUserAgent(cfg.UserAgent),
		probe.WithAcceptEncoding(cfg.AcceptEncoding),
		probe.WithTimeout(cfg.RequestTimeout),
		probe.WithExcerptSize(cfg.ExcerptSize),
		probe.WithMaxBodySize(cfg.MaxBodySize),
		probe.WithMaxConnsPerHost(cfg.MaxConnsPerHost),
		probe.WithProxy(cfg.ProxyAddress),
		probe.WithCookie(cfg.Cookie),
		probe.WithHeaders(cfg.Headers),
		probe.WithInsecureTLS(cfg.InsecureTLS),
		probe.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return client, nil
}

// openStore opens the database when cfg enables it. A nil store without
// error means persistence is disabled.
func openStore(cfg *config.Config, logger *slog.Logger) (*database.Store, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	store, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("database opened", "path", store.Path())
	return store, nil
}

// newCalibrator creates the baseline calibrator for cfg. store may be nil.
func newCalibrator(client *probe.Client, cfg *config.Config, store *database.Store, logger *slog.Logger) (*baseline.Calibrator, error) {
	strategy, err := classify.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	opts := []baseline.Option{
		baseline.WithSamples(cfg.CalibrationSamples),
		baseline.WithTolerance(cfg.Tolerance),
		baseline.WithSignature(cfg.Signature),
		baseline.WithSignatureRequired(strategy.NeedsSignature()),
		baseline.WithRecalibrate(cfg.Recalibrate),
		baseline.WithLogger(logger),
	}
	if store != nil {
		opts = append(opts, baseline.WithCache(store))
	}
	return baseline.NewCalibrator(client, opts...), nil
}

// runScan calibrates the origin and enumerates the configured span.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	codec, err := cfg.Codec()
	if err != nil {
		return err
	}
	start, err := cfg.ResolveStartIndex(codec)
	if err != nil {
		return err
	}
	strategy, err := classify.ParseStrategy(cfg.Strategy)
	if err != nil {
		return err
	}

	client, err := newProbeClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	findingsLog, err := sink.OpenFile(cfg.FindingsFile, sink.WithUndetermined(true))
	if err != nil {
		return err
	}
	defer findingsLog.Close()

	scanID := uuid.NewString()
	recorders := sink.Multi{findingsLog}
	if store != nil {
		recorders = append(recorders, store.SinkFor(scanID))
	}

	calibrator, err := newCalibrator(client, cfg, store, logger)
	if err != nil {
		return err
	}

	span := keyspace.Range{Start: start, End: codec.Total()}
	settings := engine.Settings{
		Origin:            cfg.Origin,
		BatchSize:         cfg.BatchSize,
		BackoffDelay:      cfg.BackoffDelay,
		ErrorBackoff:      cfg.ErrorBackoff,
		MaxBackoff:        cfg.MaxBackoff,
		MaxRetries:        cfg.MaxRetries,
		MaxBlockedRetries: cfg.MaxBlockedRetries,
	}

	p := pipeline.New(pipeline.WithLogger(logger))
	if store != nil {
		p.AddStep(pipeline.NewRegisterStep(store))
	}
	p.AddStep(pipeline.NewCalibrateStep(calibrator, logger))
	p.AddStep(pipeline.NewEnumerateStep(codec, client, strategy, span, cfg.Workers,
		pipeline.WithClassifierOptions(
			classify.WithTolerance(cfg.Tolerance),
			classify.WithBlockMarkers(cfg.BlockMarkers),
		),
		pipeline.WithSchedulerOptions(
			engine.WithSettings(settings),
			engine.WithLogger(logger),
		),
		pipeline.WithAggregatorOptions(
			telemetry.WithSink(recorders),
			telemetry.WithRenderer(telemetry.NewLineRenderer(stderr), cfg.ReportInterval),
			telemetry.WithLogger(logger),
		),
	))
	p.AddFinalStep(pipeline.NewSettleStep(codec, span))
	if store != nil {
		p.AddFinalStep(pipeline.NewPersistStep(store))
	}

	scanReport := model.NewScanReport(scanID, cfg.Origin)
	scanReport.Method = cfg.Method
	scanReport.StartedAt = time.Now()

	fmt.Fprintf(stderr, "Scanning %s: %d paths from /%s with %d workers (strategy %s)\n",
		cfg.Origin, span.Len(), codec.Decode(start), cfg.Workers, strategy)
	fmt.Fprintf(stderr, "Findings are appended to %s\n", findingsLog.Path())

	execErr := p.Execute(ctx, scanReport)
	if scanReport.Cancelled && scanReport.Error == nil {
		execErr = nil
	}

	if err := outputReport(stdout, cfg.ReportFormat, cfg.ReportFile, cfg.Verbose, scanReport); err != nil {
		logger.Error("report failed", "error", err)
	}

	if execErr != nil {
		return fmt.Errorf("scan failed: %w", execErr)
	}
	if scanReport.Cancelled {
		fmt.Fprintf(stderr, "Resume with: pathfinder scan %s --start %s\n", cfg.Origin, scanReport.ResumePath)
	}
	return nil
}
