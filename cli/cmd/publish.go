package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stencil/cli/config"
	"github.com/pithecene-io/stencil/cli/render"
	"github.com/pithecene-io/stencil/cli/tui"
	"github.com/pithecene-io/stencil/history"
	"github.com/pithecene-io/stencil/hub"
	"github.com/pithecene-io/stencil/iox"
	"github.com/pithecene-io/stencil/log"
	"github.com/pithecene-io/stencil/publish"
	"github.com/pithecene-io/stencil/storage"
	"github.com/pithecene-io/stencil/types"
)

// Exit codes.
const (
	exitSuccess     = 0
	exitBatchFailed = 1
	exitConfigError = 2
)

// PublishCommand returns the publish command, the only mutating command.
func PublishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Stage, publish, and validate all templates in the manifest",
		Flags: []cli.Flag{
			ConfigFlag,
			FormatFlag,
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show interactive publish progress",
			},
			&cli.BoolFlag{
				Name:  "no-stage",
				Usage: "Skip uploading; assume artifacts are already staged",
			},
		},
		Action: publishAction,
	}
}

// outcomeRow is the per-template summary printed after the batch.
type outcomeRow struct {
	Template string `json:"template"`
	Result   string `json:"result"`
	ID       string `json:"id,omitempty"`
	Polls    int    `json:"polls"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

func publishAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	artifacts := cfg.Artifacts()

	batchID := uuid.New().String()
	logger := log.NewLogger(batchID)

	useTUI := c.Bool("tui")
	if useTUI {
		// The TUI mirrors the outcome stream; suppress the structured log
		// so the two don't fight over the terminal.
		logger = logger.WithOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hubClient, err := hub.New(hub.Config{
		Host:          cfg.Hub.Host,
		User:          cfg.Hub.User,
		Password:      cfg.Hub.Password,
		Timeout:       cfg.Hub.Timeout.Duration,
		StatusRetries: cfg.Hub.StatusRetries,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	defer iox.DiscardClose(hubClient)

	store, err := storage.New(ctx, storage.Config{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		UsePathStyle:    cfg.Storage.S3PathStyle,
		DownloadBaseURL: cfg.Storage.DownloadBaseURL,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	if !c.Bool("no-stage") {
		if err := stageAll(ctx, store, logger, cfg, artifacts); err != nil {
			return cli.Exit(err.Error(), exitBatchFailed)
		}
	}

	coordinator := &publish.Coordinator{
		Publisher: &publish.Publisher{
			Hub: hubClient,
			Poller: &publish.Poller{
				Checker:  hubClient,
				Interval: cfg.Publish.PollInterval.Duration,
				MaxPolls: cfg.Publish.MaxPolls,
				Timeout:  cfg.Publish.TemplateTimeout.Duration,
			},
			DownloadURL: store.DownloadURL,
			Log:         logger,
		},
		Log:      logger,
		Parallel: cfg.Publish.Parallel,
		Timeout:  cfg.Publish.BatchTimeout.Duration,
	}
	pipeline := &publish.Pipeline{Coordinator: coordinator, Store: store, Log: logger}

	var report types.BatchReport
	var runErr error
	if useTUI {
		report, runErr = runWithTUI(ctx, cancel, pipeline, coordinator, batchID, artifacts)
	} else {
		report, runErr = pipeline.Run(ctx, batchID, artifacts)
	}

	recordHistory(c, cfg, logger, report)

	rows := make([]outcomeRow, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		row := outcomeRow{
			Template: o.Artifact.Name,
			Result:   "validated",
			ID:       o.TrackingID,
			Polls:    o.Polls,
			Duration: o.Duration.String(),
		}
		if !o.OK {
			row.Result = "failed"
			row.Error = o.Err
		}
		rows = append(rows, row)
	}
	if err := r.Render(rows); err != nil {
		return err
	}

	if errors.Is(runErr, publish.ErrPublishFailed) {
		// Per-artifact feedback is already in the summary and the log;
		// surface only the clean build-failure line.
		return cli.Exit("template publish failed", exitBatchFailed)
	}
	return runErr
}

// stageAll uploads every packaged template before publishing begins.
// Manifest order and artifact order match by construction.
func stageAll(ctx context.Context, store *storage.Store, logger *log.Logger, cfg *config.Config, artifacts []types.Artifact) error {
	for i, t := range cfg.Templates {
		f, err := os.Open(t.ZipPath())
		if err != nil {
			return fmt.Errorf("stage %s: %w", t.Name, err)
		}
		err = store.Stage(ctx, artifacts[i], f)
		iox.DiscardClose(f)
		if err != nil {
			return err
		}
		logger.Info("template staged", map[string]any{
			"template": t.Name,
			"key":      artifacts[i].RemoteKey,
		})
	}
	return nil
}

// runWithTUI runs the pipeline behind a live progress view. Quitting the
// view cancels the batch; cleanup still runs before the pipeline returns.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, pipeline *publish.Pipeline, coordinator *publish.Coordinator, batchID string, artifacts []types.Artifact) (types.BatchReport, error) {
	program := tui.NewPublishProgram(artifacts)
	coordinator.Notify = func(o types.PublishOutcome) {
		program.Send(tui.OutcomeMsg{Outcome: o})
	}

	var report types.BatchReport
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		report, runErr = pipeline.Run(ctx, batchID, artifacts)
		program.Send(tui.DoneMsg{Report: report})
	}()

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "progress view failed: %v\n", err)
	}
	cancel()
	<-done
	return report, runErr
}

// recordHistory appends the report to the local history log, best effort.
func recordHistory(c *cli.Context, cfg *config.Config, logger *log.Logger, report types.BatchReport) {
	path, err := historyPath(c, cfg)
	if err != nil {
		logger.Warn("cannot resolve history path", map[string]any{"error": err.Error()})
		return
	}
	if err := history.New(path).Append(report); err != nil {
		logger.Warn("cannot record batch history", map[string]any{"error": err.Error()})
	}
}
