package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stencil/cli/config"
	"github.com/pithecene-io/stencil/cli/render"
	"github.com/pithecene-io/stencil/history"
)

// HistoryCommand returns the history command: a read-only listing of past
// publish batches from the local history log.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List past publish batches",
		Flags: append(ReadOnlyFlags(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Show only the most recent N batches (0 = all)",
				Value: 0,
			},
		),
		Action: historyAction,
	}
}

// InspectCommand returns the inspect command: the full report of one batch.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the full report of one publish batch",
		ArgsUsage: "<batch-id>",
		Flags:     ReadOnlyFlags(),
		Action:    inspectAction,
	}
}

// batchRow is the thin per-batch listing for history output.
type batchRow struct {
	BatchID   string `json:"batch_id"`
	StartedAt string `json:"started_at"`
	Templates int    `json:"templates"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	OK        bool   `json:"ok"`
}

func historyAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	log, err := openHistory(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	reports, err := log.List()
	if err != nil {
		return cli.Exit(err.Error(), exitBatchFailed)
	}

	if limit := c.Int("limit"); limit > 0 && len(reports) > limit {
		reports = reports[len(reports)-limit:]
	}

	rows := make([]batchRow, 0, len(reports))
	for i := range reports {
		rep := &reports[i]
		rows = append(rows, batchRow{
			BatchID:   rep.BatchID,
			StartedAt: rep.StartedAt.Format("2006-01-02 15:04:05"),
			Templates: len(rep.Outcomes),
			Succeeded: rep.Succeeded(),
			Failed:    rep.Failed(),
			OK:        rep.OK,
		})
	}
	return r.Render(rows)
}

func inspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("inspect requires exactly one batch id", exitConfigError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	log, err := openHistory(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	report, err := log.Find(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitBatchFailed)
	}
	return r.Render(report)
}

// openHistory resolves the history log location. The config file is
// optional for read-only commands; without one the default path is used.
func openHistory(c *cli.Context) (*history.Log, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		cfg = &config.Config{}
	}
	path, err := historyPath(c, cfg)
	if err != nil {
		return nil, err
	}
	return history.New(path), nil
}

// historyPath prefers the configured location over the default.
func historyPath(_ *cli.Context, cfg *config.Config) (string, error) {
	if cfg.HistoryPath != "" {
		return cfg.HistoryPath, nil
	}
	return history.DefaultPath()
}
