package cmd

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stencil/cli/config"
	"github.com/pithecene-io/stencil/cli/render"
	"github.com/pithecene-io/stencil/hub"
	"github.com/pithecene-io/stencil/iox"
	"github.com/pithecene-io/stencil/types"
)

// StatusCommand returns the status command: a single read-only status check
// for one tracking id or status URL, without the poll-loop delay.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Check the validation status of one submitted template",
		ArgsUsage: "<tracking-id | status-url>",
		Flags:     ReadOnlyFlags(),
		Action:    statusAction,
	}
}

func statusAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("status requires exactly one tracking id or status URL", exitConfigError)
	}
	arg := c.Args().First()

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

	client, err := hub.New(hub.Config{
		Host:          cfg.Hub.Host,
		User:          cfg.Hub.User,
		Password:      cfg.Hub.Password,
		Timeout:       cfg.Hub.Timeout.Duration,
		StatusRetries: cfg.Hub.StatusRetries,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	defer iox.DiscardClose(client)

	handle := handleFromArg(client, arg)
	status, err := client.Status(c.Context, handle)
	if err != nil {
		return cli.Exit(err.Error(), exitBatchFailed)
	}
	return r.Render(status)
}

// handleFromArg accepts either a bare tracking id or a full status URL.
func handleFromArg(client *hub.Client, arg string) types.TrackingHandle {
	if strings.Contains(arg, "://") {
		id := arg
		if i := strings.LastIndexByte(arg, '/'); i >= 0 {
			id = arg[i+1:]
		}
		return types.TrackingHandle{ID: id, StatusURL: arg}
	}
	return types.TrackingHandle{ID: arg, StatusURL: client.StatusURLFor(arg)}
}
