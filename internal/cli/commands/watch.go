package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leapstack-labs/eqviz/internal/watch"
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Upload CSV files as they appear in a directory",
		Long: `Watch a directory and upload every new or modified .csv file once it
has been quiet for the debounce interval. A file that settles while another
upload is running is skipped.

The directory defaults to watch.dir from the configuration.`,
		Example: `  eqviz watch ./incoming
  eqviz watch ./incoming --debounce 1s`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			dir := cc.Cfg.Watch.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return errors.New("no directory given and watch.dir is not configured")
			}
			if !cmd.Flags().Changed("debounce") {
				debounce = cc.Cfg.Watch.Debounce
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cc, dir, debounce)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before a file is uploaded (default 250ms)")
	return cmd
}

func runWatch(ctx context.Context, cc *CommandContext, dir string, debounce time.Duration) error {
	cc.Session.Start(ctx)

	w := watch.New(dir, cc.Session,
		watch.WithDebounce(debounce),
		watch.WithLogger(cc.Logger),
		watch.WithResultHandler(func(res watch.Result) {
			r := cc.Renderer
			switch {
			case res.Skipped:
				r.StatusLine(res.Path, "warning", "skipped, upload in progress")
			case res.Err != nil:
				r.StatusLine(res.Path, "error", res.Err.Error())
			default:
				r.StatusLine(res.Path, "success", fmt.Sprintf("dataset %d, %s rows", res.Detail.ID, r.Count(res.Detail.TotalCount)))
			}
			if err := cc.Save(ctx); err != nil {
				cc.Logger.Warn("failed to save session state", "error", err)
			}
		}),
	)

	cc.Renderer.Info(fmt.Sprintf("Watching %s for .csv files (Ctrl+C to stop)", w.Dir()))
	return w.Run(ctx)
}
