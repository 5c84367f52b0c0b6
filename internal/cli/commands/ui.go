package commands

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/leapstack-labs/eqviz/internal/ui"
	"github.com/leapstack-labs/eqviz/internal/watch"
	"github.com/spf13/cobra"
)

// UIOptions holds options for the ui command.
type UIOptions struct {
	Port  int
	Open  bool
	Watch string
}

// NewUICommand creates the ui command.
func NewUICommand() *cobra.Command {
	opts := &UIOptions{}

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Serve the dataset dashboard in a browser",
		Long: `Start a local web server with the equipment dashboard.

The dashboard provides:
- Login, registration and logout
- CSV upload with summary cards and charts
- The five most recent datasets, loadable by click
- PDF report download

Every open page follows the session live. When watch.dir is configured
(or --watch is given) new CSV files in that directory are uploaded too.`,
		Example: `  # Serve on the configured port (default 8766)
  eqviz ui

  # Serve on a custom port and open the browser
  eqviz ui --port 3000 --open

  # Upload files dropped into ./incoming while serving
  eqviz ui --watch ./incoming`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 8766)")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "Open the dashboard in the default browser")
	cmd.Flags().StringVar(&opts.Watch, "watch", "", "Directory to watch for CSV files (default: watch.dir)")

	return cmd
}

func runUI(cmd *cobra.Command, opts *UIOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	// CLI flags override config file
	port := cc.Cfg.UI.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	dir := cc.Cfg.Watch.Dir
	if opts.Watch != "" {
		dir = opts.Watch
	}

	var watcher *watch.Watcher
	if dir != "" {
		watcher = watch.New(dir, cc.Session,
			watch.WithDebounce(cc.Cfg.Watch.Debounce),
			watch.WithLogger(cc.Logger),
		)
	}

	server := ui.NewServer(ui.Config{
		Session:       cc.Session,
		Port:          port,
		SessionSecret: cc.Cfg.UI.SessionSecret,
		Watcher:       watcher,
		Logger:        cc.Logger,
	})

	url := fmt.Sprintf("http://localhost:%d", port)
	if opts.Open {
		go openBrowser(url)
	}

	cc.Renderer.Info(fmt.Sprintf("Serving dashboard on %s (Ctrl+C to stop)", url))
	if watcher != nil {
		cc.Renderer.Info(fmt.Sprintf("Watching %s for .csv files", watcher.Dir()))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx)
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
