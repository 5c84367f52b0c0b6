package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/leapstack-labs/eqviz/internal/report"
	"github.com/leapstack-labs/eqviz/internal/session"
	"github.com/leapstack-labs/eqviz/pkg/core"
	"github.com/spf13/cobra"
)

// NewUploadCommand creates the upload command.
func NewUploadCommand() *cobra.Command {
	var withEquipment bool

	cmd := &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Upload a CSV file and analyze it",
		Long: `Upload an equipment CSV file to the analytics service.

The analysis becomes the current dataset and the upload history is refreshed.
Only one upload runs at a time per session.`,
		Example: `  eqviz upload sample_equipment_data.csv
  eqviz upload plant.csv --equipment -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runUpload(cmd.Context(), cc, args[0], withEquipment)
		},
	}
	cmd.Flags().BoolVar(&withEquipment, "equipment", false, "Also print the equipment rows")
	return cmd
}

func runUpload(ctx context.Context, cc *CommandContext, path string, withEquipment bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	detail, err := cc.Session.UploadFile(ctx, filepath.Base(path), data)
	if err != nil {
		return err
	}
	if !cc.Renderer.Structured() {
		cc.Renderer.Success(fmt.Sprintf("Uploaded %s as dataset %d", detail.Filename, detail.ID))
	}
	return renderDashboard(cc.Renderer, detail, withEquipment)
}

// runUploadSelected uploads the file chosen with the shell's select command.
func runUploadSelected(ctx context.Context, cc *CommandContext) error {
	detail, err := cc.Session.UploadAndAnalyze(ctx)
	if err != nil {
		return err
	}
	cc.Renderer.Success(fmt.Sprintf("Uploaded %s as dataset %d", detail.Filename, detail.ID))
	return renderDashboard(cc.Renderer, detail, false)
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent uploads",
		Long: `List the most recent uploads (at most five), newest first.

The list is refreshed from the service first unless --refresh=false is given.
A failed refresh is not an error: the cached list is shown instead.`,
		Example: `  eqviz history
  eqviz history --refresh=false -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runHistory(cmd.Context(), cc, refresh)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", true, "Refresh from the service before listing")
	return cmd
}

func runHistory(ctx context.Context, cc *CommandContext, refresh bool) error {
	if refresh {
		if err := cc.Session.RefreshHistory(ctx); err != nil && !errors.Is(err, session.ErrSuperseded) {
			cc.Renderer.Warning("Could not refresh history; showing cached entries")
		}
	}
	return renderHistory(cc.Renderer, cc.Session.History())
}

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	var withEquipment bool

	cmd := &cobra.Command{
		Use:   "load <id>",
		Short: "Make a dataset from the history current",
		Example: `  eqviz load 12
  eqviz load 12 --equipment`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDatasetID(args[0])
			if err != nil {
				return err
			}
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runLoad(cmd.Context(), cc, id, withEquipment)
		},
	}
	cmd.Flags().BoolVar(&withEquipment, "equipment", false, "Also print the equipment rows")
	return cmd
}

func runLoad(ctx context.Context, cc *CommandContext, id int64, withEquipment bool) error {
	if err := cc.Session.Load(ctx, id); err != nil {
		return err
	}
	return renderDashboard(cc.Renderer, cc.Session.Current(), withEquipment)
}

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	var withEquipment bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current dataset",
		Long: `Show the summary of the current dataset: totals, averages and the
equipment type distribution. Nothing is fetched from the service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return renderDashboard(cc.Renderer, cc.Session.Current(), withEquipment)
		},
	}
	cmd.Flags().BoolVarP(&withEquipment, "equipment", "e", false, "Also print the equipment rows")
	return cmd
}

// NewChartsCommand creates the charts command.
func NewChartsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "charts",
		Short: "Chart the current dataset",
		Long: `Draw the type distribution and the parameter averages of the current
dataset as bar charts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return renderCharts(cc.Renderer, cc.Session.Current())
		},
	}
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Download the PDF report of a dataset",
		Long: `Download the PDF report of a dataset, or of the current dataset when no
id is given. The file is named equipment_report_<id>.pdf and written to the
report directory unless --out names another file or directory. Use --out -
to write the PDF to standard output.`,
		Example: `  eqviz export
  eqviz export 12 --out reports/
  eqviz export 12 --out - > report.pdf`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if len(args) == 1 {
				var err error
				if id, err = parseDatasetID(args[0]); err != nil {
					return err
				}
			}
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runExport(cmd.Context(), cc, id, out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Destination file or directory ('-' for stdout)")
	return cmd
}

// runExport exports dataset id, or the current dataset when id is zero.
func runExport(ctx context.Context, cc *CommandContext, id int64, out string) error {
	var saver report.Saver = report.FileSaver{Dir: cc.Cfg.ReportDir, Path: out}
	toStdout := out == "-"
	if toStdout {
		saver = report.WriterSaver{W: cc.Renderer.Writer()}
	}

	var (
		path string
		err  error
	)
	if id == 0 {
		path, err = cc.Session.ExportCurrent(ctx, saver)
	} else {
		path, err = cc.Session.Export(ctx, id, saver)
	}
	if err != nil {
		return err
	}
	if !toStdout {
		cc.Renderer.Success("Report saved to " + path)
	}
	return nil
}

// parseDatasetID parses a positive dataset id.
func parseDatasetID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewError(core.KindValidation, "parseID", fmt.Sprintf("invalid dataset id %q", s), err)
	}
	return id, nil
}
