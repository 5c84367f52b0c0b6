package commands

import (
	"context"

	"github.com/leapstack-labs/eqviz/internal/state"
	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		Long: `Show the authenticated flag, the pending operation, the current dataset
and the latest notice of the persisted session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runStatus(cc)
		},
	}
}

func runStatus(cc *CommandContext) error {
	return renderStatus(cc.Renderer, newStatusView(cc.Username, cc.Session.Snapshot()))
}

// NewActivityCommand creates the activity command.
func NewActivityCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the local activity log",
		Long: `Show the operations recorded in the local state database, newest
first.`,
		Example: `  eqviz activity
  eqviz activity --limit 5 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runActivity(cmd.Context(), cc, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	return cmd
}

func runActivity(ctx context.Context, cc *CommandContext, limit int) error {
	entries, err := cc.Store.ListActivity(ctx, limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []state.Activity{}
	}
	if handled, err := cc.Renderer.Data(entries); handled {
		return err
	}

	r := cc.Renderer
	r.Header(1, "Activity")
	rows := make([][]any, 0, len(entries))
	for _, a := range entries {
		rows = append(rows, []any{a.At.Local().Format("2006-01-02 15:04:05"), a.Op, a.Outcome, a.Kind, a.Message})
	}
	r.Table([]string{"Time", "Operation", "Outcome", "Kind", "Message"}, rows)
	return nil
}
