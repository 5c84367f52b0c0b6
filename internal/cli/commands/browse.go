package commands

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/leapstack-labs/eqviz/internal/tui"
	"github.com/spf13/cobra"
)

// NewBrowseCommand creates the browse command.
func NewBrowseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the upload history interactively",
		Long: `Open an interactive list of recent uploads.

Keys: up/down to move, enter to load the highlighted dataset, r to refresh,
q to quit. The dataset loaded last stays current after you quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = tui.Run(cc.Session,
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
				tea.WithAltScreen(),
			)
			return err
		},
	}
}
