package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/eqviz/internal/cli/config"
	"github.com/leapstack-labs/eqviz/internal/cli/output"
	"github.com/leapstack-labs/eqviz/internal/client"
	"github.com/leapstack-labs/eqviz/internal/session"
	"github.com/leapstack-labs/eqviz/internal/state"
	"github.com/spf13/cobra"
)

// persistTimeout bounds the state writes done when a command finishes.
const persistTimeout = 5 * time.Second

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Client   *client.Client
	Store    state.Store
	Session  *session.Orchestrator

	// Username is the account of the persisted session, if any.
	Username string
}

// NewCommandContext opens the state database, restores the persisted session
// and builds an orchestrator around a fresh transport.
// Returns the context and a cleanup function that must be called (typically
// via defer); cleanup persists the session and closes the store.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	cl, err := client.New(cfg.BaseURL,
		client.WithTimeout(cfg.Timeout),
		client.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}

	store, err := state.OpenAndMigrate(cmd.Context(), cfg.StatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state: %w", err)
	}

	cc := &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: newRenderer(cmd, cfg),
		Client:   cl,
		Store:    store,
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithObserver(cc.recordActivity),
	}
	snap, err := store.LoadSnapshot(cmd.Context())
	if err != nil {
		logger.Warn("ignoring unreadable session state", "error", err)
	} else if snap != nil {
		cc.Username = snap.Username
		opts = append(opts, session.WithState(snap.State))
	}
	cc.Session = session.New(cl, opts...)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := cc.Save(ctx); err != nil {
			logger.Warn("failed to save session state", "error", err)
		}
		if _, err := store.PruneActivity(ctx, cfg.ActivityKeep); err != nil {
			logger.Warn("failed to prune activity log", "error", err)
		}
		cc.Session.Close()
		_ = store.Close()
	}

	return cc, cleanup, nil
}

// Save persists the current session.
func (c *CommandContext) Save(ctx context.Context) error {
	return c.Store.SaveSnapshot(ctx, state.Snapshot{
		Username: c.Username,
		State:    c.Session.Snapshot(),
	})
}

func (c *CommandContext) recordActivity(ev session.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if _, err := c.Store.RecordActivity(ctx, state.ActivityFromEvent(ev)); err != nil {
		c.Logger.Warn("failed to record activity", "op", ev.Op, "error", err)
	}
}

// NewCommandContextWithoutSession creates a CommandContext with only config,
// logger and renderer. Useful for commands that never reach the service.
func NewCommandContextWithoutSession(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: newRenderer(cmd, cfg),
	}
}

// getConfig returns the current configuration, or the defaults when nothing
// was loaded (commands executed outside the root command in tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

func newRenderer(cmd *cobra.Command, cfg *config.Config) *output.Renderer {
	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		mode = output.ModeAuto
	}
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
}
