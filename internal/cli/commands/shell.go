package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const shellPrompt = "eqviz> "

// errQuit ends the shell loop.
var errQuit = errors.New("quit")

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session shell",
		Long: `Start an interactive shell that runs session commands against one
in-memory session. Unlike separate invocations, an upload started in the
shell keeps the session busy until it finishes.

Type help for the list of commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runShell(cmd, cc)
		},
	}
}

func runShell(cmd *cobra.Command, cc *CommandContext) error {
	ctx := cmd.Context()
	sh := &shell{cc: cc}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(cc.Cfg.StatePath), "shell_history"),
		AutoComplete:    sh.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	cc.Renderer.Printf("eqviz shell (service: %s)\n", cc.Client.BaseURL())
	cc.Renderer.Println("Type help for commands, quit to exit")
	cc.Renderer.Println()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err := sh.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			cc.Renderer.Error(err.Error())
		}
		if err := cc.Save(ctx); err != nil {
			cc.Logger.Warn("failed to save session state", "error", err)
		}
	}
}

// shell runs one line at a time against a shared CommandContext.
type shell struct {
	cc *CommandContext
}

func (s *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	cc := s.cc

	switch name {
	case "quit", "exit", ".quit", ".exit":
		return errQuit
	case "help", ".help":
		printShellHelp(cc.Renderer.Writer())
		return nil
	case "clear", ".clear":
		cc.Renderer.Printf("\033[H\033[2J")
		return nil

	case "login", "register":
		if len(args) != 2 {
			return fmt.Errorf("usage: %s <username> <password>", name)
		}
		if name == "login" {
			return runLogin(ctx, cc, args[0], args[1])
		}
		return runRegister(ctx, cc, args[0], args[1])
	case "logout":
		runLogout(cc)
		return nil

	case "select":
		if len(args) != 1 {
			return errors.New("usage: select <file.csv>")
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		cc.Session.SelectFile(filepath.Base(args[0]), data)
		cc.Renderer.Printf("Selected %s\n", filepath.Base(args[0]))
		return nil
	case "unselect":
		cc.Session.ClearSelection()
		return nil
	case "upload":
		switch len(args) {
		case 0:
			return runUploadSelected(ctx, cc)
		case 1:
			return runUpload(ctx, cc, args[0], false)
		default:
			return errors.New("usage: upload [file.csv]")
		}
	case "history":
		refresh := !(len(args) == 1 && args[0] == "cached")
		return runHistory(ctx, cc, refresh)
	case "load":
		if len(args) != 1 {
			return errors.New("usage: load <id>")
		}
		id, err := parseDatasetID(args[0])
		if err != nil {
			return err
		}
		return runLoad(ctx, cc, id, false)
	case "show":
		withEquipment := len(args) == 1 && args[0] == "equipment"
		return renderDashboard(cc.Renderer, cc.Session.Current(), withEquipment)
	case "charts":
		return renderCharts(cc.Renderer, cc.Session.Current())
	case "export":
		var (
			id  int64
			out string
		)
		if len(args) > 0 {
			var err error
			if id, err = parseDatasetID(args[0]); err != nil {
				return err
			}
		}
		if len(args) > 1 {
			out = args[1]
		}
		return runExport(ctx, cc, id, out)
	case "status":
		return runStatus(cc)
	case "activity":
		limit := 20
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid limit %q", args[0])
			}
			limit = n
		}
		return runActivity(ctx, cc, limit)

	default:
		return fmt.Errorf("unknown command: %s (type help for commands)", name)
	}
}

// completer offers command names and, after load/export, the cached ids.
func (s *shell) completer() *readline.PrefixCompleter {
	ids := func(string) []string {
		history := s.cc.Session.History()
		out := make([]string, 0, len(history))
		for _, h := range history {
			out = append(out, strconv.FormatInt(h.ID, 10))
		}
		return out
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("login"),
		readline.PcItem("register"),
		readline.PcItem("logout"),
		readline.PcItem("select"),
		readline.PcItem("unselect"),
		readline.PcItem("upload"),
		readline.PcItem("history", readline.PcItem("cached")),
		readline.PcItem("load", readline.PcItemDynamic(ids)),
		readline.PcItem("show", readline.PcItem("equipment")),
		readline.PcItem("charts"),
		readline.PcItem("export", readline.PcItemDynamic(ids)),
		readline.PcItem("status"),
		readline.PcItem("activity"),
		readline.PcItem("help"),
		readline.PcItem("clear"),
		readline.PcItem("quit"),
	)
}

func printShellHelp(w io.Writer) {
	help := `
Commands:
  login <user> <password>     Log in
  register <user> <password>  Create an account
  logout                      Clear the authenticated flag
  select <file.csv>           Select a file for upload
  unselect                    Drop the selected file
  upload [file.csv]           Upload and analyze a file (default: the selection)
  history [cached]            List recent uploads
  load <id>                   Make a dataset current
  show [equipment]            Show the current dataset
  charts                      Chart the current dataset
  export [id] [path]          Save a PDF report
  status                      Show the session state
  activity [n]                Show the activity log
  clear                       Clear the screen
  quit / exit                 Leave the shell
`
	_, _ = fmt.Fprintln(w, help)
}
