package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// credentialOptions holds the flags shared by login and register.
type credentialOptions struct {
	Username string
	Password string
}

func (o *credentialOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Username, "username", "u", "", "Account name")
	cmd.Flags().StringVarP(&o.Password, "password", "p", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("username")
}

// resolvePassword prompts for the password when none was given.
func (o *credentialOptions) resolvePassword(cmd *cobra.Command) error {
	if o.Password != "" {
		return nil
	}
	pw, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	o.Password = pw
	return nil
}

// readPassword reads one line from in, without echo when in is a terminal.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(prompt)
		return string(b), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	opts := &credentialOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the analytics service",
		Long: `Authenticate against the analytics service.

On success the session is marked as authenticated. Any failure, including an
unreachable service, is reported as "Invalid credentials".`,
		Example: `  eqviz login -u alice -p secret
  eqviz login -u alice   # prompts for the password`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.resolvePassword(cmd); err != nil {
				return err
			}
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runLogin(cmd.Context(), cc, opts.Username, opts.Password)
		},
	}
	opts.bind(cmd)
	return cmd
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand() *cobra.Command {
	opts := &credentialOptions{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the analytics service",
		Long: `Create an account. Registering never logs you in; run 'eqviz login'
afterwards.`,
		Example: `  eqviz register -u alice -p secret`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.resolvePassword(cmd); err != nil {
				return err
			}
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runRegister(cmd.Context(), cc, opts.Username, opts.Password)
		},
	}
	opts.bind(cmd)
	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the authenticated flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			runLogout(cc)
			return nil
		},
	}
}

func runLogin(ctx context.Context, cc *CommandContext, username, password string) error {
	if err := cc.Session.Login(ctx, username, password); err != nil {
		return err
	}
	cc.Username = username
	cc.Renderer.Success("Logged in as " + username)
	return nil
}

func runRegister(ctx context.Context, cc *CommandContext, username, password string) error {
	if err := cc.Session.Register(ctx, username, password); err != nil {
		return err
	}
	renderNotice(cc.Renderer, cc.Session.Notice())
	return nil
}

func runLogout(cc *CommandContext) {
	cc.Session.Logout()
	cc.Username = ""
	cc.Renderer.Success("Logged out")
}
