package cli

import (
	"bufio"
	"context"
	"os"

	"github.com/dmitrijs2005/receiptkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/receiptkeeper/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewRootCmd builds the command tree. Every subcommand except version loads
// the configuration, builds the App and runs the startup merge first.
func NewRootCmd() *cobra.Command {
	var app *App

	root := &cobra.Command{
		Use:           "receiptkeeper",
		Short:         "Offline-first receipt scanner with optional PostgreSQL sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["skipApp"] == "true" {
				return nil
			}
			cfg, err := config.LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			app, err = NewApp(cmd.Context(), cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := app.service.Load(cmd.Context()); err != nil {
				_ = app.Close()
				return err
			}
			return nil
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	// run invokes fn on the App built by PersistentPreRunE and closes it.
	run := func(fn func(*App, *cobra.Command, []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				if cerr := app.Close(); err == nil {
					err = cerr
				}
			}()
			return fn(app, cmd, args)
		}
	}
	cmdFunc := func(m func(*App, context.Context, []string) error) func(*App, *cobra.Command, []string) error {
		return func(a *App, cmd *cobra.Command, args []string) error {
			return m(a, cmd.Context(), args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "scan <image> [image...]",
			Short: "Parse receipt images and store the records",
			Args:  cobra.MinimumNArgs(1),
			RunE:  run(cmdFunc((*App).Scan)),
		},
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"l", "ls"},
			Short:   "List receipts, newest first",
			Args:    cobra.NoArgs,
			RunE:    run(cmdFunc((*App).List)),
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show one receipt with its line items",
			Args:  cobra.ExactArgs(1),
			RunE:  run(cmdFunc((*App).Show)),
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Push local-only receipts to the remote store",
			Args:  cobra.NoArgs,
			RunE:  run(cmdFunc((*App).Sync)),
		},
		&cobra.Command{
			Use:   "export [dir|-]",
			Short: "Write receipts as CSV",
			Args:  cobra.MaximumNArgs(1),
			RunE:  run(cmdFunc((*App).Export)),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show storage mode and pending receipts",
			Args:  cobra.NoArgs,
			RunE:  run(cmdFunc((*App).Status)),
		},
		&cobra.Command{
			Use:   "repl",
			Short: "Start an interactive session",
			Args:  cobra.NoArgs,
			RunE: run(func(a *App, cmd *cobra.Command, _ []string) error {
				interactive := term.IsTerminal(int(os.Stdin.Fd()))
				if interactive {
					printlnFn("receiptkeeper (type 'help' for commands)")
				}
				runREPL(cmd.Context(), a, a.status, bufio.NewScanner(cmd.InOrStdin()), interactive)
				return nil
			}),
		},
		&cobra.Command{
			Use:         "version",
			Short:       "Print build information",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{"skipApp": "true"},
			Run: func(cmd *cobra.Command, _ []string) {
				buildinfo.PrintBuildData(cmd.OutOrStdout())
			},
		},
	)

	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
