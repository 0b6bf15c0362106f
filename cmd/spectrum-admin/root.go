package main

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	baseURL    string
	logLevel   string
	output     string

	app *app
}

type appKey struct{}

// run executes the command line in args and releases the client, whether
// or not the command succeeded.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts := &rootOptions{}
	root := newRootCmd(opts, stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	if opts.app != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := opts.app.close(closeCtx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func newRootCmd(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "spectrum-admin",
		Short: "Moderate and administer a Spectrum deployment",
		Long: `spectrum-admin talks to the Spectrum admin API: moderation reports,
blocked users, posts, user accounts and subscription packages.

Settings come from --config, then SPECTRUM_* environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsApp(cmd) {
				return nil
			}
			p, err := newPrinter(cmd.OutOrStdout(), opts.output)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), opts, p)
			if err != nil {
				return err
			}
			opts.app = a
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&opts.baseURL, "base-url", "", "admin API base URL (overrides config)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVarP(&opts.output, "output", "o", outputTable, "output format: json or table")

	root.AddCommand(
		newStatsCmd(),
		newReportsCmd(),
		newBlockedCmd(),
		newPostsCmd(),
		newUsersCmd(),
		newPackagesCmd(),
		newDeletePostCmd(),
		newBlockCmd(),
		newUnblockCmd(),
		newUserCmd(),
		newHealthCmd(),
		newWhoamiCmd(),
	)
	return root
}

// needsApp is false for cobra's own help and completion commands.
func needsApp(cmd *cobra.Command) bool {
	if cmd.Name() == "help" {
		return false
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "completion" {
			return false
		}
	}
	return true
}

func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}

// pageFlags adds --page and --limit to a list command.
func pageFlags(cmd *cobra.Command) (page, limit *int) {
	page = cmd.Flags().IntP("page", "p", 1, "page number")
	limit = cmd.Flags().IntP("limit", "l", 0, "items per page (default from config)")
	return page, limit
}
