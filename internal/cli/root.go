// Package cli provides the command-line interface for localrag.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"localrag/internal/config"
	"localrag/internal/logging"
	"localrag/internal/tui"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// Command annotations read by the root pre-run hook.
const (
	annotSkipConfig  = "localrag/skip-config"
	annotLogToStderr = "localrag/log-stderr"
)

// configKey is used to store config in context.
type configKey struct{}

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile string
		route   string
		closer  io.Closer
	)

	rootCmd := &cobra.Command{
		Use:   "localrag [FILE...]",
		Short: "localrag - chat with your PDF and CSV files",
		Long: `localrag uploads PDF and CSV files to a retrieval backend, lets you choose
which CSV columns are content and which are metadata, builds a vector database
and answers questions against it.

Without a subcommand the interactive terminal UI starts. Files given as
arguments are staged into the upload slots.`,
		Version: Version,
		Args:    cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Annotations[annotSkipConfig] == "true" {
				return nil
			}

			cfg, used, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			verbose, _ := cmd.Flags().GetBool("verbose")
			var fallback io.Writer
			if cmd != cmd.Root() && (verbose || cmd.Annotations[annotLogToStderr] == "true") {
				fallback = cmd.ErrOrStderr()
			}
			logger, c, err := logging.New(cfg.Log.File, cfg.Log.Level, fallback)
			if err != nil {
				return fmt.Errorf("failed to set up logging: %w", err)
			}
			closer = c

			if verbose && used != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", used)
			}

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if closer != nil {
				return closer.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, args, route)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./localrag.yaml, then ~/.config/localrag/config.yaml)")
	rootCmd.PersistentFlags().String("backend-url", "", "Base URL of the retrieval backend")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.Flags().StringVar(&route, "route", "", "Start at this location (/home or /rag)")

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newIngestCommand())
	rootCmd.AddCommand(newAskCommand())
	rootCmd.AddCommand(newDevServerCommand())
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.AppConfig {
	if c, ok := ctx.Value(configKey{}).(*config.AppConfig); ok {
		return c
	}
	return config.Default()
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	l, _ := ctx.Value(loggerKey{}).(*slog.Logger)
	return logging.OrDiscard(l)
}

func runTUI(cmd *cobra.Command, files []string, route string) error {
	ctx := cmd.Context()
	a, err := newApp(GetConfig(ctx), GetLogger(ctx))
	if err != nil {
		return err
	}
	defer a.store.Close()

	if err := a.stage(files); err != nil {
		return err
	}
	if route != "" {
		a.gate.Visit(route)
	}

	m := tui.New(tui.Deps{Store: a.store, Gate: a.gate, Intake: a.intake, Query: a.query, Logger: a.log})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return nil
}

func absPaths(files []string) ([]string, error) {
	out := make([]string, 0, len(files))
	for _, f := range files {
		p, err := filepath.Abs(f)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
