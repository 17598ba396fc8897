// autofold folds multi-line logging calls and pragma-marked files in
// JavaScript and TypeScript sources, respecting folds the user undid.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/phobologic/autofold/internal/config"
	"github.com/phobologic/autofold/internal/logging"
	"github.com/phobologic/autofold/internal/model"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// app carries the state shared by every subcommand once configuration has
// been loaded.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configFile string
	v          *viper.Viper
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "autofold",
		Short: "Fold multi-line logging calls in JavaScript and TypeScript",
		Long: `autofold locates multi-line calls such as logger.info(...) and plans the
fold commands an editor needs so they start collapsed. Folds the user opens
by hand stay open until a manual refold.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = logging.Sync(a.logger)
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("autofold {{.Version}}\n")

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default .autofold.yaml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "log format: console or json")

	root.AddCommand(
		newLocateCmd(a),
		newFoldCmd(a),
		newWatchCmd(a),
		newInitCmd(a),
		newPragmaCmd(a),
	)
	return root
}

// setup loads configuration and builds the logger. Flags bound here take
// precedence over the environment and the config file.
func (a *app) setup(cmd *cobra.Command) error {
	v, err := config.New(a.configFile)
	if err != nil {
		return err
	}
	if err := v.BindPFlag("log.level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}
	if err := v.BindPFlag("log.format", cmd.Flags().Lookup("log-format")); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log, a.stderr)
	if err != nil {
		return err
	}

	a.v, a.cfg, a.logger = v, cfg, logger
	logger.Debug("configuration loaded",
		zap.String("file", v.ConfigFileUsed()),
		zap.Strings("always_fold", cfg.AlwaysFold),
		zap.Strings("never_fold", cfg.NeverFold),
	)
	return nil
}

// rules returns the configured rules with patterns replaced by the given
// command-line patterns, if any.
func (a *app) rules(patterns []string) model.Rules {
	rules := a.cfg.Rules()
	if len(patterns) > 0 {
		rules.AlwaysFold = make([]model.Pattern, len(patterns))
		for i, p := range patterns {
			rules.AlwaysFold[i] = model.Pattern(p)
		}
	}
	return rules
}
