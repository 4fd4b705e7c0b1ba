package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	launcher "github.com/n1ntencube/CubicLauncher"
	"github.com/n1ntencube/CubicLauncher/config"
	"github.com/n1ntencube/CubicLauncher/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, cli := NewRootCmd()
	err := root.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails
	_ = cli.cleanup()
	if err != nil {
		if cli.debug {
			fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", launcher.Describe(err))
		}
		os.Exit(1)
	}
}

type cliContext struct {
	configPath string
	logLevel   string
	logFormat  string
	debug      bool

	cfg    *config.Config
	logger *slog.Logger
	app    *launcher.App
}

func (c *cliContext) loadConfig() (*config.Config, error) {
	if c.configPath != "" {
		return config.Load(c.configPath)
	}

	return config.LoadOrDefault(config.DefaultPath()), nil
}

func (c *cliContext) init(out io.Writer) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if c.logLevel != "" {
		level = c.logLevel
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return errors.Wrap(err, "invalid log level")
	}

	if c.debug {
		lvl = slog.LevelDebug
		cfg.HTTP.Debug = true
	}

	format := cfg.Log.Format
	if c.logFormat != "" {
		format = c.logFormat
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	c.logger = slog.New(handler)
	slog.SetDefault(c.logger)
	c.cfg = cfg

	return nil
}

// open builds the launcher on first use so commands that only print
// config never touch the cache database.
func (c *cliContext) open(ctx context.Context) (*launcher.App, error) {
	if c.app != nil {
		return c.app, nil
	}

	app, err := launcher.Open(ctx, c.cfg, launcher.Options{
		Logger: loggerFor(c),
	})
	if err != nil {
		return nil, err
	}

	c.app = app
	return app, nil
}

func (c *cliContext) cleanup() error {
	if c.app == nil {
		return nil
	}

	err := c.app.Close()
	c.app = nil
	return err
}

func NewRootCmd() (*cobra.Command, *cliContext) {
	cli := &cliContext{}

	c := cobra.Command{
		Use:           "cubic",
		Short:         "Cubic Launcher command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.init(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.cleanup()
		},
	}

	c.AddCommand(
		newLoginCmd(cli),
		newLogoutCmd(cli),
		newAccountsCmd(cli),
		newInstallCmd(cli),
		newPlayCmd(cli),
		newModsCmd(cli),
		newStatusCmd(cli),
		newRuntimeCmd(cli),
		newServeCmd(cli),
		newConfigCmd(cli),
	)

	c.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "config file (default "+config.DefaultPath()+")")
	c.PersistentFlags().StringVarP(&cli.logLevel, "log-level", "l", "", "set the log level (debug|info|warn|error)")
	c.PersistentFlags().StringVar(&cli.logFormat, "log-format", "", "log format (text|json)")
	c.PersistentFlags().BoolVarP(&cli.debug, "debug", "d", false, "turn on debug mode")

	return &c, cli
}

func loggerFor(c *cliContext) logging.Logger {
	return logging.NewSlog(c.logger)
}
