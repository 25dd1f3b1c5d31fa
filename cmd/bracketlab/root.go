package main

import (
	"context"
	"net/url"

	"bracketlab/adapters/store"
	"bracketlab/internal"
	"bracketlab/internal/config"
	"bracketlab/internal/errors"

	"github.com/spf13/cobra"
)

// cli carries state shared by every command
type cli struct {
	envFiles []string
	logLevel string
	dsn      string

	cfg    *config.Config
	logger *internal.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "bracketlab",
		Short: "NCAA basketball outcome models with and without ranking metrics",
		Long: `bracketlab fits a logistic regression for home wins and a linear regression for
the score differential, once with ranking metrics and once without, on a
chronological train/test split. It selects features by backward stepwise
elimination, tunes the classification threshold and reports test metrics.

Settings come from the environment (and an optional .env file); flags override them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				c.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringSliceVar(&c.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	flags.StringVar(&c.logLevel, "log-level", "", "ERROR, WARN, INFO, DEBUG or TRACE (env LOG_LEVEL)")
	flags.StringVar(&c.dsn, "store", "", "run store DSN: postgres://... or a sqlite file (env DATABASE_URL)")

	root.AddCommand(
		newRunCmd(c),
		newRunsCmd(c),
		newServeCmd(c),
		newMigrateCmd(c),
		newGenerateCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(c.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg

	level := c.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	c.logger = internal.NewLogger(internal.ParseLogLevel(level))

	if c.dsn == "" {
		c.dsn = cfg.Database.URL
	}
	return nil
}

// openStore connects to the configured run store
func (c *cli) openStore(ctx context.Context) (*store.Store, error) {
	if c.dsn == "" {
		return nil, errors.ConfigInvalid("no run store configured: pass --store or set DATABASE_URL")
	}
	s, err := store.Open(ctx, c.dsn, c.logger)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Opened run store %s", redact(c.dsn))
	return s, nil
}

// redact hides the password of a URL-style DSN
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return dsn
	}
	return u.Redacted()
}
