package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/conditions/internal/conditions"
	"github.com/solatis/conditions/internal/core/config"
	"github.com/solatis/conditions/internal/core/db"
	"github.com/solatis/conditions/internal/logging"
	"github.com/spf13/cobra"
)

// Version is the CLI and server version.
const Version = "0.1.0"

// rootOptions holds the persistent flags. Only --config is read directly;
// the others reach the config layer through config.LoadConfig.
type rootOptions struct {
	configFile  string
	dbURL       string
	definitions string
	logLevel    string
	logFormat   string
}

// NewRootCommand builds the conditions command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "conditions",
		Short:         "Validate, evaluate and serve condition trees",
		Long:          `conditions decodes AND/OR trees of named condition types, evaluates them against JSON contexts and serves them over gRPC.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path")
	root.PersistentFlags().StringVar(&opts.dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	root.PersistentFlags().StringVar(&opts.definitions, "definitions", "", "condition definitions file (YAML or JSON); default is the built-in catalog")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "json", "log format (json, text)")

	root.AddCommand(
		newValidateCommand(opts),
		newEvalCommand(opts),
		newDescribeCommand(opts),
		newMigrateCommand(opts),
		newSetsCommand(opts),
		newKeysCommand(opts),
		newServeCommand(opts),
	)

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// env is the resolved runtime environment of one command invocation.
type env struct {
	cfg  *config.ConditionAPIConfig
	log  *slog.Logger
	defs conditions.Definitions
}

func (o *rootOptions) load(cmd *cobra.Command) (*env, error) {
	cfg, err := config.LoadConfig(o.configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	defs, err := config.LoadDefinitions(cfg.DefinitionsFile)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:  cfg,
		log:  logging.NewWithWriter(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr()),
		defs: defs,
	}, nil
}

// openDB opens the configured database. The default SQLite location under
// data_dir is created on demand.
func (e *env) openDB(ctx context.Context) (*sqlx.DB, error) {
	if e.cfg.DatabaseURL == "" {
		if err := os.MkdirAll(e.cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	database, err := db.Open(ctx, e.cfg.DatabaseURLOrDefault())
	if err != nil {
		return nil, err
	}
	return database, nil
}

// openQueries opens the database, requires all migrations to be applied and
// loads the named queries.
func (e *env) openQueries(ctx context.Context) (*sqlx.DB, *db.Queries, error) {
	database, err := e.openDB(ctx)
	if err != nil {
		return nil, nil, err
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'conditions migrate' first", s.ID)
		}
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, queries, nil
}
