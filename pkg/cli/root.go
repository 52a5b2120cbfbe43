// Package cli is the grepdb command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/config"
	"github.com/ekaya-inc/grepdb/pkg/logging"
)

// globalFlags override values loaded from the config file and environment.
type globalFlags struct {
	configPath string
	dsType     string
	host       string
	port       int
	user       string
	database   string
	logLevel   string
	logFormat  string
}

// app carries what every subcommand needs once the root has initialized.
type app struct {
	version string
	flags   globalFlags
	cfg     *config.Config
	logger  *zap.Logger
	runID   uuid.UUID
	out     io.Writer
}

// NewRootCommand builds the command tree. Output goes to out.
func NewRootCommand(version string, out io.Writer) *cobra.Command {
	a := &app{version: version, out: out}

	root := &cobra.Command{
		Use:   "grepdb",
		Short: "Search and replace a literal string across a database",
		Long: "grepdb finds and rewrites a literal string in every text column of a MySQL, " +
			"PostgreSQL or SQL Server database, rewriting PHP serialized values in place " +
			"so their length prefixes stay valid.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "Path to config file (default grepdb.yaml if present)")
	pf.StringVar(&a.flags.dsType, "type", "", "Datasource type: mysql, postgres or mssql")
	pf.StringVar(&a.flags.host, "host", "", "Database host")
	pf.IntVar(&a.flags.port, "port", 0, "Database port")
	pf.StringVarP(&a.flags.user, "user", "u", "", "Database user (password comes from GREPDB_PASSWORD)")
	pf.StringVarP(&a.flags.database, "database", "d", "", "Database (schema for postgres and mssql)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "Log format: console or json")

	root.AddCommand(
		newSearchCommand(a),
		newReplaceCommand(a),
		newSchemaCommand(a),
		newVersionCommand(a),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(version string) int {
	root := NewRootCommand(version, os.Stdout)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.version, a.flags.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(cfg)
	a.cfg = cfg

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.runID = uuid.New()
	a.logger = logger.With(
		zap.String("run_id", a.runID.String()),
		zap.String("command", cmd.Name()),
	)
	return nil
}

// applyFlags copies explicitly set flags over the loaded configuration.
func (a *app) applyFlags(cfg *config.Config) {
	f := a.flags
	ds := &cfg.Datasource
	if f.dsType != "" {
		ds.Type = f.dsType
	}
	if f.host != "" {
		ds.Host = f.host
	}
	if f.port > 0 {
		ds.Port = f.port
	}
	if f.user != "" {
		ds.User = f.user
	}
	if f.database != "" {
		ds.Database = f.database
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
