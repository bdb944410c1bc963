// Package main implements threadctl, a command-line tool for parsing
// email threads and maintaining the threadparse database.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.io/infrasutra/threadparse/internal/config"
	"github.io/infrasutra/threadparse/internal/store"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	dbPath  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "threadctl",
		Short: "Parse email threads and manage the threadparse database",
		Long: `threadctl splits plain-text email threads into messages and works
directly on the threadparse database for imports and maintenance.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database path (defaults to DB_PATH)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(newParseCmd())
	root.AddCommand(newImportCmd(opts))
	root.AddCommand(newPurgeCmd(opts))
	return root
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// openStore opens the database named by --db, falling back to the service
// configuration.
func (o *options) openStore(ctx context.Context) (*store.Store, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, err
	}
	path := strings.TrimSpace(o.dbPath)
	if path == "" {
		path = cfg.DBPath
	}
	if path == "" {
		return nil, cfg, fmt.Errorf("no database: set --db or DB_PATH")
	}
	db, err := store.Open(ctx, path)
	if err != nil {
		return nil, cfg, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, cfg, err
	}
	return db, cfg, nil
}
