package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/credence/internal/config"
	"github.com/MikeSquared-Agency/credence/internal/credibility"
	"github.com/MikeSquared-Agency/credence/internal/notify"
	"github.com/MikeSquared-Agency/credence/internal/processor"
	"github.com/MikeSquared-Agency/credence/internal/store"
)

type rootOptions struct {
	backend     string
	databaseURL string
	redisURL    string
	stateDir    string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	// The in-memory store forgets everything between invocations.
	backend := cfg.StoreBackend
	if backend == store.BackendMemory {
		backend = store.BackendFile
	}

	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "credencectl",
		Short:        "Inspect and adjust household credibility scores",
		Long:         "credencectl reads and updates credibility state directly in the configured store, without going through the credence service.",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.backend, "backend", backend, "State store backend: postgres, redis, file or memory")
	flags.StringVar(&opts.databaseURL, "database-url", cfg.DatabaseURL, "Postgres connection URL (overrides DATABASE_URL)")
	flags.StringVar(&opts.redisURL, "redis-url", cfg.RedisURL, "Redis URL (overrides REDIS_URL)")
	flags.StringVar(&opts.stateDir, "state-dir", cfg.StateDir, "Directory for the file backend (overrides STATE_DIR)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log store and engine activity to stderr")

	cmd.AddCommand(
		newStatusCmd(opts),
		newHistoryCmd(opts),
		newApproveCmd(opts),
		newRejectCmd(opts),
		newUndoCmd(opts),
		newDecayCmd(opts),
		newConvertCmd(opts),
	)
	return cmd
}

// withProcessor opens the configured store, runs fn and closes the store.
func withProcessor(cmd *cobra.Command, opts *rootOptions, fn func(*processor.Processor) error) error {
	ctx := cmd.Context()
	backend, err := store.Open(ctx, store.Options{
		Backend:     opts.backend,
		DatabaseURL: opts.databaseURL,
		RedisURL:    opts.redisURL,
		StateDir:    opts.stateDir,
	})
	if err != nil {
		return err
	}
	defer backend.Close()

	engine, err := credibility.NewEngine()
	if err != nil {
		return err
	}

	var w io.Writer = io.Discard
	if opts.verbose {
		w = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(w, nil))

	return fn(processor.New(backend, engine, notify.NewPublisher(nil), nil, false, logger))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
