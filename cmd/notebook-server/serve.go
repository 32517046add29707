package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/leapsql/internal/config"
	"github.com/leapstack-labs/leapsql/internal/dbpool"
	"github.com/leapstack-labs/leapsql/internal/events"
	"github.com/leapstack-labs/leapsql/internal/httpapi"
	"github.com/leapstack-labs/leapsql/internal/notebook"
	"github.com/leapstack-labs/leapsql/internal/scheduler"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the notebook HTTP+SSE server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			dbpool.DefaultMaxConns = int32(cfg.DefaultPoolSize)

			repo := notebook.NewMemoryRepository()
			ns := notebook.NewNamespace()
			bus := events.New(cfg.EventQueueDepth, func() any { return repo.Snapshot() })
			pool := dbpool.NewManager()
			defer pool.CloseAll()

			sched := scheduler.New(repo, ns, bus, pool, cfg.ImperativeTimeout, cfg.QueryTimeout, cfg.DefaultRowCap)
			srv := httpapi.New(httpapi.Config{Addr: cfg.Addr, Scheduler: sched, Bus: bus, Logger: logger})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.Serve(ctx)
		},
	}
	cmd.Flags().String("addr", "", "bind address (default :8080)")
	cmd.Flags().Int("default-row-cap", 0, "default query row cap")
	cmd.Flags().Int("default-pool-size", 0, "default pool max connections")
	return cmd
}
