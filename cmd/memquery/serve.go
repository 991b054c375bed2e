package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guileen/memquery/exec"
	"github.com/guileen/memquery/expr"
	"github.com/guileen/memquery/logger"
	"github.com/guileen/memquery/server"
	"github.com/guileen/memquery/store"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().String("addr", "", "override server.addr")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			a.cfg.Server.Addr = addr
		}
		return nil
	}
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	opts := store.DefaultOptions(cfg.Store.Path)
	opts.Sync = cfg.Store.Sync
	s, err := store.Open(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("close store", logger.Component("serve"), logger.ErrorField(err))
		}
	}()

	compiler, err := expr.NewCompiler(cfg.Expr.CacheSize)
	if err != nil {
		return err
	}
	handler := server.NewHandler(s, compiler, exec.Options{HashJoin: cfg.Exec.HashJoin, MaxRows: cfg.Exec.MaxRows})

	logger.Info("starting memquery",
		logger.Component("serve"),
		logger.String("addr", cfg.Server.Addr),
		logger.String("store", cfg.Store.Path),
	)
	return server.New(cfg.Server, server.NewRouter(handler)).Run(ctx)
}
