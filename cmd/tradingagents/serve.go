package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/tradingagents-go/agents"
	"github.com/dshills/tradingagents-go/config"
	"github.com/dshills/tradingagents-go/graph"
	"github.com/dshills/tradingagents-go/graph/emit"
	"github.com/dshills/tradingagents-go/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/SSE analysis server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := cfg.Logger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			deps, cleanup, err := buildDeps(cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			stream := emit.NewStreamEmitter(0)
			var emitter emit.Emitter = stream
			if cfg.Dev {
				emitter = emit.Multi{stream, emit.NewLogEmitter(cmd.OutOrStdout(), false)}
			}

			metrics := graph.NewPrometheusMetrics(prometheus.DefaultRegisterer)

			// One engine per run: each gets its own cost tracker so spend
			// is attributed to the run that incurred it.
			runner := server.RunnerFunc(func(ctx context.Context, runID string, initial agents.Blackboard) (agents.Blackboard, error) {
				tracker := graph.NewCostTracker(runID)
				runDeps := deps
				runDeps.Cost = tracker
				engine, err := agents.BuildGraph(runDeps, emitter,
					graph.WithMetrics(metrics), graph.WithCostTracker(tracker))
				if err != nil {
					return agents.Blackboard{}, err
				}
				final, err := engine.Run(ctx, runID, initial)
				in, out := tracker.TokenUsage()
				log.Info("llm spend",
					zap.String("run_id", runID),
					zap.Float64("cost_usd", tracker.TotalCost()),
					zap.Int64("tokens_in", in),
					zap.Int64("tokens_out", out))
				return final, err
			})

			srv := server.New(runner, stream, log)
			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.APIPort),
				Handler:           srv.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("server listening",
					zap.Int("port", cfg.APIPort),
					zap.String("provider", cfg.LLMProvider),
					zap.String("memory", cfg.MemoryBackend))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			}
		},
	}
}
