package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/tradingagents-go/agents"
	"github.com/dshills/tradingagents-go/config"
	"github.com/dshills/tradingagents-go/graph"
	"github.com/dshills/tradingagents-go/graph/emit"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		date    string
		verbose bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze TICKER",
		Short: "Run one analysis and print the decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticker := strings.ToUpper(strings.TrimSpace(args[0]))

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

			var emitter emit.Emitter = emit.NewNullEmitter()
			if verbose {
				emitter = emit.NewLogEmitter(cmd.ErrOrStderr(), false)
			}

			runID := uuid.NewString()
			tracker := graph.NewCostTracker(runID)
			deps.Cost = tracker

			engine, err := agents.BuildGraph(deps, emitter, graph.WithCostTracker(tracker))
			if err != nil {
				return err
			}

			final, err := engine.Run(cmd.Context(), runID, agents.Blackboard{
				CompanyOfInterest: ticker,
				TradeDate:         date,
			})
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}
			tokIn, tokOut := tracker.TokenUsage()
			log.Info("llm spend",
				zap.Float64("cost_usd", tracker.TotalCost()),
				zap.Int64("tokens_in", tokIn),
				zap.Int64("tokens_out", tokOut))

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(final)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "=== %s (%s) ===\n\n", ticker, final.TradeDate)
			for _, section := range []struct{ label, body string }{
				{"MARKET", final.MarketReport},
				{"NEWS", final.NewsReport},
				{"SENTIMENT", final.SentimentReport},
				{"FUNDAMENTALS", final.FundamentalsReport},
				{"INVESTMENT PLAN", final.InvestmentPlan},
				{"FINAL DECISION", final.FinalTradeDecision},
			} {
				if section.body == "" {
					continue
				}
				fmt.Fprintf(out, "--- %s ---\n%s\n\n", section.label, section.body)
			}
			fmt.Fprintf(out, "Signal: %s\n", agents.ExtractSignal(final.FinalTradeDecision))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "trade date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print engine events to stderr")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full final state as JSON")
	return cmd
}
