// Command tradingagents runs the multi-agent trading analysis service:
// `serve` starts the HTTP/SSE server, `analyze` performs a one-shot
// analysis and prints the result.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "tradingagents",
		Short: "Multi-agent trading analysis",
		Long: "tradingagents runs a team of analyst, researcher, risk, and trader\n" +
			"agents over market data and produces a BUY/SELL/HOLD decision with\n" +
			"full reasoning. Configuration comes from the environment.",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newAnalyzeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
