package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "momentum",
	Short: "Momentum - RSI/MACD strategy backtester and parameter optimizer",
	Long: `Momentum replays historical candles through an RSI/MACD momentum strategy
with volume confirmation and trailing stops, and searches parameter grids for
the best performing configuration.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
