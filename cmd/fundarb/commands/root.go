package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fundarb",
	Short: "基金溢价套利监控",
	Long: `fundarb - LOF/QDII 基金溢价套利机会监控

场内价格相对净值(或集思录估值)的溢价超过阈值时，
按类别汇总并推送到飞书。

Usage:
  go run ./cmd/fundarb [command]

Examples:
  go run ./cmd/fundarb scan
  go run ./cmd/fundarb scan --mode nav --notify
  go run ./cmd/fundarb scheduler start
  go run ./cmd/fundarb serve
  go run ./cmd/fundarb cache show`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file loaded before .env")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
