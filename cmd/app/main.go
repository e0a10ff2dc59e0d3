package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// build flags
var version string
var buildDate string
var gitHash string

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bondora-trader",
	Short: "Automated buying, bidding and selling on the Bondora loan marketplace",
	Long: `bondora-trader reacts to Bondora marketplace events (new auctions and secondary
market listings), buys the loans that pass its rules, and periodically lists owned
loan parts for sale or withdraws stale offers.`,
	Example: "  bondora-trader run --config configs/config.yaml\n  bondora-trader scan sell",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Version and build information",
	Run: func(ccmd *cobra.Command, args []string) {
		fmt.Printf("  version: %s\n", version)
		fmt.Printf("  git hash: %s\n", gitHash)
		fmt.Printf("  build date: %s\n", buildDate)
		fmt.Printf("  GOOS: %s\n", runtime.GOOS)
		fmt.Printf("  GOARCH: %s\n", runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the YAML config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
