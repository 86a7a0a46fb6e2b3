package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"internex/internal/logging"
)

var (
	logLevel string
	pretty   bool
)

var rootCmd = &cobra.Command{
	Use:   "internexd",
	Short: "Internex demo proxy: serves pages through the rewrite pipeline",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Configure(logging.Level(logLevel), pretty)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "use human-readable console log output instead of JSON")
	rootCmd.AddCommand(serveCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
