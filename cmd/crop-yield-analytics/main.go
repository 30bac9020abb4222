package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crop-yield-analytics",
	Short: "Crop yield prediction relay and analytics service",
	Long: `Relays crop yield predictions to the prediction service, records them
and serves aggregate analytics over the recorded predictions.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	rootCmd.AddCommand(serveCmd, seedCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
