package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "backtest-workbench",
	Short: "Backtest browser and Policy Gate scenario validation service",
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func Execute() error {
	return rootCmd.Execute()
}
