package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "convoflow",
	Short: "Convoflow - conversational flow runtime",
	Long: `Convoflow serves conversational flows to end users: it advances
persisted sessions block-by-block, resolves variables into block options
and bridges flows to third-party integration actions.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
