package cmd

import (
	"fmt"
	"log"
	"os"

	"DemoCrate/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "democrate",
	Short: "DemoCrate is a demo submission review board for labels.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting DemoCrate server...")
		// server.Start now handles its own port and logging for startup.
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
