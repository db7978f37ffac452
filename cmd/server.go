package cmd

import (
	"DemoCrate/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动DemoCrate服务器",
	Long:  `启动DemoCrate审听看板的HTTP服务器，提供API服务和看板WebSocket推送`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
