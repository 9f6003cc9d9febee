package cmd

import (
	"stemboard/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the stemboard API server",
	Long:  `Start the HTTP API and websocket server. MySQL, Redis and MinIO must be reachable.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
