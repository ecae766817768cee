package cmd

import (
	"metajuke/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 MetaJuke 服务器",
	Long:  `启动 HTTP API、WebSocket 事件推送和 /metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
