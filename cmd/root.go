package cmd

import (
	"fmt"
	"os"

	"metajuke/config"
	"metajuke/logger"
	"metajuke/server"

	"github.com/spf13/cobra"
)

// cfg 在 PersistentPreRunE 中加载，子命令共用
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "metajuke",
	Short: "MetaJuke 付费点歌服务",
	Long:  `MetaJuke：桌台点歌会话、付费分账与点歌收据账本。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		return logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     30,
			Compress:   true,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
