package cmd

import (
	"fmt"
	"time"

	"metajuke/core/auth"

	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <address>",
	Short: "为地址签发 API token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl := cfg.JWTTTL
		if tokenTTL > 0 {
			ttl = tokenTTL
		}
		token, err := auth.GenerateToken(cfg.JWTSecret, args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "有效期，如 2h，默认取 JWT_TTL_HOURS")
	rootCmd.AddCommand(tokenCmd)
}
