package cmd

import (
	"fmt"

	"metajuke/core/bank"
	"metajuke/core/jukebox"
	"metajuke/db"
	"metajuke/model"
	"metajuke/repository"

	"github.com/spf13/cobra"
)

// mintCmd 运维以平台管理员身份发行资产（充值或发放 profile token）
var mintCmd = &cobra.Command{
	Use:   "mint <asset> <account> <amount>",
	Short: "以平台管理员身份向账户发行资产",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := model.ParseAmount(args[2])
		if err != nil {
			return err
		}

		gdb, err := db.OpenGorm(cfg)
		if err != nil {
			return err
		}
		defer db.CloseGorm(gdb)

		store := repository.NewGormStore(gdb)
		engine, err := jukebox.NewEngine(jukebox.Options{
			Store:   store,
			Bank:    bank.NewLedger(store),
			Custody: cfg.CustodyAccount,
		})
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		platform, err := engine.GetPlatformConfig(ctx)
		if err != nil {
			return err
		}
		if platform == nil {
			return jukebox.ErrNotInitialized
		}
		if err := engine.Mint(ctx, platform.Admin, args[0], args[1], amount); err != nil {
			return err
		}
		fmt.Printf("已向 %s 发行 %s %s\n", args[1], amount, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mintCmd)
}
