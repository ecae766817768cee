package cmd

import (
	"fmt"

	"metajuke/core/bank"
	"metajuke/core/jukebox"
	"metajuke/db"
	"metajuke/repository"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "打印平台计数与托管账户对账",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		stats, err := engine.GetPlatformStats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("曲目: %d\n桌台: %d\n点歌: %d\n", stats.Tracks, stats.Tables, stats.Requests)

		report, err := engine.GetCustodyReport(ctx)
		if err != nil {
			if jukebox.KindOf(err) == jukebox.KindNotFound {
				fmt.Println("平台尚未初始化")
				return nil
			}
			return err
		}
		fmt.Printf("托管账户: %s\n余额: %s\n待提取: %s\n足额: %t\n",
			report.Account, report.Balance, report.Obligations, report.Solvent())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
