package cmd

import (
	"errors"
	"fmt"

	"metajuke/storage"

	"github.com/spf13/cobra"
)

var (
	receiptsTable string
	receiptsLimit int
)

var receiptsCmd = &cobra.Command{
	Use:   "receipts",
	Short: "列出 MinIO 中归档的点歌收据",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.MinioEndpoint == "" {
			return errors.New("MINIO_ENDPOINT 未配置")
		}
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		client, err := storage.NewMinioClient(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		objects, err := storage.ListReceipts(cmd.Context(), client, cfg.MinioBucket, receiptsTable, receiptsLimit)
		if err != nil {
			return err
		}

		var total int64
		for _, obj := range objects {
			fmt.Printf("%-100s %8d  %s\n", obj.Key, obj.Size, obj.LastModified.Format("2006-01-02 15:04:05"))
			total += obj.Size
		}
		fmt.Printf("\n共 %d 条收据，%d 字节\n", len(objects), total)
		return nil
	},
}

func init() {
	receiptsCmd.Flags().StringVarP(&receiptsTable, "table", "t", "", "只列出某个桌台的收据")
	receiptsCmd.Flags().IntVarP(&receiptsLimit, "limit", "n", 100, "最多列出条数，0 表示不限")
	rootCmd.AddCommand(receiptsCmd)
}
