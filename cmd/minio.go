package cmd

import (
	"context"
	"fmt"
	"time"

	"genesis/server"
	"genesis/storage"

	"github.com/spf13/cobra"
)

var (
	blobPrefix string
	blobStats  bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Inspect the media blob store",
	Long:  `List the media and cover blobs of the configured store (STORAGE_DRIVER) or show totals.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		fmt.Printf("Storage: %s", cfg.StorageDriver)
		if cfg.StorageDriver == "minio" {
			fmt.Printf(" (%s, bucket %s)", cfg.MinioEndpoint, cfg.MinioBucket)
		}
		fmt.Println()

		store, err := server.OpenBlobStore(ctx, cfg)
		if err != nil {
			return err
		}

		objects, stats, err := storage.Stats(ctx, store, blobPrefix)
		if err != nil {
			return fmt.Errorf("failed to list blobs: %w", err)
		}

		if !blobStats {
			for _, obj := range objects {
				fmt.Printf("%-48s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format(time.DateTime))
			}
		}
		fmt.Printf("\n%d objects, %s", stats.TotalObjects, storage.FormatSize(stats.TotalSize))
		if !stats.LastModified.IsZero() {
			fmt.Printf(", last modified %s", stats.LastModified.Format(time.DateTime))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&blobPrefix, "prefix", "p", "", "only list keys with this prefix (audio/ or covers/)")
	minioCmd.Flags().BoolVarP(&blobStats, "stats", "s", false, "show totals only")

	minioCmd.Example = `  # list every blob
  genesis minio

  # list covers only
  genesis minio -p covers/

  # totals
  genesis minio -s`
}
