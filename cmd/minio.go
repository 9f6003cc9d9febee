package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"stemboard/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix    string
	minioRecursive bool
	minioDelete    bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Inspect the audio bucket",
	Long:  `List the objects in the MinIO bucket with totals per extension, or delete everything under a prefix (a project or demo id).`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MinIO: %s, bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			log.Fatalf("Cannot create MinIO client: %v", err)
		}
		ctx := context.Background()

		if minioDelete {
			if minioPrefix == "" {
				log.Fatal("--delete needs --prefix")
			}
			n, err := store.DeletePrefix(ctx, minioPrefix)
			if err != nil {
				log.Fatalf("Delete failed: %v", err)
			}
			fmt.Printf("Deleted %d objects under %s\n", n, minioPrefix)
			return
		}

		objects, stats, err := store.List(ctx, minioPrefix, minioRecursive)
		if err != nil {
			log.Fatalf("List failed: %v", err)
		}
		storage.PrintListing(os.Stdout, store.Bucket(), objects, stats)
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "only objects under this prefix")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", true, "descend into sub-prefixes")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "delete every object under --prefix")

	minioCmd.Example = `  # everything in the bucket
  stemboard minio

  # one project's files
  stemboard minio -p "<projectId>/"

  # remove a demo's stems
  stemboard minio -d -p "<demoId>/stems/"`
}
