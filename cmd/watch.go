package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"stemboard/client"
	"stemboard/core/dropfolder"
	"stemboard/core/media"

	"github.com/spf13/cobra"
)

var (
	watchServer   string
	watchToken    string
	watchProject  string
	watchDir      string
	watchExisting bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Upload audio dropped into a folder as demos",
	Long:  `Watch a local folder and upload every new audio file to a project as a demo. The token comes from --token or STEMBOARD_TOKEN.`,
	Run: func(cmd *cobra.Command, args []string) {
		if watchProject == "" || watchDir == "" {
			log.Fatal("--project and --dir are required")
		}
		token := watchToken
		if token == "" {
			token = os.Getenv("STEMBOARD_TOKEN")
		}
		if token == "" {
			log.Fatal("a session token is required (--token or STEMBOARD_TOKEN)")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		api := client.New(watchServer, client.WithToken(token))
		registry := media.NewRegistry(api)
		assets, err := registry.Refresh(ctx, watchProject)
		if err != nil {
			log.Fatalf("Cannot open project %s: %v", watchProject, err)
		}
		fmt.Printf("Project %s has %d demos. Watching %s\n", watchProject, len(assets), watchDir)

		var opts []dropfolder.Option
		if watchExisting {
			opts = append(opts, dropfolder.WithExisting())
		}
		if err := dropfolder.New(watchDir, registry, opts...).Run(ctx); err != nil {
			log.Fatalf("Watch failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchServer, "server", "http://localhost:8080", "API base URL")
	watchCmd.Flags().StringVar(&watchToken, "token", "", "session token")
	watchCmd.Flags().StringVar(&watchProject, "project", "", "project id to upload into")
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "folder to watch")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "also upload files already in the folder")
}
