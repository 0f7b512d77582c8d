package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/KaramelBytes/excelytics/internal/insights"
	"github.com/KaramelBytes/excelytics/internal/server"
	"github.com/KaramelBytes/excelytics/internal/store"
	"github.com/KaramelBytes/excelytics/internal/upload"
	"github.com/spf13/cobra"
)

var (
	serveAddr  string
	serveStore string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	Example: `  excelytics serve
  excelytics serve --addr :9090 --store sqlite`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			c.ListenAddr = serveAddr
		}
		if serveStore != "" {
			c.StoreDriver = serveStore
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := store.Open(ctx, store.Options{
			Driver:        c.StoreDriver,
			DataDir:       filepath.Join(c.DataDir, "records"),
			SQLitePath:    c.SQLitePath,
			MongoURI:      c.MongoURI,
			MongoDatabase: c.MongoDatabase,
		})
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		slog.Info("store opened", "driver", c.StoreDriver)

		reg := upload.NewRegistry(c.UploadMaxPending, c.UploadTTL())
		defer reg.Close()

		rt, err := newRuntime(c, c.Provider)
		if err != nil {
			return err
		}
		srv, err := server.New(st, reg, insights.NewService(rt, c.Model, c.MaxTokens), server.Config{
			SpoolDir:       c.UploadDir,
			FilesDir:       filepath.Join(c.DataDir, "files"),
			MaxUploadBytes: c.MaxUploadBytes(),
		})
		if err != nil {
			return err
		}
		return srv.Run(ctx, c.ListenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
	serveCmd.Flags().StringVar(&serveStore, "store", "", "store driver: memory|jsonfs|sqlite|mongo (overrides store_driver)")
}
