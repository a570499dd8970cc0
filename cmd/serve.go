package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/gridsheet/internal/logging"
	"github.com/kiesman99/gridsheet/internal/server"
	"github.com/kiesman99/gridsheet/pkg/grid"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for composing sheets",
	Long: `Start an HTTP server that composes uploaded images into a sheet.

Images are posted as repeated "images" parts of a multipart form; layout
parameters are passed in the query string.

Examples:
  # Start server on default port 8080
  gridsheet serve

  # Start server with custom bind address
  gridsheet serve --bind 0.0.0.0 --port 8080

  # Compose three images, four per row
  curl -F images=@a.png -F images=@b.png -F images=@c.png \
    'http://localhost:8080/api/v1/sheet?per_row=4&padding=2' -o sheet.png`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	serveCmd.Flags().Int64("max-upload", server.DefaultMaxUpload, "maximum request body size in bytes")
	serveCmd.Flags().Int("max-pixels", grid.DefaultMaxPixels, "largest sheet area a request may produce")

	// Bind flags to viper
	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("server.max-upload", serveCmd.Flags().Lookup("max-upload"))
	viper.BindPFlag("server.max-pixels", serveCmd.Flags().Lookup("max-pixels"))
}

func runServe(cmd *cobra.Command, args []string) error {
	bind := viper.GetString("server.bind")
	port := viper.GetInt("server.port")
	timeout := viper.GetDuration("server.timeout")
	maxUpload := viper.GetInt64("server.max-upload")

	addr := fmt.Sprintf("%s:%d", bind, port)
	logger := logging.FromContext(cmd.Context())

	apiServer := server.NewServer(Version, maxUpload, logger)
	apiServer.SetMaxPixels(viper.GetInt("server.max-pixels"))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.NewRouter(apiServer, timeout),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "err", err)
		}
	}()

	logger.Info("Starting gridsheet server", "addr", addr)
	logger.Infof("Health check: http://%s/api/v1/health", addr)
	logger.Infof("Sheet endpoint: http://%s/api/v1/sheet", addr)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}

	return nil
}
