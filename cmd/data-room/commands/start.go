package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shamirnfs/shamirnfs/internal/logger"
	"github.com/shamirnfs/shamirnfs/internal/nfs/v3"
	"github.com/shamirnfs/shamirnfs/pkg/config"
	"github.com/shamirnfs/shamirnfs/pkg/metrics"
	"github.com/shamirnfs/shamirnfs/pkg/sbfs"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the data-room server",
	Long: `Start the data-room server using the specified (or default)
configuration file. Runs in the foreground until SIGINT/SIGTERM.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()
	if configFile == "" && !config.DefaultConfigExists() {
		return fmt.Errorf("no configuration file found at %s; run `data-room init` first", config.GetDefaultConfigPath())
	}

	cfg, err := config.MustLoad(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	}

	store, err := config.CreateBackingStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open backing store: %w", err)
	}

	codec, err := config.CreateCodec(cfg.Codec)
	if err != nil {
		return fmt.Errorf("build ssc codec: %w", err)
	}

	auditLog, err := config.CreateAuditLog(ctx, store, cfg.Audit)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	fs, err := config.CreateFilesystem(ctx, store, codec, auditLog, cfg.NFS)
	if err != nil {
		return fmt.Errorf("open filesystem: %w", err)
	}

	adapter, err := config.CreateAdapter(fs, v3.HandleBytes(sbfs.RootInodeID), cfg.NFS)
	if err != nil {
		return fmt.Errorf("build nfs adapter: %w", err)
	}

	logger.Info("data-room starting",
		"engine", cfg.Storage.Engine(),
		"export", cfg.NFS.ExportPath,
		"address", cfg.NFS.DataRoomAddress)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- adapter.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, draining connections")
		cancel()
		serveErr = <-serverDone
	case serveErr = <-serverDone:
		signal.Stop(sigChan)
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := fs.Close(closeCtx); err != nil {
		logger.Error("filesystem close error", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("backing store close error", "error", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(closeCtx)
	}

	if serveErr != nil {
		return fmt.Errorf("server stopped with error: %w", serveErr)
	}
	logger.Info("data-room stopped")
	return nil
}
