package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mossy-p/pit-signaling/internal/handlers"
	"github.com/mossy-p/pit-signaling/internal/redis"
	"github.com/mossy-p/pit-signaling/internal/session"
)

const (
	directoryQueueSize = 1024
	shutdownTimeout    = 5 * time.Second
)

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveEnv, "env", "", "Environment name (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	servePort string
	serveEnv  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the signaling server",
	Long:  `Start the websocket signaling endpoint and the pit admin API.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Override config from flags
	if servePort != "" {
		cfg.Port = servePort
	}
	if serveEnv != "" {
		cfg.Environment = serveEnv
		setupLogging(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	iceServers, err := cfg.ICEServers()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := handlers.NewHub()

	var opts []session.Option
	if cfg.Redis.Host != "" {
		rdb, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		log.Info().Str("host", cfg.Redis.Host).Msg("Redis connection established")

		dir := redis.NewDirectory(rdb, cfg.Redis.TTL, directoryQueueSize)
		go dir.Run(ctx)
		opts = append(opts, session.WithObserver(dir))
	} else {
		log.Info().Msg("Redis host not set, pit directory disabled")
	}

	sessions := session.NewManager(hub, opts...)
	h := handlers.NewHandler(sessions, hub, cfg.Signaling, iceServers)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: h.NewRouter(cfg),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("environment", cfg.Environment).Msg("Starting pit signaling server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Hijacked websocket connections are not tracked by Shutdown.
	hub.CloseAll()
	log.Info().Msg("Server exited")
	return nil
}
