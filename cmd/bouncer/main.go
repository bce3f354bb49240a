package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wso2/open-auth-bouncer/internal/bouncer"
	"github.com/wso2/open-auth-bouncer/internal/config"
	logger "github.com/wso2/open-auth-bouncer/internal/logging"
	"github.com/wso2/open-auth-bouncer/internal/metrics"
	"github.com/wso2/open-auth-bouncer/internal/oauth"
	"github.com/wso2/open-auth-bouncer/internal/proxy"
	"github.com/wso2/open-auth-bouncer/internal/session"
	"github.com/wso2/open-auth-bouncer/internal/subprocess"
)

// Version is set at build time
var Version = "0.1.0"

var (
	configPath string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "bouncer",
	Short: "OAuth login gate in front of a web application",
	Long: `bouncer sits in front of a web application and only lets through callers
who have logged in with the configured OAuth provider, optionally restricted
to an email domain. Everything it lets through is proxied to the upstream.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetDebug(debugMode)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// 1. Load config
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	// 2. Session store
	store, closeStore, err := MakeSessionStore(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions := session.NewManager(store, session.ManagerOptions{
		CookieName: cfg.Session.CookieName,
		Secret:     cfg.Session.Secret,
		Secure:     cfg.Session.Secure,
		TTL:        cfg.SessionTTL(),
	})

	// 3. The bouncer and the router around it
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.New()
	}

	b, err := bouncer.New(bouncer.OptionsFromConfig(cfg), sessions, oauth.NewProvider(cfg.Provider, timeout), rec)
	if err != nil {
		return err
	}

	handler, err := proxy.NewRouter(cfg, b, rec)
	if err != nil {
		return err
	}

	// 4. Start the upstream application if configured
	var procManager *subprocess.Manager
	if cfg.UpstreamCommand.Enabled {
		procManager = subprocess.NewManager()
		if err := procManager.Start(cfg.UpstreamCommand); err != nil {
			return fmt.Errorf("failed to start upstream: %w", err)
		}
	}

	// 5. Start the server
	listenAddress := fmt.Sprintf(":%d", cfg.ListenPort)
	srv := &http.Server{
		Addr:              listenAddress,
		Handler:           handler,
		ReadHeaderTimeout: timeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening on %s, login at %s", listenAddress, b.AuthPath())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 6. Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var upstreamDone <-chan struct{}
	if procManager != nil {
		upstreamDone = procManager.Done()
	}

	var runErr error
	select {
	case <-stop:
		logger.Info("Shutting down...")
	case err := <-serveErr:
		runErr = fmt.Errorf("server error: %w", err)
		logger.Error("%v", runErr)
	case <-upstreamDone:
		runErr = errors.New("upstream exited unexpectedly")
		logger.Error("%v, shutting down...", runErr)
	}

	// 7. First terminate the upstream if running
	shutdownCtx, cancel := proxy.NewShutdownContext(10 * time.Second)
	defer cancel()

	if procManager != nil && procManager.IsRunning() {
		if err := procManager.Shutdown(shutdownCtx); err != nil {
			logger.Error("Upstream shutdown error: %v", err)
		}
	}

	// 8. Then shut down the server
	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error: %v", err)
	}
	logger.Info("Stopped.")
	return runErr
}
