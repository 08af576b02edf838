package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/storyboardlab/cardboard/internal/cards"
	"github.com/storyboardlab/cardboard/internal/config"
	"github.com/storyboardlab/cardboard/internal/logging"
	"github.com/storyboardlab/cardboard/internal/server"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cardboard-api",
		Short: "Cardboard card/chunk/view backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("workspace-root", defaults.GetString("workspace.root"), "Workspace directory holding card/chunk/view documents")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool("watch", defaults.GetBool("watch.enabled"), "Watch the workspace for external document changes")
	cmd.PersistentFlags().Float64("card-width", defaults.GetFloat64("layout.card_width"), "Card footprint width")
	cmd.PersistentFlags().Float64("card-height", defaults.GetFloat64("layout.card_height"), "Card footprint height")
	cmd.PersistentFlags().Float64("grid-spacing", defaults.GetFloat64("layout.grid_spacing"), "Gutter between arranged cards")
	cmd.PersistentFlags().Int("grid-columns", defaults.GetInt("layout.grid_columns"), "Default grid column count")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "workspace.root", "workspace-root")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "watch.enabled", "watch")
	bindFlag(cmd, "layout.card_width", "card-width")
	bindFlag(cmd, "layout.card_height", "card-height")
	bindFlag(cmd, "layout.grid_spacing", "grid-spacing")
	bindFlag(cmd, "layout.grid_columns", "grid-columns")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	registry := cards.NewRegistry(cards.RegistryConfig{
		Clock:      time.Now,
		IDProvider: cards.NewUUIDProvider(),
		Logger:     logger,
		Layout: cards.LayoutPolicy{
			CardWidth:   appConfig.CardWidth,
			CardHeight:  appConfig.CardHeight,
			GridSpacing: appConfig.GridSpacing,
			GridColumns: appConfig.GridColumns,
		},
		WatchEnabled: appConfig.WatchEnabled,
	})
	defer registry.Close() //nolint:errcheck

	manager, err := registry.Acquire(ctx, appConfig.WorkspaceRoot)
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Manager: manager,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("workspace", appConfig.WorkspaceRoot))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
