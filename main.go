package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"tunesync/internal/catalog"
	"tunesync/internal/config"
	"tunesync/internal/room"
	"tunesync/internal/transport/tcpline"
	"tunesync/internal/transport/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	logrus.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := buildCatalog(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to build catalog")
	}
	logrus.WithField("tracks", cat.Len()).Info("catalog ready")

	registry := room.NewRegistry(cat, cfg.RoomIdleTTL)

	wsServer := ws.NewServer(":"+cfg.ServerPort, registry, cfg.AllowedOrigins)
	tcpServer := tcpline.NewServer(":"+cfg.TCPPort, registry)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		registry.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := wsServer.Run(ctx); err != nil {
			errs <- err
		}
	}()
	go func() {
		defer wg.Done()
		if err := tcpServer.Run(ctx); err != nil {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		logrus.WithError(err).Error("server error, shutting down")
		stop()
	case <-ctx.Done():
		logrus.Info("shutdown signal received")
	}

	wg.Wait()
	logrus.Info("server stopped")
}

func buildCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.UseSpotifyCatalog() {
		return catalog.FromSpotify(ctx, catalog.SpotifyConfig{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			PlaylistID:   cfg.Spotify.PlaylistID,
		})
	}
	return catalog.Default(), nil
}
