package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const defaultRoomIdleTTL = 10 * time.Minute

// Config holds the application configuration.
type Config struct {
	ServerPort     string
	TCPPort        string
	AllowedOrigins []string
	LogLevel       logrus.Level
	RoomIdleTTL    time.Duration
	Spotify        struct {
		ClientID     string
		ClientSecret string
		RefreshToken string
		PlaylistID   string
	}
}

// Load loads the configuration from environment variables, reading a .env
// file first if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{}

	cfg.ServerPort = getEnv("SERVER_PORT", "9000")
	cfg.TCPPort = getEnv("TCP_PORT", "9001")

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	cfg.RoomIdleTTL = defaultRoomIdleTTL
	if ttl := os.Getenv("ROOM_IDLE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid ROOM_IDLE_TTL: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("ROOM_IDLE_TTL must not be negative")
		}
		cfg.RoomIdleTTL = d
	}

	cfg.Spotify.ClientID = os.Getenv("SPOTIFY_CLIENT_ID")
	cfg.Spotify.ClientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")
	cfg.Spotify.RefreshToken = os.Getenv("SPOTIFY_REFRESH_TOKEN")
	cfg.Spotify.PlaylistID = os.Getenv("SPOTIFY_PLAYLIST_ID")

	if cfg.Spotify.PlaylistID != "" {
		if cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "" || cfg.Spotify.RefreshToken == "" {
			return nil, fmt.Errorf("SPOTIFY_PLAYLIST_ID is set but spotify credentials are not")
		}
	}

	return cfg, nil
}

// UseSpotifyCatalog reports whether a playlist import is configured.
func (c *Config) UseSpotifyCatalog() bool {
	return c.Spotify.PlaylistID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
