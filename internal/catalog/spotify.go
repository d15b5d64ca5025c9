package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"
)

const tokenURL = "https://accounts.spotify.com/api/token"

// SpotifyConfig holds the credentials for the refresh-token flow plus the
// playlist to import.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	PlaylistID   string
}

// FromSpotify fetches the tracks of a playlist once at startup and builds an
// immutable catalog from them. The TokenSource handles token refreshes
// automatically and is safe for concurrent use, though we only need it for
// this one import.
func FromSpotify(ctx context.Context, cfg SpotifyConfig) (*Catalog, error) {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: tokenURL,
		},
	}
	tokenSource := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	client := spotify.NewClient(oauth2.NewClient(ctx, tokenSource))

	page, err := client.GetPlaylistTracks(spotify.ID(cfg.PlaylistID))
	if err != nil {
		return nil, fmt.Errorf("fetch playlist %s: %w", cfg.PlaylistID, err)
	}

	var tracks []Track
	for {
		for _, pt := range page.Tracks {
			if pt.Track.Duration <= 0 {
				continue
			}
			tracks = append(tracks, Track{
				Title:      pt.Track.Name,
				Artist:     joinArtists(pt.Track.Artists),
				DurationMs: uint64(pt.Track.Duration),
			})
		}
		if err := client.NextPage(page); err != nil {
			if err == spotify.ErrNoMorePages {
				break
			}
			return nil, fmt.Errorf("fetch playlist page: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"playlist": cfg.PlaylistID,
		"tracks":   len(tracks),
	}).Info("catalog imported from spotify playlist")

	return New(tracks)
}

func joinArtists(artists []spotify.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}
