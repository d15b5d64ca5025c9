package catalog

import "fmt"

// Track is a single playable entry. Tracks are immutable once the catalog
// is built; only elapsed-time metadata is tracked elsewhere, never audio.
type Track struct {
	Title      string
	Artist     string
	DurationMs uint64
}

// Catalog is an ordered, read-only track list shared by every room.
// It is never empty: the index arithmetic in the room engine relies on
// Len() >= 1.
type Catalog struct {
	tracks []Track
}

// New builds a catalog from the given tracks. It returns an error if the
// list is empty, since rooms cannot be created without at least one track.
func New(tracks []Track) (*Catalog, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one track")
	}
	c := &Catalog{tracks: make([]Track, len(tracks))}
	copy(c.tracks, tracks)
	return c, nil
}

// Get returns the track at the given index. The index must be in range;
// callers keep indices valid via modulo navigation.
func (c *Catalog) Get(i int) Track {
	return c.tracks[i]
}

// Len returns the number of tracks in the catalog.
func (c *Catalog) Len() int {
	return len(c.tracks)
}

// Default returns the built-in playlist used when no external catalog
// source is configured.
func Default() *Catalog {
	c, _ := New([]Track{
		{Title: "Shape of You", Artist: "Ed Sheeran", DurationMs: 233_000},
		{Title: "Blinding Lights", Artist: "The Weeknd", DurationMs: 200_000},
		{Title: "Levitating", Artist: "Dua Lipa", DurationMs: 203_000},
		{Title: "Stay", Artist: "Justin Bieber", DurationMs: 141_000},
		{Title: "Bohemian Rhapsody", Artist: "Queen", DurationMs: 354_000},
	})
	return c
}
