// Package room implements the synchronization core: the per-room playback
// state machine, the autonomous ticker, the subscriber fanout and the
// concurrent room registry. Transports consume it through Registry and Room
// only.
package room

import (
	"tunesync/internal/catalog"
	"tunesync/internal/protocol"
)

// initialState is the state every new room starts from: first catalog entry,
// paused, at zero progress.
func initialState(cat *catalog.Catalog) protocol.PlaybackState {
	s := protocol.PlaybackState{
		IsPlaying:  false,
		ProgressMs: 0,
		TotalSongs: cat.Len(),
	}
	setTrack(&s, cat, 0)
	return s
}

// setTrack points the state at catalog entry i and mirrors its metadata.
func setTrack(s *protocol.PlaybackState, cat *catalog.Catalog, i int) {
	t := cat.Get(i)
	s.CurrentIndex = i
	s.SongTitle = t.Title
	s.Artist = t.Artist
	s.DurationMs = t.DurationMs
}

// apply is the pure command transition. It runs under the room's state lock.
// Seek is deliberately unclamped: a target past the track end resolves on
// the next tick's boundary check.
func apply(s *protocol.PlaybackState, cmd protocol.Command, cat *catalog.Catalog) {
	switch cmd.Kind {
	case protocol.Play:
		s.IsPlaying = true
	case protocol.Pause:
		s.IsPlaying = false
	case protocol.Restart:
		s.ProgressMs = 0
	case protocol.Next:
		s.ProgressMs = 0
		setTrack(s, cat, (s.CurrentIndex+1)%s.TotalSongs)
	case protocol.Prev:
		s.ProgressMs = 0
		setTrack(s, cat, (s.CurrentIndex+s.TotalSongs-1)%s.TotalSongs)
	case protocol.Seek:
		s.ProgressMs = cmd.SeekMs
	}
}

// advance is one clock step. While playing, elapsed time grows by the tick
// period; crossing the track boundary resets progress to exactly zero and
// moves to the next entry. The boundary check runs even when paused so an
// over-seeked paused room still settles on a valid position.
func advance(s *protocol.PlaybackState, periodMs uint64, cat *catalog.Catalog) {
	if s.IsPlaying {
		s.ProgressMs += periodMs
	}
	if s.ProgressMs >= s.DurationMs {
		s.ProgressMs = 0
		setTrack(s, cat, (s.CurrentIndex+1)%s.TotalSongs)
	}
}
