package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunesync/internal/catalog"
	"tunesync/internal/protocol"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Track{
		{Title: "Track A", Artist: "Artist A", DurationMs: 200_000},
		{Title: "Track B", Artist: "Artist B", DurationMs: 150_000},
		{Title: "Track C", Artist: "Artist C", DurationMs: 90_000},
	})
	require.NoError(t, err)
	return cat
}

func TestInitialState(t *testing.T) {
	cat := testCatalog(t)
	s := initialState(cat)

	assert.Equal(t, "Track A", s.SongTitle)
	assert.Equal(t, "Artist A", s.Artist)
	assert.False(t, s.IsPlaying)
	assert.Equal(t, uint64(0), s.ProgressMs)
	assert.Equal(t, uint64(200_000), s.DurationMs)
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, 3, s.TotalSongs)
}

func TestApply_PlayPause(t *testing.T) {
	cat := testCatalog(t)
	s := initialState(cat)

	apply(&s, protocol.Command{Kind: protocol.Play}, cat)
	assert.True(t, s.IsPlaying)

	apply(&s, protocol.Command{Kind: protocol.Pause}, cat)
	assert.False(t, s.IsPlaying)
}

func TestApply_PauseIdempotent(t *testing.T) {
	cat := testCatalog(t)
	s := initialState(cat)
	apply(&s, protocol.Command{Kind: protocol.Play}, cat)
	s.ProgressMs = 42_000

	apply(&s, protocol.Command{Kind: protocol.Pause}, cat)
	once := s
	apply(&s, protocol.Command{Kind: protocol.Pause}, cat)

	assert.Equal(t, once, s)
}

func TestApply_RestartKeepsPlayFlag(t *testing.T) {
	cat := testCatalog(t)

	for _, playing := range []bool{true, false} {
		s := initialState(cat)
		s.IsPlaying = playing
		s.ProgressMs = 123_456

		apply(&s, protocol.Command{Kind: protocol.Restart}, cat)

		assert.Equal(t, uint64(0), s.ProgressMs)
		assert.Equal(t, playing, s.IsPlaying)
	}
}

func TestApply_NextPrevRoundTrip(t *testing.T) {
	cat := testCatalog(t)

	for start := 0; start < cat.Len(); start++ {
		s := initialState(cat)
		setTrack(&s, cat, start)

		for i := 0; i < cat.Len(); i++ {
			apply(&s, protocol.Command{Kind: protocol.Next}, cat)
		}
		assert.Equal(t, start, s.CurrentIndex, "Next x len from %d", start)

		for i := 0; i < cat.Len(); i++ {
			apply(&s, protocol.Command{Kind: protocol.Prev}, cat)
		}
		assert.Equal(t, start, s.CurrentIndex, "Prev x len from %d", start)
	}
}

func TestApply_PrevThenNextRestoresTrack(t *testing.T) {
	cat := testCatalog(t)
	s := initialState(cat)
	setTrack(&s, cat, 1)
	before := s

	apply(&s, protocol.Command{Kind: protocol.Prev}, cat)
	apply(&s, protocol.Command{Kind: protocol.Next}, cat)

	assert.Equal(t, before.CurrentIndex, s.CurrentIndex)
	assert.Equal(t, before.SongTitle, s.SongTitle)
	assert.Equal(t, before.Artist, s.Artist)
	assert.Equal(t, before.DurationMs, s.DurationMs)
	// Both commands reset elapsed time.
	assert.Equal(t, uint64(0), s.ProgressMs)
}

func TestApply_PrevWrapsToLastTrack(t *testing.T) {
	cat := testCatalog(t)
	s := initialState(cat)

	apply(&s, protocol.Command{Kind: protocol.Prev}, cat)

	assert.Equal(t, cat.Len()-1, s.CurrentIndex)
	assert.Equal(t, "Track C", s.SongTitle)
}

func TestApply_SeekIsUnclamped(t *testing.T) {
	cat := testCatalog(t)
	s := initialState(cat)

	apply(&s, protocol.Command{Kind: protocol.Seek, SeekMs: 999_999_999}, cat)

	assert.Equal(t, uint64(999_999_999), s.ProgressMs)
	assert.Equal(t, 0, s.CurrentIndex)
}

func TestAdvance_PausedDoesNotMove(t *testing.T) {
	cat := testCatalog(t)
	s := initialState(cat)

	advance(&s, 1000, cat)

	assert.Equal(t, uint64(0), s.ProgressMs)
	assert.Equal(t, 0, s.CurrentIndex)
}

func TestAdvance_PlayingAccumulates(t *testing.T) {
	cat := testCatalog(t)
	s := initialState(cat)
	s.IsPlaying = true

	for i := 0; i < 3; i++ {
		advance(&s, 1000, cat)
	}

	assert.Equal(t, uint64(3000), s.ProgressMs)
	assert.Equal(t, 0, s.CurrentIndex)
}

func TestAdvance_AutoAdvanceResetsProgressExactly(t *testing.T) {
	cat := testCatalog(t)
	s := initialState(cat)
	s.IsPlaying = true
	s.ProgressMs = s.DurationMs - 500

	advance(&s, 1000, cat)

	// No remainder carry: the overflow is discarded, not kept.
	assert.Equal(t, uint64(0), s.ProgressMs)
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, "Track B", s.SongTitle)
	assert.Equal(t, "Artist B", s.Artist)
	assert.Equal(t, uint64(150_000), s.DurationMs)
	assert.True(t, s.IsPlaying)
}

func TestAdvance_SeekPastEndResolvesNextTick(t *testing.T) {
	cat := testCatalog(t)
	s := initialState(cat)
	s.IsPlaying = true

	apply(&s, protocol.Command{Kind: protocol.Seek, SeekMs: 5_000_000}, cat)
	advance(&s, 1000, cat)

	assert.Equal(t, uint64(0), s.ProgressMs)
	assert.Equal(t, 1, s.CurrentIndex)
}

func TestAdvance_WrapsToFirstTrack(t *testing.T) {
	cat := testCatalog(t)
	s := initialState(cat)
	s.IsPlaying = true
	setTrack(&s, cat, cat.Len()-1)
	s.ProgressMs = s.DurationMs - 1000

	advance(&s, 1000, cat)

	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, "Track A", s.SongTitle)
}

// Full scenario: play, tick past three seconds, seek close to the boundary,
// tick once more and land on the next track.
func TestScenario_PlaySeekBoundary(t *testing.T) {
	cat, err := catalog.New([]catalog.Track{
		{Title: "A", Artist: "a", DurationMs: 200_000},
		{Title: "B", Artist: "b", DurationMs: 150_000},
	})
	require.NoError(t, err)

	s := initialState(cat)
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, "A", s.SongTitle)
	assert.False(t, s.IsPlaying)

	apply(&s, protocol.Command{Kind: protocol.Play}, cat)
	for i := 0; i < 3; i++ {
		advance(&s, 1000, cat)
	}
	assert.Equal(t, uint64(3000), s.ProgressMs)
	assert.Equal(t, 0, s.CurrentIndex)

	apply(&s, protocol.Command{Kind: protocol.Seek, SeekMs: 199_500}, cat)
	advance(&s, 1000, cat)

	assert.Equal(t, uint64(0), s.ProgressMs)
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, "B", s.SongTitle)
}
