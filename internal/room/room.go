package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tunesync/internal/catalog"
	"tunesync/internal/protocol"
)

const (
	// tickPeriod is the fixed room clock period. Not adjustable at runtime;
	// tests construct rooms directly with a shorter period.
	tickPeriod = 1000 * time.Millisecond

	// subscriberBuffer bounds the per-subscriber snapshot queue. A slow
	// subscriber loses the oldest queued snapshots and converges on the
	// latest state.
	subscriberBuffer = 16
)

// ErrClosed is returned by Subscribe after a room has been evicted. Callers
// obtain a fresh room via the registry and retry.
var ErrClosed = errors.New("room closed")

// Room owns one playback state, its ticker and its subscriber set. All state
// access goes through mu; the subscriber set has its own lock so a slow
// fanout never holds up command application.
type Room struct {
	name    string
	catalog *catalog.Catalog
	period  time.Duration
	log     *logrus.Entry

	mu    sync.Mutex
	state protocol.PlaybackState

	subMu      sync.Mutex
	subs       map[*Subscription]struct{}
	closed     bool
	emptySince time.Time

	cancel context.CancelFunc
}

// Subscription is one member's view of a room: the join-time snapshot plus
// the stream of ticker-published snapshots. Close detaches it; the room is
// otherwise unaffected.
type Subscription struct {
	room    *Room
	initial []byte
	updates chan []byte
	once    sync.Once
}

// Initial is the serialized snapshot taken at join time. It is delivered to
// the client before any streamed update, so a joiner never waits out a tick
// to see state.
func (s *Subscription) Initial() []byte { return s.initial }

// Updates streams every snapshot the room publishes while the subscription
// is live. The channel is closed when the room is evicted.
func (s *Subscription) Updates() <-chan []byte { return s.updates }

// Close detaches the subscription from the room. Safe to call more than
// once and concurrently with room publishes.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.room.unsubscribe(s)
	})
}

func newRoom(ctx context.Context, name string, cat *catalog.Catalog, period time.Duration) *Room {
	ctx, cancel := context.WithCancel(ctx)
	r := &Room{
		name:       name,
		catalog:    cat,
		period:     period,
		log:        logrus.WithField("room", name),
		state:      initialState(cat),
		subs:       make(map[*Subscription]struct{}),
		emptySince: time.Now(),
		cancel:     cancel,
	}
	go r.run(ctx)
	return r
}

// Name returns the room's registry key.
func (r *Room) Name() string { return r.name }

// Subscribe registers a new member and returns its join-time snapshot plus
// the update stream.
func (r *Room) Subscribe() (*Subscription, error) {
	r.mu.Lock()
	snap := r.state
	r.mu.Unlock()

	data, err := protocol.EncodeState(snap)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		room:    r,
		initial: data,
		updates: make(chan []byte, subscriberBuffer),
	}

	r.subMu.Lock()
	defer r.subMu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	r.subs[sub] = struct{}{}
	return sub, nil
}

// Submit applies one command to the room state. The result is picked up by
// the next tick's publish; commands themselves do not force a fanout push.
func (r *Room) Submit(cmd protocol.Command) {
	r.mu.Lock()
	apply(&r.state, cmd, r.catalog)
	r.mu.Unlock()
	r.log.WithField("command", cmd.Kind.String()).Debug("command applied")
}

// Snapshot returns a copy of the current state.
func (r *Room) Snapshot() protocol.PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Room) unsubscribe(sub *Subscription) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if _, ok := r.subs[sub]; !ok {
		return
	}
	delete(r.subs, sub)
	if len(r.subs) == 0 {
		r.emptySince = time.Now()
	}
}

// run is the room ticker. It advances the clock every period until the
// room's context is cancelled by eviction or shutdown.
func (r *Room) run(ctx context.Context) {
	r.log.Info("room ticker started")
	defer r.log.Info("room ticker stopped")

	t := time.NewTicker(r.period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.tick()
		}
	}
}

func (r *Room) tick() {
	r.mu.Lock()
	before := r.state.CurrentIndex
	advance(&r.state, uint64(r.period/time.Millisecond), r.catalog)
	snap := r.state
	r.mu.Unlock()

	if snap.CurrentIndex != before {
		r.log.WithFields(logrus.Fields{
			"track": snap.SongTitle,
			"index": snap.CurrentIndex,
		}).Info("track finished, auto-advancing")
	}

	r.publish(snap)
}

// publish fans the snapshot out to the current subscriber set. An empty
// room skips serialization entirely; the snapshot for that tick is simply
// discarded, never buffered.
func (r *Room) publish(snap protocol.PlaybackState) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	if len(r.subs) == 0 {
		return
	}

	data, err := protocol.EncodeState(snap)
	if err != nil {
		r.log.WithError(err).Warn("failed to encode state snapshot")
		return
	}

	for sub := range r.subs {
		select {
		case sub.updates <- data:
		default:
			// Full queue: drop the oldest snapshot so the subscriber
			// keeps seeing the most recent state.
			select {
			case <-sub.updates:
			default:
			}
			select {
			case sub.updates <- data:
			default:
			}
		}
	}
}

// subscriberCount reports how many members are attached.
func (r *Room) subscriberCount() int {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	return len(r.subs)
}

// closeIfIdle evicts the room when it has had no subscribers for at least
// ttl. Returns true when the room was closed; the registry then drops it.
func (r *Room) closeIfIdle(ttl time.Duration, now time.Time) bool {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if r.closed {
		return true
	}
	if len(r.subs) > 0 || now.Sub(r.emptySince) < ttl {
		return false
	}
	r.closeLocked()
	return true
}

// close evicts the room unconditionally. Used at shutdown.
func (r *Room) close() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if !r.closed {
		r.closeLocked()
	}
}

func (r *Room) closeLocked() {
	r.closed = true
	r.cancel()
	for sub := range r.subs {
		close(sub.updates)
		delete(r.subs, sub)
	}
}

func (r *Room) isClosed() bool {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	return r.closed
}
