package room

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tunesync/internal/catalog"
)

// sweepInterval is how often the janitor scans for idle rooms.
const sweepInterval = 30 * time.Second

// Registry is the process-wide name→room map. It is constructed once in
// main and handed to every transport; there is no ambient global.
type Registry struct {
	catalog *catalog.Catalog
	idleTTL time.Duration

	mu    sync.Mutex
	rooms map[string]*Room

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRegistry creates an empty registry. idleTTL is how long a room may sit
// without subscribers before eviction; zero disables eviction and rooms
// then live for the life of the process.
func NewRegistry(cat *catalog.Catalog, idleTTL time.Duration) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		catalog: cat,
		idleTTL: idleTTL,
		rooms:   make(map[string]*Room),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// GetOrCreate returns the room registered under name, creating and starting
// it if absent. Concurrent callers with the same new name all receive the
// one room the winner created. Room names are opaque keys; the empty string
// is a valid room.
func (g *Registry) GetOrCreate(name string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.rooms[name]; ok && !r.isClosed() {
		return r
	}

	logrus.WithField("room", name).Info("creating new room")
	r := newRoom(g.ctx, name, g.catalog, tickPeriod)
	g.rooms[name] = r
	return r
}

// Len reports how many rooms are currently registered.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Run drives the idle-room janitor until ctx is cancelled, then closes
// every room. With eviction disabled it only waits for shutdown.
func (g *Registry) Run(ctx context.Context) {
	if g.idleTTL <= 0 {
		<-ctx.Done()
		g.closeAll()
		return
	}

	t := time.NewTicker(sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			g.closeAll()
			return
		case now := <-t.C:
			g.sweep(now)
		}
	}
}

func (g *Registry) sweep(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, r := range g.rooms {
		if r.closeIfIdle(g.idleTTL, now) {
			delete(g.rooms, name)
			logrus.WithField("room", name).Info("evicted idle room")
		}
	}
}

// Close evicts every room and stops their tickers. Run does this on its own
// at shutdown; Close exists for callers that never start the janitor.
func (g *Registry) Close() {
	g.closeAll()
}

func (g *Registry) closeAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, r := range g.rooms {
		r.close()
		delete(g.rooms, name)
	}
	g.cancel()
}
