// Package ws is the socket-upgrade transport adapter. It carries framed
// protocol envelopes between WebSocket clients and the room core; all
// synchronization semantics live in internal/room.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"tunesync/internal/room"
)

const shutdownTimeout = 10 * time.Second

// Server serves room WebSockets at /ws/{room} plus a /health probe.
type Server struct {
	addr       string
	registry   *room.Registry
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// NewServer creates a WebSocket server bound to addr. An empty
// allowedOrigins list accepts any origin.
func NewServer(addr string, registry *room.Registry, allowedOrigins []string) *Server {
	originChecker := func(origin string) bool {
		if len(allowedOrigins) == 0 {
			return true
		}
		for _, allowed := range allowedOrigins {
			if allowed == origin {
				return true
			}
		}
		return false
	}

	s := &Server{
		addr:     addr,
		registry: registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return originChecker(origin)
			},
		},
	}
	return s
}

// Handler builds the HTTP routing surface. Split out from Run so tests can
// mount it on httptest.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws/{room}", s.handleRoom)
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		logrus.Info("shutting down websocket server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("websocket server shutdown error")
		}
	}()

	logrus.WithField("addr", s.addr).Info("websocket server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		logrus.WithError(err).Warn("failed to write health check response")
	}
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["room"]

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sub, rm, err := subscribe(s.registry, name)
	if err != nil {
		logrus.WithError(err).WithField("room", name).Warn("failed to join room")
		_ = conn.Close()
		return
	}

	newSession(conn, rm, sub).serve()
}

// subscribe joins the named room, retrying once if the first handle was
// evicted between lookup and join.
func subscribe(registry *room.Registry, name string) (*room.Subscription, *room.Room, error) {
	rm := registry.GetOrCreate(name)
	sub, err := rm.Subscribe()
	if errors.Is(err, room.ErrClosed) {
		rm = registry.GetOrCreate(name)
		sub, err = rm.Subscribe()
	}
	if err != nil {
		return nil, nil, err
	}
	return sub, rm, nil
}
