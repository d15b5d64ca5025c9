// Package tcpline is the plain-socket transport adapter: newline-delimited
// JSON envelopes over TCP. The first line a client sends is the room name;
// every line after that is a command envelope, and every line the server
// sends is a state update.
package tcpline

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"tunesync/internal/room"
)

// Server accepts line-protocol clients and bridges them onto the room core.
type Server struct {
	addr     string
	registry *room.Registry

	mu sync.Mutex
	ln net.Listener
}

// NewServer creates a line-protocol server bound to addr.
func NewServer(addr string, registry *room.Registry) *Server {
	return &Server{addr: addr, registry: registry}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled. Split out from
// Run so tests can supply their own listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		logrus.Info("shutting down line-protocol server")
		if err := ln.Close(); err != nil {
			logrus.WithError(err).Debug("error closing line-protocol listener")
		}
	}()

	logrus.WithField("addr", ln.Addr().String()).Info("line-protocol server listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Addr returns the listener address once serving. Nil before that.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) handleConn(conn net.Conn) {
	sess, err := newSession(conn, s.registry)
	if err != nil {
		logrus.WithError(err).WithField("remoteAddr", conn.RemoteAddr().String()).
			Warn("failed to start line-protocol session")
		_ = conn.Close()
		return
	}
	sess.serve()
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
