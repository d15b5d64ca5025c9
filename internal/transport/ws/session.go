package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tunesync/internal/protocol"
	"tunesync/internal/room"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// session bridges one WebSocket connection to one room subscription. The
// write pump forwards snapshots and pings; the read pump forwards inbound
// commands. Either side failing tears down only this session.
type session struct {
	conn      *websocket.Conn
	room      *room.Room
	sub       *room.Subscription
	log       *logrus.Entry
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, rm *room.Room, sub *room.Subscription) *session {
	return &session{
		conn: conn,
		room: rm,
		sub:  sub,
		log: logrus.WithFields(logrus.Fields{
			"room":       rm.Name(),
			"session":    uuid.NewString(),
			"remoteAddr": conn.RemoteAddr().String(),
		}),
	}
}

func (s *session) serve() {
	s.log.Info("client connected")
	defer s.log.Info("client disconnected")

	// The join-time snapshot goes out before the steady-state loop so the
	// client never waits out a tick to see state.
	if err := s.write(s.sub.Initial()); err != nil {
		s.log.WithError(err).Warn("failed to send join snapshot")
		s.close()
		return
	}

	go s.writePump()
	s.readPump()
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.sub.Close()
		if err := s.conn.Close(); err != nil {
			// Expected when the other end already hung up.
			s.log.WithError(err).Debug("error closing connection")
		}
	})
}

func (s *session) write(data []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// writePump forwards room snapshots to the client and keeps the connection
// alive with pings.
func (s *session) writePump() {
	defer s.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-s.sub.Updates():
			if !ok {
				// Room evicted; tell the client we are going away.
				_ = s.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "room closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := s.write(data); err != nil {
				s.log.WithError(err).Debug("client write error")
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump forwards inbound commands to the room until the connection
// drops. Frames that do not parse as commands are ignored.
func (s *session) readPump() {
	defer s.close()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.log.WithError(err).Debug("client read error, disconnecting")
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		cmd, ok := protocol.DecodeCommand(data)
		if !ok {
			s.log.Debug("ignoring malformed inbound message")
			continue
		}
		s.room.Submit(cmd)
	}
}
