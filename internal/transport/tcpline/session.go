package tcpline

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tunesync/internal/protocol"
	"tunesync/internal/room"
)

// session bridges one line-protocol connection to one room subscription.
type session struct {
	conn      net.Conn
	room      *room.Room
	sub       *room.Subscription
	reader    *bufio.Reader
	log       *logrus.Entry
	closeOnce sync.Once
}

// newSession performs the handshake: the first inbound line names the room.
// The name is taken verbatim after trimming the line ending; the core does
// no validation, so any string (including empty) is a distinct room.
func newSession(conn net.Conn, registry *room.Registry) (*session, error) {
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read room handshake: %w", err)
	}
	name := strings.TrimRight(line, "\r\n")

	sub, rm, err := subscribe(registry, name)
	if err != nil {
		return nil, err
	}

	return &session{
		conn:   conn,
		room:   rm,
		sub:    sub,
		reader: reader,
		log: logrus.WithFields(logrus.Fields{
			"room":       name,
			"session":    uuid.NewString(),
			"remoteAddr": conn.RemoteAddr().String(),
		}),
	}, nil
}

func (s *session) serve() {
	s.log.Info("client connected")
	defer s.log.Info("client disconnected")

	// Join snapshot goes out before anything else.
	if err := s.writeLine(s.sub.Initial()); err != nil {
		s.log.WithError(err).Warn("failed to send join snapshot")
		s.close()
		return
	}

	go s.writeLoop()
	s.readLoop()
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.sub.Close()
		if err := s.conn.Close(); err != nil {
			s.log.WithError(err).Debug("error closing connection")
		}
	})
}

func (s *session) writeLine(data []byte) error {
	// Snapshots are shared across subscribers, so frame into a fresh buffer.
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	if _, err := s.conn.Write(buf); err != nil {
		return err
	}
	return nil
}

func (s *session) writeLoop() {
	defer s.close()

	for data := range s.sub.Updates() {
		if err := s.writeLine(data); err != nil {
			s.log.WithError(err).Debug("client write error")
			return
		}
	}
	// Updates channel closed: room was evicted.
}

func (s *session) readLoop() {
	defer s.close()

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.log.WithError(err).Debug("client read error, disconnecting")
			return
		}

		cmd, ok := protocol.DecodeCommand([]byte(line))
		if !ok {
			s.log.Debug("ignoring malformed inbound message")
			continue
		}
		s.room.Submit(cmd)
	}
}
