// Package protocol defines the wire messages exchanged between server and
// clients. One JSON envelope travels per WebSocket text frame or per TCP
// line; the envelope is externally tagged with exactly one of its variants.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PlaybackState is the complete, self-contained snapshot of one room at one
// instant. It is the payload of every StateUpdate.
type PlaybackState struct {
	SongTitle    string `json:"song_title"`
	Artist       string `json:"artist"`
	IsPlaying    bool   `json:"is_playing"`
	ProgressMs   uint64 `json:"progress_ms"`
	DurationMs   uint64 `json:"duration_ms"`
	CurrentIndex int    `json:"current_index"`
	TotalSongs   int    `json:"total_songs"`
}

// CommandKind enumerates the transport commands a member may issue.
type CommandKind int

const (
	Play CommandKind = iota
	Pause
	Next
	Prev
	Restart
	Seek
)

var kindNames = map[CommandKind]string{
	Play:    "Play",
	Pause:   "Pause",
	Next:    "Next",
	Prev:    "Prev",
	Restart: "Restart",
	Seek:    "Seek",
}

func (k CommandKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// Command is one transport command. SeekMs is meaningful only when Kind is
// Seek.
type Command struct {
	Kind   CommandKind
	SeekMs uint64
}

// ErrUnknownCommand reports an inbound command that parsed as JSON but names
// no known variant. Callers ignore such messages rather than failing the
// session.
var ErrUnknownCommand = errors.New("unknown command")

// MarshalJSON encodes the command the way the clients expect: unit variants
// as bare strings ("Play"), Seek as {"Seek": ms}.
func (c Command) MarshalJSON() ([]byte, error) {
	if c.Kind == Seek {
		return json.Marshal(map[string]uint64{"Seek": c.SeekMs})
	}
	name, ok := kindNames[c.Kind]
	if !ok {
		return nil, fmt.Errorf("marshal command: %w: %d", ErrUnknownCommand, int(c.Kind))
	}
	return json.Marshal(name)
}

// UnmarshalJSON accepts either encoding produced by MarshalJSON.
func (c *Command) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		for kind, n := range kindNames {
			if n == name && kind != Seek {
				c.Kind = kind
				return nil
			}
		}
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	var seek struct {
		Seek *uint64 `json:"Seek"`
	}
	if err := json.Unmarshal(data, &seek); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}
	if seek.Seek == nil {
		return ErrUnknownCommand
	}
	c.Kind = Seek
	c.SeekMs = *seek.Seek
	return nil
}

// Envelope is the tagged wire union. Exactly one field is set.
type Envelope struct {
	StateUpdate *PlaybackState `json:"StateUpdate,omitempty"`
	Command     *Command       `json:"Command,omitempty"`
}

// EncodeState wraps a snapshot in a StateUpdate envelope.
func EncodeState(s PlaybackState) ([]byte, error) {
	return json.Marshal(Envelope{StateUpdate: &s})
}

// EncodeCommand wraps a command in a Command envelope.
func EncodeCommand(c Command) ([]byte, error) {
	return json.Marshal(Envelope{Command: &c})
}

// DecodeCommand parses one inbound frame. The second return is false for
// anything that is not a well-formed Command envelope; per the error
// taxonomy such frames are ignored and never terminate the session.
func DecodeCommand(data []byte) (Command, bool) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Command == nil {
		return Command{}, false
	}
	return *env.Command, true
}

// DecodeState parses one outbound frame back into a snapshot. Used by
// clients and tests.
func DecodeState(data []byte) (PlaybackState, bool) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.StateUpdate == nil {
		return PlaybackState{}, false
	}
	return *env.StateUpdate, true
}
