// Package visualizer drives the live recording display. The core talks to
// it through a Bridge that launches the peer as a separate process and
// writes msgpack-encoded Commands to its stdin. Nothing flows back.
package visualizer

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// ProtocolVersion is stamped on every encoded command. A peer rejects
// commands from a different version.
const ProtocolVersion uint8 = 1

// Kind names a command variant.
type Kind string

const (
	KindUpdateLevel        Kind = "update_level"
	KindStartLoading       Kind = "start_loading"
	KindStartRecording     Kind = "start_recording"
	KindStopRecording      Kind = "stop_recording"
	KindStartTranscription Kind = "start_transcription"
	KindStopTranscription  Kind = "stop_transcription"
	KindQuit               Kind = "quit"
)

func (k Kind) valid() bool {
	switch k {
	case KindUpdateLevel, KindStartLoading, KindStartRecording, KindStopRecording,
		KindStartTranscription, KindStopTranscription, KindQuit:
		return true
	}
	return false
}

// Command is one message to the peer. Level is only meaningful for
// KindUpdateLevel.
type Command struct {
	Version uint8   `msgpack:"v"`
	Kind    Kind    `msgpack:"k"`
	Level   float32 `msgpack:"l,omitempty"`
}

// UpdateLevel carries one normalized audio level in [0,1].
func UpdateLevel(level float32) Command {
	return Command{Kind: KindUpdateLevel, Level: level}
}

var (
	StartLoading       = Command{Kind: KindStartLoading}
	StartRecording     = Command{Kind: KindStartRecording}
	StopRecording      = Command{Kind: KindStopRecording}
	StartTranscription = Command{Kind: KindStartTranscription}
	StopTranscription  = Command{Kind: KindStopTranscription}
	Quit               = Command{Kind: KindQuit}
)

var (
	// ErrUnknownCommand is returned for a command outside the closed set.
	ErrUnknownCommand = errors.New("visualizer: unknown command")
	// ErrVersion is returned for a command from another protocol version.
	ErrVersion = errors.New("visualizer: protocol version mismatch")
)

// Encoder writes a command stream.
type Encoder struct {
	enc *msgpack.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: msgpack.NewEncoder(w)}
}

// Encode writes c stamped with ProtocolVersion.
func (e *Encoder) Encode(c Command) error {
	c.Version = ProtocolVersion
	if err := e.enc.Encode(&c); err != nil {
		return fmt.Errorf("visualizer: encode %s: %w", c.Kind, err)
	}
	return nil
}

// Decoder reads a command stream.
type Decoder struct {
	dec *msgpack.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: msgpack.NewDecoder(r)}
}

// Decode reads the next command. It returns io.EOF at a clean end of
// stream. ErrUnknownCommand and ErrVersion leave the stream usable.
func (d *Decoder) Decode() (Command, error) {
	var c Command
	if err := d.dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return Command{}, io.EOF
		}
		return Command{}, fmt.Errorf("visualizer: decode: %w", err)
	}
	if c.Version != ProtocolVersion {
		return c, fmt.Errorf("%w: got %d, want %d", ErrVersion, c.Version, ProtocolVersion)
	}
	if !c.Kind.valid() {
		return c, fmt.Errorf("%w: %q", ErrUnknownCommand, c.Kind)
	}
	return c, nil
}
