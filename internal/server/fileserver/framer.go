package fileserver

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Framing selects how messages are delimited on a connection.
type Framing string

const (
	// FramingLength prefixes every message with a 4-byte big-endian length.
	FramingLength Framing = "length"

	// FramingLegacy has no delimiter: a message ends where the accumulated
	// bytes first form a complete JSON value.
	//
	// Known hazard: if a complete JSON value is a prefix of what the peer
	// meant as one message, the value is taken as the whole message and the
	// remainder is parsed as the next one. Objects and arrays are closed by
	// explicit delimiters, so well-formed object messages are unaffected;
	// bare scalars (e.g. 12 followed later by 3) are split.
	FramingLegacy Framing = "legacy"

	// FramingAuto picks per connection from the first byte: '{' selects
	// legacy, anything else length-prefixed. Legacy peers must not send
	// whitespace before their first object.
	FramingAuto Framing = "auto"
)

// DefaultMaxFrameBytes caps a single message (200 MiB).
const DefaultMaxFrameBytes = 200 << 20

// MaxFrameLimit is the largest configurable frame cap. Length headers for
// frames up to it start with a byte under 0x20, so FramingAuto never reads
// one as '{'.
const MaxFrameLimit = 1<<29 - 1

// headerLen is the size of the length prefix.
const headerLen = 4

// legacyChunk is the read size of the legacy framer.
const legacyChunk = 64 << 10

// ErrFrameTooLarge means the peer sent (or announced) a message over the cap.
// It is fatal for the connection.
var ErrFrameTooLarge = errors.New("fileserver: frame exceeds limit")

// ParseFraming validates a framing name. Empty means auto.
func ParseFraming(s string) (Framing, error) {
	switch Framing(s) {
	case "":
		return FramingAuto, nil
	case FramingLength, FramingLegacy, FramingAuto:
		return Framing(s), nil
	default:
		return "", fmt.Errorf("unknown framing %q", s)
	}
}

// Framer reads and writes whole messages on one connection.
type Framer interface {
	// ReadMessage returns the next message payload.
	ReadMessage() ([]byte, error)

	// WriteMessage buffers one message; the caller flushes.
	WriteMessage(payload []byte) error

	// Mode reports the framing in effect. For auto framers this is
	// FramingAuto until the first byte has been seen.
	Mode() Framing
}

// NewFramer creates a framer for mode over br and bw.
func NewFramer(mode Framing, br *bufio.Reader, bw *bufio.Writer, maxBytes int) Framer {
	if maxBytes <= 0 || maxBytes > MaxFrameLimit {
		maxBytes = DefaultMaxFrameBytes
	}
	switch mode {
	case FramingLength:
		return &lengthFramer{br: br, bw: bw, max: maxBytes}
	case FramingLegacy:
		return &legacyFramer{br: br, bw: bw, max: maxBytes}
	default:
		return &autoFramer{br: br, bw: bw, max: maxBytes}
	}
}

type lengthFramer struct {
	br  *bufio.Reader
	bw  *bufio.Writer
	max int
}

func (f *lengthFramer) Mode() Framing { return FramingLength }

func (f *lengthFramer) ReadMessage() ([]byte, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(f.br, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if int64(n) > int64(f.max) {
		return nil, fmt.Errorf("%w: announced %d bytes, limit %d", ErrFrameTooLarge, n, f.max)
	}

	// Grow with the data actually received rather than trusting the header.
	buf := bytes.NewBuffer(make([]byte, 0, min(int(n), legacyChunk)))
	if _, err := io.CopyN(buf, f.br, int64(n)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *lengthFramer) WriteMessage(payload []byte) error {
	var hdr [headerLen]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := f.bw.Write(hdr[:]); err != nil {
		return err
	}
	_, err := f.bw.Write(payload)
	return err
}

type legacyFramer struct {
	br  *bufio.Reader
	bw  *bufio.Writer
	max int
	buf []byte
}

func (f *legacyFramer) Mode() Framing { return FramingLegacy }

func (f *legacyFramer) ReadMessage() ([]byte, error) {
	// Bytes left over from the previous read may already hold a message.
	if msg, ok := f.extract(); ok {
		return f.checked(msg)
	}

	chunk := make([]byte, legacyChunk)
	for {
		n, err := f.br.Read(chunk)
		if n > 0 {
			f.buf = append(f.buf, chunk[:n]...)
			if bytes.IndexByte(chunk[:n], '}') >= 0 || !startsObject(f.buf) {
				if msg, ok := f.extract(); ok {
					return f.checked(msg)
				}
			}
			if len(f.buf) > f.max {
				f.buf = nil
				return nil, fmt.Errorf("%w: over %d bytes without a complete message", ErrFrameTooLarge, f.max)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(bytes.TrimSpace(f.buf)) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

func (f *legacyFramer) checked(msg []byte) ([]byte, error) {
	if len(msg) > f.max {
		f.buf = nil
		return nil, fmt.Errorf("%w: message of %d bytes, limit %d", ErrFrameTooLarge, len(msg), f.max)
	}
	return msg, nil
}

// extract pops the first complete JSON value off the buffer.
//
// Input that can never become valid JSON is returned whole as one message so
// the dispatcher reports it as malformed; the buffer is then cleared.
func (f *legacyFramer) extract() ([]byte, bool) {
	trimmed := bytes.TrimLeft(f.buf, " \t\r\n")
	if len(trimmed) == 0 {
		f.buf = f.buf[:0]
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var raw json.RawMessage
	err := dec.Decode(&raw)
	switch {
	case err == nil:
		rest := trimmed[dec.InputOffset():]
		f.buf = append(make([]byte, 0, len(rest)), rest...)
		return raw, true
	case errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF):
		return nil, false
	default:
		msg := append([]byte(nil), trimmed...)
		f.buf = f.buf[:0]
		return msg, true
	}
}

func (f *legacyFramer) WriteMessage(payload []byte) error {
	_, err := f.bw.Write(payload)
	return err
}

// startsObject reports whether the first non-space byte opens an object.
// An empty buffer counts as an object start.
func startsObject(b []byte) bool {
	t := bytes.TrimLeft(b, " \t\r\n")
	return len(t) == 0 || t[0] == '{'
}

type autoFramer struct {
	br    *bufio.Reader
	bw    *bufio.Writer
	max   int
	inner Framer
}

func (f *autoFramer) Mode() Framing {
	if f.inner == nil {
		return FramingAuto
	}
	return f.inner.Mode()
}

func (f *autoFramer) ReadMessage() ([]byte, error) {
	if f.inner == nil {
		b, err := f.br.Peek(1)
		if err != nil {
			return nil, err
		}
		if b[0] == '{' {
			f.inner = &legacyFramer{br: f.br, bw: f.bw, max: f.max}
		} else {
			f.inner = &lengthFramer{br: f.br, bw: f.bw, max: f.max}
		}
	}
	return f.inner.ReadMessage()
}

func (f *autoFramer) WriteMessage(payload []byte) error {
	if f.inner == nil {
		return (&lengthFramer{br: f.br, bw: f.bw, max: f.max}).WriteMessage(payload)
	}
	return f.inner.WriteMessage(payload)
}
