// Package wire implements the length-prefixed frame format, the
// authentication envelope, and the command payload codecs of the
// event-store TCP protocol.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// FlagAuthenticated is bit 0 of the frame's flags byte: credentials follow the header.
const FlagAuthenticated byte = 0x01

// headerSize is command(1) + flags(1) + correlation id(16).
const headerSize = 18

// DefaultMaxFrameSize bounds a single incoming frame. Frames larger than
// this are rejected with ErrOversizeFrame.
const DefaultMaxFrameSize = 16 * 1024 * 1024

// Credentials pairs a login and password, each 0..255 octets.
type Credentials struct {
	Login    []byte
	Password []byte
}

// NetworkSize returns the bytes Credentials occupies on the wire: two
// length-prefix bytes plus the login and password bodies.
func (c *Credentials) NetworkSize() int {
	if c == nil {
		return 0
	}
	return len(c.Login) + len(c.Password) + 2
}

func (c *Credentials) validate() error {
	if c == nil {
		return nil
	}
	if len(c.Login) > 255 {
		return fmt.Errorf("wire: login exceeds 255 octets (%d)", len(c.Login))
	}
	if len(c.Password) > 255 {
		return fmt.Errorf("wire: password exceeds 255 octets (%d)", len(c.Password))
	}
	return nil
}

func (c *Credentials) writeTo(w *[]byte) {
	*w = append(*w, byte(len(c.Login)))
	*w = append(*w, c.Login...)
	*w = append(*w, byte(len(c.Password)))
	*w = append(*w, c.Password...)
}

func readCredentials(r *byteReader) (*Credentials, error) {
	loginLen, err := r.readByte()
	if err != nil {
		return nil, err
	}
	login, err := r.readN(int(loginLen))
	if err != nil {
		return nil, err
	}
	pwLen, err := r.readByte()
	if err != nil {
		return nil, err
	}
	password, err := r.readN(int(pwLen))
	if err != nil {
		return nil, err
	}
	return &Credentials{Login: login, Password: password}, nil
}

// Package is the immutable wire unit of the protocol: a command
// tag, a correlation id, optional credentials, and an opaque payload.
// The flags byte is not stored; Serialize derives it from whether
// Credentials is set.
type Package struct {
	Command       Cmd
	CorrelationID uuid.UUID
	Credentials   *Credentials
	Payload       []byte
}

// NewPackage builds an unauthenticated package with a fresh correlation id.
func NewPackage(cmd Cmd, payload []byte) Package {
	return Package{Command: cmd, CorrelationID: uuid.New(), Payload: payload}
}

// WithCorrelationID returns a copy of p carrying the given correlation id.
func (p Package) WithCorrelationID(id uuid.UUID) Package {
	p.CorrelationID = id
	return p
}

// Authenticated reports whether the package carries credentials.
func (p Package) Authenticated() bool {
	return p.Credentials != nil
}

// NetworkSize is 18 + credentials size (0 when absent) + payload size.
func (p Package) NetworkSize() int {
	return headerSize + p.Credentials.NetworkSize() + len(p.Payload)
}

// Serialize produces the full wire frame: a 4-byte little-endian length
// prefix followed by NetworkSize() bytes.
func (p Package) Serialize() ([]byte, error) {
	if err := p.Credentials.validate(); err != nil {
		return nil, err
	}

	size := p.NetworkSize()
	buf := make([]byte, 4, 4+size)
	binary.LittleEndian.PutUint32(buf, uint32(size))

	flags := byte(0)
	if p.Authenticated() {
		flags |= FlagAuthenticated
	}

	idBytes, err := p.CorrelationID.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("wire: marshal correlation id: %w", err)
	}

	buf = append(buf, byte(p.Command), flags)
	buf = append(buf, idBytes...)

	if p.Authenticated() {
		p.Credentials.writeTo(&buf)
	}

	buf = append(buf, p.Payload...)
	return buf, nil
}

// ErrMalformedFrame is returned by ParsePackage when a frame body is
// shorter than the header, shorter than the credentials its flags
// announce, or carries a correlation id that cannot be parsed. Oversize
// frames get ErrOversizeFrame, and a stream that ends mid-frame surfaces
// the underlying io error. When the authenticated flag is clear, every
// byte after the header is taken as payload; such frames are not rejected.
var ErrMalformedFrame = errors.New("wire: malformed frame")

// ErrOversizeFrame is returned when a frame's declared length prefix
// exceeds the configured maximum.
var ErrOversizeFrame = errors.New("wire: oversize frame")

// byteReader is a tiny helper over a bounded byte slice used while parsing
// a single already-length-delimited frame.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) readByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, ErrMalformedFrame
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) readN(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, ErrMalformedFrame
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// ParsePackage parses a single frame body (everything after the 4-byte
// length prefix).
func ParsePackage(frame []byte) (Package, error) {
	if len(frame) < headerSize {
		return Package{}, ErrMalformedFrame
	}

	r := &byteReader{buf: frame}

	cmdByte, err := r.readByte()
	if err != nil {
		return Package{}, err
	}
	flags, err := r.readByte()
	if err != nil {
		return Package{}, err
	}
	idBytes, err := r.readN(16)
	if err != nil {
		return Package{}, err
	}

	var id uuid.UUID
	if err := id.UnmarshalBinary(idBytes); err != nil {
		return Package{}, fmt.Errorf("%w: correlation id: %v", ErrMalformedFrame, err)
	}

	var creds *Credentials
	if flags&FlagAuthenticated != 0 {
		creds, err = readCredentials(r)
		if err != nil {
			return Package{}, err
		}
	}

	payload := frame[r.pos:]

	return Package{
		Command:       Cmd(cmdByte),
		CorrelationID: id,
		Credentials:   creds,
		Payload:       payload,
	}, nil
}

// WriteFrame serializes p and writes the length-prefixed frame to w.
func WriteFrame(w io.Writer, p Package) error {
	frame, err := p.Serialize()
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadFrame reads one length-prefixed frame from r, enforcing maxFrameSize,
// and parses it into a Package.
func ReadFrame(r *bufio.Reader, maxFrameSize int) (Package, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Package{}, err
	}
	size := binary.LittleEndian.Uint32(lenBuf[:])
	if maxFrameSize > 0 && int(size) > maxFrameSize {
		return Package{}, ErrOversizeFrame
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Package{}, err
	}

	return ParsePackage(body)
}
