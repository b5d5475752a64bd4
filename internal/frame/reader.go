package frame

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/israelio/rabbit-wire/internal/protocol"
)

// Reader decodes frames from the transport. Only the connection's receive
// loop uses it, so it keeps no lock.
type Reader struct {
	r        *bufio.Reader
	maxFrame uint32
	prefix   [protocol.FrameHeaderSize]byte
}

// NewReader wraps r. maxFrameSize bounds the whole frame, overhead
// included; zero starts at protocol.FrameMinSize until tuning raises it.
func NewReader(r io.Reader, maxFrameSize uint32) *Reader {
	fr := &Reader{r: bufio.NewReaderSize(r, 2*protocol.FrameMinSize)}
	fr.maxFrame = protocol.FrameMinSize
	fr.SetMaxFrameSize(maxFrameSize)
	return fr
}

// SetMaxFrameSize applies the negotiated frame-max. Zero is ignored.
func (fr *Reader) SetMaxFrameSize(size uint32) {
	if size > 0 {
		fr.maxFrame = size
	}
}

// ReadFrame blocks for the next complete frame. A peer that answers with a
// protocol header instead yields a *HeaderError.
func (fr *Reader) ReadFrame() (*Frame, error) {
	if _, err := io.ReadFull(fr.r, fr.prefix[:1]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	if fr.prefix[0] == protocol.ProtocolHeader[0] {
		return nil, fr.peerHeader()
	}
	if _, err := io.ReadFull(fr.r, fr.prefix[1:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	f, size, err := fr.parsePrefix()
	if err != nil {
		return nil, err
	}

	// payload and frame-end in one read
	buf := make([]byte, size+1)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	if end := buf[size]; end != protocol.FrameEnd {
		return nil, fmt.Errorf("%w: frame-end 0x%02X, want 0x%02X", ErrFraming, end, protocol.FrameEnd)
	}
	f.Payload = buf[:size:size]
	return f, nil
}

func (fr *Reader) parsePrefix() (*Frame, uint32, error) {
	p := fr.prefix
	f := &Frame{Type: p[0], ChannelID: binary.BigEndian.Uint16(p[1:3])}
	size := binary.BigEndian.Uint32(p[3:7])

	if _, known := typeNames[f.Type]; !known {
		return nil, 0, fmt.Errorf("%w: frame type %d", ErrFraming, f.Type)
	}
	if limit := fr.maxFrame - protocol.FrameOverhead; size > limit {
		return nil, 0, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrFraming, size, limit)
	}
	return f, size, nil
}

func (fr *Reader) peerHeader() error {
	header := make([]byte, len(protocol.ProtocolHeader))
	header[0] = fr.prefix[0]
	if _, err := io.ReadFull(fr.r, header[1:]); err != nil {
		return fmt.Errorf("read protocol header: %w", err)
	}
	if string(header[:4]) != protocol.ProtocolHeader[:4] {
		return fmt.Errorf("%w: frame type %d", ErrFraming, header[0])
	}
	return &HeaderError{Header: header}
}
