package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/israelio/rabbit-wire/internal/protocol"
)

// Frame is one AMQP frame: [type:1][channel:2][size:4][payload][0xCE]
type Frame struct {
	Type      uint8
	ChannelID uint16
	Payload   []byte
}

// Header is a decoded content header payload
type Header struct {
	ClassID    uint16
	Weight     uint16
	BodySize   uint64
	Properties []byte
}

// class-id, weight and body-size precede the property flags
const headerFixedSize = 2 + 2 + 8

var typeNames = map[uint8]string{
	protocol.FrameMethod:    "METHOD",
	protocol.FrameHeader:    "HEADER",
	protocol.FrameBody:      "BODY",
	protocol.FrameHeartbeat: "HEARTBEAT",
}

// NewMethodFrame encodes m into a method frame
func NewMethodFrame(channelID uint16, m protocol.Method) (*Frame, error) {
	payload, err := protocol.EncodeMethod(m)
	if err != nil {
		return nil, err
	}
	return &Frame{Type: protocol.FrameMethod, ChannelID: channelID, Payload: payload}, nil
}

// NewHeaderFrame builds the content header announcing bodySize bytes of
// content. Weight is always zero.
func NewHeaderFrame(channelID uint16, classID uint16, bodySize uint64, properties []byte) *Frame {
	h := Header{ClassID: classID, BodySize: bodySize, Properties: properties}
	return &Frame{Type: protocol.FrameHeader, ChannelID: channelID, Payload: h.encode()}
}

func (h *Header) encode() []byte {
	buf := make([]byte, headerFixedSize, headerFixedSize+len(h.Properties))
	binary.BigEndian.PutUint16(buf, h.ClassID)
	binary.BigEndian.PutUint16(buf[2:], h.Weight)
	binary.BigEndian.PutUint64(buf[4:], h.BodySize)
	return append(buf, h.Properties...)
}

// NewBodyFrame wraps one slice of content
func NewBodyFrame(channelID uint16, data []byte) *Frame {
	return &Frame{Type: protocol.FrameBody, ChannelID: channelID, Payload: data}
}

// NewHeartbeatFrame returns an empty frame on channel 0
func NewHeartbeatFrame() *Frame {
	return &Frame{Type: protocol.FrameHeartbeat, Payload: []byte{}}
}

func (f *Frame) expect(t uint8) error {
	if f.Type == t {
		return nil
	}
	return fmt.Errorf("%w: expected %s frame, got %s", ErrProtocolViolation, typeName(t), typeName(f.Type))
}

// ParseMethod decodes a method frame payload
func (f *Frame) ParseMethod() (protocol.Method, error) {
	if err := f.expect(protocol.FrameMethod); err != nil {
		return nil, err
	}
	return protocol.DecodeMethod(f.Payload)
}

// ParseHeader decodes a content header frame payload. Properties aliases
// the frame payload.
func (f *Frame) ParseHeader() (*Header, error) {
	if err := f.expect(protocol.FrameHeader); err != nil {
		return nil, err
	}
	p := f.Payload
	if len(p) < headerFixedSize {
		return nil, fmt.Errorf("%w: content header of %d bytes", ErrFraming, len(p))
	}
	return &Header{
		ClassID:    binary.BigEndian.Uint16(p),
		Weight:     binary.BigEndian.Uint16(p[2:]),
		BodySize:   binary.BigEndian.Uint64(p[4:]),
		Properties: p[headerFixedSize:],
	}, nil
}

// Size is the number of bytes the frame occupies on the wire
func (f *Frame) Size() int {
	return protocol.FrameOverhead + len(f.Payload)
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame{type=%s, channel=%d, size=%d}", typeName(f.Type), f.ChannelID, len(f.Payload))
}

func typeName(t uint8) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", t)
}
