package frame

import (
	"fmt"

	"github.com/israelio/rabbit-wire/internal/protocol"
)

// BodyFrameCount returns how many body frames a body of n bytes needs under
// frameMax. An empty body needs none.
func BodyFrameCount(n int, frameMax uint32) int {
	if n == 0 {
		return 0
	}
	chunk := bodyChunkSize(frameMax)
	return (n + chunk - 1) / chunk
}

// SplitBody cuts body into frames of at most frameMax-8 payload bytes
func SplitBody(channelID uint16, body []byte, frameMax uint32) []*Frame {
	chunk := bodyChunkSize(frameMax)
	frames := make([]*Frame, 0, BodyFrameCount(len(body), frameMax))

	for start := 0; start < len(body); start += chunk {
		end := start + chunk
		if end > len(body) {
			end = len(body)
		}
		frames = append(frames, NewBodyFrame(channelID, body[start:end]))
	}

	return frames
}

func bodyChunkSize(frameMax uint32) int {
	if frameMax == 0 {
		frameMax = protocol.DefaultFrameMax
	}
	return int(frameMax) - protocol.FrameOverhead
}

// MaxBodySize is the largest body a content header may announce. Larger
// declarations are a protocol violation.
const MaxBodySize = 1 << 31

// bodyPrealloc bounds the buffer reserved before body frames arrive
const bodyPrealloc = 1 << 17

// Message is a content-bearing method with its header and body reassembled
type Message struct {
	Method     protocol.Method
	ClassID    uint16
	Properties []byte
	Body       []byte
}

// Assembler rebuilds one in-flight message per channel from a content method,
// its header frame and zero or more body frames. Any frame out of that order
// is a protocol violation.
type Assembler struct {
	method    protocol.Method
	header    *Header
	body      []byte
	remaining uint64
}

// Busy reports whether a message is partially assembled
func (a *Assembler) Busy() bool {
	return a.method != nil
}

// Start begins a message for a content-bearing method
func (a *Assembler) Start(m protocol.Method) error {
	if a.Busy() {
		return fmt.Errorf("%w: %s arrived while %s content was incomplete",
			ErrProtocolViolation, protocol.MethodName(m), protocol.MethodName(a.method))
	}
	a.method = m
	return nil
}

// AddHeader records the content header. The message is returned when the
// declared body size is zero.
func (a *Assembler) AddHeader(h *Header) (*Message, error) {
	if !a.Busy() {
		return nil, fmt.Errorf("%w: content header without a content method", ErrProtocolViolation)
	}
	if a.header != nil {
		return nil, fmt.Errorf("%w: second content header for %s", ErrProtocolViolation, protocol.MethodName(a.method))
	}
	if classID, _ := a.method.ID(); h.ClassID != classID {
		return nil, fmt.Errorf("%w: content header class %d does not match method class %d",
			ErrProtocolViolation, h.ClassID, classID)
	}

	if h.BodySize > MaxBodySize {
		return nil, fmt.Errorf("%w: content header declares %d body bytes, limit %d",
			ErrProtocolViolation, h.BodySize, uint64(MaxBodySize))
	}

	a.header = h
	a.remaining = h.BodySize
	if h.BodySize == 0 {
		return a.finish(), nil
	}
	a.body = make([]byte, 0, min(h.BodySize, bodyPrealloc))
	return nil, nil
}

// AddBody appends a body frame payload. The message is returned once exactly
// the declared number of bytes has arrived.
func (a *Assembler) AddBody(data []byte) (*Message, error) {
	if a.header == nil {
		return nil, fmt.Errorf("%w: body frame without a content header", ErrProtocolViolation)
	}
	if uint64(len(data)) > a.remaining {
		return nil, fmt.Errorf("%w: body overruns declared size %d", ErrProtocolViolation, a.header.BodySize)
	}

	a.body = append(a.body, data...)
	a.remaining -= uint64(len(data))
	if a.remaining > 0 {
		return nil, nil
	}
	return a.finish(), nil
}

// Reset discards any partial message
func (a *Assembler) Reset() {
	*a = Assembler{}
}

func (a *Assembler) finish() *Message {
	msg := &Message{
		Method:     a.method,
		ClassID:    a.header.ClassID,
		Properties: a.header.Properties,
		Body:       a.body,
	}
	if msg.Body == nil {
		msg.Body = []byte{}
	}
	a.Reset()
	return msg
}
