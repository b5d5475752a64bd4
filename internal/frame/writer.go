package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/israelio/rabbit-wire/internal/protocol"
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Writer writes AMQP frames to a transport. All frames passed to one call are
// encoded into a single buffer and handed to the transport in one Write, so
// frames from concurrent callers never interleave.
type Writer struct {
	w        io.Writer
	mu       sync.Mutex
	maxFrame uint32
	buf      bytes.Buffer
}

// NewWriter creates a frame writer. If w has SetWriteDeadline, each call's
// deadline is applied to it.
func NewWriter(w io.Writer, maxFrameSize uint32) *Writer {
	if maxFrameSize == 0 {
		maxFrameSize = protocol.FrameMinSize
	}

	return &Writer{
		w:        w,
		maxFrame: maxFrameSize,
	}
}

// WriteFrames writes frames as one unit. A zero deadline means no deadline.
// Oversized payloads fail with ErrPayloadTooLarge before anything is written;
// transport failures are returned as *WriteError.
func (fw *Writer) WriteFrames(deadline time.Time, frames ...*Frame) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	return fw.writeLocked(deadline, frames)
}

// TryWriteFrames is WriteFrames that gives up immediately if another write is
// in progress. It reports whether the frames were attempted.
func (fw *Writer) TryWriteFrames(deadline time.Time, frames ...*Frame) (bool, error) {
	if !fw.mu.TryLock() {
		return false, nil
	}
	defer fw.mu.Unlock()

	return true, fw.writeLocked(deadline, frames)
}

func (fw *Writer) writeLocked(deadline time.Time, frames []*Frame) error {
	limit := int(fw.maxFrame - protocol.FrameOverhead)
	for _, f := range frames {
		if len(f.Payload) > limit {
			return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(f.Payload), limit)
		}
	}

	fw.buf.Reset()
	var header [protocol.FrameHeaderSize]byte
	for _, f := range frames {
		header[0] = f.Type
		binary.BigEndian.PutUint16(header[1:3], f.ChannelID)
		binary.BigEndian.PutUint32(header[3:7], uint32(len(f.Payload)))

		fw.buf.Write(header[:])
		fw.buf.Write(f.Payload)
		fw.buf.WriteByte(protocol.FrameEnd)
	}

	return fw.flush(deadline)
}

// WriteProtocolHeader writes the AMQP protocol header
func (fw *Writer) WriteProtocolHeader(deadline time.Time) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.buf.Reset()
	fw.buf.WriteString(protocol.ProtocolHeader)
	return fw.flush(deadline)
}

func (fw *Writer) flush(deadline time.Time) error {
	d, hasDeadline := fw.w.(writeDeadliner)
	if hasDeadline {
		if err := d.SetWriteDeadline(deadline); err != nil {
			return &WriteError{Total: fw.buf.Len(), Err: err}
		}
	}

	total := fw.buf.Len()
	n, err := fw.w.Write(fw.buf.Bytes())
	if err == nil && n < total {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &WriteError{Written: n, Total: total, Err: err}
	}
	return nil
}

// SetMaxFrameSize updates the frame-max limit
func (fw *Writer) SetMaxFrameSize(size uint32) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if size > 0 {
		fw.maxFrame = size
	}
}
