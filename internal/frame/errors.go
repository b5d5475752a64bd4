package frame

import (
	"errors"
	"fmt"
	"net"

	"github.com/israelio/rabbit-wire/internal/protocol"
)

var (
	// ErrFraming is returned for a bad end marker, an unknown frame type or an
	// oversized frame. The stream cannot be trusted afterwards.
	ErrFraming = errors.New("framing error")

	// ErrPayloadTooLarge is returned before anything is written when a frame
	// payload does not fit the negotiated frame-max.
	ErrPayloadTooLarge = errors.New("frame payload too large")

	// ErrProtocolViolation is returned for frames that arrive out of order,
	// such as a body frame without a content header.
	ErrProtocolViolation = errors.New("protocol violation")
)

// WriteError describes a failed transport write.
type WriteError struct {
	Written int
	Total   int
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write frames: %d of %d bytes written: %v", e.Written, e.Total, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Partial reports whether some but not all bytes reached the transport. The
// peer then holds a torn frame and the stream is out of sync.
func (e *WriteError) Partial() bool {
	return e.Written > 0 && e.Written < e.Total
}

// Timeout reports whether the write stopped at its deadline.
func (e *WriteError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// HeaderError is returned when the peer answers with its own protocol header
// instead of a frame, which is how a broker rejects our protocol version.
type HeaderError struct {
	Header []byte
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("peer rejected protocol version, offered %q", e.Header)
}

// Is matches protocol.ErrMismatch.
func (e *HeaderError) Is(target error) bool {
	return target == protocol.ErrMismatch
}
