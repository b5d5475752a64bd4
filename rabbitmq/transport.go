package rabbitmq

import (
	"io"
	"time"
)

// Transport is the byte stream a Connection runs over. net.Conn satisfies it.
type Transport interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}
