package rabbitmq

import (
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/israelio/rabbit-wire/internal/frame"
	"github.com/israelio/rabbit-wire/internal/protocol"
)

const brokerPatience = 2 * time.Second

var defaultTune = protocol.ConnectionTune{ChannelMax: 16, FrameMax: 131072, Heartbeat: 0}

// fakeBroker is the server end of an in-memory pipe. It reads only when a
// test asks it to, so a test controls exactly when client writes block.
type fakeBroker struct {
	t      *testing.T
	conn   net.Conn
	reader *frame.Reader
	writer *frame.Writer
	tune   protocol.ConnectionTune
}

func newFakeBroker(t *testing.T, conn net.Conn, tune protocol.ConnectionTune) *fakeBroker {
	return &fakeBroker{
		t:      t,
		conn:   conn,
		reader: frame.NewReader(conn, protocol.FrameMinSize),
		writer: frame.NewWriter(conn, protocol.FrameMinSize),
		tune:   tune,
	}
}

// handshake plays the broker side of connection negotiation. It runs off the
// test goroutine, so it returns errors instead of failing the test.
func (b *fakeBroker) handshake() error {
	_ = b.conn.SetReadDeadline(time.Now().Add(brokerPatience))

	header := make([]byte, len(protocol.ProtocolHeader))
	if _, err := io.ReadFull(b.conn, header); err != nil {
		return fmt.Errorf("read protocol header: %w", err)
	}
	if string(header) != protocol.ProtocolHeader {
		return fmt.Errorf("unexpected protocol header %q", header)
	}

	steps := []struct {
		send   protocol.Method
		expect []methodKey
	}{
		{
			send: &protocol.ConnectionStart{
				VersionMajor:     protocol.ProtocolVersionMajor,
				VersionMinor:     protocol.ProtocolVersionMinor,
				ServerProperties: Table{"product": "fake-broker"},
				Mechanisms:       "PLAIN AMQPLAIN",
				Locales:          "en_US",
			},
			expect: []methodKey{{protocol.ClassConnection, protocol.MethodConnectionStartOk}},
		},
		{
			send: &b.tune,
			expect: []methodKey{
				{protocol.ClassConnection, protocol.MethodConnectionTuneOk},
				{protocol.ClassConnection, protocol.MethodConnectionOpen},
			},
		},
		{send: &protocol.ConnectionOpenOk{}},
	}

	for _, step := range steps {
		f, err := frame.NewMethodFrame(0, step.send)
		if err != nil {
			return err
		}
		if err := b.writer.WriteFrames(time.Now().Add(brokerPatience), f); err != nil {
			return err
		}
		for _, want := range step.expect {
			f, err := b.reader.ReadFrame()
			if err != nil {
				return err
			}
			m, err := f.ParseMethod()
			if err != nil {
				return err
			}
			if keyOf(m) != want {
				return fmt.Errorf("handshake: got %s", protocol.MethodName(m))
			}
		}
	}

	b.reader.SetMaxFrameSize(b.tune.FrameMax)
	b.writer.SetMaxFrameSize(b.tune.FrameMax)
	return nil
}

// next reads one frame, skipping heartbeats
func (b *fakeBroker) next() *frame.Frame {
	b.t.Helper()
	for {
		require.NoError(b.t, b.conn.SetReadDeadline(time.Now().Add(brokerPatience)))
		f, err := b.reader.ReadFrame()
		require.NoError(b.t, err, "broker read")
		if f.Type != protocol.FrameHeartbeat {
			return f
		}
	}
}

// expectAny reads the next method frame
func (b *fakeBroker) expectAny() (uint16, protocol.Method) {
	b.t.Helper()
	f := b.next()
	require.Equal(b.t, uint8(protocol.FrameMethod), f.Type, "expected a method frame, got %s", f)
	m, err := f.ParseMethod()
	require.NoError(b.t, err)
	return f.ChannelID, m
}

// expect reads the next method frame and requires it to be a T on channel id
func expect[T protocol.Method](b *fakeBroker, id uint16) T {
	b.t.Helper()
	ch, m := b.expectAny()
	require.Equal(b.t, id, ch, "channel of %s", protocol.MethodName(m))
	v, ok := m.(T)
	require.True(b.t, ok, "unexpected %s", protocol.MethodName(m))
	return v
}

// expectContent reads a content method with its header and body
func (b *fakeBroker) expectContent(id uint16) (protocol.Method, Properties, []byte) {
	b.t.Helper()
	ch, m := b.expectAny()
	require.Equal(b.t, id, ch)
	require.True(b.t, protocol.HasContent(m), "unexpected %s", protocol.MethodName(m))

	h, err := b.next().ParseHeader()
	require.NoError(b.t, err)
	props, err := DecodeProperties(h.Properties)
	require.NoError(b.t, err)

	body := make([]byte, 0, h.BodySize)
	for uint64(len(body)) < h.BodySize {
		f := b.next()
		require.Equal(b.t, uint8(protocol.FrameBody), f.Type)
		body = append(body, f.Payload...)
	}
	return m, props, body
}

// send writes methods on channel id. Safe to call from any goroutine.
func (b *fakeBroker) send(id uint16, methods ...protocol.Method) {
	frames := make([]*frame.Frame, 0, len(methods))
	for _, m := range methods {
		f, err := frame.NewMethodFrame(id, m)
		if !assert.NoError(b.t, err) {
			return
		}
		frames = append(frames, f)
	}
	assert.NoError(b.t, b.writer.WriteFrames(time.Now().Add(brokerPatience), frames...))
}

// sendContent writes a content method followed by its header and body
func (b *fakeBroker) sendContent(id uint16, m protocol.Method, props Properties, body []byte) {
	b.t.Helper()
	mf, err := frame.NewMethodFrame(id, m)
	require.NoError(b.t, err)
	encoded, err := EncodeProperties(props)
	require.NoError(b.t, err)

	frames := []*frame.Frame{mf, frame.NewHeaderFrame(id, protocol.ClassBasic, uint64(len(body)), encoded)}
	frames = append(frames, frame.SplitBody(id, body, b.tune.FrameMax)...)
	require.NoError(b.t, b.writer.WriteFrames(time.Now().Add(brokerPatience), frames...))
}

// sendRaw writes bytes as they are
func (b *fakeBroker) sendRaw(p []byte) {
	b.t.Helper()
	require.NoError(b.t, b.conn.SetWriteDeadline(time.Now().Add(brokerPatience)))
	_, err := b.conn.Write(p)
	require.NoError(b.t, err)
}

func (b *fakeBroker) close() {
	_ = b.conn.Close()
}

// dialFake connects a client to a fresh fake broker. The pipe is closed and
// the receive loop drained when the test ends.
func dialFake(t *testing.T, opts ...FactoryOption) (*Connection, *fakeBroker) {
	return dialFakeTune(t, defaultTune, opts...)
}

func dialFakeTune(t *testing.T, tune protocol.ConnectionTune, opts ...FactoryOption) (*Connection, *fakeBroker) {
	t.Helper()

	client, server := net.Pipe()
	b := newFakeBroker(t, server, tune)

	errc := make(chan error, 1)
	go func() { errc <- b.handshake() }()

	base := []FactoryOption{
		WithHeartbeat(0),
		WithReadTimeout(time.Second),
		WithWriteTimeout(time.Second),
		WithCloseTimeout(time.Second),
		WithLogger(zap.NewNop()),
	}
	conn, err := Connect(context.Background(), client, append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, <-errc)

	t.Cleanup(func() {
		b.close()
		select {
		case <-conn.done:
		case <-time.After(brokerPatience):
			t.Error("receive loop still running after the pipe closed")
		}
	})
	return conn, b
}

// openChannel opens a channel, answering channel.open from the broker side
func openChannel(t *testing.T, conn *Connection, b *fakeBroker) *Channel {
	t.Helper()

	res := async(func() (*Channel, error) { return conn.NewChannel() })
	id, m := b.expectAny()
	require.IsType(t, &protocol.ChannelOpen{}, m)
	b.send(id, &protocol.ChannelOpenOk{})

	ch, err := await(t, res)
	require.NoError(t, err)
	require.Equal(t, id, ch.GetChannelID())
	return ch
}

type result[T any] struct {
	val T
	err error
}

// async runs fn on its own goroutine
func async[T any](fn func() (T, error)) <-chan result[T] {
	c := make(chan result[T], 1)
	go func() {
		v, err := fn()
		c <- result[T]{v, err}
	}()
	return c
}

func asyncErr(fn func() error) <-chan result[struct{}] {
	return async(func() (struct{}, error) { return struct{}{}, fn() })
}

func await[T any](t *testing.T, c <-chan result[T]) (T, error) {
	t.Helper()
	select {
	case r := <-c:
		return r.val, r.err
	case <-time.After(brokerPatience):
		t.Fatal("operation did not return")
	}
	var zero T
	return zero, nil
}

// stillRunning reports whether c produces nothing within d
func stillRunning[T any](c <-chan result[T], d time.Duration) bool {
	select {
	case <-c:
		return false
	case <-time.After(d):
		return true
	}
}
