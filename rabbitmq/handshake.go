package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/israelio/rabbit-wire/internal/frame"
	"github.com/israelio/rabbit-wire/internal/heartbeat"
	"github.com/israelio/rabbit-wire/internal/protocol"
	"github.com/israelio/rabbit-wire/internal/util"
)

const (
	authMechanism = "PLAIN"
	defaultLocale = "en_US"
)

// handshake performs the AMQP connection handshake. It runs before the
// receive loop starts, so it reads the transport directly.
func (c *Connection) handshake(ctx context.Context) error {
	deadline := c.handshakeDeadline(ctx)

	// Cancelling ctx expires the transport deadlines, which unblocks any read
	// or write in progress.
	stop := context.AfterFunc(ctx, func() {
		now := time.Now()
		_ = c.transport.SetReadDeadline(now)
		_ = c.transport.SetWriteDeadline(now)
	})
	defer stop()

	if err := c.transport.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}

	if err := c.writer.WriteProtocolHeader(deadline); err != nil {
		return c.handshakeError(ctx, "write protocol header", err)
	}

	m, err := c.readHandshakeMethod()
	if err != nil {
		return c.handshakeError(ctx, "read connection.start", err)
	}
	start, ok := m.(*protocol.ConnectionStart)
	if !ok {
		return unexpectedMethod("connection.start", m)
	}
	if err := c.handleStart(start); err != nil {
		return err
	}

	startOk := &protocol.ConnectionStartOk{
		ClientProperties: c.factory.ClientProperties,
		Mechanism:        authMechanism,
		Response:         "\x00" + c.factory.Username + "\x00" + c.factory.Password,
		Locale:           defaultLocale,
	}
	if err := c.writeHandshakeMethod(deadline, startOk); err != nil {
		return c.handshakeError(ctx, "write connection.start-ok", err)
	}

	m, err = c.readHandshakeMethod()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("%w (broker closed the socket after start-ok, check credentials)", err)
		}
		return c.handshakeError(ctx, "read connection.tune", err)
	}
	tune, ok := m.(*protocol.ConnectionTune)
	if !ok {
		return unexpectedMethod("connection.tune", m)
	}
	if err := c.handleTune(tune); err != nil {
		return err
	}

	tuneOk := &protocol.ConnectionTuneOk{
		ChannelMax: c.channelMax,
		FrameMax:   c.frameMax,
		Heartbeat:  uint16(c.heartbeatInterval / time.Second),
	}
	if err := c.writeHandshakeMethod(deadline, tuneOk); err != nil {
		return c.handshakeError(ctx, "write connection.tune-ok", err)
	}
	if err := c.writeHandshakeMethod(deadline, &protocol.ConnectionOpen{VirtualHost: c.factory.VHost}); err != nil {
		return c.handshakeError(ctx, "write connection.open", err)
	}

	m, err = c.readHandshakeMethod()
	if err != nil {
		return c.handshakeError(ctx, "read connection.open-ok", err)
	}
	if _, ok := m.(*protocol.ConnectionOpenOk); !ok {
		return unexpectedMethod("connection.open-ok", m)
	}

	if !stop() {
		return fmt.Errorf("handshake: %w", ctx.Err())
	}
	if err := c.transport.SetReadDeadline(time.Time{}); err != nil {
		return fmt.Errorf("clear read deadline: %w", err)
	}

	c.state.Store(int32(StateOpen))
	c.logger.Info("connection open",
		zap.Uint16("channel_max", c.channelMax),
		zap.Uint32("frame_max", c.frameMax),
		zap.Duration("heartbeat", c.heartbeatInterval))
	return nil
}

func (c *Connection) handshakeDeadline(ctx context.Context) time.Time {
	var deadline time.Time
	if c.factory.HandshakeTimeout > 0 {
		deadline = time.Now().Add(c.factory.HandshakeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}

func (c *Connection) handleStart(start *protocol.ConnectionStart) error {
	if start.VersionMajor != protocol.ProtocolVersionMajor || start.VersionMinor != protocol.ProtocolVersionMinor {
		return fmt.Errorf("%w: broker speaks AMQP %d-%d", ErrProtocolMismatch, start.VersionMajor, start.VersionMinor)
	}
	if !containsWord(start.Mechanisms, authMechanism) {
		return fmt.Errorf("%w: broker does not offer %s (offers %q)", ErrProtocolMismatch, authMechanism, start.Mechanisms)
	}

	c.serverProperties = start.ServerProperties
	return nil
}

// handleTune picks the lower non-zero value of each client and server limit.
// A broker frame-max below the protocol minimum cannot carry a method frame.
func (c *Connection) handleTune(tune *protocol.ConnectionTune) error {
	if tune.FrameMax != 0 && tune.FrameMax < protocol.FrameMinSize {
		return fmt.Errorf("%w: broker frame-max %d is below the minimum %d",
			ErrProtocolMismatch, tune.FrameMax, protocol.FrameMinSize)
	}

	c.channelMax = uint16(negotiate(uint32(c.factory.ChannelMax), uint32(tune.ChannelMax)))
	if c.channelMax == 0 {
		c.channelMax = protocol.DefaultChannelMax
	}

	c.frameMax = negotiate(c.factory.FrameMax, tune.FrameMax)
	if c.frameMax == 0 {
		c.frameMax = protocol.DefaultFrameMax
	}

	seconds := negotiate(uint32(c.factory.Heartbeat/time.Second), uint32(tune.Heartbeat))
	c.heartbeatInterval = time.Duration(seconds) * time.Second

	c.reader.SetMaxFrameSize(c.frameMax)
	c.writer.SetMaxFrameSize(c.frameMax)
	c.ids = util.NewIDAllocator(1, c.channelMax)
	c.heartbeat = heartbeat.New(c.clock, c.heartbeatInterval)
	return nil
}

func negotiate(client, server uint32) uint32 {
	if client == 0 || (server != 0 && server < client) {
		return server
	}
	return client
}

// readHandshakeMethod returns the next method on channel 0, skipping
// heartbeats. A connection.close from the broker is answered and returned
// as an *Error.
func (c *Connection) readHandshakeMethod() (protocol.Method, error) {
	for {
		f, err := c.reader.ReadFrame()
		if err != nil {
			return nil, err
		}

		switch {
		case f.Type == protocol.FrameHeartbeat:
			continue
		case f.Type != protocol.FrameMethod || f.ChannelID != 0:
			return nil, fmt.Errorf("%w: %s during handshake", ErrProtocolViolation, f)
		}

		m, err := f.ParseMethod()
		if err != nil {
			return nil, err
		}

		if cl, ok := m.(*protocol.ConnectionClose); ok {
			closeOk, _ := frame.NewMethodFrame(0, &protocol.ConnectionCloseOk{})
			_ = c.writer.WriteFrames(time.Now().Add(time.Second), closeOk)
			return nil, newServerError(cl.ReplyCode, cl.ReplyText, cl.ClassID, cl.MethodID)
		}
		return m, nil
	}
}

func (c *Connection) writeHandshakeMethod(deadline time.Time, m protocol.Method) error {
	f, err := frame.NewMethodFrame(0, m)
	if err != nil {
		return err
	}
	return c.writer.WriteFrames(deadline, f)
}

func (c *Connection) handshakeError(ctx context.Context, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", step, ctxErr)
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Op: "handshake", Timeout: c.factory.HandshakeTimeout, Err: err}
	}
	return fmt.Errorf("%s: %w", step, err)
}

func unexpectedMethod(want string, got protocol.Method) error {
	return fmt.Errorf("%w: expected %s, got %s", ErrProtocolViolation, want, protocol.MethodName(got))
}

func containsWord(list, word string) bool {
	for _, w := range strings.Fields(list) {
		if w == word {
			return true
		}
	}
	return false
}
