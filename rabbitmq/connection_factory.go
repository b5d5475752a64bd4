package rabbitmq

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/israelio/rabbit-wire/internal/protocol"
)

// ConnectionFactory creates and configures AMQP connections
type ConnectionFactory struct {
	// Connection settings
	Host     string
	Port     int
	VHost    string
	Username string
	Password string

	// TLS configuration
	TLS *tls.Config

	// Timeouts. ReadTimeout is the default reply deadline for synchronous
	// methods, WriteTimeout bounds each transport write and CloseTimeout
	// bounds the wait for connection.close-ok. Zero disables a timeout.
	ConnectionTimeout time.Duration
	HandshakeTimeout  time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	CloseTimeout      time.Duration

	// AMQP parameters
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  time.Duration

	// Waits
	WaitMode   WaitMode
	Interrupts <-chan os.Signal

	// Client properties sent to server
	ClientProperties Table

	// Custom handlers
	ErrorHandler   ErrorHandler
	BlockedHandler BlockedHandler

	Metrics MetricsCollector
	Clock   clock.Clock
	Logger  *zap.Logger
}

// BlockedHandler receives connection blocked/unblocked events
type BlockedHandler interface {
	OnBlocked(conn *Connection, reason string)
	OnUnblocked(conn *Connection)
}

// NewConnectionFactory creates a new ConnectionFactory with sensible defaults
func NewConnectionFactory(opts ...FactoryOption) *ConnectionFactory {
	cf := &ConnectionFactory{
		Host:              "localhost",
		Port:              5672,
		VHost:             "/",
		Username:          "guest",
		Password:          "guest",
		ConnectionTimeout: 60 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Second,
		CloseTimeout:      10 * time.Second,
		Heartbeat:         10 * time.Second,
		ChannelMax:        0, // 0 = no limit (server decides)
		FrameMax:          0, // 0 = no limit (server decides)
		ClientProperties:  defaultClientProperties(),
	}

	for _, opt := range opts {
		opt(cf)
	}

	if cf.Logger == nil {
		cf.Logger = zap.NewNop()
	}
	if cf.ErrorHandler == nil {
		cf.ErrorHandler = &DefaultErrorHandler{Logger: cf.Logger}
	}
	if cf.Metrics == nil {
		cf.Metrics = &NoOpMetricsCollector{}
	}
	if cf.Clock == nil {
		cf.Clock = clock.New()
	}

	return cf
}

// NewConnection dials the broker and performs the handshake
func (cf *ConnectionFactory) NewConnection(ctx context.Context) (*Connection, error) {
	dialCtx := ctx
	if cf.ConnectionTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cf.ConnectionTimeout)
		defer cancel()
	}

	netConn, err := cf.dial(dialCtx)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	conn, err := cf.connect(ctx, netConn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Connect runs the AMQP handshake over an already established transport and
// returns an open connection. The transport is closed if the handshake fails.
func Connect(ctx context.Context, transport Transport, opts ...FactoryOption) (*Connection, error) {
	cf := NewConnectionFactory(opts...)
	if err := cf.Validate(); err != nil {
		return nil, err
	}
	return cf.connect(ctx, transport)
}

func (cf *ConnectionFactory) connect(ctx context.Context, transport Transport) (*Connection, error) {
	conn := newConnection(cf, transport)

	if err := conn.handshake(ctx); err != nil {
		_ = transport.Close()
		cf.Logger.Warn("handshake failed", zap.Error(err))
		return nil, fmt.Errorf("handshake failed: %w", err)
	}

	conn.start()
	return conn, nil
}

// dial establishes a network connection (TCP or TLS)
func (cf *ConnectionFactory) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(cf.Host, strconv.Itoa(cf.Port))

	dialer := &net.Dialer{
		Timeout: cf.ConnectionTimeout,
	}

	if cf.TLS != nil {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: cf.TLS}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}

	return dialer.DialContext(ctx, "tcp", addr)
}

// Validate validates the ConnectionFactory configuration
func (cf *ConnectionFactory) Validate() error {
	if cf.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	if cf.Port <= 0 || cf.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cf.Port)
	}

	if cf.VHost == "" {
		return fmt.Errorf("vhost cannot be empty")
	}

	if cf.Username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	timeouts := []struct {
		name  string
		value time.Duration
	}{
		{"connection timeout", cf.ConnectionTimeout},
		{"handshake timeout", cf.HandshakeTimeout},
		{"read timeout", cf.ReadTimeout},
		{"write timeout", cf.WriteTimeout},
		{"close timeout", cf.CloseTimeout},
		{"heartbeat", cf.Heartbeat},
	}
	for _, t := range timeouts {
		if t.value < 0 {
			return fmt.Errorf("%s cannot be negative, got %v", t.name, t.value)
		}
	}

	// 0 means server decides, 4096 is the protocol minimum
	if cf.FrameMax != 0 && cf.FrameMax < protocol.FrameMinSize {
		return fmt.Errorf("frame max must be 0 or >= %d, got %d", protocol.FrameMinSize, cf.FrameMax)
	}

	if cf.WaitMode != WaitInterruptible && cf.WaitMode != WaitUninterruptible {
		return fmt.Errorf("unknown wait mode %d", cf.WaitMode)
	}

	return nil
}

func defaultClientProperties() Table {
	return Table{
		"product":  "rabbit-wire",
		"version":  "1.0.0",
		"platform": "Go",
		"capabilities": Table{
			"publisher_confirms":           true,
			"exchange_exchange_bindings":   true,
			"basic.nack":                   true,
			"consumer_cancel_notify":       true,
			"connection.blocked":           true,
			"authentication_failure_close": true,
		},
	}
}
