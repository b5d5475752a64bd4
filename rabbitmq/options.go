package rabbitmq

import (
	"crypto/tls"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// FactoryOption is a functional option for ConnectionFactory
type FactoryOption func(*ConnectionFactory)

// WithHost sets the host to connect to
func WithHost(host string) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.Host = host
	}
}

// WithPort sets the port to connect to
func WithPort(port int) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.Port = port
	}
}

// WithCredentials sets the username and password
func WithCredentials(username, password string) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.Username = username
		cf.Password = password
	}
}

// WithVHost sets the virtual host
func WithVHost(vhost string) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.VHost = vhost
	}
}

// WithTLS enables TLS with the given configuration
func WithTLS(config *tls.Config) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.TLS = config
	}
}

// WithConnectionTimeout bounds the TCP/TLS dial
func WithConnectionTimeout(timeout time.Duration) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.ConnectionTimeout = timeout
	}
}

// WithHandshakeTimeout bounds the whole AMQP handshake
func WithHandshakeTimeout(timeout time.Duration) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.HandshakeTimeout = timeout
	}
}

// WithReadTimeout sets how long synchronous methods wait for their reply
func WithReadTimeout(timeout time.Duration) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.ReadTimeout = timeout
	}
}

// WithWriteTimeout bounds every transport write
func WithWriteTimeout(timeout time.Duration) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.WriteTimeout = timeout
	}
}

// WithCloseTimeout sets how long Connection.Close waits for close-ok
func WithCloseTimeout(timeout time.Duration) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.CloseTimeout = timeout
	}
}

// WithHeartbeat sets the heartbeat interval
func WithHeartbeat(interval time.Duration) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.Heartbeat = interval
	}
}

// WithChannelMax sets the maximum number of channels
func WithChannelMax(max uint16) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.ChannelMax = max
	}
}

// WithFrameMax sets the maximum frame size
func WithFrameMax(max uint32) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.FrameMax = max
	}
}

// WithDefaultWaitMode sets the wait mode used when a call does not pick one
func WithDefaultWaitMode(mode WaitMode) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.WaitMode = mode
	}
}

// WithInterrupts wires a signal channel into every synchronous wait.
// Typically fed by signal.Notify.
func WithInterrupts(interrupts <-chan os.Signal) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.Interrupts = interrupts
	}
}

// WithClientProperties sets custom client properties
func WithClientProperties(properties Table) FactoryOption {
	return func(cf *ConnectionFactory) {
		if cf.ClientProperties == nil {
			cf.ClientProperties = make(Table)
		}
		for k, v := range properties {
			cf.ClientProperties[k] = v
		}
	}
}

// WithClientProperty sets a single client property
func WithClientProperty(key string, value interface{}) FactoryOption {
	return func(cf *ConnectionFactory) {
		if cf.ClientProperties == nil {
			cf.ClientProperties = make(Table)
		}
		cf.ClientProperties[key] = value
	}
}

// WithErrorHandler sets a custom error handler
func WithErrorHandler(handler ErrorHandler) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.ErrorHandler = handler
	}
}

// WithBlockedHandler sets a custom blocked connection handler
func WithBlockedHandler(handler BlockedHandler) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.BlockedHandler = handler
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(collector MetricsCollector) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.Metrics = collector
	}
}

// WithClock replaces the clock used for heartbeats and waits
func WithClock(clk clock.Clock) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.Clock = clk
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(cf *ConnectionFactory) {
		cf.Logger = logger
	}
}
