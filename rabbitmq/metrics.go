package rabbitmq

import (
	"sync"
	"sync/atomic"
)

// MetricsCollector collects metrics for client operations
type MetricsCollector interface {
	// Connection metrics
	ConnectionCreated()
	ConnectionClosed()
	ConnectionError(err error)

	// Channel metrics
	ChannelCreated()
	ChannelClosed()
	ChannelError(err error)

	// Message metrics
	MessagePublished()
	MessageConsumed()
	MessageAcked()
	MessageNacked()
	MessageRejected()
	MessageReturned()

	// Publisher confirm metrics
	ConfirmReceived(ack bool)

	// Wire metrics
	FrameSent()
	FrameReceived()
	HeartbeatMissed()

	// TimeoutOccurred is called with the operation name, e.g. "tx.commit"
	TimeoutOccurred(op string)
}

// StandardMetricsCollector provides a thread-safe metrics collector
type StandardMetricsCollector struct {
	connectionsCreated atomic.Int64
	connectionsClosed  atomic.Int64
	connectionErrors   atomic.Int64

	channelsCreated atomic.Int64
	channelsClosed  atomic.Int64
	channelErrors   atomic.Int64

	messagesPublished atomic.Int64
	messagesConsumed  atomic.Int64
	messagesAcked     atomic.Int64
	messagesNacked    atomic.Int64
	messagesRejected  atomic.Int64
	messagesReturned  atomic.Int64

	confirmsAcked  atomic.Int64
	confirmsNacked atomic.Int64

	framesSent       atomic.Int64
	framesReceived   atomic.Int64
	heartbeatsMissed atomic.Int64

	timeoutMu sync.Mutex
	timeouts  map[string]int64
}

// NewStandardMetricsCollector creates a new standard metrics collector
func NewStandardMetricsCollector() *StandardMetricsCollector {
	return &StandardMetricsCollector{timeouts: make(map[string]int64)}
}

// Connection metrics
func (m *StandardMetricsCollector) ConnectionCreated() {
	m.connectionsCreated.Add(1)
}

func (m *StandardMetricsCollector) ConnectionClosed() {
	m.connectionsClosed.Add(1)
}

func (m *StandardMetricsCollector) ConnectionError(err error) {
	m.connectionErrors.Add(1)
}

// Channel metrics
func (m *StandardMetricsCollector) ChannelCreated() {
	m.channelsCreated.Add(1)
}

func (m *StandardMetricsCollector) ChannelClosed() {
	m.channelsClosed.Add(1)
}

func (m *StandardMetricsCollector) ChannelError(err error) {
	m.channelErrors.Add(1)
}

// Message metrics
func (m *StandardMetricsCollector) MessagePublished() {
	m.messagesPublished.Add(1)
}

func (m *StandardMetricsCollector) MessageConsumed() {
	m.messagesConsumed.Add(1)
}

func (m *StandardMetricsCollector) MessageAcked() {
	m.messagesAcked.Add(1)
}

func (m *StandardMetricsCollector) MessageNacked() {
	m.messagesNacked.Add(1)
}

func (m *StandardMetricsCollector) MessageRejected() {
	m.messagesRejected.Add(1)
}

func (m *StandardMetricsCollector) MessageReturned() {
	m.messagesReturned.Add(1)
}

// Confirm metrics
func (m *StandardMetricsCollector) ConfirmReceived(ack bool) {
	if ack {
		m.confirmsAcked.Add(1)
	} else {
		m.confirmsNacked.Add(1)
	}
}

// Wire metrics
func (m *StandardMetricsCollector) FrameSent() {
	m.framesSent.Add(1)
}

func (m *StandardMetricsCollector) FrameReceived() {
	m.framesReceived.Add(1)
}

func (m *StandardMetricsCollector) HeartbeatMissed() {
	m.heartbeatsMissed.Add(1)
}

func (m *StandardMetricsCollector) TimeoutOccurred(op string) {
	m.timeoutMu.Lock()
	defer m.timeoutMu.Unlock()
	if m.timeouts == nil {
		m.timeouts = make(map[string]int64)
	}
	m.timeouts[op]++
}

// Getters for metrics
func (m *StandardMetricsCollector) GetConnectionsCreated() int64 {
	return m.connectionsCreated.Load()
}

func (m *StandardMetricsCollector) GetConnectionsClosed() int64 {
	return m.connectionsClosed.Load()
}

func (m *StandardMetricsCollector) GetConnectionErrors() int64 {
	return m.connectionErrors.Load()
}

func (m *StandardMetricsCollector) GetChannelsCreated() int64 {
	return m.channelsCreated.Load()
}

func (m *StandardMetricsCollector) GetChannelsClosed() int64 {
	return m.channelsClosed.Load()
}

func (m *StandardMetricsCollector) GetChannelErrors() int64 {
	return m.channelErrors.Load()
}

func (m *StandardMetricsCollector) GetMessagesPublished() int64 {
	return m.messagesPublished.Load()
}

func (m *StandardMetricsCollector) GetMessagesConsumed() int64 {
	return m.messagesConsumed.Load()
}

func (m *StandardMetricsCollector) GetMessagesAcked() int64 {
	return m.messagesAcked.Load()
}

func (m *StandardMetricsCollector) GetMessagesNacked() int64 {
	return m.messagesNacked.Load()
}

func (m *StandardMetricsCollector) GetMessagesRejected() int64 {
	return m.messagesRejected.Load()
}

func (m *StandardMetricsCollector) GetMessagesReturned() int64 {
	return m.messagesReturned.Load()
}

func (m *StandardMetricsCollector) GetConfirmsAcked() int64 {
	return m.confirmsAcked.Load()
}

func (m *StandardMetricsCollector) GetConfirmsNacked() int64 {
	return m.confirmsNacked.Load()
}

func (m *StandardMetricsCollector) GetFramesSent() int64 {
	return m.framesSent.Load()
}

func (m *StandardMetricsCollector) GetFramesReceived() int64 {
	return m.framesReceived.Load()
}

func (m *StandardMetricsCollector) GetHeartbeatsMissed() int64 {
	return m.heartbeatsMissed.Load()
}

// GetTimeouts returns the number of timeouts for op
func (m *StandardMetricsCollector) GetTimeouts(op string) int64 {
	m.timeoutMu.Lock()
	defer m.timeoutMu.Unlock()
	return m.timeouts[op]
}

// GetTotalTimeouts returns the number of timeouts across all operations
func (m *StandardMetricsCollector) GetTotalTimeouts() int64 {
	m.timeoutMu.Lock()
	defer m.timeoutMu.Unlock()
	var total int64
	for _, n := range m.timeouts {
		total += n
	}
	return total
}

// NoOpMetricsCollector is a metrics collector that does nothing
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) ConnectionCreated()        {}
func (n *NoOpMetricsCollector) ConnectionClosed()         {}
func (n *NoOpMetricsCollector) ConnectionError(err error) {}
func (n *NoOpMetricsCollector) ChannelCreated()           {}
func (n *NoOpMetricsCollector) ChannelClosed()            {}
func (n *NoOpMetricsCollector) ChannelError(err error)    {}
func (n *NoOpMetricsCollector) MessagePublished()         {}
func (n *NoOpMetricsCollector) MessageConsumed()          {}
func (n *NoOpMetricsCollector) MessageAcked()             {}
func (n *NoOpMetricsCollector) MessageNacked()            {}
func (n *NoOpMetricsCollector) MessageRejected()          {}
func (n *NoOpMetricsCollector) MessageReturned()          {}
func (n *NoOpMetricsCollector) ConfirmReceived(ack bool)  {}
func (n *NoOpMetricsCollector) FrameSent()                {}
func (n *NoOpMetricsCollector) FrameReceived()            {}
func (n *NoOpMetricsCollector) HeartbeatMissed()          {}
func (n *NoOpMetricsCollector) TimeoutOccurred(op string) {}

// NewNoOpMetricsCollector creates a no-op metrics collector
func NewNoOpMetricsCollector() *NoOpMetricsCollector {
	return &NoOpMetricsCollector{}
}

// MultiMetricsCollector forwards every event to each collector in order
type MultiMetricsCollector []MetricsCollector

// NewMultiMetricsCollector combines collectors. Nil entries are skipped.
func NewMultiMetricsCollector(collectors ...MetricsCollector) MultiMetricsCollector {
	m := make(MultiMetricsCollector, 0, len(collectors))
	for _, c := range collectors {
		if c != nil {
			m = append(m, c)
		}
	}
	return m
}

func (m MultiMetricsCollector) each(fn func(MetricsCollector)) {
	for _, c := range m {
		fn(c)
	}
}

func (m MultiMetricsCollector) ConnectionCreated() {
	m.each(func(c MetricsCollector) { c.ConnectionCreated() })
}

func (m MultiMetricsCollector) ConnectionClosed() {
	m.each(func(c MetricsCollector) { c.ConnectionClosed() })
}

func (m MultiMetricsCollector) ConnectionError(err error) {
	m.each(func(c MetricsCollector) { c.ConnectionError(err) })
}

func (m MultiMetricsCollector) ChannelCreated() {
	m.each(func(c MetricsCollector) { c.ChannelCreated() })
}

func (m MultiMetricsCollector) ChannelClosed() {
	m.each(func(c MetricsCollector) { c.ChannelClosed() })
}

func (m MultiMetricsCollector) ChannelError(err error) {
	m.each(func(c MetricsCollector) { c.ChannelError(err) })
}

func (m MultiMetricsCollector) MessagePublished() {
	m.each(func(c MetricsCollector) { c.MessagePublished() })
}

func (m MultiMetricsCollector) MessageConsumed() {
	m.each(func(c MetricsCollector) { c.MessageConsumed() })
}

func (m MultiMetricsCollector) MessageAcked() {
	m.each(func(c MetricsCollector) { c.MessageAcked() })
}

func (m MultiMetricsCollector) MessageNacked() {
	m.each(func(c MetricsCollector) { c.MessageNacked() })
}

func (m MultiMetricsCollector) MessageRejected() {
	m.each(func(c MetricsCollector) { c.MessageRejected() })
}

func (m MultiMetricsCollector) MessageReturned() {
	m.each(func(c MetricsCollector) { c.MessageReturned() })
}

func (m MultiMetricsCollector) ConfirmReceived(ack bool) {
	m.each(func(c MetricsCollector) { c.ConfirmReceived(ack) })
}

func (m MultiMetricsCollector) FrameSent() {
	m.each(func(c MetricsCollector) { c.FrameSent() })
}

func (m MultiMetricsCollector) FrameReceived() {
	m.each(func(c MetricsCollector) { c.FrameReceived() })
}

func (m MultiMetricsCollector) HeartbeatMissed() {
	m.each(func(c MetricsCollector) { c.HeartbeatMissed() })
}

func (m MultiMetricsCollector) TimeoutOccurred(op string) {
	m.each(func(c MetricsCollector) { c.TimeoutOccurred(op) })
}
