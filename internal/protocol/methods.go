package protocol

// Argument structs for every AMQP 0-9-1 method. Field order is wire order;
// reserved fields are skipped on read and written as zero values.

// connection class

// ConnectionStart is connection.start
type ConnectionStart struct {
	VersionMajor     uint8
	VersionMinor     uint8
	ServerProperties Table
	Mechanisms       string
	Locales          string
}

func (*ConnectionStart) ID() (uint16, uint16) { return ClassConnection, MethodConnectionStart }

func (m *ConnectionStart) Read(r *ArgReader) {
	m.VersionMajor = r.Octet()
	m.VersionMinor = r.Octet()
	m.ServerProperties = r.Table()
	m.Mechanisms = r.LongStr()
	m.Locales = r.LongStr()
}

func (m *ConnectionStart) Write(w *ArgWriter) {
	w.Octet(m.VersionMajor)
	w.Octet(m.VersionMinor)
	w.Table(m.ServerProperties)
	w.LongStr(m.Mechanisms)
	w.LongStr(m.Locales)
}

// ConnectionStartOk is connection.start-ok
type ConnectionStartOk struct {
	ClientProperties Table
	Mechanism        string
	Response         string
	Locale           string
}

func (*ConnectionStartOk) ID() (uint16, uint16) { return ClassConnection, MethodConnectionStartOk }

func (m *ConnectionStartOk) Read(r *ArgReader) {
	m.ClientProperties = r.Table()
	m.Mechanism = r.ShortStr()
	m.Response = r.LongStr()
	m.Locale = r.ShortStr()
}

func (m *ConnectionStartOk) Write(w *ArgWriter) {
	w.Table(m.ClientProperties)
	w.ShortStr(m.Mechanism)
	w.LongStr(m.Response)
	w.ShortStr(m.Locale)
}

// ConnectionSecure is connection.secure
type ConnectionSecure struct {
	Challenge string
}

func (*ConnectionSecure) ID() (uint16, uint16) { return ClassConnection, MethodConnectionSecure }

func (m *ConnectionSecure) Read(r *ArgReader) {
	m.Challenge = r.LongStr()
}

func (m *ConnectionSecure) Write(w *ArgWriter) {
	w.LongStr(m.Challenge)
}

// ConnectionSecureOk is connection.secure-ok
type ConnectionSecureOk struct {
	Response string
}

func (*ConnectionSecureOk) ID() (uint16, uint16) { return ClassConnection, MethodConnectionSecureOk }

func (m *ConnectionSecureOk) Read(r *ArgReader) {
	m.Response = r.LongStr()
}

func (m *ConnectionSecureOk) Write(w *ArgWriter) {
	w.LongStr(m.Response)
}

// ConnectionTune is connection.tune
type ConnectionTune struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (*ConnectionTune) ID() (uint16, uint16) { return ClassConnection, MethodConnectionTune }

func (m *ConnectionTune) Read(r *ArgReader) {
	m.ChannelMax = r.Short()
	m.FrameMax = r.Long()
	m.Heartbeat = r.Short()
}

func (m *ConnectionTune) Write(w *ArgWriter) {
	w.Short(m.ChannelMax)
	w.Long(m.FrameMax)
	w.Short(m.Heartbeat)
}

// ConnectionTuneOk is connection.tune-ok
type ConnectionTuneOk struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (*ConnectionTuneOk) ID() (uint16, uint16) { return ClassConnection, MethodConnectionTuneOk }

func (m *ConnectionTuneOk) Read(r *ArgReader) {
	m.ChannelMax = r.Short()
	m.FrameMax = r.Long()
	m.Heartbeat = r.Short()
}

func (m *ConnectionTuneOk) Write(w *ArgWriter) {
	w.Short(m.ChannelMax)
	w.Long(m.FrameMax)
	w.Short(m.Heartbeat)
}

// ConnectionOpen is connection.open
type ConnectionOpen struct {
	VirtualHost string
}

func (*ConnectionOpen) ID() (uint16, uint16) { return ClassConnection, MethodConnectionOpen }

func (m *ConnectionOpen) Read(r *ArgReader) {
	m.VirtualHost = r.ShortStr()
	r.ShortStr()
	r.Bit()
}

func (m *ConnectionOpen) Write(w *ArgWriter) {
	w.ShortStr(m.VirtualHost)
	w.ShortStr("")
	w.Bit(false)
}

// ConnectionOpenOk is connection.open-ok
type ConnectionOpenOk struct{}

func (*ConnectionOpenOk) ID() (uint16, uint16) { return ClassConnection, MethodConnectionOpenOk }

func (*ConnectionOpenOk) Read(r *ArgReader) {
	r.ShortStr()
}

func (*ConnectionOpenOk) Write(w *ArgWriter) {
	w.ShortStr("")
}

// ConnectionClose is connection.close
type ConnectionClose struct {
	ReplyCode uint16
	ReplyText string
	ClassID   uint16
	MethodID  uint16
}

func (*ConnectionClose) ID() (uint16, uint16) { return ClassConnection, MethodConnectionClose }

func (m *ConnectionClose) Read(r *ArgReader) {
	m.ReplyCode = r.Short()
	m.ReplyText = r.ShortStr()
	m.ClassID = r.Short()
	m.MethodID = r.Short()
}

func (m *ConnectionClose) Write(w *ArgWriter) {
	w.Short(m.ReplyCode)
	w.ShortStr(m.ReplyText)
	w.Short(m.ClassID)
	w.Short(m.MethodID)
}

// ConnectionCloseOk is connection.close-ok
type ConnectionCloseOk struct{}

func (*ConnectionCloseOk) ID() (uint16, uint16) { return ClassConnection, MethodConnectionCloseOk }

func (*ConnectionCloseOk) Read(*ArgReader)  {}
func (*ConnectionCloseOk) Write(*ArgWriter) {}

// ConnectionBlocked is connection.blocked
type ConnectionBlocked struct {
	Reason string
}

func (*ConnectionBlocked) ID() (uint16, uint16) { return ClassConnection, MethodConnectionBlocked }

func (m *ConnectionBlocked) Read(r *ArgReader) {
	m.Reason = r.ShortStr()
}

func (m *ConnectionBlocked) Write(w *ArgWriter) {
	w.ShortStr(m.Reason)
}

// ConnectionUnblocked is connection.unblocked
type ConnectionUnblocked struct{}

func (*ConnectionUnblocked) ID() (uint16, uint16) { return ClassConnection, MethodConnectionUnblocked }

func (*ConnectionUnblocked) Read(*ArgReader)  {}
func (*ConnectionUnblocked) Write(*ArgWriter) {}

// channel class

// ChannelOpen is channel.open
type ChannelOpen struct{}

func (*ChannelOpen) ID() (uint16, uint16) { return ClassChannel, MethodChannelOpen }

func (*ChannelOpen) Read(r *ArgReader) {
	r.ShortStr()
}

func (*ChannelOpen) Write(w *ArgWriter) {
	w.ShortStr("")
}

// ChannelOpenOk is channel.open-ok
type ChannelOpenOk struct{}

func (*ChannelOpenOk) ID() (uint16, uint16) { return ClassChannel, MethodChannelOpenOk }

func (*ChannelOpenOk) Read(r *ArgReader) {
	r.LongStr()
}

func (*ChannelOpenOk) Write(w *ArgWriter) {
	w.LongStr("")
}

// ChannelFlow is channel.flow
type ChannelFlow struct {
	Active bool
}

func (*ChannelFlow) ID() (uint16, uint16) { return ClassChannel, MethodChannelFlow }

func (m *ChannelFlow) Read(r *ArgReader) {
	m.Active = r.Bit()
}

func (m *ChannelFlow) Write(w *ArgWriter) {
	w.Bit(m.Active)
}

// ChannelFlowOk is channel.flow-ok
type ChannelFlowOk struct {
	Active bool
}

func (*ChannelFlowOk) ID() (uint16, uint16) { return ClassChannel, MethodChannelFlowOk }

func (m *ChannelFlowOk) Read(r *ArgReader) {
	m.Active = r.Bit()
}

func (m *ChannelFlowOk) Write(w *ArgWriter) {
	w.Bit(m.Active)
}

// ChannelClose is channel.close
type ChannelClose struct {
	ReplyCode uint16
	ReplyText string
	ClassID   uint16
	MethodID  uint16
}

func (*ChannelClose) ID() (uint16, uint16) { return ClassChannel, MethodChannelClose }

func (m *ChannelClose) Read(r *ArgReader) {
	m.ReplyCode = r.Short()
	m.ReplyText = r.ShortStr()
	m.ClassID = r.Short()
	m.MethodID = r.Short()
}

func (m *ChannelClose) Write(w *ArgWriter) {
	w.Short(m.ReplyCode)
	w.ShortStr(m.ReplyText)
	w.Short(m.ClassID)
	w.Short(m.MethodID)
}

// ChannelCloseOk is channel.close-ok
type ChannelCloseOk struct{}

func (*ChannelCloseOk) ID() (uint16, uint16) { return ClassChannel, MethodChannelCloseOk }

func (*ChannelCloseOk) Read(*ArgReader)  {}
func (*ChannelCloseOk) Write(*ArgWriter) {}

// exchange class

// ExchangeDeclare is exchange.declare
type ExchangeDeclare struct {
	Exchange   string
	Type       string
	Passive    bool
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Arguments  Table
}

func (*ExchangeDeclare) ID() (uint16, uint16) { return ClassExchange, MethodExchangeDeclare }

func (m *ExchangeDeclare) Read(r *ArgReader) {
	r.Short()
	m.Exchange = r.ShortStr()
	m.Type = r.ShortStr()
	m.Passive = r.Bit()
	m.Durable = r.Bit()
	m.AutoDelete = r.Bit()
	m.Internal = r.Bit()
	m.NoWait = r.Bit()
	m.Arguments = r.Table()
}

func (m *ExchangeDeclare) Write(w *ArgWriter) {
	w.Short(0)
	w.ShortStr(m.Exchange)
	w.ShortStr(m.Type)
	w.Bit(m.Passive)
	w.Bit(m.Durable)
	w.Bit(m.AutoDelete)
	w.Bit(m.Internal)
	w.Bit(m.NoWait)
	w.Table(m.Arguments)
}

func (m *ExchangeDeclare) noWait() bool { return m.NoWait }

// ExchangeDeclareOk is exchange.declare-ok
type ExchangeDeclareOk struct{}

func (*ExchangeDeclareOk) ID() (uint16, uint16) { return ClassExchange, MethodExchangeDeclareOk }

func (*ExchangeDeclareOk) Read(*ArgReader)  {}
func (*ExchangeDeclareOk) Write(*ArgWriter) {}

// ExchangeDelete is exchange.delete
type ExchangeDelete struct {
	Exchange string
	IfUnused bool
	NoWait   bool
}

func (*ExchangeDelete) ID() (uint16, uint16) { return ClassExchange, MethodExchangeDelete }

func (m *ExchangeDelete) Read(r *ArgReader) {
	r.Short()
	m.Exchange = r.ShortStr()
	m.IfUnused = r.Bit()
	m.NoWait = r.Bit()
}

func (m *ExchangeDelete) Write(w *ArgWriter) {
	w.Short(0)
	w.ShortStr(m.Exchange)
	w.Bit(m.IfUnused)
	w.Bit(m.NoWait)
}

func (m *ExchangeDelete) noWait() bool { return m.NoWait }

// ExchangeDeleteOk is exchange.delete-ok
type ExchangeDeleteOk struct{}

func (*ExchangeDeleteOk) ID() (uint16, uint16) { return ClassExchange, MethodExchangeDeleteOk }

func (*ExchangeDeleteOk) Read(*ArgReader)  {}
func (*ExchangeDeleteOk) Write(*ArgWriter) {}

// ExchangeBind is exchange.bind
type ExchangeBind struct {
	Destination string
	Source      string
	RoutingKey  string
	NoWait      bool
	Arguments   Table
}

func (*ExchangeBind) ID() (uint16, uint16) { return ClassExchange, MethodExchangeBind }

func (m *ExchangeBind) Read(r *ArgReader) {
	r.Short()
	m.Destination = r.ShortStr()
	m.Source = r.ShortStr()
	m.RoutingKey = r.ShortStr()
	m.NoWait = r.Bit()
	m.Arguments = r.Table()
}

func (m *ExchangeBind) Write(w *ArgWriter) {
	w.Short(0)
	w.ShortStr(m.Destination)
	w.ShortStr(m.Source)
	w.ShortStr(m.RoutingKey)
	w.Bit(m.NoWait)
	w.Table(m.Arguments)
}

func (m *ExchangeBind) noWait() bool { return m.NoWait }

// ExchangeBindOk is exchange.bind-ok
type ExchangeBindOk struct{}

func (*ExchangeBindOk) ID() (uint16, uint16) { return ClassExchange, MethodExchangeBindOk }

func (*ExchangeBindOk) Read(*ArgReader)  {}
func (*ExchangeBindOk) Write(*ArgWriter) {}

// ExchangeUnbind is exchange.unbind
type ExchangeUnbind struct {
	Destination string
	Source      string
	RoutingKey  string
	NoWait      bool
	Arguments   Table
}

func (*ExchangeUnbind) ID() (uint16, uint16) { return ClassExchange, MethodExchangeUnbind }

func (m *ExchangeUnbind) Read(r *ArgReader) {
	r.Short()
	m.Destination = r.ShortStr()
	m.Source = r.ShortStr()
	m.RoutingKey = r.ShortStr()
	m.NoWait = r.Bit()
	m.Arguments = r.Table()
}

func (m *ExchangeUnbind) Write(w *ArgWriter) {
	w.Short(0)
	w.ShortStr(m.Destination)
	w.ShortStr(m.Source)
	w.ShortStr(m.RoutingKey)
	w.Bit(m.NoWait)
	w.Table(m.Arguments)
}

func (m *ExchangeUnbind) noWait() bool { return m.NoWait }

// ExchangeUnbindOk is exchange.unbind-ok
type ExchangeUnbindOk struct{}

func (*ExchangeUnbindOk) ID() (uint16, uint16) { return ClassExchange, MethodExchangeUnbindOk }

func (*ExchangeUnbindOk) Read(*ArgReader)  {}
func (*ExchangeUnbindOk) Write(*ArgWriter) {}

// queue class

// QueueDeclare is queue.declare
type QueueDeclare struct {
	Queue      string
	Passive    bool
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	NoWait     bool
	Arguments  Table
}

func (*QueueDeclare) ID() (uint16, uint16) { return ClassQueue, MethodQueueDeclare }

func (m *QueueDeclare) Read(r *ArgReader) {
	r.Short()
	m.Queue = r.ShortStr()
	m.Passive = r.Bit()
	m.Durable = r.Bit()
	m.Exclusive = r.Bit()
	m.AutoDelete = r.Bit()
	m.NoWait = r.Bit()
	m.Arguments = r.Table()
}

func (m *QueueDeclare) Write(w *ArgWriter) {
	w.Short(0)
	w.ShortStr(m.Queue)
	w.Bit(m.Passive)
	w.Bit(m.Durable)
	w.Bit(m.Exclusive)
	w.Bit(m.AutoDelete)
	w.Bit(m.NoWait)
	w.Table(m.Arguments)
}

func (m *QueueDeclare) noWait() bool { return m.NoWait }

// QueueDeclareOk is queue.declare-ok
type QueueDeclareOk struct {
	Queue         string
	MessageCount  uint32
	ConsumerCount uint32
}

func (*QueueDeclareOk) ID() (uint16, uint16) { return ClassQueue, MethodQueueDeclareOk }

func (m *QueueDeclareOk) Read(r *ArgReader) {
	m.Queue = r.ShortStr()
	m.MessageCount = r.Long()
	m.ConsumerCount = r.Long()
}

func (m *QueueDeclareOk) Write(w *ArgWriter) {
	w.ShortStr(m.Queue)
	w.Long(m.MessageCount)
	w.Long(m.ConsumerCount)
}

// QueueBind is queue.bind
type QueueBind struct {
	Queue      string
	Exchange   string
	RoutingKey string
	NoWait     bool
	Arguments  Table
}

func (*QueueBind) ID() (uint16, uint16) { return ClassQueue, MethodQueueBind }

func (m *QueueBind) Read(r *ArgReader) {
	r.Short()
	m.Queue = r.ShortStr()
	m.Exchange = r.ShortStr()
	m.RoutingKey = r.ShortStr()
	m.NoWait = r.Bit()
	m.Arguments = r.Table()
}

func (m *QueueBind) Write(w *ArgWriter) {
	w.Short(0)
	w.ShortStr(m.Queue)
	w.ShortStr(m.Exchange)
	w.ShortStr(m.RoutingKey)
	w.Bit(m.NoWait)
	w.Table(m.Arguments)
}

func (m *QueueBind) noWait() bool { return m.NoWait }

// QueueBindOk is queue.bind-ok
type QueueBindOk struct{}

func (*QueueBindOk) ID() (uint16, uint16) { return ClassQueue, MethodQueueBindOk }

func (*QueueBindOk) Read(*ArgReader)  {}
func (*QueueBindOk) Write(*ArgWriter) {}

// QueuePurge is queue.purge
type QueuePurge struct {
	Queue  string
	NoWait bool
}

func (*QueuePurge) ID() (uint16, uint16) { return ClassQueue, MethodQueuePurge }

func (m *QueuePurge) Read(r *ArgReader) {
	r.Short()
	m.Queue = r.ShortStr()
	m.NoWait = r.Bit()
}

func (m *QueuePurge) Write(w *ArgWriter) {
	w.Short(0)
	w.ShortStr(m.Queue)
	w.Bit(m.NoWait)
}

func (m *QueuePurge) noWait() bool { return m.NoWait }

// QueuePurgeOk is queue.purge-ok
type QueuePurgeOk struct {
	MessageCount uint32
}

func (*QueuePurgeOk) ID() (uint16, uint16) { return ClassQueue, MethodQueuePurgeOk }

func (m *QueuePurgeOk) Read(r *ArgReader) {
	m.MessageCount = r.Long()
}

func (m *QueuePurgeOk) Write(w *ArgWriter) {
	w.Long(m.MessageCount)
}

// QueueDelete is queue.delete
type QueueDelete struct {
	Queue    string
	IfUnused bool
	IfEmpty  bool
	NoWait   bool
}

func (*QueueDelete) ID() (uint16, uint16) { return ClassQueue, MethodQueueDelete }

func (m *QueueDelete) Read(r *ArgReader) {
	r.Short()
	m.Queue = r.ShortStr()
	m.IfUnused = r.Bit()
	m.IfEmpty = r.Bit()
	m.NoWait = r.Bit()
}

func (m *QueueDelete) Write(w *ArgWriter) {
	w.Short(0)
	w.ShortStr(m.Queue)
	w.Bit(m.IfUnused)
	w.Bit(m.IfEmpty)
	w.Bit(m.NoWait)
}

func (m *QueueDelete) noWait() bool { return m.NoWait }

// QueueDeleteOk is queue.delete-ok
type QueueDeleteOk struct {
	MessageCount uint32
}

func (*QueueDeleteOk) ID() (uint16, uint16) { return ClassQueue, MethodQueueDeleteOk }

func (m *QueueDeleteOk) Read(r *ArgReader) {
	m.MessageCount = r.Long()
}

func (m *QueueDeleteOk) Write(w *ArgWriter) {
	w.Long(m.MessageCount)
}

// QueueUnbind is queue.unbind
type QueueUnbind struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Arguments  Table
}

func (*QueueUnbind) ID() (uint16, uint16) { return ClassQueue, MethodQueueUnbind }

func (m *QueueUnbind) Read(r *ArgReader) {
	r.Short()
	m.Queue = r.ShortStr()
	m.Exchange = r.ShortStr()
	m.RoutingKey = r.ShortStr()
	m.Arguments = r.Table()
}

func (m *QueueUnbind) Write(w *ArgWriter) {
	w.Short(0)
	w.ShortStr(m.Queue)
	w.ShortStr(m.Exchange)
	w.ShortStr(m.RoutingKey)
	w.Table(m.Arguments)
}

// QueueUnbindOk is queue.unbind-ok
type QueueUnbindOk struct{}

func (*QueueUnbindOk) ID() (uint16, uint16) { return ClassQueue, MethodQueueUnbindOk }

func (*QueueUnbindOk) Read(*ArgReader)  {}
func (*QueueUnbindOk) Write(*ArgWriter) {}

// basic class

// BasicQos is basic.qos
type BasicQos struct {
	PrefetchSize  uint32
	PrefetchCount uint16
	Global        bool
}

func (*BasicQos) ID() (uint16, uint16) { return ClassBasic, MethodBasicQos }

func (m *BasicQos) Read(r *ArgReader) {
	m.PrefetchSize = r.Long()
	m.PrefetchCount = r.Short()
	m.Global = r.Bit()
}

func (m *BasicQos) Write(w *ArgWriter) {
	w.Long(m.PrefetchSize)
	w.Short(m.PrefetchCount)
	w.Bit(m.Global)
}

// BasicQosOk is basic.qos-ok
type BasicQosOk struct{}

func (*BasicQosOk) ID() (uint16, uint16) { return ClassBasic, MethodBasicQosOk }

func (*BasicQosOk) Read(*ArgReader)  {}
func (*BasicQosOk) Write(*ArgWriter) {}

// BasicConsume is basic.consume
type BasicConsume struct {
	Queue       string
	ConsumerTag string
	NoLocal     bool
	NoAck       bool
	Exclusive   bool
	NoWait      bool
	Arguments   Table
}

func (*BasicConsume) ID() (uint16, uint16) { return ClassBasic, MethodBasicConsume }

func (m *BasicConsume) Read(r *ArgReader) {
	r.Short()
	m.Queue = r.ShortStr()
	m.ConsumerTag = r.ShortStr()
	m.NoLocal = r.Bit()
	m.NoAck = r.Bit()
	m.Exclusive = r.Bit()
	m.NoWait = r.Bit()
	m.Arguments = r.Table()
}

func (m *BasicConsume) Write(w *ArgWriter) {
	w.Short(0)
	w.ShortStr(m.Queue)
	w.ShortStr(m.ConsumerTag)
	w.Bit(m.NoLocal)
	w.Bit(m.NoAck)
	w.Bit(m.Exclusive)
	w.Bit(m.NoWait)
	w.Table(m.Arguments)
}

func (m *BasicConsume) noWait() bool { return m.NoWait }

// BasicConsumeOk is basic.consume-ok
type BasicConsumeOk struct {
	ConsumerTag string
}

func (*BasicConsumeOk) ID() (uint16, uint16) { return ClassBasic, MethodBasicConsumeOk }

func (m *BasicConsumeOk) Read(r *ArgReader) {
	m.ConsumerTag = r.ShortStr()
}

func (m *BasicConsumeOk) Write(w *ArgWriter) {
	w.ShortStr(m.ConsumerTag)
}

// BasicCancel is basic.cancel
type BasicCancel struct {
	ConsumerTag string
	NoWait      bool
}

func (*BasicCancel) ID() (uint16, uint16) { return ClassBasic, MethodBasicCancel }

func (m *BasicCancel) Read(r *ArgReader) {
	m.ConsumerTag = r.ShortStr()
	m.NoWait = r.Bit()
}

func (m *BasicCancel) Write(w *ArgWriter) {
	w.ShortStr(m.ConsumerTag)
	w.Bit(m.NoWait)
}

func (m *BasicCancel) noWait() bool { return m.NoWait }

// BasicCancelOk is basic.cancel-ok
type BasicCancelOk struct {
	ConsumerTag string
}

func (*BasicCancelOk) ID() (uint16, uint16) { return ClassBasic, MethodBasicCancelOk }

func (m *BasicCancelOk) Read(r *ArgReader) {
	m.ConsumerTag = r.ShortStr()
}

func (m *BasicCancelOk) Write(w *ArgWriter) {
	w.ShortStr(m.ConsumerTag)
}

// BasicPublish is basic.publish
type BasicPublish struct {
	Exchange   string
	RoutingKey string
	Mandatory  bool
	Immediate  bool
}

func (*BasicPublish) ID() (uint16, uint16) { return ClassBasic, MethodBasicPublish }

func (m *BasicPublish) Read(r *ArgReader) {
	r.Short()
	m.Exchange = r.ShortStr()
	m.RoutingKey = r.ShortStr()
	m.Mandatory = r.Bit()
	m.Immediate = r.Bit()
}

func (m *BasicPublish) Write(w *ArgWriter) {
	w.Short(0)
	w.ShortStr(m.Exchange)
	w.ShortStr(m.RoutingKey)
	w.Bit(m.Mandatory)
	w.Bit(m.Immediate)
}

// BasicReturn is basic.return
type BasicReturn struct {
	ReplyCode  uint16
	ReplyText  string
	Exchange   string
	RoutingKey string
}

func (*BasicReturn) ID() (uint16, uint16) { return ClassBasic, MethodBasicReturn }

func (m *BasicReturn) Read(r *ArgReader) {
	m.ReplyCode = r.Short()
	m.ReplyText = r.ShortStr()
	m.Exchange = r.ShortStr()
	m.RoutingKey = r.ShortStr()
}

func (m *BasicReturn) Write(w *ArgWriter) {
	w.Short(m.ReplyCode)
	w.ShortStr(m.ReplyText)
	w.ShortStr(m.Exchange)
	w.ShortStr(m.RoutingKey)
}

// BasicDeliver is basic.deliver
type BasicDeliver struct {
	ConsumerTag string
	DeliveryTag uint64
	Redelivered bool
	Exchange    string
	RoutingKey  string
}

func (*BasicDeliver) ID() (uint16, uint16) { return ClassBasic, MethodBasicDeliver }

func (m *BasicDeliver) Read(r *ArgReader) {
	m.ConsumerTag = r.ShortStr()
	m.DeliveryTag = r.LongLong()
	m.Redelivered = r.Bit()
	m.Exchange = r.ShortStr()
	m.RoutingKey = r.ShortStr()
}

func (m *BasicDeliver) Write(w *ArgWriter) {
	w.ShortStr(m.ConsumerTag)
	w.LongLong(m.DeliveryTag)
	w.Bit(m.Redelivered)
	w.ShortStr(m.Exchange)
	w.ShortStr(m.RoutingKey)
}

// BasicGet is basic.get
type BasicGet struct {
	Queue string
	NoAck bool
}

func (*BasicGet) ID() (uint16, uint16) { return ClassBasic, MethodBasicGet }

func (m *BasicGet) Read(r *ArgReader) {
	r.Short()
	m.Queue = r.ShortStr()
	m.NoAck = r.Bit()
}

func (m *BasicGet) Write(w *ArgWriter) {
	w.Short(0)
	w.ShortStr(m.Queue)
	w.Bit(m.NoAck)
}

// BasicGetOk is basic.get-ok
type BasicGetOk struct {
	DeliveryTag  uint64
	Redelivered  bool
	Exchange     string
	RoutingKey   string
	MessageCount uint32
}

func (*BasicGetOk) ID() (uint16, uint16) { return ClassBasic, MethodBasicGetOk }

func (m *BasicGetOk) Read(r *ArgReader) {
	m.DeliveryTag = r.LongLong()
	m.Redelivered = r.Bit()
	m.Exchange = r.ShortStr()
	m.RoutingKey = r.ShortStr()
	m.MessageCount = r.Long()
}

func (m *BasicGetOk) Write(w *ArgWriter) {
	w.LongLong(m.DeliveryTag)
	w.Bit(m.Redelivered)
	w.ShortStr(m.Exchange)
	w.ShortStr(m.RoutingKey)
	w.Long(m.MessageCount)
}

// BasicGetEmpty is basic.get-empty
type BasicGetEmpty struct{}

func (*BasicGetEmpty) ID() (uint16, uint16) { return ClassBasic, MethodBasicGetEmpty }

func (*BasicGetEmpty) Read(r *ArgReader) {
	r.ShortStr()
}

func (*BasicGetEmpty) Write(w *ArgWriter) {
	w.ShortStr("")
}

// BasicAck is basic.ack
type BasicAck struct {
	DeliveryTag uint64
	Multiple    bool
}

func (*BasicAck) ID() (uint16, uint16) { return ClassBasic, MethodBasicAck }

func (m *BasicAck) Read(r *ArgReader) {
	m.DeliveryTag = r.LongLong()
	m.Multiple = r.Bit()
}

func (m *BasicAck) Write(w *ArgWriter) {
	w.LongLong(m.DeliveryTag)
	w.Bit(m.Multiple)
}

// BasicReject is basic.reject
type BasicReject struct {
	DeliveryTag uint64
	Requeue     bool
}

func (*BasicReject) ID() (uint16, uint16) { return ClassBasic, MethodBasicReject }

func (m *BasicReject) Read(r *ArgReader) {
	m.DeliveryTag = r.LongLong()
	m.Requeue = r.Bit()
}

func (m *BasicReject) Write(w *ArgWriter) {
	w.LongLong(m.DeliveryTag)
	w.Bit(m.Requeue)
}

// BasicRecoverAsync is basic.recover-async
type BasicRecoverAsync struct {
	Requeue bool
}

func (*BasicRecoverAsync) ID() (uint16, uint16) { return ClassBasic, MethodBasicRecoverAsync }

func (m *BasicRecoverAsync) Read(r *ArgReader) {
	m.Requeue = r.Bit()
}

func (m *BasicRecoverAsync) Write(w *ArgWriter) {
	w.Bit(m.Requeue)
}

// BasicRecover is basic.recover
type BasicRecover struct {
	Requeue bool
}

func (*BasicRecover) ID() (uint16, uint16) { return ClassBasic, MethodBasicRecover }

func (m *BasicRecover) Read(r *ArgReader) {
	m.Requeue = r.Bit()
}

func (m *BasicRecover) Write(w *ArgWriter) {
	w.Bit(m.Requeue)
}

// BasicRecoverOk is basic.recover-ok
type BasicRecoverOk struct{}

func (*BasicRecoverOk) ID() (uint16, uint16) { return ClassBasic, MethodBasicRecoverOk }

func (*BasicRecoverOk) Read(*ArgReader)  {}
func (*BasicRecoverOk) Write(*ArgWriter) {}

// BasicNack is basic.nack
type BasicNack struct {
	DeliveryTag uint64
	Multiple    bool
	Requeue     bool
}

func (*BasicNack) ID() (uint16, uint16) { return ClassBasic, MethodBasicNack }

func (m *BasicNack) Read(r *ArgReader) {
	m.DeliveryTag = r.LongLong()
	m.Multiple = r.Bit()
	m.Requeue = r.Bit()
}

func (m *BasicNack) Write(w *ArgWriter) {
	w.LongLong(m.DeliveryTag)
	w.Bit(m.Multiple)
	w.Bit(m.Requeue)
}

// confirm class

// ConfirmSelect is confirm.select
type ConfirmSelect struct {
	NoWait bool
}

func (*ConfirmSelect) ID() (uint16, uint16) { return ClassConfirm, MethodConfirmSelect }

func (m *ConfirmSelect) Read(r *ArgReader) {
	m.NoWait = r.Bit()
}

func (m *ConfirmSelect) Write(w *ArgWriter) {
	w.Bit(m.NoWait)
}

func (m *ConfirmSelect) noWait() bool { return m.NoWait }

// ConfirmSelectOk is confirm.select-ok
type ConfirmSelectOk struct{}

func (*ConfirmSelectOk) ID() (uint16, uint16) { return ClassConfirm, MethodConfirmSelectOk }

func (*ConfirmSelectOk) Read(*ArgReader)  {}
func (*ConfirmSelectOk) Write(*ArgWriter) {}

// tx class

// TxSelect is tx.select
type TxSelect struct{}

func (*TxSelect) ID() (uint16, uint16) { return ClassTx, MethodTxSelect }

func (*TxSelect) Read(*ArgReader)  {}
func (*TxSelect) Write(*ArgWriter) {}

// TxSelectOk is tx.select-ok
type TxSelectOk struct{}

func (*TxSelectOk) ID() (uint16, uint16) { return ClassTx, MethodTxSelectOk }

func (*TxSelectOk) Read(*ArgReader)  {}
func (*TxSelectOk) Write(*ArgWriter) {}

// TxCommit is tx.commit
type TxCommit struct{}

func (*TxCommit) ID() (uint16, uint16) { return ClassTx, MethodTxCommit }

func (*TxCommit) Read(*ArgReader)  {}
func (*TxCommit) Write(*ArgWriter) {}

// TxCommitOk is tx.commit-ok
type TxCommitOk struct{}

func (*TxCommitOk) ID() (uint16, uint16) { return ClassTx, MethodTxCommitOk }

func (*TxCommitOk) Read(*ArgReader)  {}
func (*TxCommitOk) Write(*ArgWriter) {}

// TxRollback is tx.rollback
type TxRollback struct{}

func (*TxRollback) ID() (uint16, uint16) { return ClassTx, MethodTxRollback }

func (*TxRollback) Read(*ArgReader)  {}
func (*TxRollback) Write(*ArgWriter) {}

// TxRollbackOk is tx.rollback-ok
type TxRollbackOk struct{}

func (*TxRollbackOk) ID() (uint16, uint16) { return ClassTx, MethodTxRollbackOk }

func (*TxRollbackOk) Read(*ArgReader)  {}
func (*TxRollbackOk) Write(*ArgWriter) {}
