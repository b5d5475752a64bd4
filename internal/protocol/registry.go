package protocol

import (
	"encoding/binary"
	"fmt"
)

// Method is a decoded AMQP method. The set of implementations is closed: one
// struct per method in methods.go, registered below.
type Method interface {
	// ID returns the class and method identifiers.
	ID() (classID, methodID uint16)
	// Read decodes the arguments. Errors are collected by the reader.
	Read(r *ArgReader)
	// Write encodes the arguments. Errors are collected by the writer.
	Write(w *ArgWriter)
}

type methodInfo struct {
	name    string
	content bool
	factory func() Method
}

var registry = make(map[uint32]methodInfo)

func methodKey(classID, methodID uint16) uint32 {
	return uint32(classID)<<16 | uint32(methodID)
}

func register(name string, content bool, factory func() Method) {
	classID, methodID := factory().ID()
	key := methodKey(classID, methodID)
	if _, dup := registry[key]; dup {
		panic(fmt.Sprintf("protocol: duplicate method %d.%d (%s)", classID, methodID, name))
	}
	registry[key] = methodInfo{name: name, content: content, factory: factory}
}

func init() {
	register("connection.start", false, func() Method { return &ConnectionStart{} })
	register("connection.start-ok", false, func() Method { return &ConnectionStartOk{} })
	register("connection.secure", false, func() Method { return &ConnectionSecure{} })
	register("connection.secure-ok", false, func() Method { return &ConnectionSecureOk{} })
	register("connection.tune", false, func() Method { return &ConnectionTune{} })
	register("connection.tune-ok", false, func() Method { return &ConnectionTuneOk{} })
	register("connection.open", false, func() Method { return &ConnectionOpen{} })
	register("connection.open-ok", false, func() Method { return &ConnectionOpenOk{} })
	register("connection.close", false, func() Method { return &ConnectionClose{} })
	register("connection.close-ok", false, func() Method { return &ConnectionCloseOk{} })
	register("connection.blocked", false, func() Method { return &ConnectionBlocked{} })
	register("connection.unblocked", false, func() Method { return &ConnectionUnblocked{} })
	register("channel.open", false, func() Method { return &ChannelOpen{} })
	register("channel.open-ok", false, func() Method { return &ChannelOpenOk{} })
	register("channel.flow", false, func() Method { return &ChannelFlow{} })
	register("channel.flow-ok", false, func() Method { return &ChannelFlowOk{} })
	register("channel.close", false, func() Method { return &ChannelClose{} })
	register("channel.close-ok", false, func() Method { return &ChannelCloseOk{} })
	register("exchange.declare", false, func() Method { return &ExchangeDeclare{} })
	register("exchange.declare-ok", false, func() Method { return &ExchangeDeclareOk{} })
	register("exchange.delete", false, func() Method { return &ExchangeDelete{} })
	register("exchange.delete-ok", false, func() Method { return &ExchangeDeleteOk{} })
	register("exchange.bind", false, func() Method { return &ExchangeBind{} })
	register("exchange.bind-ok", false, func() Method { return &ExchangeBindOk{} })
	register("exchange.unbind", false, func() Method { return &ExchangeUnbind{} })
	register("exchange.unbind-ok", false, func() Method { return &ExchangeUnbindOk{} })
	register("queue.declare", false, func() Method { return &QueueDeclare{} })
	register("queue.declare-ok", false, func() Method { return &QueueDeclareOk{} })
	register("queue.bind", false, func() Method { return &QueueBind{} })
	register("queue.bind-ok", false, func() Method { return &QueueBindOk{} })
	register("queue.purge", false, func() Method { return &QueuePurge{} })
	register("queue.purge-ok", false, func() Method { return &QueuePurgeOk{} })
	register("queue.delete", false, func() Method { return &QueueDelete{} })
	register("queue.delete-ok", false, func() Method { return &QueueDeleteOk{} })
	register("queue.unbind", false, func() Method { return &QueueUnbind{} })
	register("queue.unbind-ok", false, func() Method { return &QueueUnbindOk{} })
	register("basic.qos", false, func() Method { return &BasicQos{} })
	register("basic.qos-ok", false, func() Method { return &BasicQosOk{} })
	register("basic.consume", false, func() Method { return &BasicConsume{} })
	register("basic.consume-ok", false, func() Method { return &BasicConsumeOk{} })
	register("basic.cancel", false, func() Method { return &BasicCancel{} })
	register("basic.cancel-ok", false, func() Method { return &BasicCancelOk{} })
	register("basic.publish", true, func() Method { return &BasicPublish{} })
	register("basic.return", true, func() Method { return &BasicReturn{} })
	register("basic.deliver", true, func() Method { return &BasicDeliver{} })
	register("basic.get", false, func() Method { return &BasicGet{} })
	register("basic.get-ok", true, func() Method { return &BasicGetOk{} })
	register("basic.get-empty", false, func() Method { return &BasicGetEmpty{} })
	register("basic.ack", false, func() Method { return &BasicAck{} })
	register("basic.reject", false, func() Method { return &BasicReject{} })
	register("basic.recover-async", false, func() Method { return &BasicRecoverAsync{} })
	register("basic.recover", false, func() Method { return &BasicRecover{} })
	register("basic.recover-ok", false, func() Method { return &BasicRecoverOk{} })
	register("basic.nack", false, func() Method { return &BasicNack{} })
	register("confirm.select", false, func() Method { return &ConfirmSelect{} })
	register("confirm.select-ok", false, func() Method { return &ConfirmSelectOk{} })
	register("tx.select", false, func() Method { return &TxSelect{} })
	register("tx.select-ok", false, func() Method { return &TxSelectOk{} })
	register("tx.commit", false, func() Method { return &TxCommit{} })
	register("tx.commit-ok", false, func() Method { return &TxCommitOk{} })
	register("tx.rollback", false, func() Method { return &TxRollback{} })
	register("tx.rollback-ok", false, func() Method { return &TxRollbackOk{} })
}

// NewMethod returns an empty method struct for the given identifiers
func NewMethod(classID, methodID uint16) (Method, error) {
	info, ok := registry[methodKey(classID, methodID)]
	if !ok {
		return nil, fmt.Errorf("%w: %d.%d", ErrUnknownMethod, classID, methodID)
	}
	return info.factory(), nil
}

// EncodeMethod returns the method frame payload: class id, method id, arguments
func EncodeMethod(m Method) ([]byte, error) {
	classID, methodID := m.ID()

	w := NewArgWriter()
	w.Short(classID)
	w.Short(methodID)
	m.Write(w)
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", MethodName(m), err)
	}

	return w.Bytes(), nil
}

// DecodeMethod parses a method frame payload
func DecodeMethod(payload []byte) (Method, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("%w: method payload too short: %d", ErrMalformed, len(payload))
	}

	classID := binary.BigEndian.Uint16(payload[0:2])
	methodID := binary.BigEndian.Uint16(payload[2:4])

	m, err := NewMethod(classID, methodID)
	if err != nil {
		return nil, err
	}

	r := NewArgReader(payload[4:])
	m.Read(r)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", MethodName(m), err)
	}

	return m, nil
}

// MethodName returns the dotted name, e.g. "basic.publish"
func MethodName(m Method) string {
	classID, methodID := m.ID()
	if info, ok := registry[methodKey(classID, methodID)]; ok {
		return info.name
	}
	return fmt.Sprintf("%d.%d", classID, methodID)
}

// HasContent reports whether the method is followed by a content header and body
func HasContent(m Method) bool {
	classID, methodID := m.ID()
	return registry[methodKey(classID, methodID)].content
}

// IsNoWait reports whether a synchronous request asked the peer not to reply
func IsNoWait(m Method) bool {
	if nw, ok := m.(interface{ noWait() bool }); ok {
		return nw.noWait()
	}
	return false
}

// Is reports whether m carries the given identifiers
func Is(m Method, classID, methodID uint16) bool {
	c, id := m.ID()
	return c == classID && id == methodID
}
