package rabbitmq

import "errors"

// ErrAutoAcked is returned when settling a message the broker already
// considers acknowledged. Sending the ack anyway would close the channel
// with PRECONDITION_FAILED.
var ErrAutoAcked = errors.New("amqp: message was delivered with no-ack")

// settlement is the ack/nack/reject surface shared by consumed and polled
// messages. The zero value is detached and refuses every call.
type settlement struct {
	channel *Channel
	tag     uint64
	noAck   bool
}

func (s settlement) target() (*Channel, error) {
	switch {
	case s.noAck:
		return nil, ErrAutoAcked
	case s.channel == nil:
		return nil, ErrChannelClosed
	}
	return s.channel, nil
}

// Ack acknowledges the message, and with multiple every earlier unsettled
// message on the channel.
func (s settlement) Ack(multiple bool) error {
	ch, err := s.target()
	if err != nil {
		return err
	}
	return ch.BasicAck(s.tag, multiple)
}

// Nack rejects the message, and with multiple every earlier unsettled one.
func (s settlement) Nack(multiple, requeue bool) error {
	ch, err := s.target()
	if err != nil {
		return err
	}
	return ch.BasicNack(s.tag, multiple, requeue)
}

// Reject rejects only this message.
func (s settlement) Reject(requeue bool) error {
	ch, err := s.target()
	if err != nil {
		return err
	}
	return ch.BasicReject(s.tag, requeue)
}

// Delivery is a message pushed to a consumer by basic.deliver.
type Delivery struct {
	settlement

	ConsumerTag string
	DeliveryTag uint64
	Redelivered bool
	Exchange    string
	RoutingKey  string

	Properties Properties
	Body       []byte
}

// GetResponse is a message polled with basic.get.
type GetResponse struct {
	settlement

	DeliveryTag uint64
	Redelivered bool
	Exchange    string
	RoutingKey  string
	// MessageCount is what the queue still held when the message was taken.
	MessageCount int

	Properties Properties
	Body       []byte
}
