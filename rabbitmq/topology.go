package rabbitmq

import (
	"github.com/israelio/rabbit-wire/internal/protocol"
)

// ExchangeDeclareOptions configures exchange declaration
type ExchangeDeclareOptions struct {
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Args       Table
}

// ExchangeDeleteOptions configures exchange deletion
type ExchangeDeleteOptions struct {
	IfUnused bool
	NoWait   bool
}

// QueueDeclareOptions configures queue declaration
type QueueDeclareOptions struct {
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	NoWait     bool
	Args       Table
}

// QueueDeleteOptions configures queue deletion
type QueueDeleteOptions struct {
	IfUnused bool
	IfEmpty  bool
	NoWait   bool
}

// Queue is the broker's answer to queue.declare
type Queue struct {
	Name      string
	Messages  int
	Consumers int
}

// ExchangeDeclare declares an exchange
func (ch *Channel) ExchangeDeclare(name, kind string, opts ExchangeDeclareOptions) error {
	_, err := ch.rpc(&protocol.ExchangeDeclare{
		Exchange:   name,
		Type:       kind,
		Durable:    opts.Durable,
		AutoDelete: opts.AutoDelete,
		Internal:   opts.Internal,
		NoWait:     opts.NoWait,
		Arguments:  opts.Args,
	})
	return err
}

// ExchangeDeclarePassive checks that an exchange exists. A missing exchange
// closes the channel with 404.
func (ch *Channel) ExchangeDeclarePassive(name, kind string) error {
	_, err := ch.rpc(&protocol.ExchangeDeclare{Exchange: name, Type: kind, Passive: true})
	return err
}

// ExchangeDelete deletes an exchange
func (ch *Channel) ExchangeDelete(name string, opts ExchangeDeleteOptions) error {
	_, err := ch.rpc(&protocol.ExchangeDelete{Exchange: name, IfUnused: opts.IfUnused, NoWait: opts.NoWait})
	return err
}

// ExchangeBind binds an exchange to another exchange
func (ch *Channel) ExchangeBind(destination, source, routingKey string, args Table) error {
	_, err := ch.rpc(&protocol.ExchangeBind{
		Destination: destination,
		Source:      source,
		RoutingKey:  routingKey,
		Arguments:   args,
	})
	return err
}

// ExchangeUnbind unbinds an exchange from another exchange
func (ch *Channel) ExchangeUnbind(destination, source, routingKey string, args Table) error {
	_, err := ch.rpc(&protocol.ExchangeUnbind{
		Destination: destination,
		Source:      source,
		RoutingKey:  routingKey,
		Arguments:   args,
	})
	return err
}

// QueueDeclare declares a queue. An empty name asks the broker to generate
// one, returned in Queue.Name.
func (ch *Channel) QueueDeclare(name string, opts QueueDeclareOptions) (Queue, error) {
	r, err := ch.rpc(&protocol.QueueDeclare{
		Queue:      name,
		Durable:    opts.Durable,
		Exclusive:  opts.Exclusive,
		AutoDelete: opts.AutoDelete,
		NoWait:     opts.NoWait,
		Arguments:  opts.Args,
	})
	if err != nil {
		return Queue{}, err
	}
	return queueFromReply(name, r), nil
}

// QueueDeclarePassive checks that a queue exists and returns its counters
func (ch *Channel) QueueDeclarePassive(name string) (Queue, error) {
	r, err := ch.rpc(&protocol.QueueDeclare{Queue: name, Passive: true})
	if err != nil {
		return Queue{}, err
	}
	return queueFromReply(name, r), nil
}

func queueFromReply(name string, r reply) Queue {
	ok, isOk := r.method.(*protocol.QueueDeclareOk)
	if !isOk {
		// no-wait
		return Queue{Name: name}
	}
	return Queue{
		Name:      ok.Queue,
		Messages:  int(ok.MessageCount),
		Consumers: int(ok.ConsumerCount),
	}
}

// QueueDelete deletes a queue and returns the number of messages it held
func (ch *Channel) QueueDelete(name string, opts QueueDeleteOptions) (int, error) {
	r, err := ch.rpc(&protocol.QueueDelete{
		Queue:    name,
		IfUnused: opts.IfUnused,
		IfEmpty:  opts.IfEmpty,
		NoWait:   opts.NoWait,
	})
	if err != nil {
		return 0, err
	}
	if ok, isOk := r.method.(*protocol.QueueDeleteOk); isOk {
		return int(ok.MessageCount), nil
	}
	return 0, nil
}

// QueueBind binds a queue to an exchange
func (ch *Channel) QueueBind(name, exchange, routingKey string, args Table) error {
	_, err := ch.rpc(&protocol.QueueBind{
		Queue:      name,
		Exchange:   exchange,
		RoutingKey: routingKey,
		Arguments:  args,
	})
	return err
}

// QueueUnbind unbinds a queue from an exchange
func (ch *Channel) QueueUnbind(name, exchange, routingKey string, args Table) error {
	_, err := ch.rpc(&protocol.QueueUnbind{
		Queue:      name,
		Exchange:   exchange,
		RoutingKey: routingKey,
		Arguments:  args,
	})
	return err
}

// QueuePurge removes all ready messages from a queue and returns how many
func (ch *Channel) QueuePurge(name string, noWait bool) (int, error) {
	r, err := ch.rpc(&protocol.QueuePurge{Queue: name, NoWait: noWait})
	if err != nil {
		return 0, err
	}
	if ok, isOk := r.method.(*protocol.QueuePurgeOk); isOk {
		return int(ok.MessageCount), nil
	}
	return 0, nil
}
