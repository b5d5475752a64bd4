package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/israelio/rabbit-wire/internal/protocol"
)

func TestTopologyMethods(t *testing.T) {
	conn, b := dialFake(t)
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()

	declare := asyncErr(func() error {
		return ch.ExchangeDeclare("orders", "topic", ExchangeDeclareOptions{Durable: true, Args: Table{"alternate-exchange": "ae"}})
	})
	ex := expect[*protocol.ExchangeDeclare](b, id)
	assert.Equal(t, "orders", ex.Exchange)
	assert.Equal(t, "topic", ex.Type)
	assert.True(t, ex.Durable)
	assert.Equal(t, "ae", ex.Arguments["alternate-exchange"])
	b.send(id, &protocol.ExchangeDeclareOk{})
	_, err := await(t, declare)
	require.NoError(t, err)

	queue := async(func() (Queue, error) { return ch.QueueDeclare("", QueueDeclareOptions{Exclusive: true}) })
	qd := expect[*protocol.QueueDeclare](b, id)
	assert.Empty(t, qd.Queue)
	assert.True(t, qd.Exclusive)
	b.send(id, &protocol.QueueDeclareOk{Queue: "amq.gen-1", MessageCount: 0, ConsumerCount: 0})
	q, err := await(t, queue)
	require.NoError(t, err)
	assert.Equal(t, "amq.gen-1", q.Name, "server-named queue")

	bind := asyncErr(func() error { return ch.QueueBind(q.Name, "orders", "eu.#", nil) })
	qb := expect[*protocol.QueueBind](b, id)
	assert.Equal(t, "eu.#", qb.RoutingKey)
	b.send(id, &protocol.QueueBindOk{})
	_, err = await(t, bind)
	require.NoError(t, err)

	purge := async(func() (int, error) { return ch.QueuePurge(q.Name, false) })
	expect[*protocol.QueuePurge](b, id)
	b.send(id, &protocol.QueuePurgeOk{MessageCount: 4})
	purged, err := await(t, purge)
	require.NoError(t, err)
	assert.Equal(t, 4, purged)

	del := async(func() (int, error) { return ch.QueueDelete(q.Name, QueueDeleteOptions{IfEmpty: true}) })
	qdel := expect[*protocol.QueueDelete](b, id)
	assert.True(t, qdel.IfEmpty)
	b.send(id, &protocol.QueueDeleteOk{MessageCount: 0})
	_, err = await(t, del)
	require.NoError(t, err)
}

func TestPassiveDeclareOfMissingQueueClosesChannel(t *testing.T) {
	conn, b := dialFake(t)
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()

	res := async(func() (Queue, error) { return ch.QueueDeclarePassive("missing") })
	qd := expect[*protocol.QueueDeclare](b, id)
	assert.True(t, qd.Passive)
	b.send(id, &protocol.ChannelClose{
		ReplyCode: protocol.ReplyNotFound,
		ReplyText: "NOT_FOUND - no queue 'missing'",
		ClassID:   protocol.ClassQueue,
		MethodID:  protocol.MethodQueueDeclare,
	})
	expect[*protocol.ChannelCloseOk](b, id)

	_, err := await(t, res)
	var amqpErr *Error
	require.ErrorAs(t, err, &amqpErr)
	assert.Equal(t, protocol.ReplyNotFound, amqpErr.Code)
	assert.Equal(t, uint16(protocol.ClassQueue), amqpErr.ClassID)
	assert.Equal(t, OutcomeRecoverable, OutcomeOf(err))
	assert.Equal(t, StateOpen, conn.GetState(), "a soft error leaves the connection open")
}
