package rabbitmq

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/israelio/rabbit-wire/internal/protocol"
)

func startRpcClient(t *testing.T, ch *Channel, b *fakeBroker) (*RpcClient, string) {
	t.Helper()
	res := async(func() (*RpcClient, error) { return NewRpcClient(ch) })
	consume := expect[*protocol.BasicConsume](b, ch.GetChannelID())
	assert.Equal(t, DirectReplyTo, consume.Queue)
	assert.True(t, consume.NoAck)
	assert.True(t, strings.HasPrefix(consume.ConsumerTag, "rpc-"))
	b.send(ch.GetChannelID(), &protocol.BasicConsumeOk{ConsumerTag: consume.ConsumerTag})

	client, err := await(t, res)
	require.NoError(t, err)
	return client, consume.ConsumerTag
}

func replyTo(b *fakeBroker, id uint16, tag, correlationID, body string) {
	b.sendContent(id, &protocol.BasicDeliver{
		ConsumerTag: tag,
		DeliveryTag: 1,
		RoutingKey:  DirectReplyTo,
	}, Properties{CorrelationId: correlationID}, []byte(body))
}

func TestRpcClientCall(t *testing.T) {
	conn, b := dialFake(t)
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()
	client, tag := startRpcClient(t, ch, b)

	res := async(func() (Delivery, error) {
		return client.Call(context.Background(), "", "rpc_queue", Publishing{Body: []byte("ping")})
	})
	_, props, body := b.expectContent(id)
	assert.Equal(t, "ping", string(body))
	assert.Equal(t, DirectReplyTo, props.ReplyTo)
	require.NotEmpty(t, props.CorrelationId)

	replyTo(b, id, tag, "someone-else", "ignored")
	replyTo(b, id, tag, props.CorrelationId, "pong")

	reply, err := await(t, res)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(reply.Body))
	assert.Equal(t, props.CorrelationId, reply.Properties.CorrelationId)

	closeRes := asyncErr(client.Close)
	expect[*protocol.BasicCancel](b, id)
	b.send(id, &protocol.BasicCancelOk{ConsumerTag: tag})
	_, err = await(t, closeRes)
	require.NoError(t, err)

	_, err = client.Call(context.Background(), "", "rpc_queue", Publishing{})
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestRpcClientCallTimeout(t *testing.T) {
	conn, b := dialFake(t)
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()
	client, tag := startRpcClient(t, ch, b)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res := async(func() (Delivery, error) {
		return client.Call(ctx, "", "rpc_queue", Publishing{Body: []byte("slow")})
	})
	_, props, _ := b.expectContent(id)

	_, err := await(t, res)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "rpc.call", te.Op)
	assert.Equal(t, OutcomeAmbiguous, OutcomeOf(err))

	// the late reply is dropped and the channel stays usable
	replyTo(b, id, tag, props.CorrelationId, "late")
	publishThrough(t, ch, b, "after")
	assert.Equal(t, ChannelStateOpen, ch.GetState())
}

func TestRpcClientFailsWhenChannelCloses(t *testing.T) {
	conn, b := dialFake(t)
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()
	client, _ := startRpcClient(t, ch, b)

	res := async(func() (Delivery, error) {
		return client.Call(context.Background(), "", "rpc_queue", Publishing{Body: []byte("x")})
	})
	b.expectContent(id)

	b.send(id, &protocol.ChannelClose{ReplyCode: protocol.ReplyNotFound, ReplyText: "NOT_FOUND - no exchange"})
	expect[*protocol.ChannelCloseOk](b, id)

	_, err := await(t, res)
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.NoError(t, client.Close())
}
