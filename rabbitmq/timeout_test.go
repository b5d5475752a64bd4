package rabbitmq

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/israelio/rabbit-wire/internal/protocol"
)

func TestWriteTimeoutLeavesConnectionUsable(t *testing.T) {
	metrics := NewStandardMetricsCollector()
	core, logs := observer.New(zap.WarnLevel)
	conn, b := dialFake(t,
		WithWriteTimeout(100*time.Millisecond),
		WithMetrics(metrics),
		WithLogger(zap.New(core)))
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()

	// nobody reads the pipe, so the write cannot start
	start := time.Now()
	err := ch.Publish("ex", "rk", false, false, Publishing{Body: []byte("stuck")})
	elapsed := time.Since(start)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "basic.publish", te.Op)
	assert.False(t, te.Partial)
	assert.Equal(t, 100*time.Millisecond, te.Timeout)
	assert.Equal(t, OutcomeAmbiguous, OutcomeOf(err))
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	assert.Equal(t, StateOpen, conn.GetState())
	assert.Equal(t, ChannelStateOpen, ch.GetState())
	assert.Equal(t, int64(1), metrics.GetTimeouts("basic.publish"))
	assert.Zero(t, metrics.GetMessagesPublished())
	assert.Equal(t, 1, logs.FilterMessage("write timed out").Len())

	// once the broker reads again the same connection carries on
	res := asyncErr(func() error {
		return ch.Publish("ex", "rk", false, false, Publishing{Body: []byte("flows")})
	})
	_, _, body := b.expectContent(id)
	assert.Equal(t, "flows", string(body))
	_, err = await(t, res)
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.GetMessagesPublished())
}

func TestPartialWriteTearsConnectionDown(t *testing.T) {
	conn, b := dialFake(t, WithWriteTimeout(150*time.Millisecond))
	ch := openChannel(t, conn, b)
	notify := conn.NotifyClose(make(chan *Error, 1))

	res := asyncErr(func() error {
		return ch.Publish("ex", "rk", false, false, Publishing{Body: make([]byte, 64*1024)})
	})

	// take a few bytes of the first frame, then stall
	head := make([]byte, 16)
	require.NoError(t, b.conn.SetReadDeadline(time.Now().Add(brokerPatience)))
	_, err := io.ReadFull(b.conn, head)
	require.NoError(t, err)
	assert.Equal(t, uint8(protocol.FrameMethod), head[0])

	_, err = await(t, res)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Partial)
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.Equal(t, OutcomeFatal, OutcomeOf(err))

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatal("connection not torn down after a torn frame")
	}
	assert.True(t, conn.IsClosed())
	assert.True(t, ch.IsClosed())
	assert.ErrorIs(t, ch.Publish("ex", "rk", false, false, Publishing{}), ErrConnectionLost)
}

func TestPublishHonoursContextDeadline(t *testing.T) {
	conn, b := dialFake(t, WithWriteTimeout(0))
	ch := openChannel(t, conn, b)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	err := ch.PublishWithContext(ctx, "ex", "rk", false, false, Publishing{Body: []byte("x")})
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.False(t, te.Partial)
	assert.Equal(t, StateOpen, conn.GetState())
}

func TestTxCommitReadTimeout(t *testing.T) {
	metrics := NewStandardMetricsCollector()
	conn, b := dialFake(t, WithMetrics(metrics))
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()

	assert.ErrorIs(t, ch.TxCommit(), ErrNotTransactional)

	sel := asyncErr(ch.TxSelect)
	expect[*protocol.TxSelect](b, id)
	b.send(id, &protocol.TxSelectOk{})
	_, err := await(t, sel)
	require.NoError(t, err)
	assert.True(t, ch.IsTransactional())

	commit := asyncErr(func() error {
		return ch.TxCommitWithTimeout(context.Background(), 100*time.Millisecond)
	})
	expect[*protocol.TxCommit](b, id)

	_, err = await(t, commit)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "tx.commit", te.Op)
	assert.Equal(t, 100*time.Millisecond, te.Timeout)
	assert.Equal(t, OutcomeAmbiguous, OutcomeOf(err))
	assert.Equal(t, int64(1), metrics.GetTimeouts("tx.commit"))

	// the channel is still usable; the late commit-ok is dropped
	rollback := asyncErr(ch.TxRollback)
	expect[*protocol.TxRollback](b, id)
	b.send(id, &protocol.TxCommitOk{}, &protocol.TxRollbackOk{})
	_, err = await(t, rollback)
	assert.NoError(t, err)
	assert.Equal(t, ChannelStateOpen, ch.GetState())
}

func TestLateReplyGoesToTheExpiredCall(t *testing.T) {
	conn, b := dialFake(t, WithReadTimeout(100*time.Millisecond))
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()

	first := async(func() (Queue, error) { return ch.QueueDeclare("first", QueueDeclareOptions{}) })
	expect[*protocol.QueueDeclare](b, id)
	_, err := await(t, first)
	require.ErrorIs(t, err, ErrTimeout)

	second := async(func() (Queue, error) { return ch.QueueDeclare("second", QueueDeclareOptions{}) })
	decl := expect[*protocol.QueueDeclare](b, id)
	assert.Equal(t, "second", decl.Queue)

	// both replies share a method; the first belongs to the expired call
	b.send(id,
		&protocol.QueueDeclareOk{Queue: "first", MessageCount: 7},
		&protocol.QueueDeclareOk{Queue: "second", MessageCount: 1})

	q, err := await(t, second)
	require.NoError(t, err)
	assert.Equal(t, "second", q.Name)
	assert.Equal(t, 1, q.Messages)
}

func TestUninterruptibleWaitFailsOnInterrupt(t *testing.T) {
	sigs := make(chan os.Signal, 1)
	conn, b := dialFake(t, WithInterrupts(sigs))
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()

	res := async(func() (protocol.Method, error) {
		return ch.Invoke(context.Background(), &protocol.BasicQos{PrefetchCount: 5}, 0, Uninterruptible())
	})
	expect[*protocol.BasicQos](b, id)
	sigs <- os.Interrupt

	_, err := await(t, res)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, OutcomeRecoverable, OutcomeOf(err))

	// the late qos-ok does not leak into the next call
	b.send(id, &protocol.BasicQosOk{})
	next := async(func() (protocol.Method, error) {
		return ch.Invoke(context.Background(), &protocol.BasicRecover{Requeue: true}, time.Second)
	})
	expect[*protocol.BasicRecover](b, id)
	b.send(id, &protocol.BasicRecoverOk{})
	m, err := await(t, next)
	require.NoError(t, err)
	assert.IsType(t, &protocol.BasicRecoverOk{}, m)
}

func TestInterruptibleWaitAbsorbsInterrupt(t *testing.T) {
	sigs := make(chan os.Signal, 1)
	core, logs := observer.New(zap.InfoLevel)
	conn, b := dialFake(t, WithInterrupts(sigs), WithLogger(zap.New(core)))
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()

	res := async(func() (protocol.Method, error) {
		return ch.Invoke(context.Background(), &protocol.BasicQos{PrefetchCount: 5}, 0)
	})
	expect[*protocol.BasicQos](b, id)
	sigs <- os.Interrupt

	assert.Eventually(t, func() bool { return logs.FilterMessage("interrupt during wait").Len() == 1 },
		time.Second, 10*time.Millisecond)
	assert.True(t, stillRunning(res, 20*time.Millisecond))

	b.send(id, &protocol.BasicQosOk{})
	m, err := await(t, res)
	require.NoError(t, err)
	assert.IsType(t, &protocol.BasicQosOk{}, m)
}

func TestInvokeWithoutReplyDoesNotWait(t *testing.T) {
	conn, b := dialFake(t)
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()

	res := async(func() (protocol.Method, error) {
		return ch.Invoke(context.Background(), &protocol.QueueDeclare{Queue: "fire", NoWait: true}, time.Second)
	})
	decl := expect[*protocol.QueueDeclare](b, id)
	assert.True(t, decl.NoWait)

	m, err := await(t, res)
	require.NoError(t, err)
	assert.Nil(t, m)
}
