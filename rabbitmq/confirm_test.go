package rabbitmq

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/israelio/rabbit-wire/internal/protocol"
)

// publishThrough publishes body and reads it on the broker side
func publishThrough(t *testing.T, ch *Channel, b *fakeBroker, body string) {
	t.Helper()
	res := asyncErr(func() error {
		return ch.Publish("ex", "rk", false, false, Publishing{Body: []byte(body)})
	})
	_, _, got := b.expectContent(ch.GetChannelID())
	assert.Equal(t, body, string(got))
	_, err := await(t, res)
	require.NoError(t, err)
}

func selectConfirms(t *testing.T, ch *Channel, b *fakeBroker) {
	t.Helper()
	res := asyncErr(func() error { return ch.ConfirmSelect(false) })
	expect[*protocol.ConfirmSelect](b, ch.GetChannelID())
	b.send(ch.GetChannelID(), &protocol.ConfirmSelectOk{})
	_, err := await(t, res)
	require.NoError(t, err)
}

type recordedConfirm struct {
	tag      uint64
	multiple bool
	ack      bool
}

type confirmRecorder struct {
	mu   sync.Mutex
	seen []recordedConfirm
}

func (r *confirmRecorder) HandleAck(tag uint64, multiple bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recordedConfirm{tag, multiple, true})
}

func (r *confirmRecorder) HandleNack(tag uint64, multiple bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recordedConfirm{tag, multiple, false})
}

func (r *confirmRecorder) snapshot() []recordedConfirm {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedConfirm(nil), r.seen...)
}

func TestWaitForConfirmsRequiresConfirmMode(t *testing.T) {
	conn, b := dialFake(t)
	ch := openChannel(t, conn, b)

	_, err := ch.WaitForConfirms(context.Background())
	assert.ErrorIs(t, err, ErrConfirmsDisabled)
	assert.ErrorIs(t, ch.PublishWithConfirm(context.Background(), "ex", "rk", false, false, Publishing{}), ErrConfirmsDisabled)
}

func TestConfirmsResolveInSequence(t *testing.T) {
	metrics := NewStandardMetricsCollector()
	conn, b := dialFake(t, WithMetrics(metrics))
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()

	selectConfirms(t, ch, b)
	confirms := ch.NotifyPublish(make(chan Confirmation, 8))
	listener := &confirmRecorder{}
	ch.AddConfirmListener(listener)

	// nothing outstanding yet
	ok, err := ch.WaitForConfirms(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	for _, body := range []string{"one", "two", "three"} {
		publishThrough(t, ch, b, body)
	}

	waiting := async(func() (bool, error) { return ch.WaitForConfirms(context.Background()) })
	b.send(id, &protocol.BasicAck{DeliveryTag: 2, Multiple: true})
	assert.True(t, stillRunning(waiting, 50*time.Millisecond), "message 3 is still outstanding")

	b.send(id, &protocol.BasicAck{DeliveryTag: 3})
	ok, err = await(t, waiting)
	require.NoError(t, err)
	assert.True(t, ok)

	for want := uint64(1); want <= 3; want++ {
		select {
		case c := <-confirms:
			assert.Equal(t, Confirmation{DeliveryTag: want, Ack: true}, c)
		case <-time.After(time.Second):
			t.Fatalf("confirmation %d not delivered", want)
		}
	}

	assert.Eventually(t, func() bool { return len(listener.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []recordedConfirm{{2, true, true}, {3, false, true}}, listener.snapshot())
	assert.Equal(t, int64(3), metrics.GetConfirmsAcked())

	// a nack is reported once, then forgotten
	publishThrough(t, ch, b, "four")
	b.send(id, &protocol.BasicNack{DeliveryTag: 4})
	select {
	case c := <-confirms:
		assert.Equal(t, Confirmation{DeliveryTag: 4, Ack: false}, c)
	case <-time.After(time.Second):
		t.Fatal("nack not delivered")
	}

	ok, err = ch.WaitForConfirms(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = ch.WaitForConfirms(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), metrics.GetConfirmsNacked())
}

func TestPublishWithConfirm(t *testing.T) {
	conn, b := dialFake(t)
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()
	selectConfirms(t, ch, b)

	res := asyncErr(func() error {
		return ch.PublishWithConfirm(context.Background(), "ex", "rk", false, false, Publishing{Body: []byte("a")})
	})
	b.expectContent(id)
	assert.True(t, stillRunning(res, 20*time.Millisecond))
	b.send(id, &protocol.BasicNack{DeliveryTag: 1})
	_, err := await(t, res)
	assert.ErrorContains(t, err, "message 1 nacked")

	res = asyncErr(func() error {
		return ch.PublishWithConfirm(context.Background(), "ex", "rk", false, false, Publishing{Body: []byte("b")})
	})
	b.expectContent(id)
	b.send(id, &protocol.BasicAck{DeliveryTag: 2})
	_, err = await(t, res)
	assert.NoError(t, err)
}

func TestPublishWithConfirmHonoursContext(t *testing.T) {
	conn, b := dialFake(t)
	ch := openChannel(t, conn, b)
	selectConfirms(t, ch, b)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res := asyncErr(func() error {
		return ch.PublishWithConfirm(ctx, "ex", "rk", false, false, Publishing{Body: []byte("a")})
	})
	b.expectContent(ch.GetChannelID())

	_, err := await(t, res)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "confirm.wait", te.Op)
}

func TestConfirmSequenceSurvivesWriteTimeout(t *testing.T) {
	conn, b := dialFake(t, WithWriteTimeout(100*time.Millisecond))
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()
	selectConfirms(t, ch, b)

	err := ch.Publish("ex", "rk", false, false, Publishing{Body: []byte("lost")})
	require.ErrorIs(t, err, ErrTimeout)

	// nothing reached the broker, so the next message is still number 1
	publishThrough(t, ch, b, "kept")
	b.send(id, &protocol.BasicAck{DeliveryTag: 1})

	ok, err := ch.WaitForConfirms(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConfirmWaitFailsWhenChannelCloses(t *testing.T) {
	conn, b := dialFake(t)
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()
	selectConfirms(t, ch, b)
	publishThrough(t, ch, b, "pending")

	waiting := async(func() (bool, error) { return ch.WaitForConfirms(context.Background()) })
	b.send(id, &protocol.ChannelClose{ReplyCode: protocol.ReplyPreconditionFailed, ReplyText: "PRECONDITION_FAILED"})
	expect[*protocol.ChannelCloseOk](b, id)

	_, err := await(t, waiting)
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestReturnsReachListeners(t *testing.T) {
	metrics := NewStandardMetricsCollector()
	conn, b := dialFake(t, WithMetrics(metrics))
	ch := openChannel(t, conn, b)
	id := ch.GetChannelID()

	returns := ch.NotifyReturn(make(chan Return, 1))
	var mu sync.Mutex
	var viaCallback []string
	ch.SetReturnCallback(func(r Return) {
		mu.Lock()
		viaCallback = append(viaCallback, r.RoutingKey)
		mu.Unlock()
	})

	props := Properties{ContentType: "text/plain", MessageId: "m-1"}
	b.sendContent(id, &protocol.BasicReturn{
		ReplyCode:  protocol.ReplyNoRoute,
		ReplyText:  "NO_ROUTE",
		Exchange:   "ex",
		RoutingKey: "nowhere",
	}, props, []byte("bounced"))

	select {
	case r := <-returns:
		assert.Equal(t, uint16(protocol.ReplyNoRoute), r.ReplyCode)
		assert.Equal(t, "NO_ROUTE", r.ReplyText)
		assert.Equal(t, "nowhere", r.RoutingKey)
		assert.Equal(t, "m-1", r.Properties.MessageId)
		assert.Equal(t, "bounced", string(r.Body))
	case <-time.After(time.Second):
		t.Fatal("return not delivered")
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(viaCallback) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), metrics.GetMessagesReturned())
}
