package integration

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/israelio/rabbit-wire/rabbitmq"
)

func TestPublishAndConsume(t *testing.T) {
	_, ch := NewTestChannel(t)
	queue := TempQueue(t, ch)

	const n = 20
	for i := 0; i < n; i++ {
		require.NoError(t, ch.Publish("", queue, false, false, rabbitmq.Publishing{
			Properties: rabbitmq.Properties{ContentType: "text/plain", MessageId: fmt.Sprint(i)},
			Body:       []byte(fmt.Sprintf("message %d", i)),
		}))
	}

	require.NoError(t, ch.Qos(5, 0, false))
	deliveries, err := ch.Consume(queue, "", rabbitmq.ConsumeOptions{})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		select {
		case d := <-deliveries:
			assert.Equal(t, fmt.Sprintf("message %d", i), string(d.Body))
			assert.Equal(t, "text/plain", d.Properties.ContentType)
			require.NoError(t, d.Ack(false))
		case <-time.After(5 * time.Second):
			t.Fatalf("delivery %d not received", i)
		}
	}
}

func TestLargeBodySpansFrames(t *testing.T) {
	conn, ch := NewTestChannel(t)
	queue := TempQueue(t, ch)

	body := make([]byte, 3*int(conn.GetFrameMax())+17)
	for i := range body {
		body[i] = byte(i)
	}
	require.NoError(t, ch.Publish("", queue, false, false, rabbitmq.Publishing{Body: body}))

	var got *rabbitmq.GetResponse
	require.Eventually(t, func() bool {
		msg, ok, err := ch.BasicGet(queue, true)
		require.NoError(t, err)
		got = msg
		return ok
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, body, got.Body)
}

func TestUnroutableMandatoryPublishIsReturned(t *testing.T) {
	_, ch := NewTestChannel(t)
	returns := ch.NotifyReturn(make(chan rabbitmq.Return, 1))

	require.NoError(t, ch.Publish("amq.direct", "no-such-binding", true, false, rabbitmq.Publishing{Body: []byte("x")}))

	select {
	case r := <-returns:
		assert.Equal(t, uint16(312), r.ReplyCode)
	case <-time.After(5 * time.Second):
		t.Fatal("no basic.return")
	}
}
