package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/israelio/rabbit-wire/rabbitmq"
)

func TestConnectionLifecycle(t *testing.T) {
	conn := NewTestConnection(t)

	assert.Equal(t, rabbitmq.StateOpen, conn.GetState())
	assert.NotZero(t, conn.GetChannelMax())
	assert.NotZero(t, conn.GetFrameMax())
	assert.Contains(t, conn.ServerProperties(), "product")

	require.NoError(t, conn.Close())
	assert.True(t, conn.IsClosed())
	assert.NoError(t, conn.Close(), "second close is a no-op")
}

func TestHeartbeatNegotiation(t *testing.T) {
	conn := NewTestConnection(t, rabbitmq.WithHeartbeat(5*time.Second))
	hb := conn.GetHeartbeat()
	assert.True(t, hb > 0 && hb <= 5*time.Second, "negotiated %v", hb)
}

func TestManyChannels(t *testing.T) {
	conn := NewTestConnection(t)

	channels := make([]*rabbitmq.Channel, 0, 5)
	for i := 0; i < 5; i++ {
		ch, err := conn.NewChannel()
		require.NoError(t, err)
		channels = append(channels, ch)
	}
	assert.Equal(t, 5, conn.GetChannelCount())

	for _, ch := range channels {
		require.NoError(t, ch.Close())
	}
	assert.Zero(t, conn.GetChannelCount())
}

func TestWrongCredentialsFail(t *testing.T) {
	NewTestConnection(t)

	cf := NewTestConnectionFactory(t, rabbitmq.WithCredentials("guest", "not-the-password"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := cf.NewConnection(ctx)
	assert.Error(t, err)
}
