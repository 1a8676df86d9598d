package notify

import (
	"context"
	"testing"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestNATSBus(t *testing.T) {
	req := require.New(t)
	srv := natsserver.RunRandClientPortServer()
	defer srv.Shutdown()

	subConn, err := nats.Connect(srv.ClientURL())
	req.NoError(err)
	defer subConn.Close()
	pubConn, err := nats.Connect(srv.ClientURL())
	req.NoError(err)
	defer pubConn.Close()

	ctx := context.Background()
	local := NewNATSBus(subConn, "")
	received := make(chan Notification, 4)
	req.NoError(local.Subscribe(ctx, collect(received)))
	req.ErrorIs(local.Subscribe(ctx, collect(received)), ErrAlreadySubscribed)

	req.NoError(pubConn.Publish(DefaultNATSSubject, []byte("garbage")))
	req.NoError(NewNATSBus(pubConn, "").Publish(ctx, Notification{Type: UsersUpdated}))
	req.NoError(pubConn.Flush())

	req.Equal(UsersUpdated, waitFor(t, received).Type)

	req.NoError(local.Close())
	req.NoError(local.Close())
}
