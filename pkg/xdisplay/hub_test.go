package xdisplay_test

import (
	"context"
	"testing"
	"time"

	"udptime/pkg/xdisplay"

	"github.com/stretchr/testify/require"
)

func TestHubPublish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub, err := xdisplay.NewHub(ctx, xdisplay.HubArgs{Addr: "127.0.0.1:0", Path: "/events"})
	require.NoError(t, err)
	defer hub.Close(context.Background())

	events := make(chan xdisplay.Event, 4)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- xdisplay.Watch(ctx, hub.Addr().String(), "/events", func(ev xdisplay.Event) {
			events <- ev
		})
	}()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(ctx, xdisplay.Event{Kind: xdisplay.KindAlarm, Text: "07:30"})
	select {
	case ev := <-events:
		require.Equal(t, xdisplay.KindAlarm, ev.Kind)
		require.Equal(t, "07:30", ev.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case err := <-watchErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	ctx := context.Background()
	hub, err := xdisplay.NewHub(ctx, xdisplay.HubArgs{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	hub.Publish(ctx, xdisplay.Event{Kind: xdisplay.KindSync})
	hub.Close(ctx)
}
