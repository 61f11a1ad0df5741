package xlatency_test

import (
	"context"
	"net"
	"testing"
	"time"

	"udptime/pkg/xlatency"
	"udptime/pkg/xnet"

	"github.com/stretchr/testify/require"
)

func startEcho(t *testing.T) *xnet.UDPServer {
	t.Helper()
	var svr *xnet.UDPServer
	svr, err := xnet.NewUDPServer(context.Background(), xnet.UDPSvrArgs{
		Addr:        "127.0.0.1:0",
		ReadTimeout: 50 * time.Millisecond,
		OnMsg: func(ctx context.Context, dg xnet.Datagram) {
			_ = svr.SendTo(ctx, dg.Payload, dg.Addr)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { svr.Close(context.Background()) })
	return svr
}

func startRelay(t *testing.T, arg xlatency.RelayArgs) *xlatency.Relay {
	t.Helper()
	arg.Listen = "127.0.0.1:0"
	relay, err := xlatency.NewRelay(context.Background(), arg)
	require.NoError(t, err)
	t.Cleanup(func() { relay.Close(context.Background()) })
	return relay
}

func roundTrip(t *testing.T, addr *net.UDPAddr, msg string, timeout time.Duration) (string, time.Duration, bool) {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, addr)
	require.NoError(t, err)
	defer conn.Close()

	start := time.Now()
	_, err = conn.Write([]byte(msg))
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		return "", 0, false
	}
	return string(buf[:n]), time.Since(start), true
}

func TestRelayDelay(t *testing.T) {
	echo := startEcho(t)
	relay := startRelay(t, xlatency.RelayArgs{Upstream: echo.LocalAddr().String(), Delay: 40 * time.Millisecond})

	got, rtt, ok := roundTrip(t, relay.Addr(), "PING", 2*time.Second)
	require.True(t, ok)
	require.Equal(t, "PING", got)
	// 两个方向各40ms
	require.GreaterOrEqual(t, rtt, 80*time.Millisecond)

	stats := relay.Stats()
	require.EqualValues(t, 2, stats.Packets)
	require.Zero(t, stats.Lost)
	require.Equal(t, 80*time.Millisecond, stats.Delay)
}

func TestRelayLoss(t *testing.T) {
	echo := startEcho(t)
	relay := startRelay(t, xlatency.RelayArgs{Upstream: echo.LocalAddr().String(), Loss: 100})

	_, _, ok := roundTrip(t, relay.Addr(), "PING", 200*time.Millisecond)
	require.False(t, ok)
	require.Eventually(t, func() bool { return relay.Stats().Lost == 1 }, time.Second, 5*time.Millisecond)
}

func TestRelayBadLoss(t *testing.T) {
	_, err := xlatency.NewRelay(context.Background(), xlatency.RelayArgs{Listen: "127.0.0.1:0", Upstream: "127.0.0.1:9", Loss: 101})
	require.Error(t, err)
}
