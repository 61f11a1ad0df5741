package server

import (
	"context"
	"net"
	"testing"
	"time"

	"udptime/pkg/xmsg"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// 启动过程中到达的请求同样得到应答
func TestStartAnswersEarlyRequests(t *testing.T) {
	ctx := context.Background()

	reserve, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	target := reserve.LocalAddr().(*net.UDPAddr)
	require.NoError(t, reserve.Close())

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	stop := make(chan struct{})
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for {
			select {
			case <-stop:
				return
			default:
			}
			_, _ = conn.WriteToUDP([]byte("PING"), target)
			time.Sleep(time.Millisecond)
		}
	}()

	replies := make(chan int, 1)
	go func() {
		buf := make([]byte, xmsg.MaxDatagram)
		n := 0
		for {
			_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
			size, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				replies <- n
				return
			}
			if string(buf[:size]) == xmsg.TextPong {
				n++
			}
		}
	}()

	svr, err := New(Args{Addr: target.String(), ReadTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, svr.Start(ctx))
	defer svr.Close(ctx)

	time.Sleep(50 * time.Millisecond)
	close(stop)
	<-sent

	got := <-replies
	handled := testutil.ToFloat64(svr.stats.requests.WithLabelValues("PING", "ok"))
	require.Positive(t, handled)
	require.Zero(t, testutil.ToFloat64(svr.stats.dropped))
	require.Equal(t, int(handled), got)
}
