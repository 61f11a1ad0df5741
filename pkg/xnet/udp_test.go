package xnet_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"udptime/pkg/xlog"
	"udptime/pkg/xnet"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUDP(t *testing.T) {
	ctx := context.Background()

	var svr *xnet.UDPServer
	svr, err := xnet.NewUDPServer(ctx, xnet.UDPSvrArgs{
		Addr:        "127.0.0.1:0",
		ReadTimeout: 50 * time.Millisecond,
		OnMsg: func(ctx context.Context, dg xnet.Datagram) {
			xlog.Get(ctx).Debug("Svr recv msg", zap.String("msg", string(dg.Payload)))
			reply := append([]byte("echo "), dg.Payload...)
			if err := svr.SendTo(ctx, reply, dg.Addr); err != nil {
				xlog.Get(ctx).Warn("Svr send msg failed.", zap.Any("err", err))
			}
		},
	})
	require.NoError(t, err)
	defer svr.Close(ctx)

	recvCh := make(chan xnet.Datagram, 10)
	cli, err := xnet.NewUDPClient(ctx, xnet.UDPCliArgs{
		Addr:        svr.LocalAddr().String(),
		ReadTimeout: 50 * time.Millisecond,
		OnMsg: func(ctx context.Context, dg xnet.Datagram) {
			recvCh <- dg
		},
	})
	require.NoError(t, err)
	defer cli.Close(ctx)

	// 多个读超时周期后仍可正常收发
	time.Sleep(200 * time.Millisecond)

	for i := 0; i < 10; i++ {
		require.NoError(t, cli.SendMsg(ctx, []byte(fmt.Sprintf("cli data %v", i))))
		select {
		case dg := <-recvCh:
			require.Equal(t, fmt.Sprintf("echo cli data %v", i), string(dg.Payload))
			require.Equal(t, svr.LocalAddr().Port, dg.Addr.Port)
			require.False(t, dg.At.IsZero())
		case <-time.After(2 * time.Second):
			t.Fatalf("no echo for %d", i)
		}
	}
}

func TestUDPCloseUnblocksRead(t *testing.T) {
	ctx := context.Background()
	svr, err := xnet.NewUDPServer(ctx, xnet.UDPSvrArgs{
		Addr:        "127.0.0.1:0",
		ReadTimeout: time.Hour,
		OnMsg:       func(ctx context.Context, dg xnet.Datagram) {},
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		svr.Close(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not unblock the read loop")
	}
	require.ErrorIs(t, svr.SendTo(ctx, []byte("x"), svr.LocalAddr()), xnet.ErrClosed)
}

func TestUDPOversizedDatagram(t *testing.T) {
	ctx := context.Background()
	cli, err := xnet.NewUDPClient(ctx, xnet.UDPCliArgs{
		Addr:  "127.0.0.1:9",
		OnMsg: func(ctx context.Context, dg xnet.Datagram) {},
	})
	require.NoError(t, err)
	defer cli.Close(ctx)

	require.Error(t, cli.SendMsg(ctx, make([]byte, 5000)))
}
