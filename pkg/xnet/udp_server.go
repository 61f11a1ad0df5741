package xnet

import (
	"context"
	"net"
	"time"

	"udptime/pkg/xlog"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type UDPSvrArgs struct {
	Addr        string
	ReadTimeout time.Duration
	OnMsg       OnDatagram
	OnWriteErr  OnWriteError
}

// UDPServer 监听一个地址, 每个数据报交给OnMsg, 可向任意对端回发
type UDPServer struct {
	sock *UDPSocket
}

func NewUDPServer(ctx context.Context, arg UDPSvrArgs) (*UDPServer, error) {
	udpAddr, err := net.ResolveUDPAddr(udpNetwork, arg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", arg.Addr)
	}
	conn, err := net.ListenUDP(udpNetwork, udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", arg.Addr)
	}
	svr := &UDPServer{}
	svr.sock = NewUDPSocket(ctx, UDPSocketArgs{
		conn:        conn,
		readTimeout: arg.ReadTimeout,
		onMsg:       arg.OnMsg,
		onWriteErr:  arg.OnWriteErr,
	})
	xlog.Get(ctx).Info("UDP server start listen success.", zap.Stringer("addr", svr.LocalAddr()))
	return svr, nil
}

// SendTo 异步发送到addr
func (svr *UDPServer) SendTo(ctx context.Context, msg []byte, addr *net.UDPAddr) error {
	return svr.sock.sendMsg(msg, addr)
}

func (svr *UDPServer) LocalAddr() *net.UDPAddr {
	return svr.sock.localAddr()
}

// Done 读协程退出(关闭或I/O错误)后关闭
func (svr *UDPServer) Done() <-chan struct{} {
	return svr.sock.closeCh
}

func (svr *UDPServer) Close(ctx context.Context) {
	svr.sock.close()
}
