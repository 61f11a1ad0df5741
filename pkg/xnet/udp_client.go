package xnet

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

type UDPCliArgs struct {
	Addr        string // 服务器地址
	LocalAddr   string // 本地绑定地址, 默认随机端口
	ReadTimeout time.Duration
	OnMsg       OnDatagram
}

// UDPClient 使用未连接socket与单个服务器通信, 同时接收服务器主动推送
type UDPClient struct {
	sock   *UDPSocket
	remote *net.UDPAddr
}

func NewUDPClient(ctx context.Context, arg UDPCliArgs) (*UDPClient, error) {
	remote, err := net.ResolveUDPAddr(udpNetwork, arg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", arg.Addr)
	}
	var local *net.UDPAddr
	if arg.LocalAddr != "" {
		if local, err = net.ResolveUDPAddr(udpNetwork, arg.LocalAddr); err != nil {
			return nil, errors.Wrapf(err, "resolve %s", arg.LocalAddr)
		}
	}
	conn, err := net.ListenUDP(udpNetwork, local)
	if err != nil {
		return nil, errors.Wrap(err, "open client socket")
	}
	cli := &UDPClient{remote: remote}
	cli.sock = NewUDPSocket(ctx, UDPSocketArgs{
		conn:        conn,
		readTimeout: arg.ReadTimeout,
		onMsg:       arg.OnMsg,
	})
	return cli, nil
}

// SendMsg 异步发送到服务器
func (cli *UDPClient) SendMsg(ctx context.Context, msg []byte) error {
	return cli.sock.sendMsg(msg, cli.remote)
}

func (cli *UDPClient) RemoteAddr() *net.UDPAddr {
	return cli.remote
}

func (cli *UDPClient) LocalAddr() *net.UDPAddr {
	return cli.sock.localAddr()
}

// Done 读协程退出后关闭
func (cli *UDPClient) Done() <-chan struct{} {
	return cli.sock.closeCh
}

func (cli *UDPClient) Close(ctx context.Context) {
	cli.sock.close()
}
