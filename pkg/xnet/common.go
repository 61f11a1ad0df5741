package xnet

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

const (
	udpNetwork     = "udp"
	readBufferSize = 4096 // 单个数据报上限

	defaultReadTimeout = 1 * time.Second // 读超时仅用于检查关闭标志
	writeChanLimit     = 256             // 写channel大小
)

var (
	ErrClosed   = errors.New("socket already closed")
	ErrOverflow = errors.New("write queue overflow")
)

// Datagram 收到的单个数据报
type Datagram struct {
	Payload []byte
	Addr    *net.UDPAddr
	At      time.Time // 接收时刻
}

// 数据报处理, 在读协程内同步调用, 不可阻塞
type OnDatagram func(ctx context.Context, dg Datagram)

// 发送失败回调(尽力而为, 不重试)
type OnWriteError func(ctx context.Context, addr *net.UDPAddr, err error)
