package xnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"udptime/pkg/xcommon"
	"udptime/pkg/xlog"

	"go.uber.org/zap"
)

type UDPSocketArgs struct {
	conn        *net.UDPConn
	readTimeout time.Duration
	onMsg       OnDatagram
	onWriteErr  OnWriteError
}

type udpDatagram struct {
	msg  []byte
	addr *net.UDPAddr
}

// UDPSocket 未连接的UDP socket: 唯一的读协程 + 写协程.
type UDPSocket struct {
	conn        *net.UDPConn
	readTimeout time.Duration
	onMsg       OnDatagram
	onWriteErr  OnWriteError
	writeCh     chan *udpDatagram

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        xcommon.WaitGroup
}

func NewUDPSocket(ctx context.Context, arg UDPSocketArgs) *UDPSocket {
	if arg.readTimeout <= 0 {
		arg.readTimeout = defaultReadTimeout
	}
	sock := &UDPSocket{
		conn:        arg.conn,
		readTimeout: arg.readTimeout,
		onMsg:       arg.onMsg,
		onWriteErr:  arg.onWriteErr,
		writeCh:     make(chan *udpDatagram, writeChanLimit),
		closeCh:     make(chan struct{}),
	}
	sock.wg.Add(2)
	go sock.readLoop(ctx)
	go sock.writeLoop(ctx)
	return sock
}

func (sock *UDPSocket) readLoop(ctx context.Context) {
	var readErr error
	defer func() {
		if readErr != nil {
			xlog.Get(ctx).Warn("Read loop exit with error", zap.Any("err", readErr))
		}
		sock.forceClose()
	}()

	defer sock.wg.Done(ctx)

	buf := make([]byte, readBufferSize)
	for {
		if sock.closed() {
			return
		}
		if err := sock.conn.SetReadDeadline(time.Now().Add(sock.readTimeout)); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				readErr = err
			}
			return
		}

		n, addr, err := sock.conn.ReadFromUDP(buf)
		if err != nil {
			// 读超时只是检查关闭标志的时机
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if !errors.Is(err, net.ErrClosed) {
				readErr = err
			}
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		sock.onMsg(ctx, Datagram{Payload: payload, Addr: addr, At: time.Now()})
	}
}

func (sock *UDPSocket) writeLoop(ctx context.Context) {
	defer func() {
		_ = sock.conn.Close()
	}()

	defer sock.wg.Done(ctx)

	closing := false

loop:
	for {
		var datagram *udpDatagram
		if !closing {
			select {
			case datagram = <-sock.writeCh:
			case <-sock.closeCh:
				closing = true
				continue loop
			}
		} else {
			// closed状态, 非阻塞取出剩余数据全部发送
			select {
			case datagram = <-sock.writeCh:
			default:
			}
		}
		if datagram == nil {
			break
		}

		// 单个数据报发送失败不影响后续发送
		if _, err := sock.conn.WriteToUDP(datagram.msg, datagram.addr); err != nil {
			xlog.Get(ctx).Warn("Write datagram failed", zap.Any("err", err), zap.Stringer("addr", datagram.addr))
			if sock.onWriteErr != nil {
				sock.onWriteErr(ctx, datagram.addr, err)
			}
		}
	}
}

func (sock *UDPSocket) closed() bool {
	select {
	case <-sock.closeCh:
		return true
	default:
		return false
	}
}

func (sock *UDPSocket) close() {
	sock.forceClose()
	sock.wg.Wait()
}

func (sock *UDPSocket) forceClose() {
	sock.closeOnce.Do(func() {
		close(sock.closeCh)
	})
}

func (sock *UDPSocket) sendMsg(msg []byte, addr *net.UDPAddr) error {
	if len(msg) > readBufferSize {
		return fmt.Errorf("datagram %d bytes exceeds %d", len(msg), readBufferSize)
	}
	select {
	case <-sock.closeCh:
		return ErrClosed
	default:
	}
	select {
	case sock.writeCh <- &udpDatagram{msg: msg, addr: addr}:
		return nil
	case <-sock.closeCh:
		return ErrClosed
	default:
		return ErrOverflow
	}
}

func (sock *UDPSocket) localAddr() *net.UDPAddr {
	return sock.conn.LocalAddr().(*net.UDPAddr)
}
