package xdisplay

import (
	"context"
	"net"
	"sync"
	"time"

	"udptime/pkg/xcommon"
	"udptime/pkg/xlog"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	writeChanLimit = 64
	writeTimeout   = 5 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

var errOverflow = errors.New("subscriber overflow")

// subscriber 一个展示端连接: 读协程只用于感知关闭, 写协程发送事件
type subscriber struct {
	conn    *websocket.Conn
	writeCh chan []byte

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        xcommon.WaitGroup
}

func newSubscriber(ctx context.Context, conn *websocket.Conn) *subscriber {
	sub := &subscriber{
		conn:    conn,
		writeCh: make(chan []byte, writeChanLimit),
		closeCh: make(chan struct{}),
	}
	sub.conn.SetReadLimit(maxMessageSize)

	sub.wg.Add(2)
	go sub.readLoop(ctx)
	go sub.writeLoop(ctx)
	return sub
}

func (sub *subscriber) readLoop(ctx context.Context) {
	var readErr error
	defer func() {
		if readErr != nil {
			xlog.Get(ctx).Warn("Display read loop exit with error.", zap.Any("err", readErr))
		}
		sub.forceClose()
	}()

	defer sub.wg.Done(ctx)

	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if e, ok := err.(*websocket.CloseError); (!ok || e.Code != websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
				readErr = err
			}
			return
		}
	}
}

func (sub *subscriber) writeLoop(ctx context.Context) {
	var writeErr error
	defer func() {
		if writeErr != nil {
			xlog.Get(ctx).Warn("Display write loop exit with error.", zap.Any("err", writeErr))
		}
		_ = sub.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
		_ = sub.conn.Close()
	}()

	defer sub.wg.Done(ctx)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-sub.writeCh:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				writeErr = err
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				writeErr = err
				return
			}
		case <-sub.closeCh:
			return
		}
	}
}

// send 非阻塞, 展示端跟不上时丢弃
func (sub *subscriber) send(msg []byte) error {
	select {
	case sub.writeCh <- msg:
		return nil
	case <-sub.closeCh:
		return errors.New("subscriber already closed")
	default:
		return errOverflow
	}
}

func (sub *subscriber) forceClose() {
	sub.closeOnce.Do(func() {
		close(sub.closeCh)
	})
}

func (sub *subscriber) Close() {
	sub.forceClose()
	sub.wg.Wait()
}

func (sub *subscriber) waitUntilClose() {
	sub.wg.Wait()
}
