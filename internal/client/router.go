package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"udptime/pkg/xlog"
	"udptime/pkg/xmsg"
	"udptime/pkg/xnet"

	"go.uber.org/zap"
)

const defaultQueueLimit = 64

// Message 收到的单条文本及接收时刻
type Message struct {
	Text string
	At   time.Time
}

type notifyFunc func(ctx context.Context, msg Message)

// router 是客户端socket唯一的读者.
// 通知: 同步回调 + 入队. 带关联id的响应: 交给对应的等待者. 其他: 入队.
type router struct {
	queue    chan Message
	onNotify notifyFunc

	mu      sync.Mutex
	pending map[uint64]chan Message
}

func newRouter(limit int, onNotify notifyFunc) *router {
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	return &router{
		queue:    make(chan Message, limit),
		onNotify: onNotify,
		pending:  make(map[uint64]chan Message),
	}
}

// onDatagram 在读协程内调用, 不可阻塞
func (r *router) onDatagram(ctx context.Context, dg xnet.Datagram) {
	msg := Message{Text: strings.TrimSpace(string(dg.Payload)), At: dg.At}

	if xmsg.IsNotification(msg.Text) {
		// 同义前缀统一为ALARM_RING:
		msg.Text = xmsg.NormalizeNotification(msg.Text)
		if r.onNotify != nil {
			r.onNotify(ctx, msg)
		}
		r.enqueue(ctx, msg)
		return
	}

	if id, payload, tagged := xmsg.Untag(msg.Text); tagged {
		msg.Text = payload
		if !r.deliver(id, msg) {
			xlog.Get(ctx).Info("Drop response without waiter", zap.Uint64("id", id), zap.String("msg", payload))
		}
		return
	}
	r.enqueue(ctx, msg)
}

// enqueue 队列满时丢弃最旧的一条. 读协程是唯一的生产者.
func (r *router) enqueue(ctx context.Context, msg Message) {
	for {
		select {
		case r.queue <- msg:
			return
		default:
		}
		select {
		case old := <-r.queue:
			xlog.Get(ctx).Debug("Delivery queue full, drop oldest", zap.String("msg", old.Text))
		default:
		}
	}
}

// drain 丢弃队列中残留的消息(上一次超时调用的迟到响应)
func (r *router) drain(ctx context.Context) {
	for {
		select {
		case old := <-r.queue:
			if !xmsg.IsNotification(old.Text) {
				xlog.Get(ctx).Info("Discard stale response", zap.String("msg", old.Text))
			}
		default:
			return
		}
	}
}

func (r *router) expect(id uint64) chan Message {
	ch := make(chan Message, 1)
	r.mu.Lock()
	r.pending[id] = ch
	r.mu.Unlock()
	return ch
}

func (r *router) forget(id uint64) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

func (r *router) deliver(id uint64, msg Message) bool {
	r.mu.Lock()
	ch, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	ch <- msg
	return true
}
