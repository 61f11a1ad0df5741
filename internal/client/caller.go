package client

import (
	"context"
	"time"

	"udptime/pkg/xlog"
	"udptime/pkg/xmsg"
	"udptime/pkg/xnet"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrNoResponse = errors.New("no response")
	ErrNotReady   = errors.New("socket not ready")
)

// Response 一次调用的结果, Sent/Received用于RTT与时钟偏移
type Response struct {
	Text     string
	Sent     time.Time
	Received time.Time
}

func (r Response) RTT() time.Duration {
	return r.Received.Sub(r.Sent)
}

func (r Response) Result() xmsg.Result {
	return xmsg.ParseResult(r.Text)
}

// Call 发送请求并等待响应. 超时返回ErrNoResponse, 不重试.
func (c *Client) Call(ctx context.Context, req xmsg.Request, timeout time.Duration) (Response, error) {
	udp := c.udp.Load()
	if udp == nil {
		xlog.Get(ctx).Warn("Socket not ready", zap.Stringer("verb", req.Verb))
		return Response{}, ErrNotReady
	}
	if timeout <= 0 {
		timeout = c.args.Timeout
	}
	if c.args.Tagged {
		return c.callTagged(ctx, udp, req, timeout)
	}
	return c.callLegacy(ctx, udp, req, timeout)
}

// callLegacy 协议无关联id: 同一时刻只允许一个调用在途
func (c *Client) callLegacy(ctx context.Context, udp *xnet.UDPClient, req xmsg.Request, timeout time.Duration) (Response, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	c.router.drain(ctx)
	sent := time.Now()
	if err := udp.SendMsg(ctx, []byte(xmsg.Encode(req))); err != nil {
		return Response{}, errors.Wrapf(err, "send %v", req.Verb)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case msg := <-c.router.queue:
			// 通知已由router处理, 跳过且不重置超时
			if xmsg.IsNotification(msg.Text) {
				continue
			}
			return Response{Text: msg.Text, Sent: sent, Received: msg.At}, nil
		case <-timer.C:
			xlog.Get(ctx).Warn("No response", zap.Stringer("verb", req.Verb), zap.Duration("timeout", timeout))
			return Response{}, ErrNoResponse
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
}

func (c *Client) callTagged(ctx context.Context, udp *xnet.UDPClient, req xmsg.Request, timeout time.Duration) (Response, error) {
	id := c.seq.Add(1)
	ch := c.router.expect(id)
	defer c.router.forget(id)

	sent := time.Now()
	if err := udp.SendMsg(ctx, []byte(xmsg.Tag(id, xmsg.Encode(req)))); err != nil {
		return Response{}, errors.Wrapf(err, "send %v", req.Verb)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-ch:
		return Response{Text: msg.Text, Sent: sent, Received: msg.At}, nil
	case <-timer.C:
		xlog.Get(ctx).Warn("No response", zap.Stringer("verb", req.Verb), zap.Uint64("id", id), zap.Duration("timeout", timeout))
		return Response{}, ErrNoResponse
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}
