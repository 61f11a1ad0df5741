// Package xlatency 网络损伤模拟: 在客户端和服务器之间转发UDP, 按比例丢包并增加延迟.
package xlatency

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"udptime/pkg/xcommon"
	"udptime/pkg/xlog"
	"udptime/pkg/xnet"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultTick = 5 * time.Millisecond
	inboxLimit  = 1024
)

type RelayArgs struct {
	Listen   string        // 面向客户端的地址
	Upstream string        // 服务器地址
	Loss     uint32        // 丢包率 0~100
	Delay    time.Duration // 单向固定延迟
	Jitter   time.Duration // 额外随机延迟 [0, Jitter)
	Tick     time.Duration
	Seed     int64 // 0 使用当前时间
}

type packet struct {
	toServer bool
	msg      []byte
	due      time.Time
}

// Stats 转发统计
type Stats struct {
	Packets uint64
	Lost    uint64
	Delay   time.Duration // 已转发包的累计延迟
}

// Relay 单客户端中继. 记住最近的客户端端点, 服务器方向的数据(含推送)都转发给它.
type Relay struct {
	arg   RelayArgs
	front *xnet.UDPServer
	back  *xnet.UDPClient
	inbox chan packet

	mu      sync.Mutex
	peer    *net.UDPAddr
	stats   Stats
	rnd     *rand.Rand
	pending []packet

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        xcommon.WaitGroup
}

func NewRelay(ctx context.Context, arg RelayArgs) (*Relay, error) {
	if arg.Loss > 100 {
		return nil, errors.Errorf("loss %d out of range 0~100", arg.Loss)
	}
	if arg.Tick <= 0 {
		arg.Tick = defaultTick
	}
	if arg.Seed == 0 {
		arg.Seed = time.Now().UnixNano()
	}
	r := &Relay{
		arg:     arg,
		inbox:   make(chan packet, inboxLimit),
		rnd:     rand.New(rand.NewSource(arg.Seed)),
		closeCh: make(chan struct{}),
	}

	back, err := xnet.NewUDPClient(ctx, xnet.UDPCliArgs{
		Addr: arg.Upstream,
		OnMsg: func(ctx context.Context, dg xnet.Datagram) {
			r.recv(ctx, packet{toServer: false, msg: dg.Payload})
		},
	})
	if err != nil {
		return nil, err
	}
	front, err := xnet.NewUDPServer(ctx, xnet.UDPSvrArgs{
		Addr: arg.Listen,
		OnMsg: func(ctx context.Context, dg xnet.Datagram) {
			r.mu.Lock()
			r.peer = dg.Addr
			r.mu.Unlock()
			r.recv(ctx, packet{toServer: true, msg: dg.Payload})
		},
	})
	if err != nil {
		back.Close(ctx)
		return nil, err
	}
	r.front, r.back = front, back

	r.wg.Add(1)
	go r.logicLoop(ctx)
	xlog.Get(ctx).Info("Relay started", zap.Stringer("listen", front.LocalAddr()), zap.Stringer("upstream", back.RemoteAddr()),
		zap.Uint32("loss", arg.Loss), zap.Duration("delay", arg.Delay), zap.Duration("jitter", arg.Jitter))
	return r, nil
}

// recv 在读协程调用, inbox满时丢弃
func (r *Relay) recv(ctx context.Context, p packet) {
	select {
	case r.inbox <- p:
	default:
		xlog.Get(ctx).Warn("Relay inbox full, drop packet")
	}
}

func (r *Relay) logicLoop(ctx context.Context) {
	defer r.wg.Done(ctx)

	ticker := time.NewTicker(r.arg.Tick)
	defer ticker.Stop()

	for {
		select {
		case p := <-r.inbox:
			r.schedule(p)
		case <-ticker.C:
		case <-r.closeCh:
			s := r.Stats()
			xlog.Get(ctx).Info("Relay stopped", zap.Uint64("packets", s.Packets), zap.Uint64("lost", s.Lost), zap.Duration("delay", s.Delay))
			return
		}
		r.flush(ctx, time.Now())
	}
}

func (r *Relay) schedule(p packet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Packets++
	if r.arg.Loss > 0 && uint32(r.rnd.Intn(100)) < r.arg.Loss {
		r.stats.Lost++
		return
	}
	delay := r.arg.Delay
	if r.arg.Jitter > 0 {
		delay += time.Duration(r.rnd.Int63n(int64(r.arg.Jitter)))
	}
	r.stats.Delay += delay
	p.due = time.Now().Add(delay)
	r.pending = append(r.pending, p)
}

func (r *Relay) flush(ctx context.Context, now time.Time) {
	r.mu.Lock()
	peer := r.peer
	keep := r.pending[:0]
	var due []packet
	for _, p := range r.pending {
		if p.due.After(now) {
			keep = append(keep, p)
		} else {
			due = append(due, p)
		}
	}
	r.pending = keep
	r.mu.Unlock()

	for _, p := range due {
		var err error
		if p.toServer {
			err = r.back.SendMsg(ctx, p.msg)
		} else if peer != nil {
			err = r.front.SendTo(ctx, p.msg, peer)
		}
		if err != nil {
			xlog.Get(ctx).Warn("Relay forward failed", zap.Bool("toServer", p.toServer), zap.Any("err", err))
		}
	}
}

// Addr 客户端应连接的地址
func (r *Relay) Addr() *net.UDPAddr {
	return r.front.LocalAddr()
}

func (r *Relay) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Relay) Close(ctx context.Context) {
	r.closeOnce.Do(func() {
		close(r.closeCh)
		r.wg.Wait()
		r.front.Close(ctx)
		r.back.Close(ctx)
	})
}
