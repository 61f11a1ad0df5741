// Package client talks to the time server over one UDP socket: it keeps the
// local clock offset, manages alarms and receives ALARM_RING pushes.
package client

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"udptime/internal/timesync"
	"udptime/pkg/xcommon"
	"udptime/pkg/xlog"
	"udptime/pkg/xmsg"
	"udptime/pkg/xnet"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 3 * time.Second
	defaultWorkers = 4
)

var ErrBusy = errors.New("all workers busy")

type Args struct {
	Server      string
	Timeout     time.Duration
	ReadTimeout time.Duration
	AutoSync    time.Duration // 0 关闭
	Workers     int
	Tagged      bool // 使用关联id, 允许并发调用
	QueueLimit  int
	Presenter   Presenter
}

type Client struct {
	args      Args
	clock     *timesync.Clock
	book      *AlarmBook
	presenter Presenter
	router    *router

	udp    atomic.Pointer[xnet.UDPClient]
	callMu sync.Mutex
	seq    atomic.Uint64

	group     *xcommon.Group
	pool      *xcommon.Group
	closeOnce sync.Once
	closeErr  error
}

func New(arg Args) *Client {
	if arg.Timeout <= 0 {
		arg.Timeout = defaultTimeout
	}
	if arg.Workers <= 0 {
		arg.Workers = defaultWorkers
	}
	if arg.Presenter == nil {
		arg.Presenter = nopPresenter{}
	}
	c := &Client{
		args:      arg,
		clock:     timesync.NewClock(nil),
		book:      NewAlarmBook(),
		presenter: arg.Presenter,
	}
	c.router = newRouter(arg.QueueLimit, c.onNotify)
	return c
}

// Start 打开socket并启动后台任务. 失败时客户端仍可用于本地时钟, 网络操作返回ErrNotReady.
func (c *Client) Start(ctx context.Context) error {
	c.group = xcommon.NewGroup(ctx)
	c.pool = xcommon.NewGroup(ctx)
	c.pool.SetLimit(c.args.Workers)

	udp, err := xnet.NewUDPClient(ctx, xnet.UDPCliArgs{
		Addr:        c.args.Server,
		ReadTimeout: c.args.ReadTimeout,
		OnMsg:       c.router.onDatagram,
	})
	if err != nil {
		xlog.Get(ctx).Warn("Open socket failed", zap.String("server", c.args.Server), zap.Any("err", err))
		return err
	}
	c.udp.Store(udp)

	c.group.Go("router", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
		case <-udp.Done():
			// router不自愈, 记录一次
			xlog.Get(ctx).Warn("Client socket closed")
		}
		return nil
	})
	if c.args.AutoSync > 0 {
		c.group.Go("auto sync", c.autoSync)
	}
	xlog.Get(ctx).Info("Client started", zap.Stringer("local", udp.LocalAddr()), zap.Stringer("server", udp.RemoteAddr()))
	return nil
}

// Close 取消后台任务, 等待worker退出并关闭socket
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		if c.pool != nil {
			_ = c.pool.Stop()
		}
		if c.group != nil {
			c.closeErr = c.group.Stop()
		}
		if udp := c.udp.Load(); udp != nil {
			udp.Close(ctx)
		}
	})
	return c.closeErr
}

func (c *Client) Clock() *timesync.Clock {
	return c.clock
}

func (c *Client) Alarms() []BookEntry {
	return c.book.Entries()
}

// LocalAddr 未就绪时返回空串
func (c *Client) LocalAddr() string {
	if udp := c.udp.Load(); udp != nil {
		return udp.LocalAddr().String()
	}
	return ""
}

// Sync 查询服务器时间. 成功则替换偏移和时区, 失败则保持不变.
func (c *Client) Sync(ctx context.Context) (time.Duration, error) {
	resp, err := c.Call(ctx, xmsg.TimeRequest(), c.args.Timeout)
	if err != nil {
		xlog.Get(ctx).Warn("Sync failed", zap.Any("err", err))
		c.presenter.ShowActivity(ctx, "sync failed: "+err.Error())
		return 0, err
	}
	serverTime, zone, err := xmsg.DecodeTime(resp.Text)
	if err != nil {
		xlog.Get(ctx).Warn("Sync failed, bad time response", zap.String("resp", resp.Text), zap.Any("err", err))
		c.presenter.ShowActivity(ctx, "sync failed: bad response")
		return 0, err
	}
	offset := c.clock.Apply(timesync.Sample{Sent: resp.Sent, Received: resp.Received, ServerTime: serverTime}, zone)
	xlog.Get(ctx).Info("Synced", zap.Duration("offset", offset), zap.Duration("rtt", resp.RTT()), zap.Stringer("zone", zone))
	c.presenter.ShowSync(ctx, c.clock.Now(), offset, zone)
	return offset, nil
}

// Ping 返回往返时间
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	resp, err := c.Call(ctx, xmsg.PingRequest(), c.args.Timeout)
	if err != nil {
		return 0, err
	}
	if resp.Text != xmsg.TextPong {
		return 0, errors.Errorf("unexpected ping response %q", resp.Text)
	}
	xlog.Get(ctx).Info("Ping", zap.Duration("rtt", resp.RTT()))
	return resp.RTT(), nil
}

// SetAlarm 生成新的闹钟id并注册到服务器
func (c *Client) SetAlarm(ctx context.Context, at xmsg.TimeOfDay) (string, xmsg.Result, error) {
	if !at.Valid() {
		return "", xmsg.Failure(xmsg.TextAlarmBadTime), nil
	}
	id := uuid.NewString()
	resp, err := c.Call(ctx, xmsg.AlarmSetRequest(id, at), c.args.Timeout)
	if err != nil {
		return "", xmsg.Result{}, err
	}
	res := resp.Result()
	if res.OK {
		c.book.Add(id, at)
	}
	xlog.Get(ctx).Info("Set alarm", zap.String("id", id), zap.Stringer("at", at), zap.String("resp", res.Text))
	c.presenter.ShowActivity(ctx, res.Text)
	return id, res, nil
}

func (c *Client) CancelAlarm(ctx context.Context, id string) (xmsg.Result, error) {
	resp, err := c.Call(ctx, xmsg.AlarmCancelRequest(id), c.args.Timeout)
	if err != nil {
		return xmsg.Result{}, err
	}
	res := resp.Result()
	if res.OK {
		c.book.Remove(id)
	}
	xlog.Get(ctx).Info("Cancel alarm", zap.String("id", id), zap.String("resp", res.Text))
	c.presenter.ShowActivity(ctx, res.Text)
	return res, nil
}

func (c *Client) CancelAllAlarms(ctx context.Context) (xmsg.Result, error) {
	resp, err := c.Call(ctx, xmsg.AlarmCancelAllRequest(), c.args.Timeout)
	if err != nil {
		return xmsg.Result{}, err
	}
	res := resp.Result()
	if res.OK {
		c.book.Clear()
	}
	xlog.Get(ctx).Info("Cancel all alarms", zap.String("resp", res.Text))
	c.presenter.ShowActivity(ctx, res.Text)
	return res, nil
}

// Calc 服务器端四则运算. 结果文本为数字或错误描述.
func (c *Client) Calc(ctx context.Context, lhs float64, op string, rhs float64) (xmsg.Result, error) {
	resp, err := c.Call(ctx, xmsg.CalcRequest(lhs, op, rhs), c.args.Timeout)
	if err != nil {
		return xmsg.Result{}, err
	}
	// 数字结果不含"success", 只有有限数字才算成功
	res := xmsg.Result{OK: isCalcValue(resp.Text), Text: resp.Text}
	xlog.Get(ctx).Info("Calc", zap.String("resp", res.Text))
	return res, nil
}

func isCalcValue(text string) bool {
	v, err := strconv.ParseFloat(text, 64)
	return err == nil && xmsg.IsFinite(v)
}

// Submit 提交用户触发的请求到有界worker池. 池满时返回ErrBusy.
// 任务错误只记录日志, 不影响其他任务.
func (c *Client) Submit(name string, fn func(ctx context.Context) error) error {
	if c.pool == nil {
		return ErrNotReady
	}
	ok := c.pool.TryGo(name, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			xlog.Get(ctx).Warn("Task failed", zap.Any("err", err))
		}
		return nil
	})
	if !ok {
		return ErrBusy
	}
	return nil
}

// autoSync 唯一的自动重试: 按固定间隔重新同步
func (c *Client) autoSync(ctx context.Context) error {
	ticker := time.NewTicker(c.args.AutoSync)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_, _ = c.Sync(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) onNotify(ctx context.Context, msg Message) {
	label, _ := xmsg.DecodeNotification(msg.Text)
	n := c.book.RemoveLabel(label)
	xlog.Get(ctx).Info("Alarm ring", zap.String("at", label), zap.Int("removed", n))
	c.presenter.ShowAlarm(ctx, label)
}
