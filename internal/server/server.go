// Package server answers time, ping, alarm and arithmetic requests over UDP
// and pushes ALARM_RING notifications when registered alarms come due.
package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"udptime/internal/alarm"
	"udptime/pkg/xcommon"
	"udptime/pkg/xlog"
	"udptime/pkg/xmsg"
	"udptime/pkg/xnet"
	"udptime/pkg/xregistry"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const metricsPath = "/metrics"

type Args struct {
	Addr        string
	Zone        *time.Location
	SweepPeriod time.Duration
	ReadTimeout time.Duration
	MetricsAddr string // 空则不开启
	Now         func() time.Time
}

type Server struct {
	args     Args
	now      func() time.Time
	zone     atomic.Pointer[time.Location]
	alarms   *alarm.Registry
	handlers *xregistry.Registry
	calc     *calculator
	sweeper  *alarm.Sweeper
	stats    *Stats

	udp       atomic.Pointer[xnet.UDPServer]
	metricsLn net.Listener
	group     *xcommon.Group
	closeOnce sync.Once
	closeErr  error
}

func New(arg Args) (*Server, error) {
	if arg.Now == nil {
		arg.Now = time.Now
	}
	if arg.Zone == nil {
		arg.Zone = time.UTC
	}
	calc, err := newCalculator()
	if err != nil {
		return nil, err
	}
	s := &Server{
		args:     arg,
		now:      arg.Now,
		alarms:   alarm.NewRegistry(),
		handlers: xregistry.New(),
		calc:     calc,
	}
	s.zone.Store(arg.Zone)
	s.stats = newStats(s.alarms)
	s.register()

	s.sweeper, err = alarm.NewSweeper(alarm.SweeperArgs{
		Registry: s.alarms,
		Period:   arg.SweepPeriod,
		Send:     s.push,
		Now:      s.now,
		Zone:     s.Zone,
		OnFired: func(a alarm.Alarm, err error) {
			s.stats.observeFired(err)
		},
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start 打开socket并启动清扫和指标任务
func (s *Server) Start(ctx context.Context) error {
	// 读协程在socket句柄发布前收到的数据报等待ready, 保证每个请求都有应答
	ready := make(chan struct{})
	udp, err := xnet.NewUDPServer(ctx, xnet.UDPSvrArgs{
		Addr:        s.args.Addr,
		ReadTimeout: s.args.ReadTimeout,
		OnMsg: func(ctx context.Context, dg xnet.Datagram) {
			<-ready
			s.onDatagram(ctx, dg)
		},
		OnWriteErr: func(ctx context.Context, addr *net.UDPAddr, err error) {
			s.stats.writeErrors.Inc()
		},
	})
	if err != nil {
		return err
	}
	s.udp.Store(udp)
	close(ready)

	s.group = xcommon.NewGroup(ctx)
	s.group.Go("sweeper", s.sweeper.Run)
	s.group.Go("socket", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return nil
		case <-udp.Done():
			return errors.New("server socket closed")
		}
	})
	if s.args.MetricsAddr != "" {
		if err := s.serveMetrics(); err != nil {
			_ = s.Close(ctx)
			return err
		}
	}
	xlog.Get(ctx).Info("Time server started", zap.Stringer("addr", udp.LocalAddr()), zap.Stringer("zone", s.Zone()))
	return nil
}

func (s *Server) serveMetrics() error {
	ln, err := net.Listen("tcp", s.args.MetricsAddr)
	if err != nil {
		return errors.Wrapf(err, "listen metrics %s", s.args.MetricsAddr)
	}
	s.metricsLn = ln
	mux := http.NewServeMux()
	mux.Handle(metricsPath, s.stats.Handler())
	httpSrv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	s.group.Go("metrics", func(ctx context.Context) error {
		xlog.Get(ctx).Info("Metrics listen success.", zap.Stringer("addr", ln.Addr()))
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve metrics")
		}
		return nil
	})
	s.group.Go("metrics shutdown", func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return nil
}

// Run 启动并阻塞到ctx取消或socket异常退出
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-s.group.Context().Done():
	}
	return s.Close(ctx)
}

// Close 取消所有后台任务, 关闭socket并等待退出
func (s *Server) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		if s.group != nil {
			s.closeErr = s.group.Stop()
		}
		if udp := s.udp.Load(); udp != nil {
			udp.Close(ctx)
		}
		xlog.Get(ctx).Info("Time server stopped")
	})
	return s.closeErr
}

func (s *Server) onDatagram(ctx context.Context, dg xnet.Datagram) {
	ctx = xlog.WithPeer(ctx, dg.Addr)
	id, body, tagged := xmsg.Untag(strings.TrimSpace(string(dg.Payload)))
	req := xmsg.Decode(body)

	res := s.handlers.Dispatch(ctx, &xregistry.Call{Peer: dg.Addr, Request: req, At: dg.At})
	s.stats.observeRequest(req.Verb, res)

	out := res.Text
	if tagged {
		out = xmsg.Tag(id, out)
	}
	if err := s.push(ctx, []byte(out), dg.Addr); err != nil {
		s.stats.dropped.Inc()
		xlog.Get(ctx).Warn("Send response failed", zap.Any("err", err))
	}
}

func (s *Server) push(ctx context.Context, msg []byte, addr *net.UDPAddr) error {
	udp := s.udp.Load()
	if udp == nil {
		return xnet.ErrClosed
	}
	return udp.SendTo(ctx, msg, addr)
}

// SetZone 原子替换服务器时区, 对下一次请求和清扫可见
func (s *Server) SetZone(loc *time.Location) {
	if loc == nil {
		return
	}
	s.zone.Store(loc)
}

// ReloadZone 从文件读取时区名(如Asia/Tokyo)并原子替换
func (s *Server) ReloadZone(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read zone file")
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return errors.Errorf("zone file %s is empty", path)
	}
	loc, err := xmsg.LoadZone(name)
	if err != nil {
		return err
	}
	old := s.Zone()
	s.SetZone(loc)
	xlog.Get(ctx).Info("Zone changed", zap.Stringer("from", old), zap.Stringer("to", loc))
	return nil
}

func (s *Server) Zone() *time.Location {
	return s.zone.Load()
}

func (s *Server) Addr() *net.UDPAddr {
	return s.udp.Load().LocalAddr()
}

// MetricsAddr 未开启指标时返回nil
func (s *Server) MetricsAddr() net.Addr {
	if s.metricsLn == nil {
		return nil
	}
	return s.metricsLn.Addr()
}

func (s *Server) Alarms() []alarm.Alarm {
	return s.alarms.Snapshot()
}

func (s *Server) Stats() *Stats {
	return s.stats
}
