package xcommon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"udptime/pkg/xlog"
)

// SignalContext 返回在SIGINT/SIGTERM时取消的context
func SignalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// UntilSignal 阻塞直到收到退出信号或ctx被取消
func UntilSignal(ctx context.Context) {
	ctx, stop := SignalContext(ctx)
	defer stop()

	<-ctx.Done()
	xlog.Get(ctx).Info("Recv exit signal")
}

// WatchHangup 每次收到SIGHUP时调用fn, 直到ctx取消. Wait返回的WaitGroup等待监听协程退出.
func WatchHangup(ctx context.Context, fn func(ctx context.Context)) *WaitGroup {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)

	wg := &WaitGroup{}
	wg.Go(ctx, func(ctx context.Context) {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				xlog.Get(ctx).Info("Recv hangup signal")
				fn(ctx)
			}
		}
	})
	return wg
}
