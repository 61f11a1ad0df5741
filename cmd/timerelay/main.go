package main

import (
	"context"
	"flag"
	"time"

	"udptime/pkg/xcommon"
	"udptime/pkg/xlatency"
	"udptime/pkg/xlog"

	"go.uber.org/zap"
)

var (
	listen   = flag.String("listen", ":9877", "client facing addr")
	upstream = flag.String("upstream", "127.0.0.1:9876", "timesvr addr")
	loss     = flag.Uint("loss", 0, "packet loss percent 0~100")
	delay    = flag.Duration("delay", 0, "fixed one-way delay")
	jitter   = flag.Duration("jitter", 0, "extra random one-way delay")
)

// 在timecli和timesvr之间模拟丢包/延迟
func main() {
	flag.Parse()
	ctx := xlog.NewContext(context.Background(), zap.String("svc", "timerelay"))
	defer xcommon.Recover(ctx)

	relay, err := xlatency.NewRelay(ctx, xlatency.RelayArgs{
		Listen:   *listen,
		Upstream: *upstream,
		Loss:     uint32(*loss),
		Delay:    *delay,
		Jitter:   *jitter,
		Tick:     time.Millisecond,
	})
	if err != nil {
		xlog.Get(ctx).Error("Start relay failed", zap.Any("err", err))
		return
	}
	defer relay.Close(ctx)

	xcommon.UntilSignal(ctx)
}
