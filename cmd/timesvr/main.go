package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"udptime/internal/config"
	"udptime/internal/server"
	"udptime/pkg/xcommon"
	"udptime/pkg/xlog"

	"go.uber.org/zap"
)

var (
	addr        = flag.String("addr", "", "listen addr (env TIMESVR_ADDR)")
	zone        = flag.String("zone", "", "time zone, e.g. Asia/Ho_Chi_Minh (env TIMESVR_ZONE)")
	zoneFile    = flag.String("zone-file", "", "file holding a zone name, re-read on SIGHUP (env TIMESVR_ZONE_FILE)")
	sweepPeriod = flag.Duration("sweep", 0, "alarm sweep period, at most 1m (env TIMESVR_SWEEP_PERIOD)")
	metricsAddr = flag.String("metrics", "", "prometheus listen addr, empty disables (env TIMESVR_METRICS_ADDR)")
	logLevel    = flag.String("log-level", "", "debug|info|warn|error (env TIMESVR_LOG_LEVEL)")
	logFile     = flag.String("log-file", "", "activity log file (env TIMESVR_LOG_FILE)")
)

func loadConfig() (*config.Server, error) {
	conf, err := config.LoadServer()
	if err != nil {
		return nil, err
	}
	// 命令行参数优先于环境变量
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			conf.Addr = *addr
		case "zone":
			conf.Zone = *zone
		case "zone-file":
			conf.ZoneFile = *zoneFile
		case "sweep":
			conf.SweepPeriod = *sweepPeriod
		case "metrics":
			conf.MetricsAddr = *metricsAddr
		case "log-level":
			conf.Level = *logLevel
		case "log-file":
			conf.LogFile = *logFile
		}
	})
	return conf, conf.Validate()
}

func main() {
	flag.Parse()

	conf, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	closeLog, err := xlog.Init(xlog.Options{Level: conf.Level, Prod: conf.Prod, File: conf.LogFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, "log:", err)
		os.Exit(2)
	}
	defer closeLog()

	ctx := xlog.NewContext(context.Background(), zap.String("svc", "timesvr"))
	defer xcommon.Recover(ctx)

	loc, err := conf.Location()
	if err != nil {
		xlog.Get(ctx).Error("Load zone failed", zap.Any("err", err))
		return
	}
	svr, err := server.New(server.Args{
		Addr:        conf.Addr,
		Zone:        loc,
		SweepPeriod: conf.SweepPeriod,
		ReadTimeout: conf.ReadTimeout,
		MetricsAddr: conf.MetricsAddr,
		Now:         time.Now,
	})
	if err != nil {
		xlog.Get(ctx).Error("New server failed", zap.Any("err", err))
		return
	}

	ctx, stop := xcommon.SignalContext(ctx)
	defer stop()
	if conf.ZoneFile != "" {
		hupCtx, hupCancel := context.WithCancel(ctx)
		hup := xcommon.WatchHangup(hupCtx, func(ctx context.Context) {
			if err := svr.ReloadZone(ctx, conf.ZoneFile); err != nil {
				xlog.Get(ctx).Warn("Reload zone failed", zap.String("file", conf.ZoneFile), zap.Any("err", err))
			}
		})
		defer func() {
			hupCancel()
			hup.Wait()
		}()
	}
	if err := svr.Run(ctx); err != nil {
		xlog.Get(ctx).Error("Server exit with error", zap.Any("err", err))
	}
	if left := svr.Alarms(); len(left) > 0 {
		xlog.Get(ctx).Info("Pending alarms dropped on shutdown", zap.Int("count", len(left)))
	}
}
