package xlog

import (
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const FieldTimestamp = "@timestamp"

var gLogger atomic.Pointer[xlogger]

func init() {
	l := newCoreLogger(zapcore.NewCore(getEncoder(false, true), zapcore.Lock(os.Stdout), zapcore.DebugLevel))
	gLogger.Store(l)
}

func current() Logger {
	return gLogger.Load()
}

// Options 日志初始化参数
type Options struct {
	Level    string // debug|info|warn|error
	Prod     bool   // json编码, 关闭颜色
	File     string // 追加写入的活动日志文件, 空则不写
	NoStdout bool   // 关闭标准输出
}

// Init 替换全局logger. 返回的close函数用于同步并关闭文件sink.
func Init(opts Options) (func() error, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	enabler := zap.NewAtomicLevelAt(lvl)

	cores := make([]zapcore.Core, 0, 2)
	if !opts.NoStdout {
		cores = append(cores, zapcore.NewCore(getEncoder(opts.Prod, !opts.Prod), zapcore.Lock(os.Stdout), enabler))
	}

	closeFn := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errors.Wrapf(err, "open log file %s", opts.File)
		}
		cores = append(cores, zapcore.NewCore(getEncoder(opts.Prod, false), zapcore.Lock(f), enabler))
		closeFn = func() error {
			_ = f.Sync()
			return f.Close()
		}
	}

	l := newCoreLogger(zapcore.NewTee(cores...))
	gLogger.Store(l)
	return func() error {
		_ = l.Sync()
		return closeFn()
	}, nil
}

func getEncoder(isProd bool, withColor bool) zapcore.Encoder {
	config := ecsCompatibleEncoder(withColor)
	config.TimeKey = FieldTimestamp
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	if isProd {
		return zapcore.NewJSONEncoder(config)
	}
	return zapcore.NewConsoleEncoder(config)
}

// Elastic Common Schema (ECS) 兼容的encoder格式, 便于日志被ELK归档
func ecsCompatibleEncoder(withColor bool) zapcore.EncoderConfig {
	return ecszap.EncoderConfig{
		EnableName:       true,
		EncodeName:       zapcore.FullNameEncoder,
		EnableStackTrace: true,
		EnableCaller:     true,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      customLevelEncoder(withColor),
		EncodeDuration:   zapcore.StringDurationEncoder,
	}.ToZapCoreEncoderConfig()
}

func newCoreLogger(core zapcore.Core) *xlogger {
	return &xlogger{Logger: zap.New(core,
		zap.WithCaller(true),
		// DPanic时自动增加Stacktrace
		zap.AddStacktrace(zap.NewAtomicLevelAt(zap.DPanicLevel)),
	)}
}
