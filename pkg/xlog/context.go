package xlog

import (
	"context"
	"net"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKeyType int

const loggerKey loggerKeyType = iota

// 生成一个新的子logger，绑定到新的context中
func NewContext(ctx context.Context, fields ...zapcore.Field) context.Context {
	return context.WithValue(ctx, loggerKey, newLogger(Get(ctx).Raw().With(fields...)))
}

// WithPeer binds the remote endpoint of a datagram to the context logger.
func WithPeer(ctx context.Context, addr net.Addr) context.Context {
	if addr == nil {
		return ctx
	}
	return NewContext(ctx, zap.String("peer", addr.String()))
}

// context获取logger
func Get(ctx context.Context) Logger {
	if ctx == nil {
		return current()
	}
	if ctxLogger, ok := ctx.Value(loggerKey).(Logger); ok {
		return ctxLogger
	}
	return current()
}
