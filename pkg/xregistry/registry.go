package xregistry

import (
	"context"
	"fmt"
	"runtime/debug"

	"udptime/pkg/xlog"
	"udptime/pkg/xmsg"

	"go.uber.org/zap"
)

type HandleFunc func(ctx context.Context, call *Call) xmsg.Result

// Registry verb => handler
type Registry struct {
	handlers map[xmsg.Verb]HandleFunc
}

func New() *Registry {
	return &Registry{handlers: make(map[xmsg.Verb]HandleFunc)}
}

// 注册回调
// 非线程安全, 启动阶段调用
func (r *Registry) Register(verb xmsg.Verb, fn HandleFunc) {
	if verb == xmsg.VerbInvalid {
		panic("can not register handler for invalid verb")
	}
	if _, ok := r.handlers[verb]; ok {
		panic(fmt.Sprintf("verb[%v] is repeated.", verb))
	}
	r.handlers[verb] = fn
}

// Dispatch 总是返回一个结果: 无效请求返回解码时的错误文本, handler panic返回内部错误
func (r *Registry) Dispatch(ctx context.Context, call *Call) (res xmsg.Result) {
	req := call.Request
	if req.Verb == xmsg.VerbInvalid {
		xlog.Get(ctx).Info("Invalid request", zap.String("raw", req.Raw), zap.Stringer("intent", req.Intent))
		return xmsg.Failure(req.Problem)
	}

	handler := r.handlers[req.Verb]
	if handler == nil {
		xlog.Get(ctx).Warn("Can not find handler", zap.Stringer("verb", req.Verb))
		return xmsg.Failure(xmsg.TextUnknown)
	}

	defer func() {
		if p := recover(); p != nil {
			xlog.Get(ctx).Sugar().Errorf("Handler %v panic %v stack %v", req.Verb, p, string(debug.Stack()))
			res = xmsg.Failure(xmsg.TextInternal)
		}
	}()
	return handler(ctx, call)
}
