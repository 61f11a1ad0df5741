package xcommon

import (
	"context"
	"runtime/debug"
	"sync"

	"udptime/pkg/xlog"
)

// 通过waitGroup控制协程
// defer wg.Done(ctx), 不可在套一层func, recover不可跳过多层defer函数
type WaitGroup struct {
	sync.WaitGroup
}

func (wg *WaitGroup) Done(ctx context.Context) {
	if r := recover(); r != nil {
		xlog.Get(ctx).Sugar().Errorf("Goroutine panic %v stack %v", r, string(debug.Stack()))
		panic(r)
	}
	wg.WaitGroup.Done()
}

// Go 启动一个受WaitGroup管理的协程
func (wg *WaitGroup) Go(ctx context.Context, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done(ctx)
		fn(ctx)
	}()
}

// defer Recover(ctx), 不可在套一层func, recover不可跳过多层defer函数
func Recover(ctx context.Context) {
	if r := recover(); r != nil {
		xlog.Get(ctx).Sugar().Errorf("Goroutine panic %v stack %v", r, string(debug.Stack()))
		panic(r)
	}
}
