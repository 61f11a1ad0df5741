package xcommon

import (
	"context"
	"fmt"
	"runtime/debug"

	"udptime/pkg/xlog"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Group 监督一组后台任务: 共享一个可取消的context, 任一任务出错即取消全部.
// panic被转换为error, 不会越过协程边界.
type Group struct {
	eg     *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{eg: eg, ctx: ctx, cancel: cancel}
}

// Context 所有任务共享的context, Stop或任务出错后Done
func (g *Group) Context() context.Context {
	return g.ctx
}

// SetLimit 限制并发任务数, 用作有界worker池
func (g *Group) SetLimit(n int) {
	g.eg.SetLimit(n)
}

// Go 启动一个命名任务
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.eg.Go(g.wrap(name, fn))
}

// TryGo 非阻塞提交, 达到并发上限时返回false
func (g *Group) TryGo(name string, fn func(ctx context.Context) error) bool {
	return g.eg.TryGo(g.wrap(name, fn))
}

func (g *Group) wrap(name string, fn func(ctx context.Context) error) func() error {
	return func() (err error) {
		ctx := xlog.NewContext(g.ctx, zap.String("task", name))
		defer func() {
			if r := recover(); r != nil {
				xlog.Get(ctx).Sugar().Errorf("Task panic %v stack %v", r, string(debug.Stack()))
				err = fmt.Errorf("task %s panic: %v", name, r)
			}
		}()
		return fn(ctx)
	}
}

// Stop 取消所有任务并等待退出
func (g *Group) Stop() error {
	g.cancel()
	return g.Wait()
}

// Wait 等待所有任务退出
func (g *Group) Wait() error {
	err := g.eg.Wait()
	g.cancel()
	return err
}
