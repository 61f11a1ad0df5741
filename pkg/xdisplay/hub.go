package xdisplay

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"udptime/pkg/xcommon"
	"udptime/pkg/xlog"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type HubArgs struct {
	Addr string
	Path string
}

// Hub 展示层推送中心, Publish不阻塞调用方
type Hub struct {
	upgrader *websocket.Upgrader
	listener net.Listener
	httpSrv  *http.Server
	wg       xcommon.WaitGroup

	mu   sync.Mutex
	subs map[*subscriber]bool
}

func NewHub(ctx context.Context, arg HubArgs) (*Hub, error) {
	if arg.Path == "" {
		arg.Path = "/"
	}
	listener, err := net.Listen("tcp", arg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen display %s", arg.Addr)
	}
	hub := &Hub{
		upgrader: &websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		listener: listener,
		subs:     make(map[*subscriber]bool),
	}
	mux := http.NewServeMux()
	mux.Handle(arg.Path, http.HandlerFunc(hub.serveWS))
	hub.httpSrv = &http.Server{
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			// 把传入的context作为每个request的基础context
			return ctx
		},
	}

	hub.wg.Add(1)
	go hub.serve(ctx)
	xlog.Get(ctx).Info("Display hub listen success.", zap.Stringer("addr", listener.Addr()))
	return hub, nil
}

func (hub *Hub) serve(ctx context.Context) {
	defer hub.wg.Done(ctx)
	if err := hub.httpSrv.Serve(hub.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		xlog.Get(ctx).Error("Display hub serve failed.", zap.Any("err", err))
	}
}

func (hub *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		xlog.Get(ctx).Warn("Upgrade connection failed", zap.Any("err", err))
		// upgrader will respond
		return
	}
	sub := newSubscriber(ctx, conn)
	hub.add(sub)
	sub.waitUntilClose()
	hub.del(sub)
}

// Addr 实际监听地址
func (hub *Hub) Addr() net.Addr {
	return hub.listener.Addr()
}

// Subscribers 当前展示端数量
func (hub *Hub) Subscribers() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.subs)
}

// Publish 广播事件, 慢的展示端会丢失事件
func (hub *Hub) Publish(ctx context.Context, ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		xlog.Get(ctx).Warn("Marshal display event failed.", zap.Any("err", err))
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for sub := range hub.subs {
		if err := sub.send(msg); err != nil {
			xlog.Get(ctx).Debug("Display event dropped.", zap.Any("err", err))
		}
	}
}

func (hub *Hub) Close(ctx context.Context) {
	hub.mu.Lock()
	subs := make([]*subscriber, 0, len(hub.subs))
	for sub := range hub.subs {
		subs = append(subs, sub)
	}
	hub.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	_ = hub.httpSrv.Close()
	hub.wg.Wait()
}

func (hub *Hub) add(sub *subscriber) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.subs[sub] = true
}

func (hub *Hub) del(sub *subscriber) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	delete(hub.subs, sub)
}
