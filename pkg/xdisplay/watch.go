package xdisplay

import (
	"context"
	"encoding/json"
	"net/url"

	"udptime/pkg/xlog"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Watch 连接到Hub并逐条回调事件, 直到ctx取消或连接断开
func Watch(ctx context.Context, addr, path string, fn func(Event)) error {
	if path == "" {
		path = "/"
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: path}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return errors.Wrapf(err, "dial %s", u.String())
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return errors.Wrap(err, "read display event")
		}
		ev := Event{}
		if err := json.Unmarshal(msg, &ev); err != nil {
			xlog.Get(ctx).Warn("Bad display event.", zap.Any("err", err))
			continue
		}
		fn(ev)
	}
}
