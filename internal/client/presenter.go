package client

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"udptime/pkg/xdisplay"
)

// Presenter 展示层. 实现不可阻塞调用方.
type Presenter interface {
	ShowSync(ctx context.Context, now time.Time, offset time.Duration, zone *time.Location)
	ShowAlarm(ctx context.Context, label string)
	ShowActivity(ctx context.Context, text string)
}

type nopPresenter struct{}

func (nopPresenter) ShowSync(context.Context, time.Time, time.Duration, *time.Location) {}
func (nopPresenter) ShowAlarm(context.Context, string)                                  {}
func (nopPresenter) ShowActivity(context.Context, string)                               {}

// ConsolePresenter 输出到终端
type ConsolePresenter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsolePresenter(w io.Writer) *ConsolePresenter {
	return &ConsolePresenter{w: w}
}

func (p *ConsolePresenter) ShowSync(ctx context.Context, now time.Time, offset time.Duration, zone *time.Location) {
	p.println(fmt.Sprintf("synced: %s (%s), offset %v", now.Format("15:04:05 02/01/2006"), zone, offset))
}

func (p *ConsolePresenter) ShowAlarm(ctx context.Context, label string) {
	p.println("ALARM " + label)
}

func (p *ConsolePresenter) ShowActivity(ctx context.Context, text string) {
	p.println(text)
}

func (p *ConsolePresenter) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

// HubPresenter 推送到websocket展示层
type HubPresenter struct {
	hub *xdisplay.Hub
}

func NewHubPresenter(hub *xdisplay.Hub) *HubPresenter {
	return &HubPresenter{hub: hub}
}

func (p *HubPresenter) ShowSync(ctx context.Context, now time.Time, offset time.Duration, zone *time.Location) {
	p.hub.Publish(ctx, xdisplay.Event{
		Kind:     xdisplay.KindSync,
		At:       now,
		OffsetMs: offset.Milliseconds(),
		Zone:     zone.String(),
	})
}

func (p *HubPresenter) ShowAlarm(ctx context.Context, label string) {
	p.hub.Publish(ctx, xdisplay.Event{Kind: xdisplay.KindAlarm, At: time.Now(), Text: label})
}

func (p *HubPresenter) ShowActivity(ctx context.Context, text string) {
	p.hub.Publish(ctx, xdisplay.Event{Kind: xdisplay.KindActivity, At: time.Now(), Text: text})
}

// Presenters 广播到多个展示层
type Presenters []Presenter

func (ps Presenters) ShowSync(ctx context.Context, now time.Time, offset time.Duration, zone *time.Location) {
	for _, p := range ps {
		p.ShowSync(ctx, now, offset, zone)
	}
}

func (ps Presenters) ShowAlarm(ctx context.Context, label string) {
	for _, p := range ps {
		p.ShowAlarm(ctx, label)
	}
}

func (ps Presenters) ShowActivity(ctx context.Context, text string) {
	for _, p := range ps {
		p.ShowActivity(ctx, text)
	}
}
