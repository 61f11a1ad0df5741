// Package xdisplay 通过websocket向展示层推送时间/偏移/闹钟事件.
package xdisplay

import "time"

const (
	KindSync     = "sync"
	KindAlarm    = "alarm"
	KindActivity = "activity"
)

// Event 推送给展示层的一条更新
type Event struct {
	Kind     string    `json:"kind"`
	At       time.Time `json:"at"`
	Text     string    `json:"text,omitempty"`
	OffsetMs int64     `json:"offsetMs,omitempty"`
	Zone     string    `json:"zone,omitempty"`
}
