package client

import (
	"sort"
	"sync"

	"udptime/pkg/xmsg"
)

// BookEntry 本地记录的一个已设置闹钟
type BookEntry struct {
	ID string
	At xmsg.TimeOfDay
}

// AlarmBook 客户端侧的闹钟列表, 与服务器状态尽力保持一致
type AlarmBook struct {
	mu      sync.Mutex
	entries map[string]xmsg.TimeOfDay
}

func NewAlarmBook() *AlarmBook {
	return &AlarmBook{entries: make(map[string]xmsg.TimeOfDay)}
}

func (b *AlarmBook) Add(id string, at xmsg.TimeOfDay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[id] = at
}

func (b *AlarmBook) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[id]
	delete(b.entries, id)
	return ok
}

func (b *AlarmBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string]xmsg.TimeOfDay)
}

// RemoveLabel 删除所有时间标签为label(HH:mm)的条目, 返回删除数
func (b *AlarmBook) RemoveLabel(label string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, at := range b.entries {
		if at.String() == label {
			delete(b.entries, id)
			n++
		}
	}
	return n
}

// Entries 按时间再按id排序
func (b *AlarmBook) Entries() []BookEntry {
	b.mu.Lock()
	out := make([]BookEntry, 0, len(b.entries))
	for id, at := range b.entries {
		out = append(out, BookEntry{ID: id, At: at})
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].At != out[j].At {
			return out[i].At.String() < out[j].At.String()
		}
		return out[i].ID < out[j].ID
	})
	return out
}
