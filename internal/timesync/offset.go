// Package timesync estimates the local clock correction from one request/response
// round trip and holds the currently adopted offset and zone.
package timesync

import (
	"sync/atomic"
	"time"
)

// Sample is one successful time query exchange.
type Sample struct {
	Sent       time.Time // t0, immediately before send
	Received   time.Time // t1, immediately after receive
	ServerTime time.Time
}

// RTT returns the round-trip time of the exchange.
func (s Sample) RTT() time.Duration {
	return s.Received.Sub(s.Sent)
}

// Offset assumes symmetric delay and assigns the server timestamp to the
// midpoint of the round trip: serverTime - (t1 - rtt/2).
func (s Sample) Offset() time.Duration {
	midpoint := s.Received.Add(-s.RTT() / 2)
	return s.ServerTime.Sub(midpoint)
}

// Clock is the local clock corrected by the most recent successful sync.
type Clock struct {
	state atomic.Pointer[clockState]
	now   func() time.Time
}

// offset和zone作为一个整体替换, 读方不会看到新旧混合
type clockState struct {
	offset time.Duration
	zone   *time.Location
	synced bool
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	c := &Clock{now: now}
	c.state.Store(&clockState{zone: time.Local})
	return c
}

// Apply replaces the offset and adopted zone. No smoothing across samples.
func (c *Clock) Apply(s Sample, zone *time.Location) time.Duration {
	off := s.Offset()
	for {
		old := c.state.Load()
		next := &clockState{offset: off, zone: old.zone, synced: true}
		if zone != nil {
			next.zone = zone
		}
		if c.state.CompareAndSwap(old, next) {
			return off
		}
	}
}

func (c *Clock) Offset() time.Duration {
	return c.state.Load().offset
}

func (c *Clock) Zone() *time.Location {
	return c.state.Load().zone
}

// Synced reports whether any sync has succeeded yet.
func (c *Clock) Synced() bool {
	return c.state.Load().synced
}

// Now is local time plus offset, in the adopted zone.
func (c *Clock) Now() time.Time {
	st := c.state.Load()
	return c.now().Add(st.offset).In(st.zone)
}
