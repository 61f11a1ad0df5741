// Package alarm holds the server-side alarm registry and the periodic sweep
// that fires due alarms exactly once.
package alarm

import (
	"net"
	"sort"
	"sync"

	"udptime/pkg/xmsg"

	"github.com/pkg/errors"
)

var (
	ErrDuplicateID = errors.New("alarm id already exists")
	ErrInvalidTime = errors.New("invalid alarm time")
	ErrEmptyID     = errors.New("empty alarm id")
)

// Alarm fires once at At (server zone) and is pushed to Owner.
type Alarm struct {
	ID    string
	At    xmsg.TimeOfDay
	Owner *net.UDPAddr
}

// Registry maps alarm id to alarm. Safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	alarms map[string]Alarm
}

func NewRegistry() *Registry {
	return &Registry{alarms: make(map[string]Alarm)}
}

// Set registers a new alarm. An existing id is never overwritten.
func (r *Registry) Set(id string, at xmsg.TimeOfDay, owner *net.UDPAddr) error {
	if id == "" {
		return ErrEmptyID
	}
	if !at.Valid() {
		return errors.Wrapf(ErrInvalidTime, "%02d:%02d", at.Hour, at.Minute)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alarms[id]; ok {
		return errors.Wrap(ErrDuplicateID, id)
	}
	r.alarms[id] = Alarm{ID: id, At: at, Owner: owner}
	return nil
}

// Cancel reports whether an alarm was removed.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alarms[id]; !ok {
		return false
	}
	delete(r.alarms, id)
	return true
}

// CancelAll empties the registry and returns how many alarms were removed.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.alarms)
	r.alarms = make(map[string]Alarm)
	return n
}

// TakeDue removes and returns every alarm set for at, in one critical section,
// so a due alarm is handed to exactly one caller.
func (r *Registry) TakeDue(at xmsg.TimeOfDay) []Alarm {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Alarm
	for id, a := range r.alarms {
		if a.At == at {
			due = append(due, a)
			delete(r.alarms, id)
		}
	}
	sortByID(due)
	return due
}

// Snapshot returns a copy of all alarms ordered by id.
func (r *Registry) Snapshot() []Alarm {
	r.mu.Lock()
	out := make([]Alarm, 0, len(r.alarms))
	for _, a := range r.alarms {
		out = append(out, a)
	}
	r.mu.Unlock()
	sortByID(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alarms)
}

func sortByID(alarms []Alarm) {
	sort.Slice(alarms, func(i, j int) bool { return alarms[i].ID < alarms[j].ID })
}
