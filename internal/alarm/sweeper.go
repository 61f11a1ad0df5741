package alarm

import (
	"context"
	"net"
	"time"

	"udptime/pkg/xlog"
	"udptime/pkg/xmsg"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultPeriod = 30 * time.Second
	// a period longer than the minute granularity could skip a whole minute
	MaxPeriod = time.Minute
)

type SendFunc func(ctx context.Context, msg []byte, addr *net.UDPAddr) error

type SweeperArgs struct {
	Registry *Registry
	Period   time.Duration
	Send     SendFunc
	Now      func() time.Time
	Zone     func() *time.Location
	// OnFired is called once per fired alarm with the send result.
	OnFired func(a Alarm, err error)
}

type Sweeper struct {
	reg     *Registry
	period  time.Duration
	send    SendFunc
	now     func() time.Time
	zone    func() *time.Location
	onFired func(a Alarm, err error)
}

func NewSweeper(arg SweeperArgs) (*Sweeper, error) {
	if arg.Registry == nil || arg.Send == nil {
		return nil, errors.New("sweeper needs a registry and a send func")
	}
	if arg.Period == 0 {
		arg.Period = DefaultPeriod
	}
	if arg.Period < 0 || arg.Period > MaxPeriod {
		return nil, errors.Errorf("sweep period %v out of range (0, %v]", arg.Period, MaxPeriod)
	}
	if arg.Now == nil {
		arg.Now = time.Now
	}
	if arg.Zone == nil {
		arg.Zone = func() *time.Location { return time.UTC }
	}
	return &Sweeper{
		reg:     arg.Registry,
		period:  arg.Period,
		send:    arg.Send,
		now:     arg.Now,
		zone:    arg.Zone,
		onFired: arg.OnFired,
	}, nil
}

// Run sweeps immediately and then every period until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	xlog.Get(ctx).Info("Alarm sweeper started", zap.Duration("period", s.period))
	for {
		s.Sweep(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			xlog.Get(ctx).Info("Alarm sweeper stopped")
			return nil
		}
	}
}

// Sweep fires every alarm due at the current server minute. Due alarms are
// removed before sending, and a failed send does not put them back.
func (s *Sweeper) Sweep(ctx context.Context) []Alarm {
	now := s.now().In(s.zone())
	due := s.reg.TakeDue(xmsg.TimeOfDay{Hour: now.Hour(), Minute: now.Minute()})
	for _, a := range due {
		err := s.send(ctx, []byte(xmsg.EncodeRing(a.At)), a.Owner)
		if err != nil {
			xlog.Get(ctx).Warn("Send alarm notification failed", zap.String("id", a.ID), zap.Stringer("owner", a.Owner), zap.Any("err", err))
		} else {
			xlog.Get(ctx).Info("Alarm fired", zap.String("id", a.ID), zap.Stringer("at", a.At), zap.Stringer("owner", a.Owner))
		}
		if s.onFired != nil {
			s.onFired(a, err)
		}
	}
	return due
}
