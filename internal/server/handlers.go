package server

import (
	"context"

	"udptime/internal/alarm"
	"udptime/pkg/xlog"
	"udptime/pkg/xmsg"
	"udptime/pkg/xregistry"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (s *Server) register() {
	s.handlers.Register(xmsg.VerbTime, s.handleTime)
	s.handlers.Register(xmsg.VerbPing, s.handlePing)
	s.handlers.Register(xmsg.VerbAlarmSet, s.handleAlarmSet)
	s.handlers.Register(xmsg.VerbAlarmCancel, s.handleAlarmCancel)
	s.handlers.Register(xmsg.VerbAlarmCancelAll, s.handleAlarmCancelAll)
	s.handlers.Register(xmsg.VerbCalc, s.handleCalc)
}

func (s *Server) handleTime(ctx context.Context, call *xregistry.Call) xmsg.Result {
	text := xmsg.EncodeTime(s.now(), s.Zone())
	xlog.Get(ctx).Info("Time request", zap.String("resp", text))
	return xmsg.Success(text)
}

func (s *Server) handlePing(ctx context.Context, call *xregistry.Call) xmsg.Result {
	xlog.Get(ctx).Debug("Ping")
	return xmsg.Success(xmsg.TextPong)
}

func (s *Server) handleAlarmSet(ctx context.Context, call *xregistry.Call) xmsg.Result {
	req := call.Request
	err := s.alarms.Set(req.AlarmID, req.At, call.Peer)
	switch {
	case err == nil:
		xlog.Get(ctx).Info("Alarm set", zap.String("id", req.AlarmID), zap.Stringer("at", req.At))
		return xmsg.Successf(xmsg.TextAlarmSetFormat, req.At)
	case errors.Is(err, alarm.ErrDuplicateID):
		xlog.Get(ctx).Info("Alarm id exists", zap.String("id", req.AlarmID))
		return xmsg.Failure(xmsg.TextAlarmDuplicate)
	case errors.Is(err, alarm.ErrInvalidTime):
		return xmsg.Failure(xmsg.TextAlarmBadTime)
	default:
		xlog.Get(ctx).Info("Alarm set rejected", zap.Any("err", err))
		return xmsg.Failure(xmsg.TextAlarmBadFormat)
	}
}

func (s *Server) handleAlarmCancel(ctx context.Context, call *xregistry.Call) xmsg.Result {
	id := call.Request.AlarmID
	if !s.alarms.Cancel(id) {
		xlog.Get(ctx).Info("Alarm not found", zap.String("id", id))
		return xmsg.Failure(xmsg.TextCancelNotFound)
	}
	xlog.Get(ctx).Info("Alarm cancelled", zap.String("id", id))
	return xmsg.Success(xmsg.TextCancelOK)
}

func (s *Server) handleAlarmCancelAll(ctx context.Context, call *xregistry.Call) xmsg.Result {
	n := s.alarms.CancelAll()
	xlog.Get(ctx).Info("All alarms cancelled", zap.Int("count", n))
	return xmsg.Success(xmsg.TextCancelAllOK)
}

func (s *Server) handleCalc(ctx context.Context, call *xregistry.Call) xmsg.Result {
	req := call.Request
	v, err := s.calc.eval(req.Lhs, req.Operator, req.Rhs)
	switch {
	case err == nil:
		text := xmsg.FormatNumber(v)
		xlog.Get(ctx).Info("Calc", zap.String("req", req.Raw), zap.String("resp", text))
		return xmsg.Success(text)
	case errors.Is(err, errDivByZero):
		return xmsg.Failure(xmsg.TextCalcDivByZero)
	case errors.Is(err, errBadOperator):
		return xmsg.Failure(xmsg.TextCalcBadOperator)
	case errors.Is(err, errNotFinite):
		xlog.Get(ctx).Info("Calc not finite", zap.String("req", req.Raw), zap.Any("err", err))
		return xmsg.Failure(xmsg.TextCalcNotNumber)
	default:
		xlog.Get(ctx).Warn("Calc failed", zap.String("req", req.Raw), zap.Any("err", err))
		return xmsg.Failure(xmsg.TextCalcNotNumber)
	}
}
