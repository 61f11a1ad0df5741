package server

import (
	"errors"
	"testing"

	"udptime/internal/alarm"
	"udptime/pkg/xmsg"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	alarms := alarm.NewRegistry()
	stats := newStats(alarms)

	stats.observeRequest(xmsg.VerbPing, xmsg.Success(xmsg.TextPong))
	stats.observeRequest(xmsg.VerbCalc, xmsg.Failure(xmsg.TextCalcDivByZero))
	stats.observeRequest(xmsg.VerbCalc, xmsg.Failure(xmsg.TextCalcDivByZero))
	stats.observeFired(nil)
	stats.observeFired(errors.New("unreachable"))

	require.Equal(t, 1.0, testutil.ToFloat64(stats.requests.WithLabelValues("PING", "ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(stats.requests.WithLabelValues("CALC_REQUEST", "fail")))
	require.Equal(t, 1.0, testutil.ToFloat64(stats.alarmsFired.WithLabelValues("failed")))

	require.NoError(t, alarms.Set("a1", xmsg.TimeOfDay{Hour: 1}, nil))
	n, err := testutil.GatherAndCount(stats.Registry(), "timesvr_alarms_active")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
