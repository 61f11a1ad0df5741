package server_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"udptime/internal/server"
	"udptime/pkg/xmsg"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now atomic.Pointer[time.Time]
}

func newFakeClock(t time.Time) *fakeClock {
	c := &fakeClock{}
	c.set(t)
	return c
}

func (c *fakeClock) set(t time.Time) { c.now.Store(&t) }
func (c *fakeClock) Now() time.Time  { return *c.now.Load() }

func startServer(t *testing.T, arg server.Args) *server.Server {
	t.Helper()
	arg.Addr = "127.0.0.1:0"
	if arg.ReadTimeout == 0 {
		arg.ReadTimeout = 50 * time.Millisecond
	}
	svr, err := server.New(arg)
	require.NoError(t, err)
	require.NoError(t, svr.Start(context.Background()))
	t.Cleanup(func() { _ = svr.Close(context.Background()) })
	return svr
}

func dial(t *testing.T, svr *server.Server) *net.UDPConn {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, svr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *net.UDPConn, timeout time.Duration) (string, bool) {
	t.Helper()
	buf := make([]byte, xmsg.MaxDatagram)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	n, err := conn.Read(buf)
	if err != nil {
		return "", false
	}
	return string(buf[:n]), true
}

func exchange(t *testing.T, conn *net.UDPConn, req string) string {
	t.Helper()
	_, err := conn.Write([]byte(req))
	require.NoError(t, err)
	resp, ok := read(t, conn, 2*time.Second)
	require.True(t, ok, "no response for %q", req)
	return resp
}

func TestDispatch(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 10, 15, 8, 9, 10, 0, time.UTC))
	svr := startServer(t, server.Args{Now: clock.Now})
	conn := dial(t, svr)

	tests := []struct {
		req  string
		want string
	}{
		{"TIME_REQUEST", "08:09:10 15/10/2026 (UTC)"},
		{"PING", "PONG"},
		{" ping\n", "PONG"},
		{"ALARM_SET:a1:07:30", "Alarm set for 07:30 successfully."},
		{"ALARM_SET:a1:08:00", xmsg.TextAlarmDuplicate},
		{"ALARM_SET:a2:24:00", xmsg.TextAlarmBadTime},
		{"ALARM_SET:a2:07", xmsg.TextAlarmBadFormat},
		{"ALARM_CANCEL:missing", xmsg.TextCancelNotFound},
		{"ALARM_CANCEL:a1", xmsg.TextCancelOK},
		{"ALARM_CANCEL:a1", xmsg.TextCancelNotFound},
		{"ALARM_CANCEL:a:b", xmsg.TextCancelBadFormat},
		{"ALARM_CANCEL_ALL", xmsg.TextCancelAllOK},
		{"ALARM_CANCEL_ALL", xmsg.TextCancelAllOK},
		{"CALC_REQUEST:0,/,0", xmsg.TextCalcDivByZero},
		{"CALC_REQUEST:1.5,+,2", "3.5"},
		{"CALC_REQUEST:10,-,12", "-2"},
		{"CALC_REQUEST:3,*,4", "12"},
		{"CALC_REQUEST:1,/,4", "0.25"},
		{"CALC_REQUEST:1,%,2", xmsg.TextCalcBadOperator},
		{"CALC_REQUEST:a,+,2", xmsg.TextCalcNotNumber},
		{"CALC_REQUEST:1e308,*,10", xmsg.TextCalcNotNumber},
		{"CALC_REQUEST:NaN,+,1", xmsg.TextCalcNotNumber},
		{"CALC_REQUEST:Inf,-,1", xmsg.TextCalcNotNumber},
		{"CALC_REQUEST:1,+", xmsg.TextCalcBadFormat},
		{"HELLO", xmsg.TextUnknown},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, exchange(t, conn, tt.req), tt.req)
	}
	require.Empty(t, svr.Alarms())
}

func TestTagEcho(t *testing.T) {
	svr := startServer(t, server.Args{})
	conn := dial(t, svr)

	require.Equal(t, "#7 PONG", exchange(t, conn, "#7 PING"))
	require.Equal(t, "#8 "+xmsg.TextUnknown, exchange(t, conn, "#8 HELLO"))
	require.Equal(t, "PONG", exchange(t, conn, "PING"))
}

func TestSetZone(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 10, 15, 8, 9, 10, 0, time.UTC))
	svr := startServer(t, server.Args{Now: clock.Now})
	conn := dial(t, svr)

	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	svr.SetZone(loc)
	require.Equal(t, "17:09:10 15/10/2026 (Asia/Tokyo)", exchange(t, conn, "TIME_REQUEST"))

	svr.SetZone(nil)
	require.Equal(t, loc, svr.Zone())
}

func TestReloadZone(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 10, 15, 8, 9, 10, 0, time.UTC))
	svr := startServer(t, server.Args{Now: clock.Now})
	conn := dial(t, svr)

	path := filepath.Join(t.TempDir(), "zone")
	require.NoError(t, os.WriteFile(path, []byte("Asia/Ho_Chi_Minh\n"), 0o644))
	require.NoError(t, svr.ReloadZone(ctx, path))
	require.Equal(t, "15:09:10 15/10/2026 (Asia/Ho_Chi_Minh)", exchange(t, conn, "TIME_REQUEST"))

	// 非法内容不改变当前时区
	require.NoError(t, os.WriteFile(path, []byte("Mars/Olympus"), 0o644))
	require.Error(t, svr.ReloadZone(ctx, path))
	require.NoError(t, os.WriteFile(path, []byte("  "), 0o644))
	require.Error(t, svr.ReloadZone(ctx, path))
	require.Error(t, svr.ReloadZone(ctx, filepath.Join(t.TempDir(), "missing")))
	require.Equal(t, "Asia/Ho_Chi_Minh", svr.Zone().String())
}

func TestAlarmPush(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 10, 15, 7, 30, 0, 0, time.UTC))
	svr := startServer(t, server.Args{Now: clock.Now, SweepPeriod: 10 * time.Millisecond})
	conn := dial(t, svr)

	require.Equal(t, "Alarm set for 07:31 successfully.", exchange(t, conn, "ALARM_SET:a1:07:31"))
	_, rung := read(t, conn, 100*time.Millisecond)
	require.False(t, rung)

	clock.set(time.Date(2026, 10, 15, 7, 31, 5, 0, time.UTC))
	msg, ok := read(t, conn, 2*time.Second)
	require.True(t, ok)
	require.Equal(t, "ALARM_RING:07:31", msg)
	require.Empty(t, svr.Alarms())

	// 同一分钟内不再触发
	_, rung = read(t, conn, 200*time.Millisecond)
	require.False(t, rung)
}

func TestInvalidSweepPeriod(t *testing.T) {
	_, err := server.New(server.Args{Addr: "127.0.0.1:0", SweepPeriod: 2 * time.Minute})
	require.Error(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	svr := startServer(t, server.Args{MetricsAddr: "127.0.0.1:0"})
	conn := dial(t, svr)
	require.Equal(t, "PONG", exchange(t, conn, "PING"))

	resp, err := http.Get("http://" + svr.MetricsAddr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `timesvr_requests_total{result="ok",verb="PING"} 1`)
	require.Contains(t, string(body), "timesvr_alarms_active 0")
}

func TestRunStopsOnCancel(t *testing.T) {
	svr, err := server.New(server.Args{Addr: "127.0.0.1:0", ReadTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svr.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
