package config_test

import (
	"testing"
	"time"

	"udptime/internal/config"

	"github.com/stretchr/testify/require"
)

func TestServerDefaults(t *testing.T) {
	conf, err := config.LoadServer()
	require.NoError(t, err)
	require.Equal(t, ":9876", conf.Addr)
	require.Equal(t, 30*time.Second, conf.SweepPeriod)
	require.Equal(t, "server.log", conf.LogFile)
	require.Equal(t, "info", conf.Level)
	require.NoError(t, conf.Validate())
}

func TestServerEnv(t *testing.T) {
	t.Setenv("TIMESVR_ADDR", "127.0.0.1:0")
	t.Setenv("TIMESVR_ZONE", "Asia/Tokyo")
	t.Setenv("TIMESVR_SWEEP_PERIOD", "10s")
	t.Setenv("TIMESVR_LOG_PROD", "true")

	conf, err := config.LoadServer()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:0", conf.Addr)
	require.Equal(t, 10*time.Second, conf.SweepPeriod)
	require.True(t, conf.Prod)
	loc, err := conf.Location()
	require.NoError(t, err)
	require.Equal(t, "Asia/Tokyo", loc.String())
}

func TestServerValidate(t *testing.T) {
	conf, err := config.LoadServer()
	require.NoError(t, err)

	conf.SweepPeriod = 90 * time.Second
	require.Error(t, conf.Validate())

	conf.SweepPeriod = time.Minute
	conf.Zone = "Mars/Olympus"
	require.Error(t, conf.Validate())
}

func TestServerLocalZone(t *testing.T) {
	t.Setenv("TZ", "Asia/Ho_Chi_Minh")
	t.Setenv("TIMESVR_ZONE", "Local")
	conf, err := config.LoadServer()
	require.NoError(t, err)
	require.NoError(t, conf.Validate())
	loc, err := conf.Location()
	require.NoError(t, err)
	require.Equal(t, "Asia/Ho_Chi_Minh", loc.String())

	// 无法得到IANA名时拒绝
	t.Setenv("TZ", "/etc/weird-zone")
	require.Error(t, conf.Validate())
}

func TestServerBadEnv(t *testing.T) {
	t.Setenv("TIMESVR_SWEEP_PERIOD", "soon")
	_, err := config.LoadServer()
	require.Error(t, err)
}

func TestClientConfig(t *testing.T) {
	conf, err := config.LoadClient()
	require.NoError(t, err)
	require.Equal(t, "localhost:9876", conf.Server)
	require.Equal(t, 3*time.Second, conf.Timeout)
	require.Equal(t, 4, conf.Workers)
	require.Zero(t, conf.AutoSync)
	require.False(t, conf.Tagged)
	require.NoError(t, conf.Validate())

	t.Setenv("TIMECLI_TAGGED", "true")
	t.Setenv("TIMECLI_AUTO_SYNC", "1m")
	conf, err = config.LoadClient()
	require.NoError(t, err)
	require.True(t, conf.Tagged)
	require.Equal(t, time.Minute, conf.AutoSync)

	conf.Workers = 0
	require.Error(t, conf.Validate())
}
