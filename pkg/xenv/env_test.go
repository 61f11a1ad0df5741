package xenv_test

import (
	"testing"
	"time"

	"udptime/pkg/xenv"

	"github.com/stretchr/testify/require"
)

type conf struct {
	Addr   string        `env:"ADDR" envDefault:":9876"`
	Period time.Duration `env:"PERIOD" envDefault:"30s"`
}

func TestEnvLoad(t *testing.T) {
	t.Setenv("XENVTEST_PERIOD", "10s")

	c := conf{}
	require.NoError(t, xenv.EnvLoad(&c, "XENVTEST_"))
	require.Equal(t, ":9876", c.Addr)
	require.Equal(t, 10*time.Second, c.Period)
}

func TestEnvLoadBadValue(t *testing.T) {
	t.Setenv("XENVTEST_PERIOD", "soon")
	require.Error(t, xenv.EnvLoad(&conf{}, "XENVTEST_"))
}
