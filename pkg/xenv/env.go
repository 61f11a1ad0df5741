package xenv

import (
	"github.com/caarlos0/env/v8"
	"github.com/pkg/errors"
)

/* example
type config struct {
	Addr        string        `env:"ADDR" envDefault:":9876"`
	SweepPeriod time.Duration `env:"SWEEP_PERIOD" envDefault:"30s"`
}
*/

// EnvLoad 解析环境变量到conf, prefix为变量名前缀(如 "TIMESVR_")
func EnvLoad(conf interface{}, prefix string) error {
	if err := env.ParseWithOptions(conf, env.Options{Prefix: prefix}); err != nil {
		return errors.Wrapf(err, "parse env %s*", prefix)
	}
	return nil
}
