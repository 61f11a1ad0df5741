// Package config loads server and client settings from the environment.
// Command line flags applied afterwards take precedence.
package config

import (
	"time"

	"udptime/internal/alarm"
	"udptime/pkg/xenv"
	"udptime/pkg/xmsg"

	"github.com/pkg/errors"
)

const (
	ServerEnvPrefix = "TIMESVR_"
	ClientEnvPrefix = "TIMECLI_"
)

type Log struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	Prod  bool   `env:"LOG_PROD" envDefault:"false"`
}

type Server struct {
	Addr        string        `env:"ADDR" envDefault:":9876"`
	Zone        string        `env:"ZONE" envDefault:"UTC"`
	ZoneFile    string        `env:"ZONE_FILE"` // SIGHUP时从该文件重新读取时区名
	SweepPeriod time.Duration `env:"SWEEP_PERIOD" envDefault:"30s"`
	ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"1s"`
	MetricsAddr string        `env:"METRICS_ADDR"`
	LogFile     string        `env:"LOG_FILE" envDefault:"server.log"`
	Log
}

func LoadServer() (*Server, error) {
	conf := &Server{}
	if err := xenv.EnvLoad(conf, ServerEnvPrefix); err != nil {
		return nil, err
	}
	return conf, nil
}

// Location 解析时区名. Local解析为主机的IANA时区名, 无法解析时报错.
func (c *Server) Location() (*time.Location, error) {
	loc, err := xmsg.LoadZone(c.Zone)
	if err != nil {
		return nil, errors.Wrap(err, "server zone")
	}
	return loc, nil
}

func (c *Server) Validate() error {
	if c.Addr == "" {
		return errors.New("empty listen addr")
	}
	if c.SweepPeriod <= 0 || c.SweepPeriod > alarm.MaxPeriod {
		return errors.Errorf("sweep period %v out of range (0, %v]", c.SweepPeriod, alarm.MaxPeriod)
	}
	if c.ReadTimeout <= 0 {
		return errors.Errorf("read timeout %v must be positive", c.ReadTimeout)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

type Client struct {
	Server      string        `env:"SERVER" envDefault:"localhost:9876"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"3s"`
	ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"1s"`
	AutoSync    time.Duration `env:"AUTO_SYNC" envDefault:"0"`
	Workers     int           `env:"WORKERS" envDefault:"4"`
	Tagged      bool          `env:"TAGGED" envDefault:"false"`
	DisplayAddr string        `env:"DISPLAY_ADDR"`
	LogFile     string        `env:"LOG_FILE" envDefault:"client_log.txt"`
	Log
}

func LoadClient() (*Client, error) {
	conf := &Client{}
	if err := xenv.EnvLoad(conf, ClientEnvPrefix); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Client) Validate() error {
	if c.Server == "" {
		return errors.New("empty server addr")
	}
	if c.Timeout <= 0 {
		return errors.Errorf("timeout %v must be positive", c.Timeout)
	}
	if c.ReadTimeout <= 0 {
		return errors.Errorf("read timeout %v must be positive", c.ReadTimeout)
	}
	if c.AutoSync < 0 {
		return errors.Errorf("auto sync interval %v must not be negative", c.AutoSync)
	}
	if c.Workers <= 0 {
		return errors.Errorf("workers %d must be positive", c.Workers)
	}
	return nil
}
