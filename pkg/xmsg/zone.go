package xmsg

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	zoneLocal     = "Local"
	zoneinfoDir   = "zoneinfo/"
	localtimeFile = "/etc/localtime"
)

var ErrUnresolvedZone = errors.New("cannot resolve host zone to an IANA name")

// LoadZone 加载时区. "Local"和空串解析为主机的IANA时区名,
// 保证响应中的(ZoneId)在对端可被加载.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == zoneLocal {
		resolved, ok := localZoneName()
		if !ok {
			return nil, ErrUnresolvedZone
		}
		name = resolved
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "zone %q", name)
	}
	return loc, nil
}

// localZoneName 与time包规则一致: TZ优先, 未设置时读/etc/localtime链接
func localZoneName() (string, bool) {
	if tz, ok := os.LookupEnv("TZ"); ok {
		tz = strings.TrimPrefix(tz, ":")
		switch {
		case tz == "":
			return "UTC", true
		case filepath.IsAbs(tz):
			return zoneFromPath(tz)
		default:
			return tz, true
		}
	}
	target, err := filepath.EvalSymlinks(localtimeFile)
	if err != nil {
		return "", false
	}
	return zoneFromPath(target)
}

func zoneFromPath(path string) (string, bool) {
	idx := strings.LastIndex(path, zoneinfoDir)
	if idx < 0 {
		return "", false
	}
	name := path[idx+len(zoneinfoDir):]
	return name, name != ""
}
