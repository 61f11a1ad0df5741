package xlog

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

// termColor is an ANSI foreground color, same palette zap uses for TTY output.
type termColor uint8

const (
	colorRed     termColor = 31
	colorYellow  termColor = 33
	colorBlue    termColor = 34
	colorMagenta termColor = 35
)

func (c termColor) add(s string) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", uint8(c), s)
}

func encodeLevel(l zapcore.Level) (string, termColor) {
	switch l {
	case zapcore.DebugLevel:
		return "DEBUG", colorMagenta
	case zapcore.InfoLevel:
		return "INFO", colorBlue
	case zapcore.WarnLevel:
		return "WARN", colorYellow
	case zapcore.ErrorLevel:
		return "ERROR", colorRed
	default:
		return fmt.Sprintf("LEVEL(%d)", l), colorRed
	}
}

// 自定义LevelEncoder, 文件sink不带颜色
func customLevelEncoder(withColor bool) zapcore.LevelEncoder {
	return func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		lvlName, color := encodeLevel(l)
		if withColor {
			lvlName = color.add(lvlName)
		}
		enc.AppendString(lvlName)
	}
}

// ParseLevel accepts debug|info|warn|error, case-insensitive. Empty means debug.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.DebugLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return lvl, errors.Wrapf(err, "log level %q", s)
	}
	return lvl, nil
}
