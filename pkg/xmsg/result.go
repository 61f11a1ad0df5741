package xmsg

import (
	"fmt"
	"strings"
)

// 响应文本. 客户端按子串"success"判断成功, 与旧协议兼容.
const (
	TextPong            = "PONG"
	TextAlarmSetFormat  = "Alarm set for %s successfully."
	TextAlarmBadFormat  = "Error: invalid alarm request format."
	TextAlarmBadTime    = "Error: invalid hour/minute."
	TextAlarmDuplicate  = "Error: alarm id already exists."
	TextCancelOK        = "Alarm cancelled successfully."
	TextCancelNotFound  = "Alarm not found."
	TextCancelBadFormat = "Error: invalid cancel request format."
	TextCancelAllOK     = "All alarms cancelled successfully."
	TextCalcDivByZero   = "Error: division by zero"
	TextCalcBadOperator = "Error: invalid operator"
	TextCalcNotNumber   = "Error: operands must be numbers"
	TextCalcBadFormat   = "Error: invalid calculation request format."
	TextUnknown         = "UNKNOWN: unrecognized request"
	TextInternal        = "Error: internal server error"
	successMarker       = "success"
)

// Result 应用层的成功/失败结果, 仅在线路上序列化为旧的自由文本
type Result struct {
	OK   bool
	Text string
}

func Success(text string) Result {
	return Result{OK: true, Text: text}
}

func Successf(format string, args ...interface{}) Result {
	return Result{OK: true, Text: fmt.Sprintf(format, args...)}
}

func Failure(text string) Result {
	return Result{OK: false, Text: text}
}

func (r Result) String() string {
	return r.Text
}

// ParseResult 从旧协议文本推断结果
func ParseResult(text string) Result {
	return Result{OK: strings.Contains(strings.ToLower(text), successMarker), Text: text}
}
