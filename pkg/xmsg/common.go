package xmsg

import "fmt"

// MaxDatagram 单个数据报的最大字节数
const MaxDatagram = 4096

// Verb 请求类型
type Verb int

const (
	VerbInvalid Verb = iota
	VerbTime
	VerbPing
	VerbAlarmSet
	VerbAlarmCancel
	VerbAlarmCancelAll
	VerbCalc
)

const (
	prefixTime          = "TIME_REQUEST"
	wordPing            = "PING"
	prefixAlarmSet      = "ALARM_SET:"
	prefixAlarmCancel   = "ALARM_CANCEL:"
	wordAlarmCancelAll  = "ALARM_CANCEL_ALL"
	prefixCalc          = "CALC_REQUEST:"
	prefixRing          = "ALARM_RING:"
	prefixRingTriggered = "ALARM_TRIGGERED:"
	prefixRingTrigger   = "ALARM_TRIGGER:"
	fieldSep            = ":"
	calcSep             = ","
	timeLayout          = "15:04:05 02/01/2006"
	defaultResponseZone = "UTC"
	tagPrefix           = "#"
	tagSep              = " "
)

// 通知前缀, 第一个为规范形式
var ringPrefixes = []string{prefixRing, prefixRingTriggered, prefixRingTrigger}

var verbNames = map[Verb]string{
	VerbInvalid:        "INVALID",
	VerbTime:           prefixTime,
	VerbPing:           wordPing,
	VerbAlarmSet:       "ALARM_SET",
	VerbAlarmCancel:    "ALARM_CANCEL",
	VerbAlarmCancelAll: wordAlarmCancelAll,
	VerbCalc:           "CALC_REQUEST",
}

func (v Verb) String() string {
	if name, ok := verbNames[v]; ok {
		return name
	}
	return fmt.Sprintf("VERB(%d)", int(v))
}

// TimeOfDay 闹钟触发时间, 只精确到分钟
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Request 解码后的请求. Verb为VerbInvalid时, Intent表示文本声明的类型, Problem为错误响应文本.
type Request struct {
	Verb    Verb
	Intent  Verb
	Problem string

	AlarmID string
	At      TimeOfDay

	Lhs      float64
	Operator string
	Rhs      float64

	Raw string
}
