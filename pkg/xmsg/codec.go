package xmsg

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Decode 解析请求文本. 不识别或字段错误的请求解码为VerbInvalid, 从不返回错误.
func Decode(text string) Request {
	raw := strings.TrimSpace(text)
	req := Request{Raw: raw}

	switch {
	case strings.HasPrefix(raw, prefixTime):
		req.Verb = VerbTime
	case strings.HasPrefix(raw, prefixAlarmSet):
		decodeAlarmSet(raw, &req)
	case strings.HasPrefix(raw, prefixAlarmCancel):
		parts := strings.Split(raw, fieldSep)
		if len(parts) != 2 || parts[1] == "" {
			req.invalid(VerbAlarmCancel, TextCancelBadFormat)
			break
		}
		req.Verb = VerbAlarmCancel
		req.AlarmID = parts[1]
	case strings.EqualFold(raw, wordAlarmCancelAll):
		req.Verb = VerbAlarmCancelAll
	case strings.HasPrefix(raw, prefixCalc):
		decodeCalc(raw, &req)
	case strings.EqualFold(raw, wordPing):
		req.Verb = VerbPing
	default:
		req.invalid(VerbInvalid, TextUnknown)
	}
	return req
}

func (req *Request) invalid(intent Verb, problem string) {
	req.Verb = VerbInvalid
	req.Intent = intent
	req.Problem = problem
}

func decodeAlarmSet(raw string, req *Request) {
	parts := strings.Split(raw, fieldSep)
	if len(parts) != 4 || parts[1] == "" {
		req.invalid(VerbAlarmSet, TextAlarmBadFormat)
		return
	}
	hour, herr := strconv.Atoi(parts[2])
	minute, merr := strconv.Atoi(parts[3])
	at := TimeOfDay{Hour: hour, Minute: minute}
	if herr != nil || merr != nil || !at.Valid() {
		req.invalid(VerbAlarmSet, TextAlarmBadTime)
		return
	}
	req.Verb = VerbAlarmSet
	req.AlarmID = parts[1]
	req.At = at
}

func decodeCalc(raw string, req *Request) {
	parts := strings.Split(strings.TrimPrefix(raw, prefixCalc), calcSep)
	if len(parts) != 3 {
		req.invalid(VerbCalc, TextCalcBadFormat)
		return
	}
	lhs, lerr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	rhs, rerr := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	// NaN/Inf 不是合法操作数
	if lerr != nil || rerr != nil || !IsFinite(lhs) || !IsFinite(rhs) {
		req.invalid(VerbCalc, TextCalcNotNumber)
		return
	}
	req.Verb = VerbCalc
	req.Lhs = lhs
	req.Operator = strings.TrimSpace(parts[1])
	req.Rhs = rhs
}

// Encode 请求编码为线路文本
func Encode(req Request) string {
	switch req.Verb {
	case VerbTime:
		return prefixTime
	case VerbPing:
		return wordPing
	case VerbAlarmSet:
		return prefixAlarmSet + req.AlarmID + fieldSep + req.At.String()
	case VerbAlarmCancel:
		return prefixAlarmCancel + req.AlarmID
	case VerbAlarmCancelAll:
		return wordAlarmCancelAll
	case VerbCalc:
		return prefixCalc + FormatNumber(req.Lhs) + calcSep + req.Operator + calcSep + FormatNumber(req.Rhs)
	default:
		return req.Raw
	}
}

func TimeRequest() Request { return Request{Verb: VerbTime} }

func PingRequest() Request { return Request{Verb: VerbPing} }

func AlarmSetRequest(id string, at TimeOfDay) Request {
	return Request{Verb: VerbAlarmSet, AlarmID: id, At: at}
}

func AlarmCancelRequest(id string) Request {
	return Request{Verb: VerbAlarmCancel, AlarmID: id}
}

func AlarmCancelAllRequest() Request { return Request{Verb: VerbAlarmCancelAll} }

func CalcRequest(lhs float64, op string, rhs float64) Request {
	return Request{Verb: VerbCalc, Lhs: lhs, Operator: op, Rhs: rhs}
}

// IsFinite 非NaN且非Inf
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FormatNumber 最短十进制表示
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IsNotification 是否为服务器主动推送的闹钟通知(三个同义前缀)
func IsNotification(text string) bool {
	_, ok := cutRing(text)
	return ok
}

// DecodeNotification 返回通知中的时间部分
func DecodeNotification(text string) (string, bool) {
	return cutRing(strings.TrimSpace(text))
}

// NormalizeNotification 将同义前缀统一为ALARM_RING:
func NormalizeNotification(text string) string {
	if payload, ok := DecodeNotification(text); ok {
		return prefixRing + payload
	}
	return text
}

func cutRing(text string) (string, bool) {
	for _, prefix := range ringPrefixes {
		if payload, ok := strings.CutPrefix(text, prefix); ok {
			return payload, true
		}
	}
	return "", false
}

// EncodeRing 闹钟触发通知
func EncodeRing(at TimeOfDay) string {
	return prefixRing + at.String()
}

// EncodeTime 时间查询响应: HH:mm:ss dd/MM/yyyy (ZoneId)
// 主机时区无法解析为IANA名时退回UTC, 响应中从不出现(Local).
func EncodeTime(now time.Time, loc *time.Location) string {
	if loc.String() == zoneLocal {
		resolved, err := LoadZone(zoneLocal)
		if err != nil {
			resolved = time.UTC
		}
		loc = resolved
	}
	return now.In(loc).Format(timeLayout) + " (" + loc.String() + ")"
}

// DecodeTime 解析时间查询响应. 缺少时区时按UTC处理.
func DecodeTime(text string) (time.Time, *time.Location, error) {
	timePart, zonePart, found := strings.Cut(strings.TrimSpace(text), "(")
	zone := defaultResponseZone
	if found {
		if z := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(zonePart), ")")); z != "" {
			zone = z
		}
	}
	// Local指向本机时区, 不能用来解释对端的时间
	if zone == zoneLocal {
		return time.Time{}, nil, errors.Errorf("ambiguous zone %q", zone)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, nil, errors.Wrapf(err, "bad zone %q", zone)
	}
	t, err := time.ParseInLocation(timeLayout, strings.TrimSpace(timePart), loc)
	if err != nil {
		return time.Time{}, nil, errors.Wrapf(err, "bad time %q", timePart)
	}
	return t, loc, nil
}

// Tag 添加关联id信封: "#<id> <payload>"
func Tag(id uint64, payload string) string {
	return tagPrefix + strconv.FormatUint(id, 10) + tagSep + payload
}

// Untag 拆出关联id. 无信封或id非法时原样返回, tagged为false.
func Untag(text string) (id uint64, payload string, tagged bool) {
	rest, ok := strings.CutPrefix(text, tagPrefix)
	if !ok {
		return 0, text, false
	}
	idPart, body, ok := strings.Cut(rest, tagSep)
	if !ok {
		return 0, text, false
	}
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		return 0, text, false
	}
	return id, body, true
}
