package xregistry

import (
	"net"
	"time"

	"udptime/pkg/xmsg"
)

// Call 一次请求的上下文: 解码后的请求 + 来源端点, 每个数据报一个
type Call struct {
	Peer    *net.UDPAddr
	Request xmsg.Request
	At      time.Time // 接收时刻
}
