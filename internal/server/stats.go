package server

import (
	"net/http"

	"udptime/internal/alarm"
	"udptime/pkg/xmsg"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "timesvr"

// Stats 服务器指标, 每个Server一个独立的registry
type Stats struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	alarmsFired *prometheus.CounterVec
	writeErrors prometheus.Counter
	dropped     prometheus.Counter
}

func newStats(alarms *alarm.Registry) *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Requests handled, by verb and result.",
		}, []string{"verb", "result"}),
		alarmsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "alarms_fired_total",
			Help:      "Alarms removed by the sweeper, by push result.",
		}, []string{"result"}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "write_errors_total",
			Help:      "Datagrams the socket failed to write.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "responses_dropped_total",
			Help:      "Responses not queued because the socket was closed or full.",
		}),
	}
	s.registry.MustRegister(
		s.requests,
		s.alarmsFired,
		s.writeErrors,
		s.dropped,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "alarms_active",
			Help:      "Alarms currently registered.",
		}, func() float64 { return float64(alarms.Len()) }),
	)
	return s
}

func (s *Stats) observeRequest(verb xmsg.Verb, res xmsg.Result) {
	result := "ok"
	if !res.OK {
		result = "fail"
	}
	s.requests.WithLabelValues(verb.String(), result).Inc()
}

func (s *Stats) observeFired(err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	s.alarmsFired.WithLabelValues(result).Inc()
}

// Registry 供测试或外部exporter读取
func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
