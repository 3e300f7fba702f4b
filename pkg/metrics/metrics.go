package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供网关与 CLI 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		CacheRequests,
		DriverDuration, DriverErrors,
		CredentialsIssued, LinksShortCircuit,
	)
}

// CacheRequests 缓存查询（kind: credential | link；result: hit | miss | error）
var CacheRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cloudfile_cache_requests_total",
		Help: "凭证/链接缓存查询次数",
	},
	[]string{"kind", "result"},
)

// DriverDuration 驱动调用耗时（秒）
var DriverDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "cloudfile_driver_duration_seconds",
		Help:    "驱动调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"adapter", "op"},
)

// DriverErrors 驱动调用失败数
var DriverErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cloudfile_driver_errors_total",
		Help: "驱动调用失败总数",
	},
	[]string{"adapter", "op"},
)

// CredentialsIssued 实际向后端签发的凭证数（不含缓存命中）
var CredentialsIssued = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cloudfile_credentials_issued_total",
		Help: "向后端签发的临时凭证总数",
	},
	[]string{"adapter", "scoped"},
)

// LinksShortCircuit 公共读直出链接数
var LinksShortCircuit = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cloudfile_links_short_circuit_total",
		Help: "公共读直接拼接的链接总数",
	},
	[]string{"adapter"},
)

// ObserveDriver 记录一次驱动调用
func ObserveDriver(adapter, op string, start time.Time, err error) {
	DriverDuration.WithLabelValues(adapter, op).Observe(time.Since(start).Seconds())
	if err != nil {
		DriverErrors.WithLabelValues(adapter, op).Inc()
	}
}

// WritePrometheus 将 Prometheus 文本格式写入 w
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
