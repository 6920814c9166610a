/*
 * @Description: Prometheus 指标
 * @Author: 安知鱼
 * @Date: 2026-09-12 15:02:44
 * @LastEditTime: 2026-09-26 18:30:10
 * @LastEditors: 安知鱼
 */
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce     sync.Once
	metricsInstance *FileHubMetrics
)

// FileHubMetrics 汇总了文件分发子系统的全部指标
type FileHubMetrics struct {
	// 存储后端调用
	StorageOps       *prometheus.CounterVec   // filehub_storage_operations_total{backend,op,result}
	StorageOpSeconds *prometheus.HistogramVec // filehub_storage_operation_seconds{backend,op}

	// 业务事件
	Publishes        *prometheus.CounterVec // filehub_publishes_total{result}
	ReadAcks         prometheus.Counter
	RecordsDeleted   prometheus.Counter
	ObjectsReclaimed prometheus.Counter
	ReclaimFailures  prometheus.Counter
	RateLimited      prometheus.Counter

	// 定时刷新的存量指标
	ActiveRecords prometheus.Gauge
	ActiveBytes   prometheus.Gauge
	StoredObjects prometheus.Gauge
	StoredBytes   prometheus.Gauge
}

// Init 初始化指标，只会注册一次，之后的调用返回同一个实例。
// registry 为 nil 时使用默认注册表。
func Init(registry prometheus.Registerer) *FileHubMetrics {
	metricsOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		f := promauto.With(registry)
		metricsInstance = &FileHubMetrics{
			StorageOps: f.NewCounterVec(prometheus.CounterOpts{
				Name: "filehub_storage_operations_total",
				Help: "Storage backend operations by backend, operation and result",
			}, []string{"backend", "op", "result"}),
			StorageOpSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "filehub_storage_operation_seconds",
				Help:    "Storage backend operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"backend", "op"}),
			Publishes: f.NewCounterVec(prometheus.CounterOpts{
				Name: "filehub_publishes_total",
				Help: "Publish attempts by result (stored, dedup_hit, rejected, rate_limited, failed)",
			}, []string{"result"}),
			ReadAcks: f.NewCounter(prometheus.CounterOpts{
				Name: "filehub_read_acknowledgements_total",
				Help: "New read acknowledgements recorded",
			}),
			RecordsDeleted: f.NewCounter(prometheus.CounterOpts{
				Name: "filehub_records_deleted_total",
				Help: "Distribution records flipped to inactive",
			}),
			ObjectsReclaimed: f.NewCounter(prometheus.CounterOpts{
				Name: "filehub_objects_reclaimed_total",
				Help: "Physical objects removed after their last reference disappeared",
			}),
			ReclaimFailures: f.NewCounter(prometheus.CounterOpts{
				Name: "filehub_reclaim_failures_total",
				Help: "Physical removals that failed and were left as cleanup debt",
			}),
			RateLimited: f.NewCounter(prometheus.CounterOpts{
				Name: "filehub_rate_limited_total",
				Help: "Uploads rejected by the per-publisher rate limiter",
			}),
			ActiveRecords: f.NewGauge(prometheus.GaugeOpts{
				Name: "filehub_active_records",
				Help: "Active distribution records",
			}),
			ActiveBytes: f.NewGauge(prometheus.GaugeOpts{
				Name: "filehub_active_record_bytes",
				Help: "Sum of sizes over active records, counting shared objects once per record",
			}),
			StoredObjects: f.NewGauge(prometheus.GaugeOpts{
				Name: "filehub_stored_objects",
				Help: "Distinct physical objects referenced by active records",
			}),
			StoredBytes: f.NewGauge(prometheus.GaugeOpts{
				Name: "filehub_stored_bytes",
				Help: "Bytes held by distinct physical objects referenced by active records",
			}),
		}
	})
	return metricsInstance
}
