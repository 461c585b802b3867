package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/bqflow/internal/domain"
)

const namespace = "bqflow"

// Metrics — Prometheus метрики выполнения.
//
// Все методы безопасны для nil-получателя: компоненты, созданные
// без метрик, просто ничего не записывают.
type Metrics struct {
	TasksTotal    *prometheus.CounterVec
	TaskDuration  prometheus.Histogram
	BytesBilled   prometheus.Counter
	QueueDepth    prometheus.Gauge
	BusyWorkers   prometheus.Gauge
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	ScheduledRuns prometheus.Counter
}

// NewMetrics регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Total leaf tasks executed, by status",
		}, []string{"status"}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Backend execution time of leaf tasks",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		BytesBilled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_billed_total",
			Help:      "Total bytes billed by the backend",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Tasks waiting for a worker",
		}),
		BusyWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "busy_workers",
			Help:      "Workers currently executing a task",
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total workflow runs, by final status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of workflow runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		}),
		ScheduledRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_runs_total",
			Help:      "Runs triggered by the scheduler",
		}),
	}
}

// ObserveTask записывает отчёт о leaf-задаче.
func (m *Metrics) ObserveTask(report domain.TaskReport) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(string(report.Status)).Inc()
	if report.Status == domain.TaskStatusSucceeded {
		m.TaskDuration.Observe(report.Duration)
		m.BytesBilled.Add(float64(report.TotalBytesBilled))
	}
}

// ObserveRun записывает завершённый run.
func (m *Metrics) ObserveRun(run *domain.Run) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(string(run.Status)).Inc()
	m.RunDuration.Observe(run.Duration().Seconds())
}

// SetQueueDepth выставляет текущую длину очереди.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// WorkerBusy отмечает начало (+1) или конец (-1) выполнения задачи.
func (m *Metrics) WorkerBusy(delta int) {
	if m == nil {
		return
	}
	m.BusyWorkers.Add(float64(delta))
}

// ScheduledRun отмечает срабатывание расписания.
func (m *Metrics) ScheduledRun() {
	if m == nil {
		return
	}
	m.ScheduledRuns.Inc()
}

// Handler возвращает HTTP handler для /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
