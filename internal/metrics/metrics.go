// Package metrics holds the Prometheus collectors shared by the backup
// pipeline, the retention engine and the scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BackupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mariaback_backup_duration_seconds",
			Help:    "Duration of backup pipeline runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"host", "database"},
	)

	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mariaback_backups_total",
			Help: "Backup pipeline runs by result",
		},
		[]string{"host", "database", "result"},
	)

	BackupSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mariaback_backup_size_bytes",
			Help: "Size of the most recent backup artifact",
		},
		[]string{"host", "database"},
	)

	LastSuccessTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mariaback_last_success_timestamp_seconds",
			Help: "Unix time of the last successful backup",
		},
		[]string{"host", "database"},
	)

	RetentionDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mariaback_retention_deleted_total",
			Help: "Artifacts deleted by the retention engine",
		},
		[]string{"host", "database"},
	)

	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mariaback_restores_total",
			Help: "Restore pipeline runs by result",
		},
		[]string{"host", "database", "result"},
	)

	SchedulerTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mariaback_scheduler_ticks_total",
			Help: "Schedule loop evaluations",
		},
	)

	ScheduledRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mariaback_scheduled_runs_total",
			Help: "Backup runs dispatched by the scheduler",
		},
		[]string{"host", "database"},
	)

	NotificationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mariaback_notification_failures_total",
			Help: "Webhook deliveries that failed",
		},
	)
)
