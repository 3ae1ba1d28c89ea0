package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	TourSavesTotal        metric.Int64Counter
	TourSaveDurationSecs  metric.Float64Histogram
	RemoteCallErrorsTotal metric.Int64Counter
	MediaRejectionsTotal  metric.Int64Counter
	ChildRecordsRecreated metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments once, using the
// globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("TourAdmin")
		var err error
		m := &AppMetrics{}

		m.TourSavesTotal, err = meter.Int64Counter(
			"tour_saves_total",
			metric.WithDescription("Total number of tour save operations completed"),
			metric.WithUnit("{save}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create tour_saves_total: %v", err)
		}

		m.TourSaveDurationSecs, err = meter.Float64Histogram(
			"tour_save_duration_seconds",
			metric.WithDescription("Duration of tour save operations in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create tour_save_duration_seconds: %v", err)
		}

		m.RemoteCallErrorsTotal, err = meter.Int64Counter(
			"remote_call_errors_total",
			metric.WithDescription("Total number of failed store operations during saves"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create remote_call_errors_total: %v", err)
		}

		m.MediaRejectionsTotal, err = meter.Int64Counter(
			"media_rejections_total",
			metric.WithDescription("Total number of rejected media intake batches"),
			metric.WithUnit("{batch}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create media_rejections_total: %v", err)
		}

		m.ChildRecordsRecreated, err = meter.Int64Counter(
			"child_records_recreated_total",
			metric.WithDescription("Total number of child records recreated by collection syncs"),
			metric.WithUnit("{record}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create child_records_recreated_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the initialized metrics, or nil if InitAppMetrics was not called.
func Get() *AppMetrics {
	return appMetrics
}
