package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/railsched/core/logger"
	coremetrics "github.com/kilianp07/railsched/core/metrics"
	infralogger "github.com/kilianp07/railsched/infra/logger"
)

const component = "optimizer"

// InfluxSink writes optimization outcomes to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      infralogger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// OptimizationPoint builds the line protocol point of an optimization record.
func OptimizationPoint(rec coremetrics.OptimizationRecord) *write.Point {
	m := rec.Metrics
	p := write.NewPointWithMeasurement("optimization_result").
		AddTag("component", component).
		AddTag("section_id", rec.SectionID).
		AddTag("status", string(rec.Status)).
		AddField("request_id", rec.RequestID).
		AddField("trains", rec.Trains).
		AddField("skipped_constraints", rec.Skipped).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000)).
		AddField("total_delay_minutes", round3(m.TotalDelayMinutes)).
		AddField("average_delay_minutes", round3(m.AverageDelayMinutes)).
		AddField("throughput_per_hour", round3(m.ThroughputPerHour)).
		AddField("utilization_percent", round3(m.UtilizationPercent)).
		AddField("energy_kwh", round3(m.EnergyKWh)).
		AddField("conflicts_resolved", m.ConflictsResolved).
		SetTime(rec.Time)
	if rec.Error != "" {
		p = p.AddField("error", rec.Error)
	}
	return p
}

// RecordOptimization writes the optimization outcome.
func (s *InfluxSink) RecordOptimization(rec coremetrics.OptimizationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, OptimizationPoint(rec))
}

// RecordConstraintSkip writes a skipped constraint.
func (s *InfluxSink) RecordConstraintSkip(rec coremetrics.ConstraintSkipRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("constraint_skipped").
		AddTag("component", component).
		AddTag("kind", string(rec.Kind)).
		AddField("request_id", rec.RequestID).
		AddField("constraint_id", rec.ConstraintID).
		AddField("reason", rec.Reason).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
