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

	coremetrics "github.com/kilianp07/crisismatch/core/metrics"
	"github.com/kilianp07/crisismatch/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes match events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
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

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordMatch writes the decision as a match_decision point.
func (s *InfluxSink) RecordMatch(r coremetrics.MatchRecord) error {
	p := write.NewPointWithMeasurement("match_decision").
		AddTag("urgency", r.Urgency).
		AddTag("path", r.Path).
		AddTag("component", "match_engine")
	if r.ResponderID != "" {
		p = p.AddTag("responder_id", r.ResponderID)
	}
	if r.Strategy != "" {
		p = p.AddTag("strategy", r.Strategy)
	}
	p = p.AddField("session_id", r.SessionID).
		AddField("score", round3(r.Score)).
		AddField("latency_ms", round3(r.Latency.Seconds()*1000)).
		SetTime(r.Time)
	return s.write(p)
}

// RecordAlert writes an alert_raised point.
func (s *InfluxSink) RecordAlert(r coremetrics.AlertRecord) error {
	p := write.NewPointWithMeasurement("alert_raised").
		AddTag("kind", r.Kind).
		AddTag("severity", r.Severity)
	if r.ResponderID != "" {
		p = p.AddTag("responder_id", r.ResponderID)
	}
	p = p.AddField("count", 1).SetTime(r.Time)
	return s.write(p)
}

// RecordBurnout writes a burnout_assessment point.
func (s *InfluxSink) RecordBurnout(r coremetrics.BurnoutRecord) error {
	p := write.NewPointWithMeasurement("burnout_assessment").
		AddTag("responder_id", r.ResponderID).
		AddTag("level", r.Level).
		AddField("score", round3(r.Score)).
		SetTime(r.Time)
	return s.write(p)
}

// RecordAvailability writes an availability_change point.
func (s *InfluxSink) RecordAvailability(r coremetrics.AvailabilityRecord) error {
	p := write.NewPointWithMeasurement("availability_change").
		AddTag("responder_id", r.ResponderID).
		AddTag("status", r.Current).
		AddField("previous", r.Previous).
		AddField("reason", r.Reason).
		SetTime(r.Time)
	return s.write(p)
}

// RecordPoolSize writes the available pool size.
func (s *InfluxSink) RecordPoolSize(n int) error {
	p := write.NewPointWithMeasurement("available_pool").
		AddField("responders", n).
		SetTime(time.Now())
	return s.write(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
