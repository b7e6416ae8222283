package metrics

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/appic-solutions/ledger-suite-manager/log"
)

// InfluxReporter periodically pushes the metrics registry to an InfluxDB
// bucket, the same sink go-ethereum's metrics subsystem supports.
type InfluxReporter struct {
	client influxdb2.Client
	org    string
	bucket string
	tags   map[string]string
}

// NewInfluxReporter dials url (token may be empty for an unauthenticated
// local instance).
func NewInfluxReporter(url, token, org, bucket string, tags map[string]string) *InfluxReporter {
	return &InfluxReporter{
		client: influxdb2.NewClient(url, token),
		org:    org,
		bucket: bucket,
		tags:   tags,
	}
}

// Run blocks, pushing a snapshot every interval until ctx is canceled.
func (r *InfluxReporter) Run(ctx context.Context, interval time.Duration) {
	writeAPI := r.client.WriteAPIBlocking(r.org, r.bucket)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.client.Close()
			return
		case <-ticker.C:
			snap := Collect()
			now := time.Now()
			for name, v := range snap.Counters {
				p := write.NewPoint("counter", r.tags, map[string]interface{}{"value": v}, now)
				p.AddTag("name", name)
				if err := writeAPI.WritePoint(ctx, p); err != nil {
					log.Warn("influx reporter: write failed", "metric", name, "err", err)
				}
			}
			for name, v := range snap.Gauges {
				p := write.NewPoint("gauge", r.tags, map[string]interface{}{"value": v}, now)
				p.AddTag("name", name)
				if err := writeAPI.WritePoint(ctx, p); err != nil {
					log.Warn("influx reporter: write failed", "metric", name, "err", err)
				}
			}
		}
	}
}
