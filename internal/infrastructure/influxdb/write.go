package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the feeder core.
const (
	MeasurementConnectivity = "feeder_connectivity"
	MeasurementWifi         = "feeder_wifi"
	MeasurementClock        = "feeder_clock"
	MeasurementPower        = "feeder_power"
	MeasurementFood         = "feeder_food"
	MeasurementFeed         = "feeder_feed"
	MeasurementFault        = "feeder_fault"
	MeasurementDetection    = "feeder_detection"
	MeasurementFirmware     = "feeder_firmware"
)

// NewFeederPoint builds a point tagged with the feeder serial plus any
// extra tags. Empty tag values are skipped so optional context (plan id,
// output type) never produces blank series.
//
// Example:
//
//	p := influxdb.NewFeederPoint(influxdb.MeasurementFeed, "AF0123",
//	    map[string]string{"type": "PLAN"},
//	    map[string]any{"expected": 5, "actual": 4}, time.Now())
func NewFeederPoint(measurement, serial string, tags map[string]string, fields map[string]any, ts time.Time) *write.Point {
	p := write.NewPointWithMeasurement(measurement).
		AddTag("serial", serial).
		SetTime(ts)
	for k, v := range tags {
		if v != "" {
			p.AddTag(k, v)
		}
	}
	for k, v := range fields {
		p.AddField(k, v)
	}
	return p
}

// WriteFeederMetric is shorthand for a single-field point stamped now.
func (c *Client) WriteFeederMetric(measurement, serial, field string, value any) {
	c.WritePoint(NewFeederPoint(measurement, serial, nil, map[string]any{field: value}, time.Now()))
}
