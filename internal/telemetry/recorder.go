package telemetry

import (
	"strconv"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/plaf203-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/plaf203-core/internal/session"
)

// PointWriter queues points for writing. *influxdb.Client satisfies it.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Recorder writes session events as time-series points.
type Recorder struct {
	writer PointWriter
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w PointWriter) *Recorder {
	return &Recorder{writer: w}
}

// HandleEvent implements session.Listener.
func (r *Recorder) HandleEvent(ev session.Event) {
	if p := Point(ev); p != nil {
		r.writer.WritePoint(p)
	}
}

// Point converts ev to a point, or returns nil when the event carries
// nothing worth recording.
func Point(ev session.Event) *write.Point {
	measurement, tags, fields := describe(ev)
	if len(fields) == 0 {
		return nil
	}
	return influxdb.NewFeederPoint(measurement, ev.Serial, tags, fields, ev.Time)
}

func describe(ev session.Event) (string, map[string]string, map[string]any) { //nolint:gocyclo // flat switch over event payloads
	fields := map[string]any{}
	switch p := ev.Payload.(type) {
	case session.OnlineChanged:
		fields["online"] = p.Online
		return influxdb.MeasurementConnectivity, nil, fields

	case session.DriftStatus:
		fields["drift_ok"] = p.OK
		return influxdb.MeasurementClock, nil, fields

	case session.WifiInfo:
		if p.RSSI != nil {
			fields["rssi"] = *p.RSSI
		}
		return influxdb.MeasurementWifi, nil, fields

	case session.PowerState:
		tags := map[string]string{}
		if p.Mode != nil {
			tags["mode"] = p.Mode.String()
		}
		if p.Type != nil {
			tags["type"] = p.Type.String()
		}
		if p.BatteryLevel != nil {
			fields["battery_level"] = int(*p.BatteryLevel)
		}
		return influxdb.MeasurementPower, tags, fields

	case session.FoodState:
		if p.OutletBlocked != nil {
			fields["outlet_blocked"] = *p.OutletBlocked
		}
		if p.LowFill != nil {
			fields["low_fill"] = *p.LowFill
		}
		if p.MotorState != nil {
			fields["motor_state"] = *p.MotorState
		}
		return influxdb.MeasurementFood, nil, fields

	case session.FeedEnded:
		tags := map[string]string{"type": p.Type.String()}
		if p.PlanID != nil {
			tags["plan_id"] = strconv.Itoa(*p.PlanID)
		}
		fields["expected"] = p.Expected
		fields["actual"] = p.Actual
		fields["mismatch"] = p.Actual != p.Expected
		return influxdb.MeasurementFeed, tags, fields

	case session.DeviceFault:
		fields["code"] = p.Code
		return influxdb.MeasurementFault, nil, fields

	case session.Detection:
		fields["count"] = 1
		return influxdb.MeasurementDetection, map[string]string{"type": string(p.Type)}, fields

	case session.Firmware:
		if p.Progress != "" {
			if pct, err := strconv.Atoi(p.Progress); err == nil {
				fields["progress"] = pct
			}
		}
		if p.State != "" {
			fields["state"] = p.State
		}
		return influxdb.MeasurementFirmware, map[string]string{"stage": p.Stage}, fields
	}
	return "", nil, nil
}
