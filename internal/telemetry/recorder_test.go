package telemetry

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/plaf203-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/plaf203-core/internal/protocol"
	"github.com/nerrad567/plaf203-core/internal/session"
)

var testNow = time.Date(2026, 10, 18, 8, 30, 0, 0, time.UTC)

type captureWriter struct {
	points []*write.Point
}

func (c *captureWriter) WritePoint(p *write.Point) { c.points = append(c.points, p) }

func tagValue(p *write.Point, key string) string {
	for _, t := range p.TagList() {
		if t.Key == key {
			return t.Value
		}
	}
	return ""
}

func fieldValue(p *write.Point, key string) any {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

func TestPoint(t *testing.T) {
	rssi := -61
	battery := protocol.Percentage(80)
	blocked := true
	planID := 3

	tests := []struct {
		name        string
		payload     any
		measurement string
		tag         [2]string
		field       string
		want        any
	}{
		{"online", session.OnlineChanged{Online: true}, influxdb.MeasurementConnectivity, [2]string{}, "online", true},
		{"drift", session.DriftStatus{OK: false}, influxdb.MeasurementClock, [2]string{}, "drift_ok", false},
		{"rssi", session.WifiInfo{RSSI: &rssi}, influxdb.MeasurementWifi, [2]string{}, "rssi", int64(-61)},
		{"battery", session.PowerState{BatteryLevel: &battery}, influxdb.MeasurementPower, [2]string{}, "battery_level", int64(80)},
		{"food", session.FoodState{OutletBlocked: &blocked}, influxdb.MeasurementFood, [2]string{}, "outlet_blocked", true},
		{
			"feed ended",
			session.FeedEnded{Type: protocol.GrainOutputFeedPlan, Actual: 1, Expected: 2, PlanID: &planID},
			influxdb.MeasurementFeed, [2]string{"plan_id", "3"}, "mismatch", true,
		},
		{"fault", session.DeviceFault{Code: "E12"}, influxdb.MeasurementFault, [2]string{}, "code", "E12"},
		{"firmware", session.Firmware{Stage: session.FirmwareProgress, Progress: "45"}, influxdb.MeasurementFirmware, [2]string{"stage", "progress"}, "progress", int64(45)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Point(session.Event{Serial: "AF01", Time: testNow, Payload: tt.payload})
			if p == nil {
				t.Fatal("Point() = nil")
			}
			if p.Name() != tt.measurement {
				t.Errorf("measurement = %s, want %s", p.Name(), tt.measurement)
			}
			if got := tagValue(p, "serial"); got != "AF01" {
				t.Errorf("serial tag = %q", got)
			}
			if tt.tag[0] != "" {
				if got := tagValue(p, tt.tag[0]); got != tt.tag[1] {
					t.Errorf("tag %s = %q, want %q", tt.tag[0], got, tt.tag[1])
				}
			}
			if got := fieldValue(p, tt.field); got != tt.want {
				t.Errorf("field %s = %v (%T), want %v (%T)", tt.field, got, got, tt.want, tt.want)
			}
			if !p.Time().Equal(testNow) {
				t.Errorf("time = %v, want %v", p.Time(), testNow)
			}
		})
	}
}

func TestRecorderSkipsUnmeasurable(t *testing.T) {
	w := &captureWriter{}
	r := NewRecorder(w)

	r.HandleEvent(session.Event{Serial: "AF01", Time: testNow, Payload: session.DeviceInfo{Serial: "AF01"}})
	r.HandleEvent(session.Event{Serial: "AF01", Time: testNow, Payload: session.WifiInfo{MAC: "aa:bb"}})
	if len(w.points) != 0 {
		t.Fatalf("wrote %d points for unmeasurable events", len(w.points))
	}

	r.HandleEvent(session.Event{Serial: "AF01", Time: testNow, Payload: session.OnlineChanged{Online: false}})
	if len(w.points) != 1 {
		t.Errorf("wrote %d points, want 1", len(w.points))
	}
}
