package session

import (
	"time"

	"github.com/nerrad567/plaf203-core/internal/feeding"
	"github.com/nerrad567/plaf203-core/internal/protocol"
)

// EventKind identifies the payload type of an Event.
type EventKind string

const (
	EventOnline       EventKind = "online"
	EventDrift        EventKind = "drift"
	EventError        EventKind = "error"
	EventDeviceInfo   EventKind = "device_info"
	EventWifiInfo     EventKind = "wifi_info"
	EventSDCardInfo   EventKind = "sd_card_info"
	EventSettings     EventKind = "settings"
	EventPowerState   EventKind = "power_state"
	EventFoodState    EventKind = "food_state"
	EventFeedStarted  EventKind = "feed_started"
	EventFeedEnded    EventKind = "feed_ended"
	EventFeedProgress EventKind = "feed_progress"
	EventDetection    EventKind = "detection"
	EventFirmware     EventKind = "firmware"
	EventDeviceFault  EventKind = "device_fault"
)

// EventKinds returns every kind in a stable order.
func EventKinds() []EventKind {
	return []EventKind{
		EventOnline, EventDrift, EventError, EventDeviceInfo, EventWifiInfo,
		EventSDCardInfo, EventSettings, EventPowerState, EventFoodState,
		EventFeedStarted, EventFeedEnded, EventFeedProgress, EventDetection,
		EventFirmware, EventDeviceFault,
	}
}

// Event is an upward notification from the engine.
//
// Payload holds the struct matching Kind, e.g. OnlineChanged for
// EventOnline.
type Event struct {
	Kind    EventKind `json:"kind"`
	Serial  string    `json:"serial"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

// OnlineChanged reports a connectivity transition.
type OnlineChanged struct {
	Online bool `json:"online"`
}

// DriftStatus reports the outcome of a clock drift check.
type DriftStatus struct {
	OK bool `json:"ok"`
}

// DeviceError carries a human-readable failure reported by or about the device.
type DeviceError struct {
	Message string `json:"message"`
}

// DeviceInfo carries identity fields. Only the fields the triggering
// message carried are set.
type DeviceInfo struct {
	Serial          string `json:"serial,omitempty"`
	PID             string `json:"pid,omitempty"`
	UUID            string `json:"uuid,omitempty"`
	HardwareVersion string `json:"hardware_version,omitempty"`
	SoftwareVersion string `json:"software_version,omitempty"`
}

// WifiInfo carries whichever Wi-Fi fields the triggering message carried.
type WifiInfo struct {
	RSSI *int               `json:"rssi,omitempty"`
	Type *protocol.WifiType `json:"type,omitempty"`
	SSID *string            `json:"ssid,omitempty"`
	MAC  string             `json:"mac,omitempty"`
}

type SDCardInfo struct {
	State         *protocol.SdCardState      `json:"state,omitempty"`
	FileSystem    *protocol.SdCardFileSystem `json:"file_system,omitempty"`
	TotalCapacity *int                       `json:"total_capacity,omitempty"`
	UsedCapacity  *int                       `json:"used_capacity,omitempty"`
}

// SettingsChanged carries the cached state of one settings group after
// the device reported a change to it.
type SettingsChanged struct {
	Group    protocol.Group        `json:"group"`
	Settings protocol.AttributeSet `json:"settings"`
}

type PowerState struct {
	Mode         *protocol.PowerMode  `json:"mode,omitempty"`
	Type         *protocol.PowerType  `json:"type,omitempty"`
	BatteryLevel *protocol.Percentage `json:"battery_level,omitempty"`
}

// FoodState is derived from the food attributes. The device reports the
// outlet and fill level as "ok" flags; these are their inverses.
type FoodState struct {
	OutletBlocked *bool `json:"outlet_blocked,omitempty"`
	LowFill       *bool `json:"low_fill,omitempty"`
	MotorState    *int  `json:"motor_state,omitempty"`
}

type FeedStarted struct {
	Type     protocol.GrainOutputType `json:"type"`
	Expected int                      `json:"expected"`
	PlanID   *int                     `json:"plan_id,omitempty"`
}

type FeedEnded struct {
	Type     protocol.GrainOutputType `json:"type"`
	Actual   int                      `json:"actual"`
	Expected int                      `json:"expected"`
	PlanID   *int                     `json:"plan_id,omitempty"`
}

type FeedProgress struct {
	Progress feeding.Progress `json:"progress"`
}

type Detection struct {
	Type protocol.DetectionType `json:"type"`
}

// Firmware stages.
const (
	FirmwareUpgradeAccepted = "upgrade"
	FirmwareProgress        = "progress"
	FirmwareInform          = "inform"
)

// Firmware reports OTA activity.
type Firmware struct {
	Stage    string `json:"stage"`
	Progress string `json:"progress,omitempty"`
	State    string `json:"state,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DeviceFault is a fault reported through ERROR_EVENT.
type DeviceFault struct {
	Code        string    `json:"code"`
	TriggerTime time.Time `json:"trigger_time"`
}

// Listener receives engine events. HandleEvent is called outside the
// engine lock, so it may query the engine. Events from one handler or
// operation arrive in order, but HandleEvent can be called from several
// goroutines. It must not block for long.
type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

// HandleEvent calls f(ev).
func (f ListenerFunc) HandleEvent(ev Event) { f(ev) }

// Fanout delivers each event to every listener in order. Nil entries are skipped.
type Fanout []Listener

// HandleEvent forwards ev to every listener.
func (f Fanout) HandleEvent(ev Event) {
	for _, l := range f {
		if l != nil {
			l.HandleEvent(ev)
		}
	}
}
