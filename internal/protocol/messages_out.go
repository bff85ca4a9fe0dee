package protocol

import "time"

// NtpOut answers NTP. It is the only server message without a msgId.
type NtpOut struct {
	Header
	Code           Code
	CalibrationTag bool
}

// NtpSyncOut asks the device to adopt the server clock.
type NtpSyncOut struct{ Header }

// CodeOut is the plain acknowledgement used for several device requests.
type CodeOut struct {
	Header
	Code Code
}

type DeviceStartEventOut struct{ CodeOut }
type AttrPushEventOut struct{ CodeOut }
type OtaProgressOut struct{ CodeOut }
type OtaInformOut struct{ CodeOut }

type ManualFeedingServiceOut struct {
	Header
	GrainNum int
}

type GrainOutputEventOut struct {
	Header
	Code     Code
	ExecStep ExecStep
}

// AttrGetServiceOut requests a full attribute snapshot.
type AttrGetServiceOut struct{ Header }

// AttrSetServiceOut writes the present, writable fields of Attributes.
// Build it with NewAttrSetServiceOut so audio fields stay paired.
type AttrSetServiceOut struct {
	Header
	Attributes AttributeSet
}

// FeedingPlan is the wire form of one scheduled feed.
type FeedingPlan struct {
	PlanID        int
	ExecutionTime TimeOfDay
	RepeatDays    WeekdaySet
	EnableAudio   bool
	AudioTimes    int
	GrainNum      int
	SyncTime      time.Time
	SkipEndTime   *string
}

// FeedingPlanServiceOut replaces every plan on the device.
type FeedingPlanServiceOut struct {
	Header
	Plans []FeedingPlan
}

// GetFeedingPlanEventOut answers GET_FEEDING_PLAN_EVENT.
type GetFeedingPlanEventOut struct {
	Header
	Code  Code
	Plans []FeedingPlan
}

type GetConfigOut struct{ Header }

type OtaUpgradeOut struct {
	Header
	UpgradeType           string
	URL                   string
	TargetSoftwareVersion string
	MD5                   string
}

type ErrorEventOut struct{ Header }

type DevicePropertiesServiceOut struct {
	Header
	WaterPumpState string
}

type BindingOut struct {
	Header
	Code   Code
	BindID string
}

type WifiChangeServiceOut struct {
	Header
	SSID     string
	Password string
}

type TutkContractServiceOut struct {
	Header
	DeviceTutkToken string
	DeviceTutkURL   string
	ContractID      string
	StartTime       string
	Expires         string
}

type UnbindOut struct {
	Header
	BindID string
}

type ServerConfigPushOut struct {
	Header
	BlockingTime string
}

type RestoreOut struct{ Header }
type InitializeSdCardServiceOut struct{ Header }
type DeviceRebootOut struct{ Header }
type WifiReconnectServiceOut struct{ Header }

type DeviceInfoServiceOut struct {
	Header
	DeviceSN string
	CameraID string
}

func (*NtpOut) Command() Command                     { return CmdNTP }
func (*NtpSyncOut) Command() Command                 { return CmdNTPSync }
func (*DeviceStartEventOut) Command() Command        { return CmdDeviceStartEvent }
func (*AttrPushEventOut) Command() Command           { return CmdAttrPushEvent }
func (*OtaProgressOut) Command() Command             { return CmdOTAProgress }
func (*OtaInformOut) Command() Command               { return CmdOTAInform }
func (*ManualFeedingServiceOut) Command() Command    { return CmdManualFeedingService }
func (*GrainOutputEventOut) Command() Command        { return CmdGrainOutputEvent }
func (*AttrGetServiceOut) Command() Command          { return CmdAttrGetService }
func (*AttrSetServiceOut) Command() Command          { return CmdAttrSetService }
func (*FeedingPlanServiceOut) Command() Command      { return CmdFeedingPlanService }
func (*GetFeedingPlanEventOut) Command() Command     { return CmdGetFeedingPlanEvent }
func (*GetConfigOut) Command() Command               { return CmdGetConfig }
func (*OtaUpgradeOut) Command() Command              { return CmdOTAUpgrade }
func (*ErrorEventOut) Command() Command              { return CmdErrorEvent }
func (*DevicePropertiesServiceOut) Command() Command { return CmdDevicePropertiesService }
func (*BindingOut) Command() Command                 { return CmdBinding }
func (*WifiChangeServiceOut) Command() Command       { return CmdWifiChangeService }
func (*TutkContractServiceOut) Command() Command     { return CmdTUTKContractService }
func (*UnbindOut) Command() Command                  { return CmdUnbind }
func (*ServerConfigPushOut) Command() Command        { return CmdServerConfigPush }
func (*RestoreOut) Command() Command                 { return CmdRestore }
func (*InitializeSdCardServiceOut) Command() Command { return CmdInitializeSDCardService }
func (*DeviceRebootOut) Command() Command            { return CmdDeviceReboot }
func (*WifiReconnectServiceOut) Command() Command    { return CmdWifiReconnectService }
func (*DeviceInfoServiceOut) Command() Command       { return CmdDeviceInfoService }

func (*NtpOut) noMsgID() {}

func (m *NtpOut) encode(e *encoder) {
	e.set("code", int(m.Code))
	e.set("calibrationTag", m.CalibrationTag)
	e.timezone(m.Time)
}

func (m *NtpSyncOut) encode(e *encoder) { e.timezone(m.Time) }

func (m *CodeOut) encode(e *encoder) { e.set("code", int(m.Code)) }

func (m *ManualFeedingServiceOut) encode(e *encoder) { e.set("grainNum", m.GrainNum) }

func (m *GrainOutputEventOut) encode(e *encoder) {
	e.set("code", int(m.Code))
	e.set("execStep", m.ExecStep.String())
}

func (*AttrGetServiceOut) encode(*encoder) {}

func (m *AttrSetServiceOut) encode(e *encoder) { encodeAttributes(e, &m.Attributes) }

func (m *FeedingPlanServiceOut) encode(e *encoder) {
	e.set("plans", encodePlans(e.codec, m.Plans, true))
}

func (m *GetFeedingPlanEventOut) encode(e *encoder) {
	e.set("code", int(m.Code))
	e.set("plans", encodePlans(e.codec, m.Plans, false))
}

// encodePlans renders plans. FEEDING_PLAN_SERVICE always sends
// skipEndTime, as null when unset; the event reply omits it instead.
func encodePlans(c *Codec, plans []FeedingPlan, nullSkip bool) []map[string]any {
	out := make([]map[string]any, 0, len(plans))
	for _, p := range plans {
		m := map[string]any{
			"planId":        p.PlanID,
			"executionTime": c.todToWire(p.ExecutionTime),
			"repeatDay":     p.RepeatDays.Wire(),
			"enableAudio":   p.EnableAudio,
			"audioTimes":    p.AudioTimes,
			"grainNum":      p.GrainNum,
			"syncTime":      c.timeToWire(p.SyncTime),
		}
		switch {
		case p.SkipEndTime != nil:
			m["skipEndTime"] = *p.SkipEndTime
		case nullSkip:
			m["skipEndTime"] = nil
		}
		out = append(out, m)
	}
	return out
}

func (*GetConfigOut) encode(*encoder) {}

func (m *OtaUpgradeOut) encode(e *encoder) {
	e.set("upgradeType", m.UpgradeType)
	e.set("url", m.URL)
	e.set("targetSoftwareVersion", m.TargetSoftwareVersion)
	e.set("md5", m.MD5)
}

func (*ErrorEventOut) encode(*encoder) {}

func (m *DevicePropertiesServiceOut) encode(e *encoder) { e.set("waterPumpState", m.WaterPumpState) }

func (m *BindingOut) encode(e *encoder) {
	e.set("code", int(m.Code))
	e.set("bindId", m.BindID)
}

func (m *WifiChangeServiceOut) encode(e *encoder) {
	e.set("wifiSsid", m.SSID)
	e.set("password", m.Password)
}

func (m *TutkContractServiceOut) encode(e *encoder) {
	e.set("deviceTutkToken", m.DeviceTutkToken)
	e.set("deviceTutkUrl", m.DeviceTutkURL)
	e.set("contractId", m.ContractID)
	e.set("startTime", m.StartTime)
	e.set("expires", m.Expires)
}

func (m *UnbindOut) encode(e *encoder) { e.set("bindId", m.BindID) }

func (m *ServerConfigPushOut) encode(e *encoder) { e.set("blockingTime", m.BlockingTime) }

func (*RestoreOut) encode(*encoder)                 {}
func (*InitializeSdCardServiceOut) encode(*encoder) {}
func (*DeviceRebootOut) encode(*encoder)            {}
func (*WifiReconnectServiceOut) encode(*encoder)    {}

func (m *DeviceInfoServiceOut) encode(e *encoder) {
	e.set("deviceSn", m.DeviceSN)
	e.set("cameraId", m.CameraID)
}
