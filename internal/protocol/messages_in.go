package protocol

import "time"

// DeviceStamp carries the device clock reading of an inbound message.
type DeviceStamp struct {
	Time time.Time
}

// DeviceTime returns the device timestamp in the codec's location.
func (s DeviceStamp) DeviceTime() time.Time { return s.Time }

// Exchange is the envelope of a correlated inbound message.
type Exchange struct {
	MsgID MessageID
	DeviceStamp
}

// ID returns the message's correlation id.
func (e Exchange) ID() MessageID { return e.MsgID }

// Reply is the envelope of a device reply to a server request.
type Reply struct {
	Exchange
	Code Code
}

// HeartbeatIn is sent by the device every heartbeat period.
type HeartbeatIn struct {
	DeviceStamp
	Count    int
	RSSI     int
	WifiType WifiType
}

// NtpIn asks the server for the current time.
type NtpIn struct {
	DeviceStamp
}

type NtpSyncIn struct{ Reply }

// DeviceStartEventIn is sent once the device has booted.
type DeviceStartEventIn struct {
	Exchange
	Success         bool
	PID             string
	UUID            string
	MAC             string
	WPA3            string
	HardwareVersion string
	SoftwareVersion string
}

type ManualFeedingServiceIn struct{ Reply }

// GrainOutputEventIn reports one phase of a feed.
type GrainOutputEventIn struct {
	Exchange
	Finished       bool
	Type           GrainOutputType
	ActualGrainNum int
	ExpectGrainNum int
	ExecTime       time.Time
	ExecStep       ExecStep
	PlanID         *int
	Retried        *string
}

// AttrPushEventIn carries only the attributes that changed.
type AttrPushEventIn struct {
	Exchange
	Attributes AttributeSet
}

// AttrGetServiceIn carries the full attribute snapshot.
type AttrGetServiceIn struct {
	Reply
	Attributes AttributeSet
}

type AttrSetServiceIn struct{ Reply }

// PlanSync confirms that one feeding plan was stored.
type PlanSync struct {
	PlanID   int
	SyncTime time.Time
}

type FeedingPlanServiceIn struct {
	Reply
	Plans []PlanSync
	Msg   *string
}

type DeviceFeedingPlanServiceIn struct {
	Reply
	Plans []PlanSync
	Msg   *string
}

// GetFeedingPlanEventIn asks the server for the current plans.
type GetFeedingPlanEventIn struct{ Exchange }

// ResetIn reports that the device was reset locally.
type ResetIn struct{ Exchange }

type OtaUpgradeIn struct {
	Reply
	ErrorMsg *string
}

type OtaProgressIn struct {
	Exchange
	Progress string
}

type OtaInformIn struct {
	Exchange
	State    string
	ErrorMsg *string
}

// ErrorEventIn reports a device fault.
type ErrorEventIn struct {
	Exchange
	ErrorCode   string
	TriggerTime time.Time
}

type GetConfigIn struct {
	Exchange
	PID             string
	MAC             string
	HardwareVersion string
	SoftwareVersion string
}

// DevicePropertiesServiceIn is uncorrelated; the firmware omits msgId.
type DevicePropertiesServiceIn struct {
	DeviceStamp
	Identifier string
	Success    string
}

type DetectionEventIn struct {
	Exchange
	Type DetectionType
}

// BindingIn asks the server to confirm the device's binding.
type BindingIn struct {
	Exchange
	MemberID        string
	Type            string
	PID             string
	UUID            string
	MAC             string
	WPA3            string
	HardwareVersion string
	SoftwareVersion string
}

type WifiReconnectServiceIn struct{ Reply }
type RestoreIn struct{ Reply }
type InitializeSdCardServiceIn struct{ Reply }
type DeviceRebootIn struct{ Reply }

func (*HeartbeatIn) Command() Command                { return CmdHeartbeat }
func (*NtpIn) Command() Command                      { return CmdNTP }
func (*NtpSyncIn) Command() Command                  { return CmdNTPSync }
func (*DeviceStartEventIn) Command() Command         { return CmdDeviceStartEvent }
func (*ManualFeedingServiceIn) Command() Command     { return CmdManualFeedingService }
func (*GrainOutputEventIn) Command() Command         { return CmdGrainOutputEvent }
func (*AttrPushEventIn) Command() Command            { return CmdAttrPushEvent }
func (*AttrGetServiceIn) Command() Command           { return CmdAttrGetService }
func (*AttrSetServiceIn) Command() Command           { return CmdAttrSetService }
func (*FeedingPlanServiceIn) Command() Command       { return CmdFeedingPlanService }
func (*DeviceFeedingPlanServiceIn) Command() Command { return CmdDeviceFeedingPlanService }
func (*GetFeedingPlanEventIn) Command() Command      { return CmdGetFeedingPlanEvent }
func (*ResetIn) Command() Command                    { return CmdReset }
func (*OtaUpgradeIn) Command() Command               { return CmdOTAUpgrade }
func (*OtaProgressIn) Command() Command              { return CmdOTAProgress }
func (*OtaInformIn) Command() Command                { return CmdOTAInform }
func (*ErrorEventIn) Command() Command               { return CmdErrorEvent }
func (*GetConfigIn) Command() Command                { return CmdGetConfig }
func (*DevicePropertiesServiceIn) Command() Command  { return CmdDevicePropertiesService }
func (*DetectionEventIn) Command() Command           { return CmdDetectionEvent }
func (*BindingIn) Command() Command                  { return CmdBinding }
func (*WifiReconnectServiceIn) Command() Command     { return CmdWifiReconnectService }
func (*RestoreIn) Command() Command                  { return CmdRestore }
func (*InitializeSdCardServiceIn) Command() Command  { return CmdInitializeSDCardService }
func (*DeviceRebootIn) Command() Command             { return CmdDeviceReboot }

var decoders = map[Command]func(*reader) Message{
	CmdHeartbeat: func(r *reader) Message {
		m := &HeartbeatIn{DeviceStamp: DeviceStamp{Time: r.ts()}, Count: r.integer("count"), RSSI: r.integer("rssi")}
		wt := WifiType(r.integer("wifiType"))
		if r.err == nil && !wt.valid() {
			r.failf("field %q: value %d out of range", "wifiType", int(wt))
		}
		m.WifiType = wt
		return m
	},
	CmdNTP: func(r *reader) Message {
		return &NtpIn{DeviceStamp: DeviceStamp{Time: r.ts()}}
	},
	CmdNTPSync: func(r *reader) Message { return &NtpSyncIn{r.reply()} },
	CmdDeviceStartEvent: func(r *reader) Message {
		return &DeviceStartEventIn{
			Exchange:        r.exchange(),
			Success:         r.flag("success"),
			PID:             r.text("pid"),
			UUID:            r.text("uuid"),
			MAC:             r.text("mac"),
			WPA3:            r.text("wpa3"),
			HardwareVersion: r.text("hardwareVersion"),
			SoftwareVersion: r.text("softwareVersion"),
		}
	},
	CmdManualFeedingService: func(r *reader) Message { return &ManualFeedingServiceIn{r.reply()} },
	CmdGrainOutputEvent: func(r *reader) Message {
		m := &GrainOutputEventIn{
			Exchange:       r.exchange(),
			Finished:       r.flag("finished"),
			ActualGrainNum: r.integer("actualGrainNum"),
			ExpectGrainNum: r.integer("expectGrainNum"),
			ExecTime:       r.millis("execTime"),
			ExecStep:       ParseExecStep(r.str("execStep")),
			PlanID:         r.optInt("planId"),
			Retried:        r.optText("retried"),
		}
		t := GrainOutputType(r.integer("type"))
		if r.err == nil && !t.valid() {
			r.failf("field %q: value %d out of range", "type", int(t))
		}
		m.Type = t
		return m
	},
	CmdAttrPushEvent: func(r *reader) Message {
		m := &AttrPushEventIn{Exchange: r.exchange()}
		decodeAttributes(r, &m.Attributes)
		return m
	},
	CmdAttrGetService: func(r *reader) Message {
		m := &AttrGetServiceIn{Reply: r.reply()}
		decodeAttributes(r, &m.Attributes)
		return m
	},
	CmdAttrSetService: func(r *reader) Message { return &AttrSetServiceIn{r.reply()} },
	CmdFeedingPlanService: func(r *reader) Message {
		m := &FeedingPlanServiceIn{Reply: r.reply()}
		m.Plans, m.Msg = readPlanSyncs(r)
		return m
	},
	CmdDeviceFeedingPlanService: func(r *reader) Message {
		m := &DeviceFeedingPlanServiceIn{Reply: r.reply()}
		m.Plans, m.Msg = readPlanSyncs(r)
		return m
	},
	CmdGetFeedingPlanEvent: func(r *reader) Message { return &GetFeedingPlanEventIn{r.exchange()} },
	CmdReset:               func(r *reader) Message { return &ResetIn{r.exchange()} },
	CmdOTAUpgrade: func(r *reader) Message {
		return &OtaUpgradeIn{Reply: r.reply(), ErrorMsg: r.optText("errorMsg")}
	},
	CmdOTAProgress: func(r *reader) Message {
		return &OtaProgressIn{Exchange: r.exchange(), Progress: r.text("progress")}
	},
	CmdOTAInform: func(r *reader) Message {
		return &OtaInformIn{Exchange: r.exchange(), State: r.text("state"), ErrorMsg: r.optText("errorMsg")}
	},
	CmdErrorEvent: func(r *reader) Message {
		return &ErrorEventIn{Exchange: r.exchange(), ErrorCode: r.text("errorCode"), TriggerTime: r.millis("triggerTime")}
	},
	CmdGetConfig: func(r *reader) Message {
		return &GetConfigIn{
			Exchange:        r.exchange(),
			PID:             r.text("pid"),
			MAC:             r.text("mac"),
			HardwareVersion: r.text("hardwareVersion"),
			SoftwareVersion: r.text("softwareVersion"),
		}
	},
	CmdDevicePropertiesService: func(r *reader) Message {
		return &DevicePropertiesServiceIn{
			DeviceStamp: DeviceStamp{Time: r.ts()},
			Identifier:  r.text("identifier"),
			Success:     r.text("success"),
		}
	},
	CmdDetectionEvent: func(r *reader) Message {
		return &DetectionEventIn{Exchange: r.exchange(), Type: DetectionType(r.str("type"))}
	},
	CmdBinding: func(r *reader) Message {
		return &BindingIn{
			Exchange:        r.exchange(),
			MemberID:        r.text("memberId"),
			Type:            r.text("type"),
			PID:             r.text("pid"),
			UUID:            r.text("uuid"),
			MAC:             r.text("mac"),
			WPA3:            r.text("wpa3"),
			HardwareVersion: r.text("hardwareVersion"),
			SoftwareVersion: r.text("softwareVersion"),
		}
	},
	CmdWifiReconnectService:    func(r *reader) Message { return &WifiReconnectServiceIn{r.reply()} },
	CmdRestore:                 func(r *reader) Message { return &RestoreIn{r.reply()} },
	CmdInitializeSDCardService: func(r *reader) Message { return &InitializeSdCardServiceIn{r.reply()} },
	CmdDeviceReboot:            func(r *reader) Message { return &DeviceRebootIn{r.reply()} },
}

func readPlanSyncs(r *reader) ([]PlanSync, *string) {
	var plans []PlanSync
	r.objects("plans", func(sub *reader) {
		plans = append(plans, PlanSync{PlanID: sub.integer("planId"), SyncTime: sub.millis("syncTime")})
	})
	return plans, r.optText("msg")
}
