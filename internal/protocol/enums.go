package protocol

import "fmt"

// Code is the result code of a two-way exchange.
type Code int

const (
	CodeOK                  Code = 0
	CodeError1              Code = 1
	CodeError2              Code = 2
	CodeError3              Code = 3
	CodeError4              Code = 4
	CodeErrorDeviceNotBound Code = 2030
)

// OK reports whether c signals success. Any other value, known or not, is an error.
func (c Code) OK() bool { return c == CodeOK }

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeError1, CodeError2, CodeError3, CodeError4:
		return fmt.Sprintf("ERROR_%d", int(c))
	case CodeErrorDeviceNotBound:
		return "ERROR_DEVICE_NOT_BOUND"
	default:
		return fmt.Sprintf("CODE_%d", int(c))
	}
}

// AgingType selects whether a feature runs always or on a schedule.
type AgingType int

const (
	AgingInvalid      AgingType = 0
	AgingNonScheduled AgingType = 1
	AgingScheduled    AgingType = 2
)

func (a AgingType) valid() bool { return a >= AgingInvalid && a <= AgingScheduled }

func (a AgingType) String() string {
	switch a {
	case AgingNonScheduled:
		return "NON_SCHEDULED_ENABLED"
	case AgingScheduled:
		return "SCHEDULED_ENABLED"
	default:
		return "INVALID"
	}
}

// PowerMode is the active power source.
type PowerMode int

const (
	PowerModeUSB     PowerMode = 1
	PowerModeBattery PowerMode = 2
)

func (p PowerMode) valid() bool { return p == PowerModeUSB || p == PowerModeBattery }

func (p PowerMode) String() string {
	switch p {
	case PowerModeUSB:
		return "USB"
	case PowerModeBattery:
		return "BATTERY"
	default:
		return "INVALID"
	}
}

// PowerType is the set of power sources fitted.
type PowerType int

const (
	PowerTypeInvalid       PowerType = 0
	PowerTypeUSBOnly       PowerType = 1
	PowerTypeBatteryOnly   PowerType = 2
	PowerTypeUSBAndBattery PowerType = 3
)

func (p PowerType) valid() bool { return p >= PowerTypeInvalid && p <= PowerTypeUSBAndBattery }

func (p PowerType) String() string {
	switch p {
	case PowerTypeUSBOnly:
		return "USB_ONLY"
	case PowerTypeBatteryOnly:
		return "BATTERY_ONLY"
	case PowerTypeUSBAndBattery:
		return "USB_AND_BATTERY"
	default:
		return "INVALID"
	}
}

// SdCardState reports whether a card is usable.
type SdCardState int

const (
	SdCardNotAvailable SdCardState = 0
	SdCardAvailable    SdCardState = 1
	SdCardInitializing SdCardState = 2
)

func (s SdCardState) valid() bool { return s >= SdCardNotAvailable && s <= SdCardInitializing }

func (s SdCardState) String() string {
	switch s {
	case SdCardNotAvailable:
		return "NOT_AVAILABLE"
	case SdCardAvailable:
		return "AVAILABLE"
	case SdCardInitializing:
		return "INITIALIZING"
	default:
		return "INVALID"
	}
}

// WifiType is reported in heartbeats.
type WifiType int

const (
	WifiType0 WifiType = 0
	WifiType1 WifiType = 1
	WifiType2 WifiType = 2
)

func (w WifiType) valid() bool { return w >= WifiType0 && w <= WifiType2 }

// GrainOutputType says what started a feed.
type GrainOutputType int

const (
	GrainOutputInvalid          GrainOutputType = 0
	GrainOutputFeedPlan         GrainOutputType = 1
	GrainOutputManualFeed       GrainOutputType = 2
	GrainOutputManualFeedButton GrainOutputType = 3
)

func (g GrainOutputType) valid() bool { return g >= GrainOutputInvalid && g <= GrainOutputManualFeedButton }

func (g GrainOutputType) String() string {
	switch g {
	case GrainOutputFeedPlan:
		return "FEED_PLAN"
	case GrainOutputManualFeed:
		return "MANUAL_FEED"
	case GrainOutputManualFeedButton:
		return "MANUAL_FEED_BUTTON"
	default:
		return "INVALID"
	}
}

// The enums below travel by name. Unknown names decode to their Invalid value.

// NightVision is the camera IR mode.
type NightVision int

const (
	NightVisionInvalid NightVision = iota
	NightVisionAutomatic
	NightVisionOpen
	NightVisionClose
)

var nightVisionNames = []string{"INVALID", "AUTOMATIC", "OPEN", "CLOSE"}

func (n NightVision) String() string { return enumName(nightVisionNames, int(n)) }

// ParseNightVision maps a wire name to a NightVision.
func ParseNightVision(s string) NightVision { return NightVision(enumValue(nightVisionNames, s)) }

// Resolution is the camera resolution.
type Resolution int

const (
	ResolutionInvalid Resolution = iota
	ResolutionP720
	ResolutionP1080
)

var resolutionNames = []string{"INVALID", "P720", "P1080"}

func (r Resolution) String() string { return enumName(resolutionNames, int(r)) }

// ParseResolution maps a wire name to a Resolution.
func ParseResolution(s string) Resolution { return Resolution(enumValue(resolutionNames, s)) }

// VideoRecordMode selects continuous or motion-triggered recording.
type VideoRecordMode int

const (
	VideoRecordInvalid VideoRecordMode = iota
	VideoRecordContinuous
	VideoRecordMotionDetection
)

var videoRecordModeNames = []string{"INVALID", "CONTINUOUS", "MOTION_DETECTION"}

func (v VideoRecordMode) String() string { return enumName(videoRecordModeNames, int(v)) }

// ParseVideoRecordMode maps a wire name to a VideoRecordMode.
func ParseVideoRecordMode(s string) VideoRecordMode {
	return VideoRecordMode(enumValue(videoRecordModeNames, s))
}

// Sensitivity is shared by motion and sound detection.
type Sensitivity int

const (
	SensitivityInvalid Sensitivity = iota
	SensitivityLow
	SensitivityMedium
	SensitivityHigh
)

var sensitivityNames = []string{"INVALID", "LOW", "MEDIUM", "HIGH"}

func (s Sensitivity) String() string { return enumName(sensitivityNames, int(s)) }

// ParseSensitivity maps a wire name to a Sensitivity.
func ParseSensitivity(s string) Sensitivity { return Sensitivity(enumValue(sensitivityNames, s)) }

// MotionDetectionRange is the motion detection zone size.
type MotionDetectionRange int

const (
	MotionRangeInvalid MotionDetectionRange = iota
	MotionRangeSmall
	MotionRangeMedium
	MotionRangeLarge
)

var motionRangeNames = []string{"INVALID", "SMALL", "MEDIUM", "LARGE"}

func (m MotionDetectionRange) String() string { return enumName(motionRangeNames, int(m)) }

// ParseMotionDetectionRange maps a wire name to a MotionDetectionRange.
func ParseMotionDetectionRange(s string) MotionDetectionRange {
	return MotionDetectionRange(enumValue(motionRangeNames, s))
}

// SdCardFileSystem is the card format reported by the device.
type SdCardFileSystem int

const (
	SdCardFSInvalid SdCardFileSystem = iota
	SdCardFSFAT32
	SdCardFSFAT
	SdCardFSEXFAT
	SdCardFSNTFS
	SdCardFSUnknown
)

var sdCardFSNames = []string{"INVALID", "FAT32", "FAT", "EXFAT", "NTFS", "UNKNOWN"}

func (f SdCardFileSystem) String() string { return enumName(sdCardFSNames, int(f)) }

// ParseSdCardFileSystem maps the device's file system string. The firmware
// reports unrecognised formats as "unknown type".
func ParseSdCardFileSystem(s string) SdCardFileSystem {
	if s == "unknown type" {
		return SdCardFSUnknown
	}
	if s == "UNKNOWN" {
		return SdCardFSInvalid
	}
	return SdCardFileSystem(enumValue(sdCardFSNames, s))
}

// ExecStep is the phase reported by GRAIN_OUTPUT_EVENT.
type ExecStep int

const (
	ExecStepInvalid ExecStep = iota
	ExecStepGrainStart
	ExecStepGrainEnd
	ExecStepGrainBlocking
)

var execStepNames = []string{"INVALID", "GRAIN_START", "GRAIN_END", "GRAIN_BLOCKING"}

func (e ExecStep) String() string { return enumName(execStepNames, int(e)) }

// ParseExecStep maps a wire name to an ExecStep.
func ParseExecStep(s string) ExecStep { return ExecStep(enumValue(execStepNames, s)) }

// DetectionType is the trigger of a DETECTION_EVENT.
type DetectionType string

const (
	DetectionMotion DetectionType = "MOTION"
	DetectionSound  DetectionType = "SOUND"
)

// Name-encoded enums marshal as their names in JSON. Unmarshalling rejects
// unknown names, unlike the lenient wire decoders.

func (n NightVision) MarshalText() ([]byte, error)          { return []byte(n.String()), nil }
func (r Resolution) MarshalText() ([]byte, error)           { return []byte(r.String()), nil }
func (v VideoRecordMode) MarshalText() ([]byte, error)      { return []byte(v.String()), nil }
func (s Sensitivity) MarshalText() ([]byte, error)          { return []byte(s.String()), nil }
func (m MotionDetectionRange) MarshalText() ([]byte, error) { return []byte(m.String()), nil }
func (f SdCardFileSystem) MarshalText() ([]byte, error)     { return []byte(f.String()), nil }
func (e ExecStep) MarshalText() ([]byte, error)             { return []byte(e.String()), nil }

func (n *NightVision) UnmarshalText(b []byte) error {
	return unmarshalName(b, nightVisionNames, "night vision", (*int)(n))
}

func (r *Resolution) UnmarshalText(b []byte) error {
	return unmarshalName(b, resolutionNames, "resolution", (*int)(r))
}

func (v *VideoRecordMode) UnmarshalText(b []byte) error {
	return unmarshalName(b, videoRecordModeNames, "video record mode", (*int)(v))
}

func (s *Sensitivity) UnmarshalText(b []byte) error {
	return unmarshalName(b, sensitivityNames, "sensitivity", (*int)(s))
}

func (m *MotionDetectionRange) UnmarshalText(b []byte) error {
	return unmarshalName(b, motionRangeNames, "motion detection range", (*int)(m))
}

func unmarshalName(b []byte, names []string, kind string, dst *int) error {
	v := enumValue(names, string(b))
	if v == 0 {
		return fmt.Errorf("%w: unknown %s %q", ErrDomain, kind, b)
	}
	*dst = v
	return nil
}

// enumName returns names[v], or names[0] when v is out of range.
func enumName(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return names[0]
	}
	return names[v]
}

// enumValue returns the index of s in names. Index 0 is the invalid
// sentinel and is never matched.
func enumValue(names []string, s string) int {
	for i := 1; i < len(names); i++ {
		if names[i] == s {
			return i
		}
	}
	return 0
}
