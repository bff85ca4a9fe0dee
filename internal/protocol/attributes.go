package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Group names a family of related attributes.
type Group string

const (
	GroupPower               Group = "power"
	GroupFood                Group = "food"
	GroupWifi                Group = "wifi"
	GroupSDCard              Group = "sd_card"
	GroupAudio               Group = "audio"
	GroupCamera              Group = "camera"
	GroupRecording           Group = "recording"
	GroupSound               Group = "sound"
	GroupMotionDetection     Group = "motion_detection"
	GroupSoundDetection      Group = "sound_detection"
	GroupCloudVideoRecording Group = "cloud_video_recording"
	GroupButtonLights        Group = "button_lights"
	GroupButtonsAutoLock     Group = "buttons_auto_lock"
	GroupFeedingVideo        Group = "feeding_video"
)

// SettingsGroups lists the groups an operator can change, in report order.
func SettingsGroups() []Group {
	return []Group{
		GroupAudio, GroupCamera, GroupRecording, GroupSound, GroupMotionDetection,
		GroupSoundDetection, GroupCloudVideoRecording, GroupButtonLights,
		GroupButtonsAutoLock, GroupFeedingVideo,
	}
}

// IsSettings reports whether g is operator-configurable.
func (g Group) IsSettings() bool {
	for _, s := range SettingsGroups() {
		if s == g {
			return true
		}
	}
	return false
}

// AttributeSet holds device attributes. Every field is optional: a nil
// field is absent. The same type carries full snapshots, sparse pushes
// and operator changes.
type AttributeSet struct {
	// Power
	PowerMode    *PowerMode  `json:"powerMode,omitempty"`
	PowerType    *PowerType  `json:"powerType,omitempty"`
	BatteryLevel *Percentage `json:"electricQuantity,omitempty"`

	// Food
	SurplusGrain     *bool `json:"surplusGrain,omitempty"`
	MotorState       *int  `json:"motorState,omitempty"`
	GrainOutletState *bool `json:"grainOutletState,omitempty"`

	// Wifi
	WifiSSID *string `json:"wifiSsid,omitempty"`

	// Audio
	EnableAudio *bool   `json:"enableAudio,omitempty"`
	AudioURL    *string `json:"audioUrl,omitempty"`

	// Button lights
	EnableLight    *bool      `json:"enableLight,omitempty"`
	LightSwitch    *bool      `json:"lightSwitch,omitempty"`
	LightAgingType *AgingType `json:"lightAgingType,omitempty"`
	LightingStart  *TimeOfDay `json:"lightingStartTime,omitempty"`
	LightingEnd    *TimeOfDay `json:"lightingEndTime,omitempty"`
	LightingTimes  *int       `json:"lightingTimes,omitempty"`

	// Sound
	EnableSound    *bool       `json:"enableSound,omitempty"`
	SoundSwitch    *bool       `json:"soundSwitch,omitempty"`
	SoundAgingType *AgingType  `json:"soundAgingType,omitempty"`
	SoundStart     *TimeOfDay  `json:"soundStartTime,omitempty"`
	SoundEnd       *TimeOfDay  `json:"soundEndTime,omitempty"`
	SoundTimes     *int        `json:"soundTimes,omitempty"`
	Volume         *Percentage `json:"volume,omitempty"`

	// Buttons auto lock
	AutoChangeMode *bool `json:"autoChangeMode,omitempty"`
	AutoThreshold  *int  `json:"autoThreshold,omitempty"`

	// Camera
	EnableCamera    *bool        `json:"enableCamera,omitempty"`
	CameraSwitch    *bool        `json:"cameraSwitch,omitempty"`
	CameraAgingType *AgingType   `json:"cameraAgingType,omitempty"`
	NightVision     *NightVision `json:"nightVision,omitempty"`
	Resolution      *Resolution  `json:"resolution,omitempty"`
	CameraStart     *TimeOfDay   `json:"cameraStartTime,omitempty"`
	CameraEnd       *TimeOfDay   `json:"cameraEndTime,omitempty"`

	// Recording
	EnableVideoRecord    *bool            `json:"enableVideoRecord,omitempty"`
	VideoRecordSwitch    *bool            `json:"videoRecordSwitch,omitempty"`
	VideoRecordMode      *VideoRecordMode `json:"videoRecordMode,omitempty"`
	VideoRecordAgingType *AgingType       `json:"videoRecordAgingType,omitempty"`
	VideoRecordStart     *TimeOfDay       `json:"videoRecordStartTime,omitempty"`
	VideoRecordEnd       *TimeOfDay       `json:"videoRecordEndTime,omitempty"`

	// SD card
	SdCardState         *SdCardState      `json:"sdCardState,omitempty"`
	SdCardFileSystem    *SdCardFileSystem `json:"sdCardFileSystem,omitempty"`
	SdCardTotalCapacity *int              `json:"sdCardTotalCapacity,omitempty"`
	SdCardUsedCapacity  *int              `json:"sdCardUsedCapacity,omitempty"`

	// Feeding video
	FeedingVideoSwitch            *bool `json:"feedingVideoSwitch,omitempty"`
	EnableVideoStartFeedingPlan   *bool `json:"enableVideoStartFeedingPlan,omitempty"`
	EnableVideoAfterManualFeeding *bool `json:"enableVideoAfterManualFeeding,omitempty"`
	BeforeFeedingPlanTime         *int  `json:"beforeFeedingPlanTime,omitempty"`
	AutomaticRecording            *int  `json:"automaticRecording,omitempty"`
	AfterManualFeedingTime        *int  `json:"afterManualFeedingTime,omitempty"`
	VideoWatermarkSwitch          *bool `json:"videoWatermarkSwitch,omitempty"`

	// Cloud video recording
	CloudVideoRecordSwitch *bool `json:"cloudVideoRecordSwitch,omitempty"`

	// Motion detection
	EnableMotionDetection      *bool                 `json:"enableMotionDetection,omitempty"`
	MotionDetectionSwitch      *bool                 `json:"motionDetectionSwitch,omitempty"`
	MotionDetectionAgingType   *AgingType            `json:"motionDetectionAgingType,omitempty"`
	MotionDetectionRange       *MotionDetectionRange `json:"motionDetectionRange,omitempty"`
	MotionDetectionSensitivity *Sensitivity          `json:"motionDetectionSensitivity,omitempty"`
	MotionDetectionStart       *TimeOfDay            `json:"motionDetectionStartTime,omitempty"`
	MotionDetectionEnd         *TimeOfDay            `json:"motionDetectionEndTime,omitempty"`

	// Sound detection
	EnableSoundDetection      *bool        `json:"enableSoundDetection,omitempty"`
	SoundDetectionSwitch      *bool        `json:"soundDetectionSwitch,omitempty"`
	SoundDetectionAgingType   *AgingType   `json:"soundDetectionAgingType,omitempty"`
	SoundDetectionSensitivity *Sensitivity `json:"soundDetectionSensitivity,omitempty"`
	SoundDetectionStart       *TimeOfDay   `json:"soundDetectionStartTime,omitempty"`
	SoundDetectionEnd         *TimeOfDay   `json:"soundDetectionEndTime,omitempty"`
}

// Apply copies every present field of delta into a. Absent fields leave a untouched.
func (a *AttributeSet) Apply(delta AttributeSet) {
	for _, attr := range attributes {
		attr.copyTo(a, &delta)
	}
}

// Clone returns a deep copy of a.
func (a AttributeSet) Clone() AttributeSet {
	var out AttributeSet
	out.Apply(a)
	return out
}

// Empty reports whether no field is present.
func (a AttributeSet) Empty() bool {
	for _, attr := range attributes {
		if attr.present(&a) {
			return false
		}
	}
	return true
}

// Groups returns the groups that have at least one present field, in declaration order.
func (a AttributeSet) Groups() []Group {
	var out []Group
	seen := make(map[Group]bool)
	for _, attr := range attributes {
		if !seen[attr.group] && attr.present(&a) {
			seen[attr.group] = true
			out = append(out, attr.group)
		}
	}
	return out
}

// Touches reports whether any field of g is present.
func (a AttributeSet) Touches(g Group) bool {
	for _, attr := range attributes {
		if attr.group == g && attr.present(&a) {
			return true
		}
	}
	return false
}

// Only returns the present fields of a that belong to g.
func (a AttributeSet) Only(g Group) AttributeSet {
	var out AttributeSet
	for _, attr := range attributes {
		if attr.group == g {
			attr.copyTo(&out, &a)
		}
	}
	return out
}

// ReadOnly returns the wire names of present fields the device does not accept in ATTR_SET_SERVICE.
func (a AttributeSet) ReadOnly() []string {
	var out []string
	for _, attr := range attributes {
		if attr.encode == nil && attr.present(&a) {
			out = append(out, attr.name)
		}
	}
	return out
}

// attribute binds one AttributeSet field to its wire name and codec.
// encode is nil for fields the device reports but never accepts.
type attribute struct {
	name    string
	group   Group
	present func(*AttributeSet) bool
	copyTo  func(dst, src *AttributeSet)
	decode  func(c *Codec, raw json.RawMessage, dst *AttributeSet) error
	encode  func(c *Codec, src *AttributeSet) any
}

func field[T any](
	name string,
	group Group,
	ptr func(*AttributeSet) **T,
	dec func(*Codec, json.RawMessage) (T, error),
	enc func(*Codec, T) any,
) attribute {
	attr := attribute{
		name:    name,
		group:   group,
		present: func(a *AttributeSet) bool { return *ptr(a) != nil },
		copyTo: func(dst, src *AttributeSet) {
			if v := *ptr(src); v != nil {
				cp := *v
				*ptr(dst) = &cp
			}
		},
		decode: func(c *Codec, raw json.RawMessage, dst *AttributeSet) error {
			v, err := dec(c, raw)
			if err != nil {
				return err
			}
			*ptr(dst) = &v
			return nil
		},
	}
	if enc != nil {
		attr.encode = func(c *Codec, src *AttributeSet) any { return enc(c, **ptr(src)) }
	}
	return attr
}

// decodeAttributes fills dst from every known attribute key present in r.
func decodeAttributes(r *reader, dst *AttributeSet) {
	for _, attr := range attributes {
		raw, ok := r.value(attr.name, false)
		if !ok {
			continue
		}
		if err := attr.decode(r.codec, raw, dst); err != nil {
			if errors.Is(err, ErrDomain) {
				r.fail(fmt.Errorf("field %q: %w", attr.name, err))
			} else {
				r.failf("field %q: %v", attr.name, err)
			}
			return
		}
	}
}

// encodeAttributes writes every present writable field of src.
func encodeAttributes(e *encoder, src *AttributeSet) {
	for _, attr := range attributes {
		if attr.encode != nil && attr.present(src) {
			e.set(attr.name, attr.encode(e.codec, src))
		}
	}
}

func decodeBool(_ *Codec, raw json.RawMessage) (bool, error)   { return parseBool(raw) }
func decodeFlag(_ *Codec, raw json.RawMessage) (bool, error)   { return parseFlag(raw) }
func decodeInt(_ *Codec, raw json.RawMessage) (int, error)     { return parseInt(raw) }
func decodeText(_ *Codec, raw json.RawMessage) (string, error) { return parseString(raw) }

func decodePercentage(_ *Codec, raw json.RawMessage) (Percentage, error) {
	v, err := parseInt(raw)
	if err != nil {
		return 0, err
	}
	return NewPercentage(v)
}

func decodeTimeOfDay(c *Codec, raw json.RawMessage) (TimeOfDay, error) {
	s, err := parseString(raw)
	if err != nil {
		return TimeOfDay{}, err
	}
	return c.todFromWire(s)
}

func decodeIntEnum[T ~int](valid func(T) bool) func(*Codec, json.RawMessage) (T, error) {
	return func(_ *Codec, raw json.RawMessage) (T, error) {
		v, err := parseInt(raw)
		if err != nil {
			return 0, err
		}
		if !valid(T(v)) {
			return 0, fmt.Errorf("value %d out of range", v)
		}
		return T(v), nil
	}
}

func decodeNamed[T any](parse func(string) T) func(*Codec, json.RawMessage) (T, error) {
	return func(_ *Codec, raw json.RawMessage) (T, error) {
		s, err := parseString(raw)
		if err != nil {
			var zero T
			return zero, err
		}
		return parse(s), nil
	}
}

func encodeAs[T any](_ *Codec, v T) any { return v }

func encodeInt[T ~int](_ *Codec, v T) any { return int(v) }

func encodeName[T fmt.Stringer](_ *Codec, v T) any { return v.String() }

func encodeFlag(_ *Codec, v bool) any {
	if v {
		return 1
	}
	return 0
}

func encodeTimeOfDay(c *Codec, v TimeOfDay) any { return c.todToWire(v) }

var (
	decodeAging     = decodeIntEnum(AgingType.valid)
	decodePowerMode = decodeIntEnum(PowerMode.valid)
	decodePowerType = decodeIntEnum(PowerType.valid)
	decodeSdState   = decodeIntEnum(SdCardState.valid)
	decodeSens      = decodeNamed(ParseSensitivity)
)

// attributes is the wire table for AttributeSet, in payload order.
var attributes = []attribute{
	field("powerMode", GroupPower, func(a *AttributeSet) **PowerMode { return &a.PowerMode }, decodePowerMode, nil),
	field("powerType", GroupPower, func(a *AttributeSet) **PowerType { return &a.PowerType }, decodePowerType, nil),
	field("electricQuantity", GroupPower, func(a *AttributeSet) **Percentage { return &a.BatteryLevel }, decodePercentage, nil),

	field("surplusGrain", GroupFood, func(a *AttributeSet) **bool { return &a.SurplusGrain }, decodeBool, nil),
	field("motorState", GroupFood, func(a *AttributeSet) **int { return &a.MotorState }, decodeInt, nil),
	field("grainOutletState", GroupFood, func(a *AttributeSet) **bool { return &a.GrainOutletState }, decodeBool, nil),

	field("wifiSsid", GroupWifi, func(a *AttributeSet) **string { return &a.WifiSSID }, decodeText, nil),

	field("enableAudio", GroupAudio, func(a *AttributeSet) **bool { return &a.EnableAudio }, decodeFlag, encodeFlag),
	field("audioUrl", GroupAudio, func(a *AttributeSet) **string { return &a.AudioURL }, decodeText, encodeAs[string]),

	field("cameraSwitch", GroupCamera, func(a *AttributeSet) **bool { return &a.CameraSwitch }, decodeBool, encodeAs[bool]),
	field("enableCamera", GroupCamera, func(a *AttributeSet) **bool { return &a.EnableCamera }, decodeBool, nil),
	field("cameraAgingType", GroupCamera, func(a *AttributeSet) **AgingType { return &a.CameraAgingType }, decodeAging, encodeInt[AgingType]),
	field("nightVision", GroupCamera, func(a *AttributeSet) **NightVision { return &a.NightVision }, decodeNamed(ParseNightVision), encodeName[NightVision]),
	field("resolution", GroupCamera, func(a *AttributeSet) **Resolution { return &a.Resolution }, decodeNamed(ParseResolution), encodeName[Resolution]),
	field("cameraStartTimeUtc", GroupCamera, func(a *AttributeSet) **TimeOfDay { return &a.CameraStart }, decodeTimeOfDay, encodeTimeOfDay),
	field("cameraEndTimeUtc", GroupCamera, func(a *AttributeSet) **TimeOfDay { return &a.CameraEnd }, decodeTimeOfDay, encodeTimeOfDay),

	field("videoRecordSwitch", GroupRecording, func(a *AttributeSet) **bool { return &a.VideoRecordSwitch }, decodeBool, encodeAs[bool]),
	field("enableVideoRecord", GroupRecording, func(a *AttributeSet) **bool { return &a.EnableVideoRecord }, decodeBool, nil),
	field("videoRecordMode", GroupRecording, func(a *AttributeSet) **VideoRecordMode { return &a.VideoRecordMode }, decodeNamed(ParseVideoRecordMode), encodeName[VideoRecordMode]),
	field("videoRecordAgingType", GroupRecording, func(a *AttributeSet) **AgingType { return &a.VideoRecordAgingType }, decodeAging, encodeInt[AgingType]),
	field("videoRecordStartTimeUtc", GroupRecording, func(a *AttributeSet) **TimeOfDay { return &a.VideoRecordStart }, decodeTimeOfDay, encodeTimeOfDay),
	field("videoRecordEndTimeUtc", GroupRecording, func(a *AttributeSet) **TimeOfDay { return &a.VideoRecordEnd }, decodeTimeOfDay, encodeTimeOfDay),

	field("sdCardState", GroupSDCard, func(a *AttributeSet) **SdCardState { return &a.SdCardState }, decodeSdState, nil),
	field("sdCardFileSystem", GroupSDCard, func(a *AttributeSet) **SdCardFileSystem { return &a.SdCardFileSystem }, decodeNamed(ParseSdCardFileSystem), nil),
	field("sdCardTotalCapacity", GroupSDCard, func(a *AttributeSet) **int { return &a.SdCardTotalCapacity }, decodeInt, nil),
	field("sdCardUsedCapacity", GroupSDCard, func(a *AttributeSet) **int { return &a.SdCardUsedCapacity }, decodeInt, nil),

	field("feedingVideoSwitch", GroupFeedingVideo, func(a *AttributeSet) **bool { return &a.FeedingVideoSwitch }, decodeBool, encodeAs[bool]),
	field("enableVideoStartFeedingPlan", GroupFeedingVideo, func(a *AttributeSet) **bool { return &a.EnableVideoStartFeedingPlan }, decodeBool, encodeAs[bool]),
	field("afterManualFeedingTime", GroupFeedingVideo, func(a *AttributeSet) **int { return &a.AfterManualFeedingTime }, decodeInt, encodeAs[int]),
	field("beforeFeedingPlanTime", GroupFeedingVideo, func(a *AttributeSet) **int { return &a.BeforeFeedingPlanTime }, decodeInt, encodeAs[int]),
	field("automaticRecording", GroupFeedingVideo, func(a *AttributeSet) **int { return &a.AutomaticRecording }, decodeInt, encodeAs[int]),
	field("enableVideoAfterManualFeeding", GroupFeedingVideo, func(a *AttributeSet) **bool { return &a.EnableVideoAfterManualFeeding }, decodeBool, encodeAs[bool]),
	field("videoWatermarkSwitch", GroupFeedingVideo, func(a *AttributeSet) **bool { return &a.VideoWatermarkSwitch }, decodeBool, encodeAs[bool]),

	field("cloudVideoRecordSwitch", GroupCloudVideoRecording, func(a *AttributeSet) **bool { return &a.CloudVideoRecordSwitch }, decodeBool, encodeAs[bool]),

	field("motionDetectionSwitch", GroupMotionDetection, func(a *AttributeSet) **bool { return &a.MotionDetectionSwitch }, decodeBool, encodeAs[bool]),
	field("enableMotionDetection", GroupMotionDetection, func(a *AttributeSet) **bool { return &a.EnableMotionDetection }, decodeBool, nil),
	field("motionDetectionAgingType", GroupMotionDetection, func(a *AttributeSet) **AgingType { return &a.MotionDetectionAgingType }, decodeAging, encodeInt[AgingType]),
	field("motionDetectionRange", GroupMotionDetection, func(a *AttributeSet) **MotionDetectionRange { return &a.MotionDetectionRange }, decodeNamed(ParseMotionDetectionRange), encodeName[MotionDetectionRange]),
	field("motionDetectionSensitivity", GroupMotionDetection, func(a *AttributeSet) **Sensitivity { return &a.MotionDetectionSensitivity }, decodeSens, encodeName[Sensitivity]),
	field("motionDetectionStartTimeUtc", GroupMotionDetection, func(a *AttributeSet) **TimeOfDay { return &a.MotionDetectionStart }, decodeTimeOfDay, encodeTimeOfDay),
	field("motionDetectionEndTimeUtc", GroupMotionDetection, func(a *AttributeSet) **TimeOfDay { return &a.MotionDetectionEnd }, decodeTimeOfDay, encodeTimeOfDay),

	field("soundDetectionSwitch", GroupSoundDetection, func(a *AttributeSet) **bool { return &a.SoundDetectionSwitch }, decodeBool, encodeAs[bool]),
	field("enableSoundDetection", GroupSoundDetection, func(a *AttributeSet) **bool { return &a.EnableSoundDetection }, decodeBool, nil),
	field("soundDetectionAgingType", GroupSoundDetection, func(a *AttributeSet) **AgingType { return &a.SoundDetectionAgingType }, decodeAging, encodeInt[AgingType]),
	field("soundDetectionSensitivity", GroupSoundDetection, func(a *AttributeSet) **Sensitivity { return &a.SoundDetectionSensitivity }, decodeSens, encodeName[Sensitivity]),
	field("soundDetectionStartTimeUtc", GroupSoundDetection, func(a *AttributeSet) **TimeOfDay { return &a.SoundDetectionStart }, decodeTimeOfDay, encodeTimeOfDay),
	field("soundDetectionEndTimeUtc", GroupSoundDetection, func(a *AttributeSet) **TimeOfDay { return &a.SoundDetectionEnd }, decodeTimeOfDay, encodeTimeOfDay),

	field("soundSwitch", GroupSound, func(a *AttributeSet) **bool { return &a.SoundSwitch }, decodeBool, encodeAs[bool]),
	field("enableSound", GroupSound, func(a *AttributeSet) **bool { return &a.EnableSound }, decodeBool, nil),
	field("soundAgingType", GroupSound, func(a *AttributeSet) **AgingType { return &a.SoundAgingType }, decodeAging, encodeInt[AgingType]),
	field("soundStartTimeUtc", GroupSound, func(a *AttributeSet) **TimeOfDay { return &a.SoundStart }, decodeTimeOfDay, encodeTimeOfDay),
	field("soundEndTimeUtc", GroupSound, func(a *AttributeSet) **TimeOfDay { return &a.SoundEnd }, decodeTimeOfDay, encodeTimeOfDay),
	field("soundTimes", GroupSound, func(a *AttributeSet) **int { return &a.SoundTimes }, decodeInt, encodeAs[int]),
	field("volume", GroupSound, func(a *AttributeSet) **Percentage { return &a.Volume }, decodePercentage, encodeInt[Percentage]),

	field("lightSwitch", GroupButtonLights, func(a *AttributeSet) **bool { return &a.LightSwitch }, decodeBool, encodeAs[bool]),
	field("enableLight", GroupButtonLights, func(a *AttributeSet) **bool { return &a.EnableLight }, decodeBool, nil),
	field("lightAgingType", GroupButtonLights, func(a *AttributeSet) **AgingType { return &a.LightAgingType }, decodeAging, encodeInt[AgingType]),
	field("lightingStartTimeUtc", GroupButtonLights, func(a *AttributeSet) **TimeOfDay { return &a.LightingStart }, decodeTimeOfDay, encodeTimeOfDay),
	field("lightingEndTimeUtc", GroupButtonLights, func(a *AttributeSet) **TimeOfDay { return &a.LightingEnd }, decodeTimeOfDay, encodeTimeOfDay),
	field("lightingTimes", GroupButtonLights, func(a *AttributeSet) **int { return &a.LightingTimes }, decodeInt, encodeAs[int]),

	field("autoChangeMode", GroupButtonsAutoLock, func(a *AttributeSet) **bool { return &a.AutoChangeMode }, decodeBool, encodeAs[bool]),
	field("autoThreshold", GroupButtonsAutoLock, func(a *AttributeSet) **int { return &a.AutoThreshold }, decodeInt, encodeAs[int]),
}
