package session

import (
	"context"

	"github.com/nerrad567/plaf203-core/internal/protocol"
)

// Settings is a typed view of one operator-configurable attribute group.
// Nil fields are left unchanged on the device.
type Settings interface {
	Group() protocol.Group
	Attributes() protocol.AttributeSet
}

// NewSettings returns an empty settings value for group, ready to be
// decoded into. It reports false for groups that are not settings.
func NewSettings(group protocol.Group) (Settings, bool) {
	switch group {
	case protocol.GroupAudio:
		return &AudioSettings{}, true
	case protocol.GroupCamera:
		return &CameraSettings{}, true
	case protocol.GroupRecording:
		return &RecordingSettings{}, true
	case protocol.GroupSound:
		return &SoundSettings{}, true
	case protocol.GroupMotionDetection:
		return &MotionDetectionSettings{}, true
	case protocol.GroupSoundDetection:
		return &SoundDetectionSettings{}, true
	case protocol.GroupCloudVideoRecording:
		return &CloudVideoRecordingSettings{}, true
	case protocol.GroupButtonLights:
		return &ButtonLightsSettings{}, true
	case protocol.GroupButtonsAutoLock:
		return &ButtonsAutoLockSettings{}, true
	case protocol.GroupFeedingVideo:
		return &FeedingVideoSettings{}, true
	}
	return nil, false
}

// ApplySettings writes s to the device.
func (e *Engine) ApplySettings(ctx context.Context, s Settings) error {
	return e.UpdateSettings(ctx, s.Attributes())
}

// AudioSettings is the custom feeding call. The device needs both fields
// on every write; a missing one is filled from the last known value.
type AudioSettings struct {
	Enabled *bool   `json:"enabled,omitempty"`
	URL     *string `json:"url,omitempty"`
}

func (*AudioSettings) Group() protocol.Group { return protocol.GroupAudio }

func (s *AudioSettings) Attributes() protocol.AttributeSet {
	return protocol.AttributeSet{EnableAudio: s.Enabled, AudioURL: s.URL}
}

// SetAudio configures the feeding call.
func (e *Engine) SetAudio(ctx context.Context, s AudioSettings) error {
	return e.ApplySettings(ctx, &s)
}

// Schedule is the active window shared by the scheduled groups. Times
// are local; Aging selects whether the window applies.
type Schedule struct {
	Aging *protocol.AgingType `json:"aging,omitempty"`
	Start *protocol.TimeOfDay `json:"start,omitempty"`
	End   *protocol.TimeOfDay `json:"end,omitempty"`
}

type CameraSettings struct {
	Switch *bool `json:"switch,omitempty"`
	Schedule
	NightVision *protocol.NightVision `json:"night_vision,omitempty"`
	Resolution  *protocol.Resolution  `json:"resolution,omitempty"`
}

func (*CameraSettings) Group() protocol.Group { return protocol.GroupCamera }

func (s *CameraSettings) Attributes() protocol.AttributeSet {
	return protocol.AttributeSet{
		CameraSwitch:    s.Switch,
		CameraAgingType: s.Aging,
		CameraStart:     s.Start,
		CameraEnd:       s.End,
		NightVision:     s.NightVision,
		Resolution:      s.Resolution,
	}
}

// SetCamera configures the camera.
func (e *Engine) SetCamera(ctx context.Context, s CameraSettings) error {
	return e.ApplySettings(ctx, &s)
}

type RecordingSettings struct {
	Switch *bool `json:"switch,omitempty"`
	Schedule
	Mode *protocol.VideoRecordMode `json:"mode,omitempty"`
}

func (*RecordingSettings) Group() protocol.Group { return protocol.GroupRecording }

func (s *RecordingSettings) Attributes() protocol.AttributeSet {
	return protocol.AttributeSet{
		VideoRecordSwitch:    s.Switch,
		VideoRecordAgingType: s.Aging,
		VideoRecordStart:     s.Start,
		VideoRecordEnd:       s.End,
		VideoRecordMode:      s.Mode,
	}
}

// SetRecording configures local video recording.
func (e *Engine) SetRecording(ctx context.Context, s RecordingSettings) error {
	return e.ApplySettings(ctx, &s)
}

// SoundSettings controls the speaker.
type SoundSettings struct {
	Switch *bool `json:"switch,omitempty"`
	Schedule
	Times  *int                 `json:"times,omitempty"`
	Volume *protocol.Percentage `json:"volume,omitempty"`
}

func (*SoundSettings) Group() protocol.Group { return protocol.GroupSound }

func (s *SoundSettings) Attributes() protocol.AttributeSet {
	return protocol.AttributeSet{
		SoundSwitch:    s.Switch,
		SoundAgingType: s.Aging,
		SoundStart:     s.Start,
		SoundEnd:       s.End,
		SoundTimes:     s.Times,
		Volume:         s.Volume,
	}
}

// SetSound configures the speaker.
func (e *Engine) SetSound(ctx context.Context, s SoundSettings) error {
	return e.ApplySettings(ctx, &s)
}

type MotionDetectionSettings struct {
	Switch *bool `json:"switch,omitempty"`
	Schedule
	Range       *protocol.MotionDetectionRange `json:"range,omitempty"`
	Sensitivity *protocol.Sensitivity          `json:"sensitivity,omitempty"`
}

func (*MotionDetectionSettings) Group() protocol.Group { return protocol.GroupMotionDetection }

func (s *MotionDetectionSettings) Attributes() protocol.AttributeSet {
	return protocol.AttributeSet{
		MotionDetectionSwitch:      s.Switch,
		MotionDetectionAgingType:   s.Aging,
		MotionDetectionStart:       s.Start,
		MotionDetectionEnd:         s.End,
		MotionDetectionRange:       s.Range,
		MotionDetectionSensitivity: s.Sensitivity,
	}
}

// SetMotionDetection configures motion detection.
func (e *Engine) SetMotionDetection(ctx context.Context, s MotionDetectionSettings) error {
	return e.ApplySettings(ctx, &s)
}

type SoundDetectionSettings struct {
	Switch *bool `json:"switch,omitempty"`
	Schedule
	Sensitivity *protocol.Sensitivity `json:"sensitivity,omitempty"`
}

func (*SoundDetectionSettings) Group() protocol.Group { return protocol.GroupSoundDetection }

func (s *SoundDetectionSettings) Attributes() protocol.AttributeSet {
	return protocol.AttributeSet{
		SoundDetectionSwitch:      s.Switch,
		SoundDetectionAgingType:   s.Aging,
		SoundDetectionStart:       s.Start,
		SoundDetectionEnd:         s.End,
		SoundDetectionSensitivity: s.Sensitivity,
	}
}

// SetSoundDetection configures sound detection.
func (e *Engine) SetSoundDetection(ctx context.Context, s SoundDetectionSettings) error {
	return e.ApplySettings(ctx, &s)
}

type CloudVideoRecordingSettings struct {
	Switch *bool `json:"switch,omitempty"`
}

func (*CloudVideoRecordingSettings) Group() protocol.Group { return protocol.GroupCloudVideoRecording }

func (s *CloudVideoRecordingSettings) Attributes() protocol.AttributeSet {
	return protocol.AttributeSet{CloudVideoRecordSwitch: s.Switch}
}

// SetCloudVideoRecording turns cloud recording on or off.
func (e *Engine) SetCloudVideoRecording(ctx context.Context, s CloudVideoRecordingSettings) error {
	return e.ApplySettings(ctx, &s)
}

type ButtonLightsSettings struct {
	Switch *bool `json:"switch,omitempty"`
	Schedule
	Times *int `json:"times,omitempty"`
}

func (*ButtonLightsSettings) Group() protocol.Group { return protocol.GroupButtonLights }

func (s *ButtonLightsSettings) Attributes() protocol.AttributeSet {
	return protocol.AttributeSet{
		LightSwitch:    s.Switch,
		LightAgingType: s.Aging,
		LightingStart:  s.Start,
		LightingEnd:    s.End,
		LightingTimes:  s.Times,
	}
}

// SetButtonLights configures the button backlight.
func (e *Engine) SetButtonLights(ctx context.Context, s ButtonLightsSettings) error {
	return e.ApplySettings(ctx, &s)
}

// ButtonsAutoLockSettings locks the buttons after Threshold seconds idle.
type ButtonsAutoLockSettings struct {
	Enabled   *bool `json:"enabled,omitempty"`
	Threshold *int  `json:"threshold,omitempty"`
}

func (*ButtonsAutoLockSettings) Group() protocol.Group { return protocol.GroupButtonsAutoLock }

func (s *ButtonsAutoLockSettings) Attributes() protocol.AttributeSet {
	return protocol.AttributeSet{AutoChangeMode: s.Enabled, AutoThreshold: s.Threshold}
}

// SetButtonsAutoLock configures the button lock.
func (e *Engine) SetButtonsAutoLock(ctx context.Context, s ButtonsAutoLockSettings) error {
	return e.ApplySettings(ctx, &s)
}

// FeedingVideoSettings controls clips recorded around feeds.
type FeedingVideoSettings struct {
	Switch                 *bool `json:"switch,omitempty"`
	OnPlan                 *bool `json:"on_plan,omitempty"`
	AfterManualFeed        *bool `json:"after_manual_feed,omitempty"`
	BeforePlanSeconds      *int  `json:"before_plan_seconds,omitempty"`
	AfterManualFeedSeconds *int  `json:"after_manual_feed_seconds,omitempty"`
	AutomaticRecording     *int  `json:"automatic_recording,omitempty"`
	Watermark              *bool `json:"watermark,omitempty"`
}

func (*FeedingVideoSettings) Group() protocol.Group { return protocol.GroupFeedingVideo }

func (s *FeedingVideoSettings) Attributes() protocol.AttributeSet {
	return protocol.AttributeSet{
		FeedingVideoSwitch:            s.Switch,
		EnableVideoStartFeedingPlan:   s.OnPlan,
		EnableVideoAfterManualFeeding: s.AfterManualFeed,
		BeforeFeedingPlanTime:         s.BeforePlanSeconds,
		AfterManualFeedingTime:        s.AfterManualFeedSeconds,
		AutomaticRecording:            s.AutomaticRecording,
		VideoWatermarkSwitch:          s.Watermark,
	}
}

// SetFeedingVideo configures feeding clips.
func (e *Engine) SetFeedingVideo(ctx context.Context, s FeedingVideoSettings) error {
	return e.ApplySettings(ctx, &s)
}
