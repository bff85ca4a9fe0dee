package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/plaf203-core/internal/clock"
	"github.com/nerrad567/plaf203-core/internal/protocol"
	"github.com/nerrad567/plaf203-core/internal/router"
)

// Register installs a handler for every inbound command on r. Call it
// before r.Start.
func (e *Engine) Register(r *router.Router) error {
	return errors.Join(
		router.On(r, protocol.CmdHeartbeat, e.handleHeartbeat),
		router.On(r, protocol.CmdNTP, e.handleNtp),
		router.On(r, protocol.CmdNTPSync, e.handleNtpSync),
		router.On(r, protocol.CmdDeviceStartEvent, e.handleDeviceStart),
		router.On(r, protocol.CmdDeviceReboot, e.handleDeviceReboot),
		router.On(r, protocol.CmdRestore, e.handleRestore),
		router.On(r, protocol.CmdWifiReconnectService, e.handleWifiReconnect),
		router.On(r, protocol.CmdInitializeSDCardService, e.handleFormatSDCard),
		router.On(r, protocol.CmdAttrGetService, e.handleAttrGet),
		router.On(r, protocol.CmdAttrPushEvent, e.handleAttrPush),
		router.On(r, protocol.CmdAttrSetService, e.handleAttrSet),
		router.On(r, protocol.CmdGetConfig, e.handleGetConfig),
		router.On(r, protocol.CmdManualFeedingService, e.handleManualFeeding),
		router.On(r, protocol.CmdGrainOutputEvent, e.handleGrainOutput),
		router.On(r, protocol.CmdFeedingPlanService, e.handleFeedingPlan),
		router.On(r, protocol.CmdDeviceFeedingPlanService, e.handleDeviceFeedingPlan),
		router.On(r, protocol.CmdGetFeedingPlanEvent, e.handleGetFeedingPlan),
		router.On(r, protocol.CmdReset, e.handleReset),
		router.On(r, protocol.CmdOTAUpgrade, e.handleOtaUpgrade),
		router.On(r, protocol.CmdOTAProgress, e.handleOtaProgress),
		router.On(r, protocol.CmdOTAInform, e.handleOtaInform),
		router.On(r, protocol.CmdErrorEvent, e.handleErrorEvent),
		router.On(r, protocol.CmdDetectionEvent, e.handleDetection),
		router.On(r, protocol.CmdBinding, e.handleBinding),
		router.On(r, protocol.CmdDevicePropertiesService, e.handleDeviceProperties),
	)
}

func ackOK(in protocol.Correlated) protocol.CodeOut {
	return protocol.CodeOut{Header: protocol.ReplyTo(in), Code: protocol.CodeOK}
}

// --- heart / ntp -------------------------------------------------------------

func (e *Engine) handleHeartbeat(ctx context.Context, in *protocol.HeartbeatIn) error {
	e.lock()
	defer e.unlock()

	// A stopped engine keeps answering but no longer times the device out.
	if e.started {
		e.watchdog.Reset()
	}

	if in.Count < e.lastCount {
		e.logger.Info("heartbeat counter went back, device restarted",
			"serial", e.cfg.Serial,
			"count", in.Count,
			"last_count", e.lastCount,
		)
		e.online = false
		e.emit(EventOnline, OnlineChanged{Online: false})
	}
	e.lastCount = in.Count
	e.lastHeartbeat = e.cfg.Now()
	rssi, wifiType := in.RSSI, in.WifiType
	e.rssi = &rssi

	var err error
	if !e.online {
		if err = e.goOnline(ctx); err == nil {
			e.emit(EventDeviceInfo, DeviceInfo{Serial: e.cfg.Serial})
			e.emit(EventWifiInfo, WifiInfo{RSSI: &rssi, Type: &wifiType})
		}
	} else {
		err = e.send(ctx, &protocol.AttrGetServiceOut{})
	}

	e.reportDrift(ctx, in.DeviceTime())
	return err
}

// handleNtp answers the device's time request. The calibration tag asks
// the device to adopt the server time when its own clock is off.
func (e *Engine) handleNtp(ctx context.Context, in *protocol.NtpIn) error {
	e.lock()
	defer e.unlock()

	ok := clock.DriftOK(e.cfg.Now(), in.DeviceTime(), e.cfg.DriftThreshold)
	err := e.send(ctx, &protocol.NtpOut{
		Code:           protocol.CodeOK,
		CalibrationTag: !ok,
	})
	e.driftOK = true
	e.emit(EventDrift, DriftStatus{OK: true})
	return err
}

func (e *Engine) handleNtpSync(_ context.Context, in *protocol.NtpSyncIn) error {
	e.lock()
	defer e.unlock()

	if !in.Code.OK() {
		e.logger.Warn("clock resync rejected", "serial", e.cfg.Serial, "code", in.Code)
	}
	e.driftOK = clock.DriftOK(e.cfg.Now(), in.DeviceTime(), e.cfg.DriftThreshold)
	e.emit(EventDrift, DriftStatus{OK: e.driftOK})
	return nil
}

// --- lifecycle ---------------------------------------------------------------

func (e *Engine) handleDeviceStart(ctx context.Context, in *protocol.DeviceStartEventIn) error {
	e.lock()
	defer e.unlock()

	if err := e.send(ctx, &protocol.DeviceStartEventOut{CodeOut: ackOK(in)}); err != nil {
		return err
	}

	if !in.Success {
		e.emitError(msgDeviceInitFailed)
		e.observeDrift(ctx, in.DeviceTime())
		return nil
	}

	e.emit(EventDeviceInfo, DeviceInfo{
		PID:             in.PID,
		UUID:            in.UUID,
		HardwareVersion: in.HardwareVersion,
		SoftwareVersion: in.SoftwareVersion,
	})
	e.emit(EventWifiInfo, WifiInfo{MAC: in.MAC})

	var err error
	if !e.online {
		// A fresh boot restarts the heartbeat counter.
		e.lastCount = 0
		err = e.goOnline(ctx)
	}
	e.observeDrift(ctx, in.DeviceTime())
	return err
}

func (e *Engine) handleDeviceReboot(_ context.Context, in *protocol.DeviceRebootIn) error {
	return e.goingDown(in.Code, msgRebootFailed, "reboot")
}

func (e *Engine) handleRestore(_ context.Context, in *protocol.RestoreIn) error {
	return e.goingDown(in.Code, msgFactoryResetFailed, "factory reset")
}

func (e *Engine) handleWifiReconnect(_ context.Context, in *protocol.WifiReconnectServiceIn) error {
	return e.goingDown(in.Code, msgWifiReconnectFailed, "wifi reconnect")
}

// goingDown handles replies to requests after which the device drops off
// the network. The device clock is not checked; it resyncs on return.
func (e *Engine) goingDown(code protocol.Code, failure, reason string) error {
	e.lock()
	defer e.unlock()

	if !code.OK() {
		e.emitError(failure)
		return nil
	}
	e.setOffline(reason)
	return nil
}

func (e *Engine) handleReset(ctx context.Context, in *protocol.ResetIn) error {
	e.lock()
	defer e.unlock()

	e.logger.Info("device reset", "serial", e.cfg.Serial)
	e.observeDrift(ctx, in.DeviceTime())
	return nil
}

func (e *Engine) handleBinding(ctx context.Context, in *protocol.BindingIn) error {
	e.lock()
	defer e.unlock()

	err := e.send(ctx, &protocol.BindingOut{
		Header: protocol.ReplyTo(in),
		Code:   protocol.CodeOK,
		BindID: e.cfg.BindID,
	})
	e.logger.Info("device binding confirmed",
		"serial", e.cfg.Serial,
		"member_id", in.MemberID,
		"bind_id", e.cfg.BindID,
	)
	e.emit(EventDeviceInfo, DeviceInfo{
		PID:             in.PID,
		UUID:            in.UUID,
		HardwareVersion: in.HardwareVersion,
		SoftwareVersion: in.SoftwareVersion,
	})
	e.emit(EventWifiInfo, WifiInfo{MAC: in.MAC})
	e.observeDrift(ctx, in.DeviceTime())
	return err
}

// --- attributes --------------------------------------------------------------

func (e *Engine) handleAttrGet(ctx context.Context, in *protocol.AttrGetServiceIn) error {
	e.lock()
	defer e.unlock()

	if !in.Code.OK() {
		e.logger.Warn("attribute snapshot reported an error", "serial", e.cfg.Serial, "code", in.Code)
	}
	e.applyAttributes(in.Attributes)
	e.observeDrift(ctx, in.DeviceTime())
	return nil
}

func (e *Engine) handleAttrPush(ctx context.Context, in *protocol.AttrPushEventIn) error {
	e.lock()
	defer e.unlock()

	err := e.send(ctx, &protocol.AttrPushEventOut{CodeOut: ackOK(in)})
	e.applyAttributes(in.Attributes)
	e.observeDrift(ctx, in.DeviceTime())
	return err
}

func (e *Engine) handleAttrSet(ctx context.Context, in *protocol.AttrSetServiceIn) error {
	return e.confirm(ctx, in.Reply, msgAttributeSetFailed)
}

// applyAttributes folds delta into the caches and reports what it touched.
func (e *Engine) applyAttributes(delta protocol.AttributeSet) {
	e.attrs.Apply(delta)
	e.audio.Refresh(delta)

	for _, g := range protocol.SettingsGroups() {
		if delta.Touches(g) {
			e.emit(EventSettings, SettingsChanged{Group: g, Settings: e.attrs.Only(g)})
		}
	}

	if delta.Touches(protocol.GroupPower) {
		e.emit(EventPowerState, PowerState{
			Mode:         e.attrs.PowerMode,
			Type:         e.attrs.PowerType,
			BatteryLevel: e.attrs.BatteryLevel,
		})
	}
	if delta.Touches(protocol.GroupFood) {
		e.emit(EventFoodState, FoodState{
			OutletBlocked: negate(e.attrs.GrainOutletState),
			LowFill:       negate(e.attrs.SurplusGrain),
			MotorState:    e.attrs.MotorState,
		})
	}
	if delta.Touches(protocol.GroupSDCard) {
		e.emit(EventSDCardInfo, SDCardInfo{
			State:         e.attrs.SdCardState,
			FileSystem:    e.attrs.SdCardFileSystem,
			TotalCapacity: e.attrs.SdCardTotalCapacity,
			UsedCapacity:  e.attrs.SdCardUsedCapacity,
		})
	}
	if delta.WifiSSID != nil {
		ssid := *delta.WifiSSID
		e.emit(EventWifiInfo, WifiInfo{SSID: &ssid})
	}
}

func negate(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := !*b
	return &v
}

func (e *Engine) handleGetConfig(ctx context.Context, in *protocol.GetConfigIn) error {
	e.lock()
	defer e.unlock()

	e.emit(EventDeviceInfo, DeviceInfo{
		PID:             in.PID,
		HardwareVersion: in.HardwareVersion,
		SoftwareVersion: in.SoftwareVersion,
	})
	e.emit(EventWifiInfo, WifiInfo{MAC: in.MAC})
	e.observeDrift(ctx, in.DeviceTime())
	return nil
}

func (e *Engine) handleDeviceProperties(ctx context.Context, in *protocol.DevicePropertiesServiceIn) error {
	e.lock()
	defer e.unlock()

	e.logger.Debug("device properties",
		"serial", e.cfg.Serial,
		"identifier", in.Identifier,
		"success", in.Success,
	)
	e.observeDrift(ctx, in.DeviceTime())
	return nil
}

// confirm handles a plain device reply to a server request: a non-OK
// code is reported and ends processing, otherwise the clock is checked.
func (e *Engine) confirm(ctx context.Context, in protocol.Reply, failure string) error {
	e.lock()
	defer e.unlock()

	if !in.Code.OK() {
		e.emitError(failure)
		return nil
	}
	e.observeDrift(ctx, in.DeviceTime())
	return nil
}

// --- feeding -----------------------------------------------------------------

func (e *Engine) handleManualFeeding(ctx context.Context, in *protocol.ManualFeedingServiceIn) error {
	return e.confirm(ctx, in.Reply, msgManualFeedFailed)
}

func (e *Engine) handleFormatSDCard(ctx context.Context, in *protocol.InitializeSdCardServiceIn) error {
	return e.confirm(ctx, in.Reply, msgFormatSDCardFailed)
}

func (e *Engine) handleGrainOutput(ctx context.Context, in *protocol.GrainOutputEventIn) error {
	e.lock()
	defer e.unlock()

	err := e.send(ctx, &protocol.GrainOutputEventOut{
		Header:   protocol.ReplyTo(in),
		Code:     protocol.CodeOK,
		ExecStep: in.ExecStep,
	})

	obs := e.tracker.Observe(in)
	switch {
	case obs.Invalid:
		e.logger.Warn("grain output with unknown step", "serial", e.cfg.Serial, "type", in.Type)
	case obs.Overlapped:
		e.logger.Warn("feed started while another was running", "serial", e.cfg.Serial, "type", in.Type)
	}

	if s := obs.Started; s != nil {
		e.logger.Info("feed started", "serial", e.cfg.Serial, "type", s.Type, "expected", s.Expected)
		e.emit(EventFeedStarted, FeedStarted{Type: s.Type, Expected: s.Expected, PlanID: s.PlanID})
	}
	if d := obs.Ended; d != nil {
		e.logger.Info("feed ended", "serial", e.cfg.Serial, "type", d.Type, "actual", d.Actual)
		e.emit(EventFeedEnded, FeedEnded{
			Type:     d.Type,
			Actual:   d.Actual,
			Expected: d.Expected,
			PlanID:   d.PlanID,
		})
	}
	if obs.Mismatch != nil {
		e.emitError(obs.Mismatch.Error())
	}
	for _, p := range obs.Changes {
		e.emit(EventFeedProgress, FeedProgress{Progress: p})
	}

	e.observeDrift(ctx, in.DeviceTime())
	return err
}

func (e *Engine) handleFeedingPlan(ctx context.Context, in *protocol.FeedingPlanServiceIn) error {
	return e.planAck(ctx, in.Reply, in.Plans, in.Msg)
}

func (e *Engine) handleDeviceFeedingPlan(ctx context.Context, in *protocol.DeviceFeedingPlanServiceIn) error {
	return e.planAck(ctx, in.Reply, in.Plans, in.Msg)
}

func (e *Engine) planAck(ctx context.Context, in protocol.Reply, acked []protocol.PlanSync, msg *string) error {
	e.lock()
	defer e.unlock()

	if !in.Code.OK() {
		if msg != nil && *msg != "" {
			e.logger.Warn("feeding plan rejected", "serial", e.cfg.Serial, "msg", *msg)
		}
		e.emitError(msgFeedingPlanFailed)
		return nil
	}
	if missing := e.plans.Unconfirmed(acked); len(missing) > 0 {
		e.logger.Warn("device did not confirm every plan", "serial", e.cfg.Serial, "plan_ids", missing)
	}
	e.observeDrift(ctx, in.DeviceTime())
	return nil
}

func (e *Engine) handleGetFeedingPlan(ctx context.Context, in *protocol.GetFeedingPlanEventIn) error {
	e.lock()
	defer e.unlock()

	err := e.send(ctx, e.plans.Reply(in, e.cfg.Now()))
	e.observeDrift(ctx, in.DeviceTime())
	return err
}

// --- ota ---------------------------------------------------------------------

func (e *Engine) handleOtaUpgrade(ctx context.Context, in *protocol.OtaUpgradeIn) error {
	e.lock()
	defer e.unlock()

	if !in.Code.OK() {
		msg := msgFirmwareUpgradeFailed
		if in.ErrorMsg != nil && *in.ErrorMsg != "" {
			msg = fmt.Sprintf("%s: %s", msgFirmwareUpgradeFailed, *in.ErrorMsg)
		}
		e.emitError(msg)
		return nil
	}
	e.emit(EventFirmware, Firmware{Stage: FirmwareUpgradeAccepted})
	e.observeDrift(ctx, in.DeviceTime())
	return nil
}

func (e *Engine) handleOtaProgress(ctx context.Context, in *protocol.OtaProgressIn) error {
	e.lock()
	defer e.unlock()

	err := e.send(ctx, &protocol.OtaProgressOut{CodeOut: ackOK(in)})
	e.emit(EventFirmware, Firmware{Stage: FirmwareProgress, Progress: in.Progress})
	e.observeDrift(ctx, in.DeviceTime())
	return err
}

func (e *Engine) handleOtaInform(ctx context.Context, in *protocol.OtaInformIn) error {
	e.lock()
	defer e.unlock()

	err := e.send(ctx, &protocol.OtaInformOut{CodeOut: ackOK(in)})
	fw := Firmware{Stage: FirmwareInform, State: in.State}
	if in.ErrorMsg != nil {
		fw.Error = *in.ErrorMsg
	}
	e.logger.Info("firmware state", "serial", e.cfg.Serial, "state", in.State, "error", fw.Error)
	e.emit(EventFirmware, fw)
	e.observeDrift(ctx, in.DeviceTime())
	return err
}

// --- device events -----------------------------------------------------------

func (e *Engine) handleErrorEvent(ctx context.Context, in *protocol.ErrorEventIn) error {
	e.lock()
	defer e.unlock()

	err := e.send(ctx, &protocol.ErrorEventOut{Header: protocol.ReplyTo(in)})
	e.logger.Warn("device fault", "serial", e.cfg.Serial, "error_code", in.ErrorCode)
	e.emit(EventDeviceFault, DeviceFault{Code: in.ErrorCode, TriggerTime: in.TriggerTime})
	e.observeDrift(ctx, in.DeviceTime())
	return err
}

func (e *Engine) handleDetection(ctx context.Context, in *protocol.DetectionEventIn) error {
	e.lock()
	defer e.unlock()

	e.emit(EventDetection, Detection{Type: in.Type})
	e.observeDrift(ctx, in.DeviceTime())
	return nil
}
