package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/plaf203-core/internal/feeding"
	"github.com/nerrad567/plaf203-core/internal/protocol"
)

var testNow = time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

// mockSender records every outbound message.
type mockSender struct {
	mu    sync.Mutex
	sent  []protocol.Outgoing
	err   error
	failN int // fail the Nth send (1-based) when err is set; 0 fails all
}

func (m *mockSender) Send(_ context.Context, msg protocol.Outgoing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.sent) + 1
	if m.err != nil && (m.failN == 0 || m.failN == n) {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockSender) commands() []protocol.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.Command, len(m.sent))
	for i, msg := range m.sent {
		out[i] = msg.Command()
	}
	return out
}

func (m *mockSender) last() protocol.Outgoing {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockSender) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) HandleEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) of(kind EventKind) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev.Payload)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// memStore is an in-memory Store.
type memStore struct {
	plans  []feeding.Plan
	qty    int
	hasQty bool
	err    error
}

func (s *memStore) LoadFoodPlans(context.Context) ([]feeding.Plan, error) { return s.plans, s.err }

func (s *memStore) SaveFoodPlans(_ context.Context, plans []feeding.Plan) error {
	if s.err != nil {
		return s.err
	}
	s.plans = plans
	return nil
}

func (s *memStore) LoadManualFeedQuantity(context.Context) (int, bool, error) {
	return s.qty, s.hasQty, s.err
}

func (s *memStore) SaveManualFeedQuantity(_ context.Context, qty int) error {
	if s.err != nil {
		return s.err
	}
	s.qty, s.hasQty = qty, true
	return nil
}

type harness struct {
	engine *Engine
	sender *mockSender
	events *recorder
	store  *memStore
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	cfg := Config{
		Serial:          "AF01",
		WatchdogTimeout: time.Hour,
		Now:             func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h := &harness{sender: &mockSender{}, events: &recorder{}, store: &memStore{}}
	h.engine = New(cfg, h.sender, h.store, h.events, nil)
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(h.engine.Stop)
	return h
}

// online drives the engine through its first heartbeat and clears the records.
func (h *harness) online(t *testing.T) {
	t.Helper()
	if err := h.engine.handleHeartbeat(context.Background(), heartbeat(1, testNow)); err != nil {
		t.Fatalf("heartbeat error = %v", err)
	}
	h.sender.reset()
	h.events.reset()
}

func stamp(t time.Time) protocol.DeviceStamp { return protocol.DeviceStamp{Time: t} }

func exchange(id string) protocol.Exchange {
	return protocol.Exchange{MsgID: protocol.MessageID(id), DeviceStamp: stamp(testNow)}
}

func reply(id string, code protocol.Code) protocol.Reply {
	return protocol.Reply{Exchange: exchange(id), Code: code}
}

func heartbeat(count int, at time.Time) *protocol.HeartbeatIn {
	return &protocol.HeartbeatIn{DeviceStamp: stamp(at), Count: count, RSSI: -60, WifiType: protocol.WifiType1}
}

func equalCommands(got, want []protocol.Command) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func equalKinds(got, want []EventKind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// Connectivity
// =============================================================================

func TestHeartbeatBringsDeviceOnline(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.engine.handleHeartbeat(ctx, heartbeat(1, testNow)); err != nil {
		t.Fatalf("handleHeartbeat() error = %v", err)
	}

	wantCmds := []protocol.Command{protocol.CmdAttrGetService, protocol.CmdGetConfig, protocol.CmdFeedingPlanService}
	if got := h.sender.commands(); !equalCommands(got, wantCmds) {
		t.Errorf("sent %v, want %v", got, wantCmds)
	}
	wantKinds := []EventKind{EventOnline, EventDeviceInfo, EventWifiInfo, EventDrift}
	if got := h.events.kinds(); !equalKinds(got, wantKinds) {
		t.Errorf("events %v, want %v", got, wantKinds)
	}

	wifi := h.events.of(EventWifiInfo)[0].(WifiInfo)
	if wifi.RSSI == nil || *wifi.RSSI != -60 || wifi.Type == nil || *wifi.Type != protocol.WifiType1 {
		t.Errorf("wifi info = %+v", wifi)
	}

	st := h.engine.Status()
	if !st.Online || st.LastCount != 1 || st.LastHeartbeat == nil || !st.DriftOK {
		t.Errorf("Status() = %+v", st)
	}

	// A second heartbeat only refreshes attributes.
	h.sender.reset()
	h.events.reset()
	if err := h.engine.handleHeartbeat(ctx, heartbeat(2, testNow)); err != nil {
		t.Fatalf("handleHeartbeat() error = %v", err)
	}
	if got := h.sender.commands(); !equalCommands(got, []protocol.Command{protocol.CmdAttrGetService}) {
		t.Errorf("sent %v, want [ATTR_GET_SERVICE]", got)
	}
	if got := h.events.kinds(); !equalKinds(got, []EventKind{EventDrift}) {
		t.Errorf("events %v, want [drift]", got)
	}
}

func TestHeartbeatCounterReset(t *testing.T) {
	h := newHarness(t, nil)
	h.online(t)

	if err := h.engine.handleHeartbeat(context.Background(), heartbeat(0, testNow)); err != nil {
		t.Fatalf("handleHeartbeat() error = %v", err)
	}

	online := h.events.of(EventOnline)
	if len(online) != 2 || online[0].(OnlineChanged).Online || !online[1].(OnlineChanged).Online {
		t.Errorf("online events = %v, want offline then online", online)
	}
	if got := h.sender.commands(); len(got) != 3 {
		t.Errorf("sent %v, want full resync", got)
	}
}

func TestHeartbeatResyncWithCamera(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.CameraID = "cam-9" })

	if err := h.engine.handleHeartbeat(context.Background(), heartbeat(1, testNow)); err != nil {
		t.Fatalf("handleHeartbeat() error = %v", err)
	}

	info, ok := h.sender.last().(*protocol.DeviceInfoServiceOut)
	if !ok {
		t.Fatalf("last sent = %T, want *DeviceInfoServiceOut", h.sender.last())
	}
	if info.DeviceSN != "AF01" || info.CameraID != "cam-9" {
		t.Errorf("device info = %+v", info)
	}
}

func TestHeartbeatResyncFailureStaysOffline(t *testing.T) {
	h := newHarness(t, nil)
	h.sender.err = errors.New("broker down")
	h.sender.failN = 2

	err := h.engine.handleHeartbeat(context.Background(), heartbeat(1, testNow))
	if err == nil {
		t.Fatal("handleHeartbeat() error = nil, want send failure")
	}
	if h.engine.Status().Online {
		t.Error("engine online after failed resync")
	}
	if got := h.events.of(EventOnline); len(got) != 0 {
		t.Errorf("online events = %v, want none", got)
	}
}

func TestWatchdogMarksOffline(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.WatchdogTimeout = 100 * time.Millisecond })
	h.online(t)

	deadline := time.Now().Add(2 * time.Second)
	for h.engine.Status().Online {
		if time.Now().After(deadline) {
			t.Fatal("engine still online after watchdog timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}

	online := h.events.of(EventOnline)
	if len(online) != 1 || online[0].(OnlineChanged).Online {
		t.Errorf("online events = %v, want one offline", online)
	}
}

func TestWatchdogIgnoredWhenRearmed(t *testing.T) {
	h := newHarness(t, nil)
	h.online(t)

	// Armed by the heartbeat: a late fire must not take the device offline.
	h.engine.onWatchdog()
	if !h.engine.Status().Online {
		t.Error("stale watchdog fire took the device offline")
	}
}

func TestHeartbeatAfterStopLeavesWatchdogDisarmed(t *testing.T) {
	h := newHarness(t, nil)
	h.online(t)

	h.engine.Stop()
	if err := h.engine.handleHeartbeat(context.Background(), heartbeat(2, testNow)); err != nil {
		t.Fatalf("handleHeartbeat() error = %v", err)
	}
	if h.engine.watchdog.Armed() {
		t.Error("heartbeat re-armed the watchdog of a stopped engine")
	}
}

// gatedListener blocks on the first offline event until released.
type gatedListener struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	mu     sync.Mutex
	online []bool
}

func (l *gatedListener) HandleEvent(ev Event) {
	c, ok := ev.Payload.(OnlineChanged)
	if !ok {
		return
	}
	if !c.Online {
		l.once.Do(func() {
			close(l.entered)
			<-l.release
		})
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.online = append(l.online, c.Online)
}

func TestEventsDeliveredInEmitOrder(t *testing.T) {
	listener := &gatedListener{entered: make(chan struct{}), release: make(chan struct{})}
	e := New(Config{
		Serial:          "AF01",
		WatchdogTimeout: time.Hour,
		Now:             func() time.Time { return testNow },
	}, &mockSender{}, nil, listener, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer e.Stop()
	ctx := context.Background()

	if err := e.handleHeartbeat(ctx, heartbeat(1, testNow)); err != nil {
		t.Fatalf("handleHeartbeat() error = %v", err)
	}

	// The timer has expired: the fire goes through and the listener stalls
	// on the offline event.
	e.watchdog.Stop()
	fired := make(chan struct{})
	go func() {
		defer close(fired)
		e.onWatchdog()
	}()
	select {
	case <-listener.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("offline event never delivered")
	}

	// Meanwhile the next heartbeat brings the device back.
	if err := e.handleHeartbeat(ctx, heartbeat(2, testNow)); err != nil {
		t.Fatalf("handleHeartbeat() error = %v", err)
	}
	close(listener.release)
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog delivery did not finish")
	}

	listener.mu.Lock()
	got := append([]bool(nil), listener.online...)
	listener.mu.Unlock()
	want := []bool{true, false, true}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("listener saw online = %v, want %v", got, want)
	}
	if !e.Status().Online {
		t.Error("engine offline, want online")
	}
}

func TestGoingDownReplies(t *testing.T) {
	tests := []struct {
		name    string
		handle  func(*Engine, protocol.Reply) error
		failure string
	}{
		{"reboot", func(e *Engine, r protocol.Reply) error {
			return e.handleDeviceReboot(context.Background(), &protocol.DeviceRebootIn{Reply: r})
		}, "Rebooting failed"},
		{"restore", func(e *Engine, r protocol.Reply) error {
			return e.handleRestore(context.Background(), &protocol.RestoreIn{Reply: r})
		}, "Factory reset failed"},
		{"wifi reconnect", func(e *Engine, r protocol.Reply) error {
			return e.handleWifiReconnect(context.Background(), &protocol.WifiReconnectServiceIn{Reply: r})
		}, "Wifi force reconnect failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name+" ok", func(t *testing.T) {
			h := newHarness(t, nil)
			h.online(t)

			if err := tt.handle(h.engine, reply("m1", protocol.CodeOK)); err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if h.engine.Status().Online {
				t.Error("device still online")
			}
			if got := h.events.kinds(); !equalKinds(got, []EventKind{EventOnline}) {
				t.Errorf("events %v, want [online]", got)
			}
		})
		t.Run(tt.name+" failed", func(t *testing.T) {
			h := newHarness(t, nil)
			h.online(t)

			if err := tt.handle(h.engine, reply("m1", protocol.CodeError1)); err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if !h.engine.Status().Online {
				t.Error("device went offline on a failed request")
			}
			errs := h.events.of(EventError)
			if len(errs) != 1 || errs[0].(DeviceError).Message != tt.failure {
				t.Errorf("error events = %v, want %q", errs, tt.failure)
			}
		})
	}
}

func TestDeviceStart(t *testing.T) {
	t.Run("success while offline", func(t *testing.T) {
		h := newHarness(t, nil)
		in := &protocol.DeviceStartEventIn{
			Exchange:        exchange("boot"),
			Success:         true,
			PID:             "PLAF203",
			MAC:             "aa:bb",
			SoftwareVersion: "2.1.0",
		}
		if err := h.engine.handleDeviceStart(context.Background(), in); err != nil {
			t.Fatalf("handleDeviceStart() error = %v", err)
		}

		ack, ok := h.sender.sent[0].(*protocol.DeviceStartEventOut)
		if !ok || ack.MsgID != "boot" || ack.Code != protocol.CodeOK {
			t.Errorf("first sent = %#v, want OK ack echoing msgId", h.sender.sent[0])
		}
		if !h.engine.Status().Online {
			t.Error("device not online after successful start")
		}
		info := h.events.of(EventDeviceInfo)[0].(DeviceInfo)
		if info.PID != "PLAF203" || info.SoftwareVersion != "2.1.0" {
			t.Errorf("device info = %+v", info)
		}
	})

	t.Run("failure", func(t *testing.T) {
		h := newHarness(t, nil)
		in := &protocol.DeviceStartEventIn{Exchange: exchange("boot")}
		if err := h.engine.handleDeviceStart(context.Background(), in); err != nil {
			t.Fatalf("handleDeviceStart() error = %v", err)
		}
		if got := h.sender.commands(); !equalCommands(got, []protocol.Command{protocol.CmdDeviceStartEvent}) {
			t.Errorf("sent %v, want only the ack", got)
		}
		errs := h.events.of(EventError)
		if len(errs) != 1 || errs[0].(DeviceError).Message != "Device initialization failed" {
			t.Errorf("error events = %v", errs)
		}
	})
}

// =============================================================================
// Clock
// =============================================================================

func TestDriftResync(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.engine.handleHeartbeat(context.Background(), heartbeat(1, testNow.Add(-30*time.Second))); err != nil {
		t.Fatalf("handleHeartbeat() error = %v", err)
	}
	cmds := h.sender.commands()
	if cmds[len(cmds)-1] != protocol.CmdNTPSync {
		t.Errorf("sent %v, want NTP_SYNC last", cmds)
	}
	drift := h.events.of(EventDrift)
	if len(drift) != 1 || drift[0].(DriftStatus).OK {
		t.Errorf("drift events = %v, want one failure", drift)
	}
}

func TestNtpCalibrationTag(t *testing.T) {
	tests := []struct {
		name     string
		drifted  bool // a previous message failed the drift check
		deviceAt time.Time
		wantTag  bool
	}{
		{"in sync", false, testNow, false},
		{"clock one hour behind", false, testNow.Add(-time.Hour), true},
		{"clock ahead beyond threshold", false, testNow.Add(11 * time.Second), true},
		{"in sync after earlier drift", true, testNow.Add(2 * time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			ctx := context.Background()
			if tt.drifted {
				if err := h.engine.handleHeartbeat(ctx, heartbeat(1, testNow.Add(-time.Minute))); err != nil {
					t.Fatalf("handleHeartbeat() error = %v", err)
				}
				h.sender.reset()
				h.events.reset()
			}

			if err := h.engine.handleNtp(ctx, &protocol.NtpIn{DeviceStamp: stamp(tt.deviceAt)}); err != nil {
				t.Fatalf("handleNtp() error = %v", err)
			}
			ntp, ok := h.sender.last().(*protocol.NtpOut)
			if !ok || ntp.Code != protocol.CodeOK {
				t.Fatalf("NTP reply = %#v", h.sender.last())
			}
			if ntp.CalibrationTag != tt.wantTag {
				t.Errorf("CalibrationTag = %v, want %v", ntp.CalibrationTag, tt.wantTag)
			}
			drift := h.events.of(EventDrift)
			if len(drift) != 1 || !drift[0].(DriftStatus).OK {
				t.Errorf("drift events = %v, want one success", drift)
			}
			if !h.engine.Status().DriftOK {
				t.Error("DriftOK = false after NTP")
			}
		})
	}
}

func TestNtpSyncReply(t *testing.T) {
	h := newHarness(t, nil)

	in := &protocol.NtpSyncIn{Reply: protocol.Reply{
		Exchange: protocol.Exchange{MsgID: "s1", DeviceStamp: stamp(testNow.Add(time.Minute))},
	}}
	if err := h.engine.handleNtpSync(context.Background(), in); err != nil {
		t.Fatalf("handleNtpSync() error = %v", err)
	}
	if got := h.sender.commands(); len(got) != 0 {
		t.Errorf("sent %v, want nothing", got)
	}
	drift := h.events.of(EventDrift)
	if len(drift) != 1 || drift[0].(DriftStatus).OK {
		t.Errorf("drift events = %v, want one failure", drift)
	}
}

// =============================================================================
// Attributes
// =============================================================================

func TestAttrPushEvent(t *testing.T) {
	h := newHarness(t, nil)

	volume := protocol.Percentage(40)
	outletOK, surplus := false, true
	battery := protocol.Percentage(80)
	ssid := "home"
	in := &protocol.AttrPushEventIn{
		Exchange: exchange("p1"),
		Attributes: protocol.AttributeSet{
			Volume:           &volume,
			GrainOutletState: &outletOK,
			SurplusGrain:     &surplus,
			BatteryLevel:     &battery,
			WifiSSID:         &ssid,
		},
	}
	if err := h.engine.handleAttrPush(context.Background(), in); err != nil {
		t.Fatalf("handleAttrPush() error = %v", err)
	}

	ack, ok := h.sender.last().(*protocol.AttrPushEventOut)
	if !ok || ack.MsgID != "p1" || ack.Code != protocol.CodeOK {
		t.Errorf("reply = %#v", h.sender.last())
	}

	want := []EventKind{EventSettings, EventPowerState, EventFoodState, EventWifiInfo}
	if got := h.events.kinds(); !equalKinds(got, want) {
		t.Errorf("events %v, want %v", got, want)
	}

	settings := h.events.of(EventSettings)[0].(SettingsChanged)
	if settings.Group != protocol.GroupSound || settings.Settings.Volume == nil || *settings.Settings.Volume != 40 {
		t.Errorf("settings event = %+v", settings)
	}
	food := h.events.of(EventFoodState)[0].(FoodState)
	if food.OutletBlocked == nil || !*food.OutletBlocked || food.LowFill == nil || *food.LowFill {
		t.Errorf("food state = %+v, want blocked outlet and no low fill", food)
	}

	if got := h.engine.Attributes(); got.Volume == nil || *got.Volume != 40 {
		t.Errorf("Attributes().Volume = %v", got.Volume)
	}
}

func TestAttrGetSnapshotAppliedDespiteError(t *testing.T) {
	h := newHarness(t, nil)

	state := protocol.SdCardState(1)
	in := &protocol.AttrGetServiceIn{
		Reply:      reply("g1", protocol.CodeError2),
		Attributes: protocol.AttributeSet{SdCardState: &state},
	}
	if err := h.engine.handleAttrGet(context.Background(), in); err != nil {
		t.Fatalf("handleAttrGet() error = %v", err)
	}
	if got := h.events.kinds(); !equalKinds(got, []EventKind{EventSDCardInfo}) {
		t.Errorf("events %v, want [sd_card_info]", got)
	}
	if len(h.sender.sent) != 0 {
		t.Errorf("sent %v, want no reply to a server request", h.sender.commands())
	}
}

func TestRequestFailures(t *testing.T) {
	tests := []struct {
		name    string
		handle  func(*Engine, protocol.Reply) error
		failure string
	}{
		{"attr set", func(e *Engine, r protocol.Reply) error {
			return e.handleAttrSet(context.Background(), &protocol.AttrSetServiceIn{Reply: r})
		}, "Updating device attribute(s) failed"},
		{"manual feeding", func(e *Engine, r protocol.Reply) error {
			return e.handleManualFeeding(context.Background(), &protocol.ManualFeedingServiceIn{Reply: r})
		}, "Manual feeding failed"},
		{"feeding plan", func(e *Engine, r protocol.Reply) error {
			return e.handleFeedingPlan(context.Background(), &protocol.FeedingPlanServiceIn{Reply: r})
		}, "Configuring feeding plan failed"},
		{"device feeding plan", func(e *Engine, r protocol.Reply) error {
			return e.handleDeviceFeedingPlan(context.Background(), &protocol.DeviceFeedingPlanServiceIn{Reply: r})
		}, "Configuring feeding plan failed"},
		{"format sd card", func(e *Engine, r protocol.Reply) error {
			return e.handleFormatSDCard(context.Background(), &protocol.InitializeSdCardServiceIn{Reply: r})
		}, "Formatting SD card failed"},
		{"firmware upgrade", func(e *Engine, r protocol.Reply) error {
			return e.handleOtaUpgrade(context.Background(), &protocol.OtaUpgradeIn{Reply: r})
		}, "Firmware upgrade failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)

			if err := tt.handle(h.engine, reply("r1", protocol.CodeError3)); err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if got := h.events.kinds(); !equalKinds(got, []EventKind{EventError}) {
				t.Fatalf("events %v, want [error]", got)
			}
			if msg := h.events.of(EventError)[0].(DeviceError).Message; msg != tt.failure {
				t.Errorf("message = %q, want %q", msg, tt.failure)
			}
		})
	}
}

func TestOtaUpgradeFailureDetail(t *testing.T) {
	h := newHarness(t, nil)
	detail := "md5 mismatch"

	in := &protocol.OtaUpgradeIn{Reply: reply("o1", protocol.CodeError1), ErrorMsg: &detail}
	if err := h.engine.handleOtaUpgrade(context.Background(), in); err != nil {
		t.Fatalf("handleOtaUpgrade() error = %v", err)
	}
	if msg := h.events.of(EventError)[0].(DeviceError).Message; msg != "Firmware upgrade failed: md5 mismatch" {
		t.Errorf("message = %q", msg)
	}
}

// =============================================================================
// Device requests
// =============================================================================

func TestDeviceRequestsAreAcknowledged(t *testing.T) {
	tests := []struct {
		name   string
		handle func(*Engine) error
		want   protocol.Command
		event  EventKind
	}{
		{"ota progress", func(e *Engine) error {
			return e.handleOtaProgress(context.Background(), &protocol.OtaProgressIn{Exchange: exchange("x"), Progress: "42"})
		}, protocol.CmdOTAProgress, EventFirmware},
		{"ota inform", func(e *Engine) error {
			return e.handleOtaInform(context.Background(), &protocol.OtaInformIn{Exchange: exchange("x"), State: "DONE"})
		}, protocol.CmdOTAInform, EventFirmware},
		{"error event", func(e *Engine) error {
			return e.handleErrorEvent(context.Background(), &protocol.ErrorEventIn{Exchange: exchange("x"), ErrorCode: "E12"})
		}, protocol.CmdErrorEvent, EventDeviceFault},
		{"binding", func(e *Engine) error {
			return e.handleBinding(context.Background(), &protocol.BindingIn{Exchange: exchange("x"), MemberID: "m"})
		}, protocol.CmdBinding, EventDeviceInfo},
		{"get feeding plan", func(e *Engine) error {
			return e.handleGetFeedingPlan(context.Background(), &protocol.GetFeedingPlanEventIn{Exchange: exchange("x")})
		}, protocol.CmdGetFeedingPlanEvent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)

			if err := tt.handle(h.engine); err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if got := h.sender.commands(); !equalCommands(got, []protocol.Command{tt.want}) {
				t.Fatalf("sent %v, want [%s]", got, tt.want)
			}
			if id := headerOf(t, h.sender.last()).MsgID; id != "x" {
				t.Errorf("reply msgId = %q, want echo", id)
			}
			if tt.event != "" && len(h.events.of(tt.event)) == 0 {
				t.Errorf("no %s event", tt.event)
			}
		})
	}
}

func headerOf(t *testing.T, msg protocol.Outgoing) protocol.Header {
	t.Helper()
	switch m := msg.(type) {
	case *protocol.OtaProgressOut:
		return m.Header
	case *protocol.OtaInformOut:
		return m.Header
	case *protocol.ErrorEventOut:
		return m.Header
	case *protocol.BindingOut:
		return m.Header
	case *protocol.GetFeedingPlanEventOut:
		return m.Header
	}
	t.Fatalf("unexpected reply %T", msg)
	return protocol.Header{}
}

func TestBindingUsesBindID(t *testing.T) {
	tests := []struct {
		name   string
		bindID string
		want   string
	}{
		{"configured", "bind-7", "bind-7"},
		{"serial fallback", "", "AF01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.BindID = tt.bindID })
			if err := h.engine.handleBinding(context.Background(), &protocol.BindingIn{Exchange: exchange("b")}); err != nil {
				t.Fatalf("handleBinding() error = %v", err)
			}
			out := h.sender.last().(*protocol.BindingOut)
			if out.BindID != tt.want || out.Code != protocol.CodeOK {
				t.Errorf("binding reply = %+v, want bindId %q", out, tt.want)
			}
		})
	}
}

func TestGrainOutputMismatch(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	planID := 3

	start := &protocol.GrainOutputEventIn{
		Exchange:       exchange("g1"),
		Type:           protocol.GrainOutputFeedPlan,
		ExpectGrainNum: 4,
		ExecStep:       protocol.ExecStepGrainStart,
		PlanID:         &planID,
	}
	end := &protocol.GrainOutputEventIn{
		Exchange:       exchange("g2"),
		Finished:       true,
		Type:           protocol.GrainOutputFeedPlan,
		ActualGrainNum: 3,
		ExpectGrainNum: 4,
		ExecStep:       protocol.ExecStepGrainEnd,
		PlanID:         &planID,
	}
	for _, in := range []*protocol.GrainOutputEventIn{start, end} {
		if err := h.engine.handleGrainOutput(ctx, in); err != nil {
			t.Fatalf("handleGrainOutput(%s) error = %v", in.ExecStep, err)
		}
	}

	want := []EventKind{
		EventFeedStarted, EventFeedProgress,
		EventFeedEnded, EventError, EventFeedProgress,
	}
	if got := h.events.kinds(); !equalKinds(got, want) {
		t.Errorf("events %v, want %v", got, want)
	}
	if msg := h.events.of(EventError)[0].(DeviceError).Message; msg != "Food output actual != expected: 3 != 4" {
		t.Errorf("mismatch message = %q", msg)
	}
	ended := h.events.of(EventFeedEnded)[0].(FeedEnded)
	if ended.PlanID == nil || *ended.PlanID != 3 {
		t.Errorf("feed ended = %+v", ended)
	}

	ack, ok := h.sender.last().(*protocol.GrainOutputEventOut)
	if !ok || ack.MsgID != "g2" || ack.ExecStep != protocol.ExecStepGrainEnd {
		t.Errorf("reply = %#v", h.sender.last())
	}
	if got := h.engine.Status().Progress; got != feeding.ProgressIdle {
		t.Errorf("Progress = %s, want IDLE", got)
	}
	progress := h.events.of(EventFeedProgress)
	if last := progress[len(progress)-1].(FeedProgress); last.Progress != feeding.ProgressIdle {
		t.Errorf("last progress event = %+v, want IDLE", last)
	}
}

func TestGrainOutputInvalidStepStillReplies(t *testing.T) {
	h := newHarness(t, nil)

	in := &protocol.GrainOutputEventIn{Exchange: exchange("g"), ExecStep: protocol.ExecStepInvalid}
	if err := h.engine.handleGrainOutput(context.Background(), in); err != nil {
		t.Fatalf("handleGrainOutput() error = %v", err)
	}
	if got := h.sender.commands(); !equalCommands(got, []protocol.Command{protocol.CmdGrainOutputEvent}) {
		t.Errorf("sent %v", got)
	}
	if got := h.events.kinds(); len(got) != 0 {
		t.Errorf("events %v, want none", got)
	}
}
