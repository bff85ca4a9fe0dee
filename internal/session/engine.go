package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/plaf203-core/internal/clock"
	"github.com/nerrad567/plaf203-core/internal/feeding"
	"github.com/nerrad567/plaf203-core/internal/protocol"
	"github.com/nerrad567/plaf203-core/internal/watchdog"
)

// Sender delivers server messages to the device. *router.Router satisfies it.
type Sender interface {
	Send(ctx context.Context, msg protocol.Outgoing) error
}

// Store persists operator state across restarts.
type Store interface {
	LoadFoodPlans(ctx context.Context) ([]feeding.Plan, error)
	SaveFoodPlans(ctx context.Context, plans []feeding.Plan) error

	// LoadManualFeedQuantity reports ok=false when no quantity was saved.
	LoadManualFeedQuantity(ctx context.Context) (qty int, ok bool, err error)
	SaveManualFeedQuantity(ctx context.Context, qty int) error
}

// Logger is the logging interface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

const (
	// DefaultManualFeedQuantity is used until an operator stores a quantity.
	DefaultManualFeedQuantity = 1

	// DefaultWatchdogTimeout is one heartbeat period (51s) plus 30s grace.
	DefaultWatchdogTimeout = 81 * time.Second
)

// Config holds the engine's fixed settings.
type Config struct {
	Serial   string
	BindID   string
	CameraID string

	WatchdogTimeout time.Duration
	DriftThreshold  time.Duration

	// DefaultManualFeedQuantity defaults to DefaultManualFeedQuantity.
	DefaultManualFeedQuantity int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Status is a point-in-time view of the session.
type Status struct {
	Serial             string           `json:"serial"`
	Online             bool             `json:"online"`
	DriftOK            bool             `json:"drift_ok"`
	LastCount          int              `json:"last_count"`
	LastHeartbeat      *time.Time       `json:"last_heartbeat,omitempty"`
	RSSI               *int             `json:"rssi,omitempty"`
	Progress           feeding.Progress `json:"progress"`
	ManualFeedQuantity int              `json:"manual_feed_quantity"`
	Plans              int              `json:"plans"`
	LastPlanSync       *time.Time       `json:"last_plan_sync,omitempty"`
}

// Engine keeps the server's model of one feeder and answers its messages.
//
// It owns the session state (online, last heartbeat count, drift), the
// attribute and audio caches, the feeding plans, the grain output tracker
// and the manual feed quantity. Inbound handlers, watchdog fires and
// operator calls all run under one mutex, so the device sees a strictly
// serial conversation.
//
// Events are queued while the lock is held and delivered to the listener
// after it is released, in the order they were emitted.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Engine struct {
	cfg      Config
	sender   Sender
	store    Store
	listener Listener
	logger   Logger
	watchdog *watchdog.Watchdog

	mu            sync.Mutex
	started       bool
	online        bool
	lastCount     int
	driftOK       bool
	lastHeartbeat time.Time
	rssi          *int
	attrs         protocol.AttributeSet
	audio         protocol.AudioCache
	plans         *feeding.Synchronizer
	tracker       *feeding.Tracker
	manualQty     int
	pending       []Event
	draining      bool
}

// New creates a stopped engine.
//
// Parameters:
//   - cfg: Device identity and timing
//   - sender: Outbound path to the device (usually the router)
//   - store: Persistence for plans and the manual feed quantity (may be nil)
//   - listener: Receiver of session events (may be nil)
//   - logger: Logger instance (may be nil)
func New(cfg Config, sender Sender, store Store, listener Listener, logger Logger) *Engine {
	if cfg.BindID == "" {
		cfg.BindID = cfg.Serial
	}
	if cfg.WatchdogTimeout <= 0 {
		cfg.WatchdogTimeout = DefaultWatchdogTimeout
	}
	if cfg.DriftThreshold <= 0 {
		cfg.DriftThreshold = clock.DefaultThreshold
	}
	if cfg.DefaultManualFeedQuantity < 1 {
		cfg.DefaultManualFeedQuantity = DefaultManualFeedQuantity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if listener == nil {
		listener = Fanout(nil)
	}
	if logger == nil {
		logger = noopLogger{}
	}

	e := &Engine{
		cfg:       cfg,
		sender:    sender,
		store:     store,
		listener:  listener,
		logger:    logger,
		driftOK:   true,
		plans:     feeding.NewSynchronizer(feeding.PlanSet{}),
		tracker:   feeding.NewTracker(),
		manualQty: cfg.DefaultManualFeedQuantity,
	}
	e.watchdog = watchdog.New(cfg.WatchdogTimeout, e.onWatchdog)
	return e
}

// Start loads persisted state and arms the heartbeat watchdog.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}

	if e.store != nil {
		plans, err := e.store.LoadFoodPlans(ctx)
		if err != nil {
			return fmt.Errorf("loading food plans: %w", err)
		}
		set := feeding.NewPlanSet(plans...)
		if err := set.Validate(); err != nil {
			return fmt.Errorf("loading food plans: %w", err)
		}
		e.plans.Replace(set)

		qty, ok, err := e.store.LoadManualFeedQuantity(ctx)
		if err != nil {
			return fmt.Errorf("loading manual feed quantity: %w", err)
		}
		if ok && qty >= 1 {
			e.manualQty = qty
		}
	}

	e.started = true
	e.watchdog.Reset()
	e.logger.Info("session started",
		"serial", e.cfg.Serial,
		"plans", e.plans.Plans().Len(),
		"watchdog_timeout", e.watchdog.Timeout(),
	)
	return nil
}

// Stop disarms the watchdog. Inbound messages are still handled, but no
// timeout will mark the device offline.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.started = false
	e.watchdog.Stop()
}

// Status returns a snapshot of the session.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Status{
		Serial:             e.cfg.Serial,
		Online:             e.online,
		DriftOK:            e.driftOK,
		LastCount:          e.lastCount,
		Progress:           e.tracker.Progress(),
		ManualFeedQuantity: e.manualQty,
		Plans:              e.plans.Plans().Len(),
	}
	if !e.lastHeartbeat.IsZero() {
		t := e.lastHeartbeat
		s.LastHeartbeat = &t
	}
	if e.rssi != nil {
		v := *e.rssi
		s.RSSI = &v
	}
	if last := e.plans.LastSync(); !last.IsZero() {
		s.LastPlanSync = &last
	}
	return s
}

// Attributes returns a copy of the cached attribute set.
func (e *Engine) Attributes() protocol.AttributeSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attrs.Clone()
}

// lock acquires the engine mutex. Pair it with a deferred unlock.
func (e *Engine) lock() { e.mu.Lock() }

// unlock releases the engine mutex and delivers the events queued while
// it was held.
//
// Only one goroutine delivers at a time and it drains the queue in the
// order events were emitted. A caller that finds delivery in progress
// leaves its events to the active drainer, so listeners never see an
// older state after a newer one.
func (e *Engine) unlock() {
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true
	for len(e.pending) > 0 {
		events := e.pending
		e.pending = nil
		e.mu.Unlock()

		for _, ev := range events {
			e.listener.HandleEvent(ev)
		}

		e.mu.Lock()
	}
	e.draining = false
	e.mu.Unlock()
}

// emit queues an event. Callers hold the lock.
func (e *Engine) emit(kind EventKind, payload any) {
	e.pending = append(e.pending, Event{
		Kind:    kind,
		Serial:  e.cfg.Serial,
		Time:    e.cfg.Now(),
		Payload: payload,
	})
}

func (e *Engine) emitError(msg string) {
	e.logger.Warn("device error", "serial", e.cfg.Serial, "message", msg)
	e.emit(EventError, DeviceError{Message: msg})
}

// send delivers msg. Callers hold the lock.
func (e *Engine) send(ctx context.Context, msg protocol.Outgoing) error {
	if err := e.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending %s: %w", msg.Command(), err)
	}
	return nil
}

// setOffline marks the session offline, emitting an event on transition.
func (e *Engine) setOffline(reason string) {
	if !e.online {
		return
	}
	e.online = false
	e.logger.Info("device offline", "serial", e.cfg.Serial, "reason", reason)
	e.emit(EventOnline, OnlineChanged{Online: false})
}

// onWatchdog runs when no heartbeat arrived within the timeout.
func (e *Engine) onWatchdog() {
	e.lock()
	defer e.unlock()

	// A heartbeat that re-armed the watchdog after the timer fired wins.
	if !e.started || e.watchdog.Armed() {
		return
	}
	e.setOffline("heartbeat timeout")
}

// goOnline requests a full resync and marks the session online. It
// stays offline if any request cannot be sent.
func (e *Engine) goOnline(ctx context.Context) error {
	requests := []protocol.Outgoing{
		&protocol.AttrGetServiceOut{},
		&protocol.GetConfigOut{},
		e.plans.Push(e.cfg.Now()),
	}
	if e.cfg.CameraID != "" {
		requests = append(requests, &protocol.DeviceInfoServiceOut{
			DeviceSN: e.cfg.Serial,
			CameraID: e.cfg.CameraID,
		})
	}
	for _, msg := range requests {
		if err := e.send(ctx, msg); err != nil {
			return err
		}
	}

	e.online = true
	e.logger.Info("device online", "serial", e.cfg.Serial)
	e.emit(EventOnline, OnlineChanged{Online: true})
	return nil
}

// checkDrift compares a device timestamp with the server clock and sends
// NTP_SYNC when they disagree.
func (e *Engine) checkDrift(ctx context.Context, deviceTime time.Time) bool {
	c := clock.Corrector{
		Threshold: e.cfg.DriftThreshold,
		Now:       e.cfg.Now,
		Resync: func() {
			e.logger.Warn("device clock drift, requesting resync",
				"serial", e.cfg.Serial,
				"device_time", deviceTime,
			)
			if err := e.send(ctx, &protocol.NtpSyncOut{}); err != nil {
				e.logger.Error("clock resync failed", "serial", e.cfg.Serial, "error", err)
			}
		},
	}
	return c.Check(deviceTime)
}

// observeDrift runs the drift check and emits DriftStatus when the
// outcome changes.
func (e *Engine) observeDrift(ctx context.Context, deviceTime time.Time) {
	ok := e.checkDrift(ctx, deviceTime)
	if ok != e.driftOK {
		e.driftOK = ok
		e.emit(EventDrift, DriftStatus{OK: ok})
	}
}

// reportDrift runs the drift check and always emits the outcome.
func (e *Engine) reportDrift(ctx context.Context, deviceTime time.Time) {
	e.driftOK = e.checkDrift(ctx, deviceTime)
	e.emit(EventDrift, DriftStatus{OK: e.driftOK})
}
