package status

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/plaf203-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/plaf203-core/internal/session"
)

const (
	defaultInterval = 60 * time.Second
	eventBuffer     = 64
)

// Publisher is the MQTT client surface the reporter needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Source provides the snapshot to publish. *session.Engine satisfies it.
type Source interface {
	Status() session.Status
}

// Logger is the logging interface used by the reporter.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Report is the retained status payload.
type Report struct {
	session.Status
	Version   string    `json:"version"`
	Uptime    int64     `json:"uptime_seconds"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds reporter settings.
type Config struct {
	Serial string

	// Version is the software version included in each report.
	Version string

	// Interval is how often the snapshot is republished.
	// Default: 60 seconds.
	Interval time.Duration

	// QoS applies to event mirrors. Status reports use the same QoS.
	QoS byte
}

// Reporter publishes session status and mirrors events.
type Reporter struct {
	cfg       Config
	topics    mqtt.Topics
	publisher Publisher
	source    Source
	logger    Logger
	startTime time.Time
	now       func() time.Time

	events  chan session.Event
	trigger chan struct{}

	// Shutdown coordination
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewReporter creates a reporter. Call Start to begin publishing.
//
// Parameters:
//   - cfg: reporter settings
//   - publisher: MQTT client
//   - source: session status provider
//   - logger: may be nil
func NewReporter(cfg Config, publisher Publisher, source Source, logger Logger) *Reporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Reporter{
		cfg:       cfg,
		topics:    mqtt.Topics{Serial: cfg.Serial},
		publisher: publisher,
		source:    source,
		logger:    logger,
		startTime: time.Now(),
		now:       time.Now,
		events:    make(chan session.Event, eventBuffer),
		trigger:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting. It publishes an initial snapshot.
func (r *Reporter) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop ends reporting after publishing a final snapshot.
// Safe to call multiple times.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		if err := r.PublishNow(); err != nil {
			r.logger.Debug("final status publish failed", "error", err)
		}
	})
}

// HandleEvent implements session.Listener. Events are queued for the
// reporter goroutine; when the queue is full the event is dropped.
func (r *Reporter) HandleEvent(ev session.Event) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("status event queue full, dropping event", "kind", ev.Kind)
	}
}

// PublishNow publishes the current snapshot immediately.
func (r *Reporter) PublishNow() error {
	if r.publisher == nil || !r.publisher.IsConnected() {
		return mqtt.ErrNotConnected
	}
	now := r.now()
	payload, err := json.Marshal(Report{
		Status:    r.source.Status(),
		Version:   r.cfg.Version,
		Uptime:    int64(now.Sub(r.startTime).Seconds()),
		Timestamp: now.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshalling status: %w", err)
	}
	return r.publisher.Publish(r.topics.Status(), payload, r.cfg.QoS, true)
}

func (r *Reporter) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.publish()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			r.publish()
		case <-r.trigger:
			r.publish()
		case ev := <-r.events:
			r.mirror(ev)
			if changesStatus(ev.Kind) {
				r.requestPublish()
			}
		}
	}
}

func (r *Reporter) publish() {
	if err := r.PublishNow(); err != nil {
		r.logger.Debug("status publish skipped", "error", err)
	}
}

// requestPublish coalesces snapshot requests.
func (r *Reporter) requestPublish() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *Reporter) mirror(ev session.Event) {
	if r.publisher == nil || !r.publisher.IsConnected() {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Warn("marshalling event failed", "kind", ev.Kind, "error", err)
		return
	}
	if err := r.publisher.Publish(r.topics.Events(string(ev.Kind)), payload, r.cfg.QoS, false); err != nil {
		r.logger.Warn("mirroring event failed", "kind", ev.Kind, "error", err)
	}
}

// changesStatus reports whether events of kind alter the snapshot.
func changesStatus(kind session.EventKind) bool {
	switch kind {
	case session.EventOnline, session.EventDrift, session.EventWifiInfo,
		session.EventFeedProgress, session.EventFeedEnded:
		return true
	}
	return false
}
