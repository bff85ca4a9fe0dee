package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/plaf203-core/internal/protocol"
	"github.com/nerrad567/plaf203-core/internal/router"
)

type wireMessage struct {
	topic string
	body  map[string]any
}

// fakeTransport captures publishes made through a real router.
type fakeTransport struct {
	mu        sync.Mutex
	published []wireMessage
}

func (f *fakeTransport) Subscribe(string, byte, func(string, []byte) error) error { return nil }
func (f *fakeTransport) Unsubscribe(...string) error                              { return nil }

func (f *fakeTransport) Publish(topic string, payload []byte, _ byte, _ bool) error {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, wireMessage{topic, body})
	return nil
}

func TestRegisterEndToEnd(t *testing.T) {
	tr := &fakeTransport{}
	codec := protocol.NewCodec(
		protocol.WithLocation(time.UTC),
		protocol.WithClock(func() time.Time { return testNow }),
	)
	topics := router.Topics{Serial: "AF01"}
	r := router.New(tr, codec, topics)

	events := &recorder{}
	e := New(Config{
		Serial:          "AF01",
		WatchdogTimeout: time.Hour,
		Now:             func() time.Time { return testNow },
	}, r, nil, events, nil)

	if err := e.Register(r); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := e.Register(r); err == nil {
		t.Error("second Register() should report duplicate handlers")
	}

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("router Start() error = %v", err)
	}
	defer r.Stop()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("engine Start() error = %v", err)
	}
	defer e.Stop()

	ts := testNow.UnixMilli()
	r.Dispatch(ctx, protocol.StreamHeart, []byte(`{"cmd":"HEARTBEAT","ts":`+itoa(ts)+`,"count":1,"rssi":-55,"wifiType":0}`))
	r.Dispatch(ctx, protocol.StreamEvent, []byte(`{"cmd":"GRAIN_OUTPUT_EVENT","msgId":"abc","ts":`+itoa(ts)+
		`,"finished":false,"type":2,"actualGrainNum":0,"expectGrainNum":2,"execTime":`+itoa(ts)+`,"execStep":"GRAIN_START"}`))

	tr.mu.Lock()
	defer tr.mu.Unlock()

	want := []struct {
		topic string
		cmd   string
	}{
		{topics.Sub(protocol.StreamService), "ATTR_GET_SERVICE"},
		{topics.Sub(protocol.StreamConfig), "GET_CONFIG"},
		{topics.Sub(protocol.StreamService), "FEEDING_PLAN_SERVICE"},
		{topics.Sub(protocol.StreamService), "GRAIN_OUTPUT_EVENT"},
	}
	if len(tr.published) != len(want) {
		t.Fatalf("published %d messages, want %d: %+v", len(tr.published), len(want), tr.published)
	}
	for i, w := range want {
		got := tr.published[i]
		if got.topic != w.topic || got.body["cmd"] != w.cmd {
			t.Errorf("message %d = %s on %s, want %s on %s", i, got.body["cmd"], got.topic, w.cmd, w.topic)
		}
	}
	if id := tr.published[3].body["msgId"]; id != "abc" {
		t.Errorf("grain reply msgId = %v, want abc", id)
	}
	if !e.Status().Online {
		t.Error("engine not online after heartbeat")
	}
	if got := len(events.of(EventFeedStarted)); got != 1 {
		t.Errorf("feed_started events = %d, want 1", got)
	}
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
