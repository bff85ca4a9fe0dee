package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// reader pulls typed fields out of a decoded envelope. The first failure
// is kept in err and later calls become no-ops.
type reader struct {
	codec  *Codec
	fields map[string]json.RawMessage
	err    error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) failf(format string, args ...any) {
	r.fail(fmt.Errorf("%w: "+format, append([]any{ErrDecode}, args...)...))
}

// value returns the raw field, treating null as absent.
func (r *reader) value(name string, required bool) (json.RawMessage, bool) {
	if r.err != nil {
		return nil, false
	}
	raw, ok := r.fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if required {
			r.failf("missing field %q", name)
		}
		return nil, false
	}
	return raw, true
}

func (r *reader) has(name string) bool {
	_, ok := r.value(name, false)
	return ok
}

func (r *reader) str(name string) string {
	raw, ok := r.value(name, true)
	if !ok {
		return ""
	}
	s, err := parseString(raw)
	if err != nil {
		r.failf("field %q: %v", name, err)
	}
	return s
}

func (r *reader) optStr(name string) *string {
	raw, ok := r.value(name, false)
	if !ok {
		return nil
	}
	s, err := parseString(raw)
	if err != nil {
		r.failf("field %q: %v", name, err)
		return nil
	}
	return &s
}

// text accepts a string or a number and returns its text form.
func (r *reader) text(name string) string {
	raw, ok := r.value(name, true)
	if !ok {
		return ""
	}
	return r.textOf(name, raw)
}

func (r *reader) optText(name string) *string {
	raw, ok := r.value(name, false)
	if !ok {
		return nil
	}
	s := r.textOf(name, raw)
	return &s
}

func (r *reader) textOf(name string, raw json.RawMessage) string {
	if s, err := parseString(raw); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		r.failf("field %q: want string or number", name)
		return ""
	}
	return n.String()
}

func (r *reader) integer(name string) int {
	raw, ok := r.value(name, true)
	if !ok {
		return 0
	}
	v, err := parseInt(raw)
	if err != nil {
		r.failf("field %q: %v", name, err)
	}
	return v
}

func (r *reader) optInt(name string) *int {
	raw, ok := r.value(name, false)
	if !ok {
		return nil
	}
	v, err := parseInt(raw)
	if err != nil {
		r.failf("field %q: %v", name, err)
		return nil
	}
	return &v
}

func (r *reader) boolean(name string) bool {
	raw, ok := r.value(name, true)
	if !ok {
		return false
	}
	v, err := parseBool(raw)
	if err != nil {
		r.failf("field %q: %v", name, err)
	}
	return v
}

func (r *reader) millis(name string) time.Time {
	raw, ok := r.value(name, true)
	if !ok {
		return time.Time{}
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		r.failf("field %q: %v", name, err)
		return time.Time{}
	}
	ms, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			r.failf("field %q: %v", name, err)
			return time.Time{}
		}
		ms = int64(f)
	}
	return r.codec.timeFromWire(ms)
}

func (r *reader) ts() time.Time { return r.millis("ts") }

func (r *reader) msgID() MessageID { return MessageID(r.str("msgId")) }

func (r *reader) code() Code { return Code(r.integer("code")) }

func (r *reader) exchange() Exchange {
	return Exchange{MsgID: r.msgID(), DeviceStamp: DeviceStamp{Time: r.ts()}}
}

// reply reads the msgId, ts and code common to device replies.
func (r *reader) reply() Reply {
	return Reply{Exchange: r.exchange(), Code: r.code()}
}

func parseString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("want string")
	}
	return s, nil
}

func parseInt(raw json.RawMessage) (int, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("want integer")
	}
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("want integer, got %s", n)
	}
	return int(f), nil
}

func parseBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, fmt.Errorf("want bool")
	}
	return b, nil
}

// parseFlag accepts a bool or a 0/1 integer.
func parseFlag(raw json.RawMessage) (bool, error) {
	if b, err := parseBool(raw); err == nil {
		return b, nil
	}
	v, err := parseInt(raw)
	if err != nil || (v != 0 && v != 1) {
		return false, fmt.Errorf("want bool or 0/1")
	}
	return v == 1, nil
}

// flag reads a bool that the firmware may also send as 0/1.
func (r *reader) flag(name string) bool {
	raw, ok := r.value(name, true)
	if !ok {
		return false
	}
	v, err := parseFlag(raw)
	if err != nil {
		r.failf("field %q: %v", name, err)
	}
	return v
}

// objects calls fn with a reader for each element of the object array name.
func (r *reader) objects(name string, fn func(*reader)) {
	raw, ok := r.value(name, true)
	if !ok {
		return
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		r.failf("field %q: want array of objects", name)
		return
	}
	for _, item := range items {
		sub := &reader{codec: r.codec, fields: item}
		fn(sub)
		if sub.err != nil {
			r.fail(fmt.Errorf("field %q: %w", name, sub.err))
			return
		}
	}
}
