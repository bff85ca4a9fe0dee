package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is any decoded or encodable protocol message.
type Message interface {
	Command() Command
}

// Timestamped is implemented by inbound messages that carry the device clock.
type Timestamped interface {
	Message
	DeviceTime() time.Time
}

// Correlated is implemented by inbound messages that carry a msgId.
type Correlated interface {
	Message
	ID() MessageID
}

// Outgoing is a server message that Encode can serialise.
type Outgoing interface {
	Message
	header() *Header
	encode(e *encoder)
}

// Codec converts between wire JSON and typed messages. Device timestamps
// carry no zone and are read in the codec's location.
type Codec struct {
	loc   *time.Location
	now   func() time.Time
	newID func() MessageID
}

// Option configures a Codec.
type Option func(*Codec)

// WithLocation sets the zone device timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(c *Codec) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator replaces NewMessageID, for tests.
func WithIDGenerator(fn func() MessageID) Option {
	return func(c *Codec) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewCodec creates a Codec. The default location is time.Local.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		loc:   time.Local,
		now:   time.Now,
		newID: NewMessageID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location returns the device zone.
func (c *Codec) Location() *time.Location { return c.loc }

// Now returns the current time in the device zone.
func (c *Codec) Now() time.Time { return c.now().In(c.loc) }

// NewID returns a fresh message ID from the configured generator.
func (c *Codec) NewID() MessageID { return c.newID() }

// TimezoneOffset returns the whole-hour UTC offset of the device zone at t.
func (c *Codec) TimezoneOffset(t time.Time) int {
	_, offset := t.In(c.loc).Zone()
	return offset / 3600
}

func (c *Codec) timeFromWire(ms int64) time.Time {
	return time.UnixMilli(ms).In(c.loc)
}

// timeToWire drops sub-second precision; the firmware expects whole seconds in milliseconds.
func (c *Codec) timeToWire(t time.Time) int64 {
	return t.Unix() * 1000
}

// todToWire converts a local time of day to UTC "HH:MM" on today's date.
func (c *Codec) todToWire(t TimeOfDay) string {
	y, m, d := c.Now().Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, c.loc).UTC().Format("15:04")
}

// todFromWire converts UTC "HH:MM" to a local time of day on today's date.
func (c *Codec) todFromWire(s string) (TimeOfDay, error) {
	utc, err := ParseTimeOfDay(s)
	if err != nil {
		return TimeOfDay{}, err
	}
	y, m, d := c.now().UTC().Date()
	local := time.Date(y, m, d, utc.Hour, utc.Minute, 0, 0, time.UTC).In(c.loc)
	return TimeOfDay{Hour: local.Hour(), Minute: local.Minute()}, nil
}

// Decode parses one device message received on stream.
func (c *Codec) Decode(stream Stream, raw []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s stream: %w", ErrDecode, stream, err)
	}

	r := &reader{codec: c, fields: fields}
	tag := r.str("cmd")
	if r.err != nil {
		return nil, r.err
	}

	cmd, ok := LookupCommand(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %q on %s stream", ErrUnknownCommand, tag, stream)
	}
	decode, ok := decoders[cmd]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cmd)
	}

	msg := decode(r)
	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, r.err)
	}
	return msg, nil
}

// Encode serialises msg. A zero Header is stamped in place with the
// current time and, for correlated messages, a fresh msgId.
func (c *Codec) Encode(msg Outgoing) ([]byte, error) {
	h := msg.header()
	if h.Time.IsZero() {
		h.Time = c.Now()
	}

	e := &encoder{codec: c, fields: map[string]any{
		"cmd": string(msg.Command()),
		"ts":  c.timeToWire(h.Time),
	}}
	if _, ok := msg.(uncorrelated); !ok {
		if h.MsgID == "" {
			h.MsgID = c.newID()
		}
		e.fields["msgId"] = string(h.MsgID)
	}
	msg.encode(e)

	data, err := json.Marshal(e.fields)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", msg.Command(), err)
	}
	return data, nil
}

// uncorrelated marks outbound messages that carry no msgId.
type uncorrelated interface {
	noMsgID()
}

// Header is the envelope of a server message. Replies copy the request's
// MsgID; a zero Header is filled in by Encode.
type Header struct {
	MsgID MessageID
	Time  time.Time
}

func (h *Header) header() *Header { return h }

// ReplyTo returns a Header that echoes the msgId of in.
func ReplyTo(in Correlated) Header {
	return Header{MsgID: in.ID()}
}

type encoder struct {
	codec  *Codec
	fields map[string]any
}

func (e *encoder) set(key string, v any) { e.fields[key] = v }

func (e *encoder) timezone(t time.Time) { e.fields["timezone"] = e.codec.TimezoneOffset(t) }
