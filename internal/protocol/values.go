package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Percentage is an integer in [0,100].
type Percentage int

// NewPercentage validates v.
func NewPercentage(v int) (Percentage, error) {
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("%w: percentage %d not in [0,100]", ErrDomain, v)
	}
	return Percentage(v), nil
}

// TimeOfDay is a local wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Valid reports whether t is a real clock time.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("time of day %q: %w", s, err)
	}
	if !t.Valid() || len(s) > 5 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

// Weekday numbers follow the firmware: MONDAY=1 through SUNDAY=7.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = []string{"INVALID", "MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

func (d Weekday) String() string { return enumName(weekdayNames, int(d)) }

// Valid reports whether d is one of the seven days.
func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

// ParseWeekday accepts a day name in any case.
func ParseWeekday(s string) (Weekday, bool) {
	d := Weekday(enumValue(weekdayNames, strings.ToUpper(s)))
	return d, d.Valid()
}

// WeekdaySet is a bit set of weekdays.
type WeekdaySet uint8

// EveryDay contains all seven days.
const EveryDay WeekdaySet = 0x7f

// NewWeekdaySet builds a set from days, ignoring invalid values.
func NewWeekdaySet(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.Add(d)
	}
	return s
}

// Add returns s with d included.
func (s WeekdaySet) Add(d Weekday) WeekdaySet {
	if !d.Valid() {
		return s
	}
	return s | 1<<(d-1)
}

// Has reports whether d is in s.
func (s WeekdaySet) Has(d Weekday) bool {
	return d.Valid() && s&(1<<(d-1)) != 0
}

// Days returns the members in ascending order.
func (s WeekdaySet) Days() []Weekday {
	var out []Weekday
	for d := Monday; d <= Sunday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Wire returns the firmware form: day numbers ascending, padded with 0 to seven entries.
func (s WeekdaySet) Wire() []int {
	out := make([]int, 0, 7)
	for _, d := range s.Days() {
		out = append(out, int(d))
	}
	for len(out) < 7 {
		out = append(out, 0)
	}
	return out
}

// weekdaySetFromWire parses a firmware day list. Zero entries are padding.
func weekdaySetFromWire(days []int) (WeekdaySet, error) {
	var s WeekdaySet
	for _, v := range days {
		if v == 0 {
			continue
		}
		d := Weekday(v)
		if !d.Valid() {
			return 0, fmt.Errorf("weekday %d out of range", v)
		}
		s = s.Add(d)
	}
	return s, nil
}

// Names returns the members as day names, for storage and the API.
func (s WeekdaySet) Names() []string {
	days := s.Days()
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.String()
	}
	return out
}

// ParseWeekdayNames builds a set from day names.
func ParseWeekdayNames(names []string) (WeekdaySet, error) {
	var s WeekdaySet
	for _, n := range names {
		d, ok := ParseWeekday(n)
		if !ok {
			return 0, fmt.Errorf("unknown weekday %q", n)
		}
		s = s.Add(d)
	}
	return s, nil
}

// MarshalJSON encodes s as a list of day names, Monday first.
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	names := s.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

// UnmarshalJSON accepts a list of day names.
func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set, err := ParseWeekdayNames(names)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
