package timeband

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownSlot is returned when a slot label or hour is not covered by the table.
	ErrUnknownSlot = errors.New("unknown time slot")
	// ErrUnknownBand is returned when a band name cannot be parsed.
	ErrUnknownBand = errors.New("unknown time band")
	// ErrInvalidTable indicates a slot table failed validation.
	ErrInvalidTable = errors.New("invalid slot table")
)

// Band is the discount context derived from a time slot.
type Band string

const (
	Morning   Band = "morning"
	Afternoon Band = "afternoon"
	Evening   Band = "evening"
)

// ParseBand accepts a band name. "night" is treated as Evening.
func ParseBand(value string) (Band, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "morning":
		return Morning, nil
	case "afternoon":
		return Afternoon, nil
	case "evening", "night":
		return Evening, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBand, value)
	}
}

// NoHour marks a slot without an hour range.
const NoHour = -1

// Slot maps a selectable label to a band. StartHour and EndHour are inclusive;
// a slot with StartHour > EndHour wraps past midnight.
type Slot struct {
	Label     string
	Band      Band
	StartHour int
	EndHour   int
}

func (s Slot) hasHours() bool {
	return s.StartHour != NoHour && s.EndHour != NoHour
}

func (s Slot) contains(hour int) bool {
	if !s.hasHours() {
		return false
	}
	if s.StartHour <= s.EndHour {
		return hour >= s.StartHour && hour <= s.EndHour
	}
	return hour >= s.StartHour || hour <= s.EndHour
}

// Table is an ordered, immutable slot lookup.
type Table struct {
	slots   []Slot
	byLabel map[string]int
}

// NewTable validates slots and returns a table preserving their order.
func NewTable(slots []Slot) (*Table, error) {
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: no slots", ErrInvalidTable)
	}
	t := &Table{
		slots:   make([]Slot, 0, len(slots)),
		byLabel: make(map[string]int, len(slots)),
	}
	for _, s := range slots {
		label := strings.TrimSpace(s.Label)
		if label == "" {
			return nil, fmt.Errorf("%w: slot label is required", ErrInvalidTable)
		}
		if _, dup := t.byLabel[label]; dup {
			return nil, fmt.Errorf("%w: duplicate slot %q", ErrInvalidTable, label)
		}
		band, err := ParseBand(string(s.Band))
		if err != nil {
			return nil, fmt.Errorf("%w: slot %q: %v", ErrInvalidTable, label, err)
		}
		if (s.StartHour == NoHour) != (s.EndHour == NoHour) {
			return nil, fmt.Errorf("%w: slot %q needs both start and end hour", ErrInvalidTable, label)
		}
		if s.StartHour != NoHour && (s.StartHour < 0 || s.StartHour > 23 || s.EndHour < 0 || s.EndHour > 23) {
			return nil, fmt.Errorf("%w: slot %q hours must be within 0..23", ErrInvalidTable, label)
		}
		t.byLabel[label] = len(t.slots)
		t.slots = append(t.slots, Slot{Label: label, Band: band, StartHour: s.StartHour, EndHour: s.EndHour})
	}
	return t, nil
}

// MustTable is NewTable for static tables; it panics on invalid input.
func MustTable(slots []Slot) *Table {
	t, err := NewTable(slots)
	if err != nil {
		panic(err)
	}
	return t
}

// BandFor resolves a slot label to its band.
func (t *Table) BandFor(label string) (Band, error) {
	if t != nil {
		if i, ok := t.byLabel[strings.TrimSpace(label)]; ok {
			return t.slots[i].Band, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSlot, label)
}

// BandAt resolves an hour of day using the first slot whose range covers it.
func (t *Table) BandAt(hour int) (Band, Slot, error) {
	if t != nil && hour >= 0 && hour <= 23 {
		for _, s := range t.slots {
			if s.contains(hour) {
				return s.Band, s, nil
			}
		}
	}
	return "", Slot{}, fmt.Errorf("%w: hour %d", ErrUnknownSlot, hour)
}

// Slots returns a copy of the table in declaration order.
func (t *Table) Slots() []Slot {
	if t == nil {
		return nil
	}
	out := make([]Slot, len(t.slots))
	copy(out, t.slots)
	return out
}

// Labels lists slot labels in order.
func (t *Table) Labels() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.slots))
	for _, s := range t.slots {
		out = append(out, s.Label)
	}
	return out
}

// DefaultTable is the four-slot picker: one morning slot, two afternoon slots and one evening slot.
func DefaultTable() *Table {
	return MustTable([]Slot{
		{Label: "09:00–11:59", Band: Morning, StartHour: 9, EndHour: 11},
		{Label: "12:00–14:59", Band: Afternoon, StartHour: 12, EndHour: 14},
		{Label: "15:00–17:59", Band: Afternoon, StartHour: 15, EndHour: 17},
		{Label: "18:00–20:59", Band: Evening, StartHour: 18, EndHour: 20},
	})
}

// HourlyTable covers the whole day; the evening slot wraps midnight.
func HourlyTable() *Table {
	return MustTable([]Slot{
		{Label: "06:00–11:59", Band: Morning, StartHour: 6, EndHour: 11},
		{Label: "12:00–17:59", Band: Afternoon, StartHour: 12, EndHour: 17},
		{Label: "18:00–05:59", Band: Evening, StartHour: 18, EndHour: 5},
	})
}

// Named returns a built-in table by name.
func Named(name string) (*Table, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultTable(), nil
	case "hourly":
		return HourlyTable(), nil
	default:
		return nil, fmt.Errorf("%w: unknown built-in table %q", ErrInvalidTable, name)
	}
}
