package enums

import "fmt"

// EventKind is the normalized class of a processor notification after the
// processor-specific event type or status code has been mapped.
type EventKind string

const (
	EventKindCompleted EventKind = "payment_completed"
	EventKindFailed    EventKind = "payment_failed"
	EventKindRefunded  EventKind = "payment_refunded"
	EventKindIgnored   EventKind = "ignored"
)

var validEventKinds = []EventKind{
	EventKindCompleted,
	EventKindFailed,
	EventKindRefunded,
	EventKindIgnored,
}

// String implements fmt.Stringer.
func (k EventKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known EventKind.
func (k EventKind) IsValid() bool {
	for _, candidate := range validEventKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseEventKind converts raw input into an EventKind.
func ParseEventKind(value string) (EventKind, error) {
	for _, candidate := range validEventKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event kind %q", value)
}
