package enums

import "fmt"

// TipStatus tracks the lifecycle of a tip through settlement.
type TipStatus string

const (
	TipStatusPending   TipStatus = "pending"
	TipStatusCompleted TipStatus = "completed"
	TipStatusFailed    TipStatus = "failed"
	TipStatusRefunded  TipStatus = "refunded"
)

var validTipStatuses = []TipStatus{
	TipStatusPending,
	TipStatusCompleted,
	TipStatusFailed,
	TipStatusRefunded,
}

// String implements fmt.Stringer.
func (s TipStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TipStatus.
func (s TipStatus) IsValid() bool {
	for _, candidate := range validTipStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTipStatus converts raw input into a TipStatus.
func ParseTipStatus(value string) (TipStatus, error) {
	for _, candidate := range validTipStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tip status %q", value)
}

// Terminal reports whether no further transition except refund is possible.
func (s TipStatus) Terminal() bool {
	return s == TipStatusFailed || s == TipStatusRefunded
}
