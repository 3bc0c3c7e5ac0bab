package ledger

import (
	"time"

	"github.com/santinopnp/PNPtvLive-bot/pkg/enums"
)

// Tip is a single ledger entry. Amounts are minor units of Currency.
type Tip struct {
	ID            string
	Amount        int64
	Currency      string
	UserEmail     string
	PerformerID   string
	Message       string
	Status        enums.TipStatus
	Processor     string
	EstimatedFees FeeBreakdown
	ActualFees    *FeeBreakdown
	TransactionID string
	FailureReason string
	PaymentURL    string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// FeeBreakdown decomposes a gross amount into processor fee and performer net.
type FeeBreakdown struct {
	Gross      int64
	Fee        int64
	Net        int64
	FeePercent float64
	Processor  string
}

// Settled reports whether funds have been captured for the tip.
func (t *Tip) Settled() bool {
	return t.Status == enums.TipStatusCompleted
}

// Fees returns actual fees when the processor reported them, otherwise the
// estimate computed at creation time.
func (t *Tip) Fees() FeeBreakdown {
	if t.ActualFees != nil {
		return *t.ActualFees
	}
	return t.EstimatedFees
}

func (t *Tip) clone() *Tip {
	dup := *t
	if t.ActualFees != nil {
		fees := *t.ActualFees
		dup.ActualFees = &fees
	}
	if t.ProcessedAt != nil {
		ts := *t.ProcessedAt
		dup.ProcessedAt = &ts
	}
	return &dup
}
