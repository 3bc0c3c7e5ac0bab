package settlement

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/santinopnp/PNPtvLive-bot/internal/alerting"
	"github.com/santinopnp/PNPtvLive-bot/internal/ledger"
	"github.com/santinopnp/PNPtvLive-bot/internal/processors"
	"github.com/santinopnp/PNPtvLive-bot/pkg/enums"
	pkgerrors "github.com/santinopnp/PNPtvLive-bot/pkg/errors"
	"github.com/santinopnp/PNPtvLive-bot/pkg/logger"
)

// LedgerConsumer receives settled tips. The performer directory implements
// it; the engine does not own that storage.
type LedgerConsumer interface {
	RecordSettled(ctx context.Context, performerID string, netAmount int64) error
}

// Engine owns every Tip mutation after creation. Transitions follow the
// state machine pending→completed, pending→failed, completed→refunded;
// anything else is a conflict, never a silent success.
type Engine struct {
	repo     ledger.Repository
	consumer LedgerConsumer
	sink     alerting.Sink
	logg     *logger.Logger
}

type EngineParams struct {
	Repo     ledger.Repository
	Consumer LedgerConsumer
	Sink     alerting.Sink
	Logger   *logger.Logger
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Sink == nil {
		params.Sink = alerting.NopSink{}
	}
	return &Engine{
		repo:     params.Repo,
		consumer: params.Consumer,
		sink:     params.Sink,
		logg:     params.Logger,
	}, nil
}

// Apply folds one verified, first-seen event into the ledger.
func (e *Engine) Apply(ctx context.Context, evt *processors.Event) (*ledger.Tip, error) {
	if evt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event is required")
	}
	if evt.Kind == enums.EventKindIgnored {
		return nil, nil
	}

	tip, err := e.repo.FindByReference(ctx, evt.Reference)
	if err != nil {
		return nil, err
	}

	switch evt.Kind {
	case enums.EventKindCompleted:
		return e.complete(ctx, tip.ID, evt)
	case enums.EventKindFailed:
		return e.fail(ctx, tip.ID, evt)
	case enums.EventKindRefunded:
		return e.refund(ctx, tip.ID, evt)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown event kind").
			WithDetails(map[string]string{"kind": string(evt.Kind)})
	}
}

func (e *Engine) complete(ctx context.Context, tipID string, evt *processors.Event) (*ledger.Tip, error) {
	updated, err := e.repo.Mutate(ctx, tipID, func(tip *ledger.Tip) error {
		if tip.Status != enums.TipStatusPending {
			return conflict(tip, enums.TipStatusCompleted)
		}
		now := time.Now().UTC()
		tip.Status = enums.TipStatusCompleted
		tip.TransactionID = evt.ExternalID
		tip.ProcessedAt = &now
		// A processor-reported fee overrides the estimate for reporting;
		// the estimate stays on the tip for audit.
		if evt.ActualFee != nil {
			tip.ActualFees = &ledger.FeeBreakdown{
				Gross:      tip.Amount,
				Fee:        *evt.ActualFee,
				Net:        tip.Amount - *evt.ActualFee,
				FeePercent: tip.EstimatedFees.FeePercent,
				Processor:  tip.Processor,
			}
		}
		return nil
	})
	if err != nil {
		e.alertConflict(ctx, evt, err)
		return nil, err
	}

	if e.consumer != nil {
		if err := e.consumer.RecordSettled(ctx, updated.PerformerID, updated.Fees().Net); err != nil && e.logg != nil {
			e.logg.Error(ctx, "failed to record settled tip", err)
		}
	}

	e.sink.Emit(ctx, paymentAlert(alerting.SeverityInfo, "tip completed", updated, evt))
	return updated, nil
}

func (e *Engine) fail(ctx context.Context, tipID string, evt *processors.Event) (*ledger.Tip, error) {
	updated, err := e.repo.Mutate(ctx, tipID, func(tip *ledger.Tip) error {
		if tip.Status != enums.TipStatusPending {
			return conflict(tip, enums.TipStatusFailed)
		}
		now := time.Now().UTC()
		tip.Status = enums.TipStatusFailed
		tip.FailureReason = evt.Reason
		tip.ProcessedAt = &now
		return nil
	})
	if err != nil {
		e.alertConflict(ctx, evt, err)
		return nil, err
	}

	e.sink.Emit(ctx, paymentAlert(alerting.SeverityWarning, "tip failed", updated, evt))
	return updated, nil
}

func (e *Engine) refund(ctx context.Context, tipID string, evt *processors.Event) (*ledger.Tip, error) {
	updated, err := e.repo.Mutate(ctx, tipID, func(tip *ledger.Tip) error {
		if tip.Status != enums.TipStatusCompleted {
			return conflict(tip, enums.TipStatusRefunded)
		}
		now := time.Now().UTC()
		tip.Status = enums.TipStatusRefunded
		tip.ProcessedAt = &now
		return nil
	})
	if err != nil {
		e.alertConflict(ctx, evt, err)
		return nil, err
	}

	e.sink.Emit(ctx, paymentAlert(alerting.SeverityWarning, "tip refunded", updated, evt))
	return updated, nil
}

func conflict(tip *ledger.Tip, target enums.TipStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "state transition disallowed").
		WithDetails(map[string]string{
			"from": tip.Status.String(),
			"to":   target.String(),
		})
}

func (e *Engine) alertConflict(ctx context.Context, evt *processors.Event, err error) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		return
	}
	e.sink.Emit(ctx, alerting.Event{
		Severity:  alerting.SeverityWarning,
		Category:  alerting.CategoryPayment,
		Processor: evt.Processor,
		Message:   "conflicting settlement event",
		Detail: map[string]string{
			"reference": evt.Reference,
			"kind":      string(evt.Kind),
		},
	})
}

func paymentAlert(severity alerting.Severity, message string, tip *ledger.Tip, evt *processors.Event) alerting.Event {
	fees := tip.Fees()
	return alerting.Event{
		Severity:  severity,
		Category:  alerting.CategoryPayment,
		Processor: evt.Processor,
		Message:   message,
		Detail: map[string]string{
			"tip_id":   tip.ID,
			"amount":   strconv.FormatInt(tip.Amount, 10),
			"currency": tip.Currency,
			"net":      strconv.FormatInt(fees.Net, 10),
		},
	}
}
