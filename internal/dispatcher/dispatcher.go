package dispatcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/santinopnp/PNPtvLive-bot/internal/alerting"
	"github.com/santinopnp/PNPtvLive-bot/internal/ledger"
	"github.com/santinopnp/PNPtvLive-bot/internal/processors"
	"github.com/santinopnp/PNPtvLive-bot/internal/replay"
	"github.com/santinopnp/PNPtvLive-bot/internal/settlement"
	"github.com/santinopnp/PNPtvLive-bot/pkg/enums"
	pkgerrors "github.com/santinopnp/PNPtvLive-bot/pkg/errors"
	"github.com/santinopnp/PNPtvLive-bot/pkg/logger"
	"github.com/santinopnp/PNPtvLive-bot/pkg/metrics"
)

// Inbound is one raw webhook delivery.
type Inbound struct {
	Processor  string
	Header     http.Header
	Body       []byte
	SourceAddr string
}

// Summary is the acknowledgement returned for an accepted delivery.
type Summary struct {
	Processor  string          `json:"processor"`
	Outcome    string          `json:"outcome"`
	DeliveryID string          `json:"delivery_id,omitempty"`
	TipID      string          `json:"tip_id,omitempty"`
	Status     enums.TipStatus `json:"status,omitempty"`
	LatencyMS  int64           `json:"latency_ms"`
}

const (
	outcomeSettled     = "settled"
	outcomeIgnored     = "ignored"
	outcomeReplay      = "replay"
	outcomeMalformed   = "malformed"
	outcomeInauthentic = "inauthentic"
	outcomeConflict    = "conflict"
	outcomeError       = "error"
)

// Dispatcher runs the webhook pipeline: shape validation, signature
// verification, replay guard, settlement. It short-circuits on the first
// failure and emits one alert per failure class.
type Dispatcher struct {
	registry *processors.Registry
	guard    replay.Store
	engine   *settlement.Engine
	sink     alerting.Sink
	logg     *logger.Logger
	metrics  *metrics.WebhookMetrics
}

type Params struct {
	Registry *processors.Registry
	Guard    replay.Store
	Engine   *settlement.Engine
	Sink     alerting.Sink
	Logger   *logger.Logger
	Metrics  *metrics.WebhookMetrics
}

func New(params Params) (*Dispatcher, error) {
	if params.Registry == nil {
		return nil, fmt.Errorf("processor registry required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("replay guard required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("settlement engine required")
	}
	if params.Sink == nil {
		params.Sink = alerting.NopSink{}
	}
	return &Dispatcher{
		registry: params.Registry,
		guard:    params.Guard,
		engine:   params.Engine,
		sink:     params.Sink,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// Dispatch processes one delivery end to end.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) (*Summary, error) {
	start := time.Now()
	summary, err := d.dispatch(ctx, in, start)
	latency := time.Since(start)

	outcome := outcomeError
	if summary != nil {
		outcome = summary.Outcome
	} else if typed := pkgerrors.As(err); typed != nil {
		outcome = outcomeFor(typed.Code())
	}
	d.metrics.ObserveDelivery(in.Processor, outcome, latency)
	return summary, err
}

func (d *Dispatcher) dispatch(ctx context.Context, in Inbound, start time.Time) (*Summary, error) {
	proc, err := d.registry.Lookup(in.Processor)
	if err != nil {
		return nil, err
	}

	if d.logg != nil {
		ctx = d.logg.WithProcessor(ctx, proc.Name())
	}

	// Shape first: a cheap reject before any cryptographic work.
	evt, err := proc.Normalize(in.Body)
	if err != nil {
		d.securityAlert(ctx, proc.Name(), in.SourceAddr, "malformed webhook payload", nil)
		return nil, err
	}

	verification := proc.Verify(in.Header, in.Body)
	switch verification.Verdict {
	case processors.VerdictMalformed:
		d.securityAlert(ctx, proc.Name(), in.SourceAddr, "webhook authentication malformed", map[string]string{
			"reason": verification.Detail,
		})
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authentication headers malformed")
	case processors.VerdictInauthentic:
		d.securityAlert(ctx, proc.Name(), in.SourceAddr, "webhook signature rejected", map[string]string{
			"reason": verification.Detail,
		})
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "signature verification failed")
	}

	if evt.Kind == enums.EventKindIgnored {
		return d.summarize(proc.Name(), outcomeIgnored, "", nil, start), nil
	}

	deliveryID := proc.DeliveryID(in.Header, evt)
	fresh, err := d.guard.CheckAndMark(ctx, deliveryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replay guard unavailable")
	}
	if !fresh {
		// A replay is routine retry traffic: informational log, no alert.
		if d.logg != nil {
			entryCtx := d.logg.WithField(ctx, "delivery_id", deliveryID)
			d.logg.Info(entryCtx, "duplicate delivery ignored")
		}
		return nil, pkgerrors.New(pkgerrors.CodeReplay, "notification already processed").
			WithDetails(map[string]string{"delivery_id": deliveryID})
	}

	tip, err := d.engine.Apply(ctx, evt)
	if err != nil {
		// Retryable faults release the mark so the processor's redelivery
		// can succeed. Conflicts keep it: redelivering cannot change the
		// outcome.
		if pkgerrors.Retryable(err) {
			if forgetErr := d.guard.Forget(ctx, deliveryID); forgetErr != nil && d.logg != nil {
				d.logg.Error(ctx, "failed to release replay mark", forgetErr)
			}
		}
		return nil, err
	}

	summary := d.summarize(proc.Name(), outcomeSettled, deliveryID, tip, start)
	if d.logg != nil {
		entryCtx := d.logg.WithFields(ctx, map[string]any{
			"delivery_id": deliveryID,
			"outcome":     summary.Outcome,
			"latency_ms":  summary.LatencyMS,
		})
		d.logg.Info(entryCtx, "webhook settled")
	}
	return summary, nil
}

func (d *Dispatcher) summarize(processor, outcome, deliveryID string, tip *ledger.Tip, start time.Time) *Summary {
	summary := &Summary{
		Processor:  processor,
		Outcome:    outcome,
		DeliveryID: deliveryID,
		LatencyMS:  time.Since(start).Milliseconds(),
	}
	if tip != nil {
		summary.TipID = tip.ID
		summary.Status = tip.Status
	}
	return summary
}

func (d *Dispatcher) securityAlert(ctx context.Context, processor, sourceAddr, message string, detail map[string]string) {
	d.sink.Emit(ctx, alerting.Event{
		Severity:   alerting.SeverityCritical,
		Category:   alerting.CategorySecurity,
		Processor:  processor,
		SourceAddr: sourceAddr,
		Message:    message,
		Detail:     detail,
	})
}

func outcomeFor(code pkgerrors.Code) string {
	switch code {
	case pkgerrors.CodeReplay:
		return outcomeReplay
	case pkgerrors.CodeValidation:
		return outcomeMalformed
	case pkgerrors.CodeSignature:
		return outcomeInauthentic
	case pkgerrors.CodeStateConflict:
		return outcomeConflict
	default:
		return outcomeError
	}
}
