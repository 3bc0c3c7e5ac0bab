package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/santinopnp/PNPtvLive-bot/pkg/logger"
)

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Category routes an alert to the right channel.
type Category string

const (
	CategorySecurity Category = "security"
	CategoryPayment  Category = "payment"
)

// Event is one structured alert. Detail must never contain secrets or full
// signature values.
type Event struct {
	Severity   Severity
	Category   Category
	Timestamp  time.Time
	Processor  string
	SourceAddr string
	Message    string
	Detail     map[string]string
}

// Sink receives alert events. Delivery is best effort; a failing sink must
// never fail webhook processing.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NopSink swallows every event.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

// LogSink writes alerts to the structured log. It is the fallback when no
// webhook channel is configured.
type LogSink struct {
	logg *logger.Logger
}

func NewLogSink(logg *logger.Logger) *LogSink {
	return &LogSink{logg: logg}
}

func (s *LogSink) Emit(ctx context.Context, event Event) {
	if s.logg == nil {
		return
	}
	fields := map[string]any{
		"severity":    string(event.Severity),
		"category":    string(event.Category),
		"processor":   event.Processor,
		"source_addr": event.SourceAddr,
	}
	for k, v := range event.Detail {
		fields["detail_"+k] = v
	}
	entryCtx := s.logg.WithFields(ctx, fields)
	if event.Severity == SeverityInfo {
		s.logg.Info(entryCtx, "alert: "+event.Message)
		return
	}
	s.logg.Warn(entryCtx, "alert: "+event.Message)
}

var severityColors = map[Severity]string{
	SeverityInfo:     "#36a64f",
	SeverityWarning:  "#ffcc00",
	SeverityCritical: "#ff0000",
}

// WebhookSink posts alerts to per-category webhook URLs through a bounded
// queue. A full queue drops the event instead of blocking the caller.
type WebhookSink struct {
	securityURL string
	paymentsURL string
	client      *http.Client
	queue       chan Event
	logg        *logger.Logger
}

type WebhookSinkParams struct {
	SecurityURL string
	PaymentsURL string
	QueueSize   int
	Timeout     time.Duration
	Logger      *logger.Logger
}

func NewWebhookSink(params WebhookSinkParams) *WebhookSink {
	if params.QueueSize <= 0 {
		params.QueueSize = 256
	}
	if params.Timeout <= 0 {
		params.Timeout = 5 * time.Second
	}
	return &WebhookSink{
		securityURL: params.SecurityURL,
		paymentsURL: params.PaymentsURL,
		client:      &http.Client{Timeout: params.Timeout},
		queue:       make(chan Event, params.QueueSize),
		logg:        params.Logger,
	}
}

// Emit enqueues the event without blocking.
func (s *WebhookSink) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case s.queue <- event:
	default:
		if s.logg != nil {
			s.logg.Warn(ctx, "alert queue full; dropping event")
		}
	}
}

// Run drains the queue until the context is canceled.
func (s *WebhookSink) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-s.queue:
			s.deliver(ctx, event)
		}
	}
}

func (s *WebhookSink) deliver(ctx context.Context, event Event) {
	target := s.securityURL
	if event.Category == CategoryPayment && s.paymentsURL != "" {
		target = s.paymentsURL
	}
	if target == "" {
		return
	}

	payload, err := json.Marshal(slackPayload(event))
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "alert delivery failed")
		}
		return
	}
	resp.Body.Close()
}

func slackPayload(event Event) map[string]any {
	fields := make([]map[string]any, 0, len(event.Detail)+2)
	fields = append(fields, map[string]any{"title": "Processor", "value": event.Processor, "short": true})
	if event.SourceAddr != "" {
		fields = append(fields, map[string]any{"title": "Source", "value": event.SourceAddr, "short": true})
	}
	for k, v := range event.Detail {
		fields = append(fields, map[string]any{"title": k, "value": v, "short": true})
	}
	return map[string]any{
		"attachments": []map[string]any{{
			"color":  severityColors[event.Severity],
			"title":  fmt.Sprintf("[%s] %s", event.Category, event.Message),
			"fields": fields,
			"ts":     event.Timestamp.Unix(),
		}},
	}
}
