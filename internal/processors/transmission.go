package processors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/santinopnp/PNPtvLive-bot/internal/ledger"
	"github.com/santinopnp/PNPtvLive-bot/pkg/config"
	"github.com/santinopnp/PNPtvLive-bot/pkg/enums"
	pkgerrors "github.com/santinopnp/PNPtvLive-bot/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	headerTransmissionID   = "Paypal-Transmission-Id"
	headerCertID           = "Paypal-Cert-Id"
	headerTransmissionSig  = "Paypal-Transmission-Sig"
	headerTransmissionTime = "Paypal-Transmission-Time"
	headerAuthAlgo         = "Paypal-Auth-Algo"

	expectedAuthAlgo          = "SHA256withRSA"
	minTransmissionSignature  = 50
	approximateCopPerUsdRatio = 4000
)

// Transmission collects the authentication headers of one delivery.
type Transmission struct {
	ID        string
	CertID    string
	Signature string
	Timestamp time.Time
	Algorithm string
}

// CertVerifier performs the certificate-chain step of transmission
// verification. Implementations fetch the certificate named by CertID and
// check the signature over the delivery.
type CertVerifier interface {
	Verify(t Transmission, body []byte) error
}

// RejectingCertVerifier is the shipped default: without a real verifier the
// chain check fails closed.
type RejectingCertVerifier struct{}

func (RejectingCertVerifier) Verify(Transmission, []byte) error {
	return fmt.Errorf("certificate verification not available")
}

// InsecureSkipCertVerifier accepts every chain. Development only.
type InsecureSkipCertVerifier struct{}

func (InsecureSkipCertVerifier) Verify(Transmission, []byte) error { return nil }

// TransmissionProcessor settles notifications authenticated with signed
// transmission headers. PayPal is the shipped instance.
type TransmissionProcessor struct {
	profile      Profile
	configured   bool
	maxStaleness time.Duration
	verifier     CertVerifier
	now          func() time.Time
}

// NewPayPal builds the PayPal processor from configuration. A nil verifier
// falls back to the rejecting default unless the dev bypass flag is set.
func NewPayPal(cfg config.PayPalConfig, verifier CertVerifier) *TransmissionProcessor {
	if verifier == nil {
		if cfg.SkipCertVerification {
			verifier = InsecureSkipCertVerifier{}
		} else {
			verifier = RejectingCertVerifier{}
		}
	}
	return &TransmissionProcessor{
		profile: Profile{
			Name:       "paypal",
			Enabled:    cfg.Enabled,
			PercentFee: cfg.PercentFee,
			FixedFee:   cfg.FixedFee,
			Currencies: cfg.CurrencyList(),
			Countries:  cfg.CountryList(),
		},
		configured:   cfg.Configured(),
		maxStaleness: cfg.MaxStaleness,
		verifier:     verifier,
		now:          time.Now,
	}
}

func (p *TransmissionProcessor) Name() string { return p.profile.Name }

func (p *TransmissionProcessor) Profile() Profile { return p.profile }

func (p *TransmissionProcessor) Verify(header http.Header, body []byte) Verification {
	if !p.configured {
		return Verification{Verdict: VerdictMalformed, Detail: "processor credentials not configured"}
	}

	required := []string{
		headerTransmissionID,
		headerCertID,
		headerTransmissionSig,
		headerTransmissionTime,
		headerAuthAlgo,
	}
	for _, name := range required {
		if strings.TrimSpace(header.Get(name)) == "" {
			return Verification{Verdict: VerdictMalformed, Detail: "transmission header missing"}
		}
	}

	sig := strings.TrimSpace(header.Get(headerTransmissionSig))
	if len(sig) < minTransmissionSignature {
		return Verification{Verdict: VerdictMalformed, Detail: "transmission signature too short"}
	}
	if algo := strings.TrimSpace(header.Get(headerAuthAlgo)); algo != expectedAuthAlgo {
		return Verification{Verdict: VerdictMalformed, Detail: "unexpected auth algorithm"}
	}

	epoch, err := strconv.ParseInt(strings.TrimSpace(header.Get(headerTransmissionTime)), 10, 64)
	if err != nil {
		return Verification{Verdict: VerdictMalformed, Detail: "transmission time not epoch seconds"}
	}
	transmittedAt := time.Unix(epoch, 0)
	if p.now().Sub(transmittedAt) > p.maxStaleness {
		// Stale but well formed: the signature may be real, the delivery is
		// outside the replay-via-delay window.
		return Verification{Verdict: VerdictInauthentic, Detail: "transmission too old"}
	}

	t := Transmission{
		ID:        strings.TrimSpace(header.Get(headerTransmissionID)),
		CertID:    strings.TrimSpace(header.Get(headerCertID)),
		Signature: sig,
		Timestamp: transmittedAt,
		Algorithm: expectedAuthAlgo,
	}
	if err := p.verifier.Verify(t, body); err != nil {
		return Verification{Verdict: VerdictInauthentic, Detail: "certificate verification failed"}
	}
	return Verification{Verdict: VerdictAuthentic}
}

type transmissionPayload struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID     string `json:"id"`
		Amount struct {
			Value        string `json:"value"`
			CurrencyCode string `json:"currency_code"`
		} `json:"amount"`
		InvoiceID    string `json:"invoice_id"`
		StatusReason string `json:"status_details"`
	} `json:"resource"`
}

var eventTypeToKind = map[string]enums.EventKind{
	"PAYMENT.CAPTURE.COMPLETED": enums.EventKindCompleted,
	"PAYMENT.CAPTURE.DENIED":    enums.EventKindFailed,
	"PAYMENT.CAPTURE.DECLINED":  enums.EventKindFailed,
	"PAYMENT.CAPTURE.REFUNDED":  enums.EventKindRefunded,
	"CHECKOUT.ORDER.APPROVED":   enums.EventKindIgnored,
	"CHECKOUT.ORDER.COMPLETED":  enums.EventKindIgnored,
}

func (p *TransmissionProcessor) Normalize(body []byte) (*Event, error) {
	var payload transmissionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook body")
	}
	if strings.TrimSpace(payload.EventType) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event_type is required")
	}
	if strings.TrimSpace(payload.Resource.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resource.id is required")
	}

	kind, ok := eventTypeToKind[strings.ToUpper(strings.TrimSpace(payload.EventType))]
	if !ok {
		kind = enums.EventKindIgnored
	}

	currency := strings.ToUpper(strings.TrimSpace(payload.Resource.Amount.CurrencyCode))
	var amount int64
	if raw := strings.TrimSpace(payload.Resource.Amount.Value); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil || value.Sign() < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a non-negative number")
		}
		amount = minorUnits(value, currency)
	}

	reference := payload.Resource.InvoiceID
	if reference == "" {
		reference = payload.Resource.ID
	}

	evt := &Event{
		Processor:  p.profile.Name,
		Kind:       kind,
		Reference:  reference,
		ExternalID: payload.Resource.ID,
		Amount:     amount,
		Currency:   currency,
	}
	if kind == enums.EventKindFailed {
		evt.Reason = payload.Resource.StatusReason
		if evt.Reason == "" {
			evt.Reason = strings.ToUpper(payload.EventType)
		}
	}
	return evt, nil
}

// DeliveryID uses the transmission id: it is unique per delivery attempt of
// one underlying event and stable across redeliveries.
func (p *TransmissionProcessor) DeliveryID(header http.Header, evt *Event) string {
	if id := strings.TrimSpace(header.Get(headerTransmissionID)); id != "" {
		return fmt.Sprintf("%s:%s", p.profile.Name, id)
	}
	return fmt.Sprintf("%s:%s:%s", p.profile.Name, evt.ExternalID, evt.Kind)
}

func (p *TransmissionProcessor) Fees(amount int64) ledger.FeeBreakdown {
	return computeFees(p.profile, amount)
}

// PaymentURL builds a paypal.me link for a pending tip. COP amounts are
// converted with a coarse fixed ratio.
// TODO: replace the fixed COP/USD ratio with a rate lookup.
func (p *TransmissionProcessor) PaymentURL(reference string, amount int64, currency, credential string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnsupported, "beneficiary has no paypal handle configured")
	}

	value := decimal.NewFromInt(amount)
	switch strings.ToUpper(currency) {
	case "USD":
		value = value.Div(decimal.NewFromInt(100))
	case "COP":
		value = value.Div(decimal.NewFromInt(approximateCopPerUsdRatio))
	default:
		return "", pkgerrors.New(pkgerrors.CodeUnsupported, "currency not supported for paypal links").
			WithDetails(map[string]string{"currency": currency})
	}

	handle := strings.TrimPrefix(strings.TrimSpace(credential), "@")
	return fmt.Sprintf("https://paypal.me/%s/%s", url.PathEscape(handle), value.Round(2).String()), nil
}
