package processors

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/santinopnp/PNPtvLive-bot/internal/ledger"
	"github.com/santinopnp/PNPtvLive-bot/pkg/config"
	"github.com/santinopnp/PNPtvLive-bot/pkg/enums"
	pkgerrors "github.com/santinopnp/PNPtvLive-bot/pkg/errors"
	"github.com/shopspring/decimal"
)

const minHMACSignatureLength = 32

var signaturePrefixes = []string{"sha256=", "hmac-sha256="}

// HMACProcessor settles notifications signed with HMAC-SHA256 over the raw
// body. Bold is the shipped instance; any processor with the same signing
// scheme and status-code payload can reuse it.
type HMACProcessor struct {
	profile          Profile
	secret           string
	signatureHeaders []string
	checkoutBaseURL  string
}

// NewBold builds the Bold processor from configuration.
func NewBold(cfg config.BoldConfig) *HMACProcessor {
	return &HMACProcessor{
		profile: Profile{
			Name:       "bold",
			Enabled:    cfg.Enabled,
			PercentFee: cfg.PercentFee,
			FixedFee:   cfg.FixedFee,
			Currencies: cfg.CurrencyList(),
			Countries:  cfg.CountryList(),
		},
		secret:           cfg.SecretKey,
		signatureHeaders: []string{"X-Bold-Signature", "X-Signature"},
		checkoutBaseURL:  cfg.CheckoutBaseURL,
	}
}

func (p *HMACProcessor) Name() string { return p.profile.Name }

func (p *HMACProcessor) Profile() Profile { return p.profile }

func (p *HMACProcessor) Verify(header http.Header, body []byte) Verification {
	// No secret means nothing can be verified. Fail closed.
	if strings.TrimSpace(p.secret) == "" {
		return Verification{Verdict: VerdictMalformed, Detail: "processor secret not configured"}
	}

	delivered := ""
	for _, name := range p.signatureHeaders {
		if v := strings.TrimSpace(header.Get(name)); v != "" {
			delivered = v
			break
		}
	}
	if delivered == "" {
		return Verification{Verdict: VerdictMalformed, Detail: "signature header missing"}
	}

	for _, prefix := range signaturePrefixes {
		if strings.HasPrefix(strings.ToLower(delivered), prefix) {
			delivered = delivered[len(prefix):]
			break
		}
	}
	if len(delivered) < minHMACSignatureLength {
		return Verification{Verdict: VerdictMalformed, Detail: "signature too short"}
	}

	deliveredBytes, err := decodeSignature(delivered)
	if err != nil {
		return Verification{Verdict: VerdictMalformed, Detail: "signature encoding not recognized"}
	}

	mac := hmac.New(sha256.New, []byte(p.secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), deliveredBytes) {
		return Verification{Verdict: VerdictInauthentic, Detail: "hmac mismatch"}
	}
	return Verification{Verdict: VerdictAuthentic}
}

func decodeSignature(value string) ([]byte, error) {
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}

type statusPayload struct {
	Reference     string      `json:"reference"`
	Status        string      `json:"status"`
	Amount        json.Number `json:"amount"`
	Currency      string      `json:"currency"`
	TransactionID string      `json:"transaction_id"`
	Fee           json.Number `json:"fee"`
}

var statusToKind = map[string]enums.EventKind{
	"APPROVED":   enums.EventKindCompleted,
	"DECLINED":   enums.EventKindFailed,
	"CANCELLED":  enums.EventKindFailed,
	"FAILED":     enums.EventKindFailed,
	"REFUNDED":   enums.EventKindRefunded,
	"PENDING":    enums.EventKindIgnored,
	"PROCESSING": enums.EventKindIgnored,
}

func (p *HMACProcessor) Normalize(body []byte) (*Event, error) {
	var payload statusPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook body")
	}

	if strings.TrimSpace(payload.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	kind, ok := statusToKind[strings.ToUpper(strings.TrimSpace(payload.Status))]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown status value").
			WithDetails(map[string]string{"status": payload.Status})
	}

	currency := strings.ToUpper(strings.TrimSpace(payload.Currency))
	if currency == "" && len(p.profile.Currencies) > 0 {
		currency = p.profile.Currencies[0]
	}

	amountValue, err := decimal.NewFromString(payload.Amount.String())
	if err != nil || amountValue.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a positive number")
	}

	evt := &Event{
		Processor:  p.profile.Name,
		Kind:       kind,
		Reference:  payload.Reference,
		ExternalID: payload.TransactionID,
		Amount:     minorUnits(amountValue, currency),
		Currency:   currency,
	}
	if kind == enums.EventKindFailed {
		evt.Reason = strings.ToUpper(strings.TrimSpace(payload.Status))
	}
	if raw := payload.Fee.String(); raw != "" && raw != "0" {
		if feeValue, err := decimal.NewFromString(raw); err == nil && feeValue.Sign() > 0 {
			fee := minorUnits(feeValue, currency)
			evt.ActualFee = &fee
		}
	}
	return evt, nil
}

// DeliveryID scopes the idempotency key to this processor. Two deliveries of
// the same event collide; distinct events for the same reference (approval
// then refund) do not.
func (p *HMACProcessor) DeliveryID(header http.Header, evt *Event) string {
	if evt.ExternalID != "" {
		return fmt.Sprintf("%s:%s:%s", p.profile.Name, evt.Reference, evt.ExternalID)
	}
	return fmt.Sprintf("%s:%s:%s", p.profile.Name, evt.Reference, evt.Kind)
}

func (p *HMACProcessor) Fees(amount int64) ledger.FeeBreakdown {
	return computeFees(p.profile, amount)
}

// PaymentURL builds the hosted checkout link for a pending tip.
func (p *HMACProcessor) PaymentURL(reference string, amount int64, currency, credential string) (string, error) {
	if p.checkoutBaseURL == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnsupported, "checkout url not configured")
	}
	base, err := url.Parse(p.checkoutBaseURL)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid checkout base url")
	}
	q := base.Query()
	q.Set("reference", reference)
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("currency", strings.ToUpper(currency))
	if credential != "" {
		q.Set("merchant", credential)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}
