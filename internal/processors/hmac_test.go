package processors

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/santinopnp/PNPtvLive-bot/pkg/config"
	"github.com/santinopnp/PNPtvLive-bot/pkg/enums"
)

func boldConfig() config.BoldConfig {
	return config.BoldConfig{
		Enabled:         true,
		SecretKey:       "test-secret",
		PercentFee:      0.0349,
		FixedFee:        900,
		Currencies:      "COP,USD",
		Countries:       "CO",
		CheckoutBaseURL: "https://checkout.bold.co/payment",
	}
}

func signHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyAuthenticHexSignature(t *testing.T) {
	proc := NewBold(boldConfig())
	body := []byte(`{"reference":"ref-1","status":"APPROVED","amount":5000}`)

	header := http.Header{}
	header.Set("X-Bold-Signature", signHex("test-secret", body))

	if got := proc.Verify(header, body); got.Verdict != VerdictAuthentic {
		t.Fatalf("expected authentic, got %s (%s)", got.Verdict, got.Detail)
	}
}

func TestVerifyAcceptsBase64AndPrefix(t *testing.T) {
	proc := NewBold(boldConfig())
	body := []byte(`{"reference":"ref-1","status":"APPROVED","amount":5000}`)

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write(body)
	encoded := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	header := http.Header{}
	header.Set("X-Signature", "sha256="+encoded)

	if got := proc.Verify(header, body); got.Verdict != VerdictAuthentic {
		t.Fatalf("expected authentic, got %s (%s)", got.Verdict, got.Detail)
	}
}

func TestVerifyMutationFlipsToInauthentic(t *testing.T) {
	proc := NewBold(boldConfig())
	body := []byte(`{"reference":"ref-1","status":"APPROVED","amount":5000}`)

	header := http.Header{}
	header.Set("X-Bold-Signature", signHex("test-secret", body))

	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] ^= 0x01

	if got := proc.Verify(header, tampered); got.Verdict != VerdictInauthentic {
		t.Fatalf("tampered body must be inauthentic, got %s", got.Verdict)
	}

	// Flip one bit of the signature instead.
	sig := []byte(signHex("test-secret", body))
	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}
	header.Set("X-Bold-Signature", string(sig))
	if got := proc.Verify(header, body); got.Verdict != VerdictInauthentic {
		t.Fatalf("tampered signature must be inauthentic, got %s", got.Verdict)
	}
}

func TestVerifyMissingHeaderIsMalformedNotInauthentic(t *testing.T) {
	proc := NewBold(boldConfig())
	body := []byte(`{}`)

	if got := proc.Verify(http.Header{}, body); got.Verdict != VerdictMalformed {
		t.Fatalf("missing header must be malformed, got %s", got.Verdict)
	}
}

func TestVerifyShortSignatureIsMalformed(t *testing.T) {
	proc := NewBold(boldConfig())
	header := http.Header{}
	header.Set("X-Bold-Signature", "deadbeef")

	if got := proc.Verify(header, []byte(`{}`)); got.Verdict != VerdictMalformed {
		t.Fatalf("short signature must be malformed, got %s", got.Verdict)
	}
}

func TestVerifyMissingSecretFailsClosed(t *testing.T) {
	cfg := boldConfig()
	cfg.SecretKey = ""
	proc := NewBold(cfg)

	body := []byte(`{}`)
	header := http.Header{}
	header.Set("X-Bold-Signature", signHex("anything", body))

	if got := proc.Verify(header, body); got.Verdict != VerdictMalformed {
		t.Fatalf("missing secret must be malformed, got %s", got.Verdict)
	}
}

func TestNormalizeStatusMapping(t *testing.T) {
	proc := NewBold(boldConfig())

	cases := []struct {
		status string
		kind   enums.EventKind
	}{
		{"APPROVED", enums.EventKindCompleted},
		{"DECLINED", enums.EventKindFailed},
		{"CANCELLED", enums.EventKindFailed},
		{"FAILED", enums.EventKindFailed},
		{"REFUNDED", enums.EventKindRefunded},
		{"PENDING", enums.EventKindIgnored},
		{"PROCESSING", enums.EventKindIgnored},
	}
	for _, tc := range cases {
		body := []byte(`{"reference":"ref-1","status":"` + tc.status + `","amount":5000}`)
		evt, err := proc.Normalize(body)
		if err != nil {
			t.Fatalf("normalize %s failed: %v", tc.status, err)
		}
		if evt.Kind != tc.kind {
			t.Fatalf("status %s mapped to %s, want %s", tc.status, evt.Kind, tc.kind)
		}
	}
}

func TestNormalizeRejectsBadPayloads(t *testing.T) {
	proc := NewBold(boldConfig())

	cases := []string{
		`not-json`,
		`{"status":"APPROVED","amount":5000}`,
		`{"reference":"ref-1","status":"SHRUG","amount":5000}`,
		`{"reference":"ref-1","status":"APPROVED","amount":0}`,
		`{"reference":"ref-1","status":"APPROVED","amount":-10}`,
	}
	for _, body := range cases {
		if _, err := proc.Normalize([]byte(body)); err == nil {
			t.Fatalf("expected error for body %s", body)
		}
	}
}

func TestNormalizeDefaultsCurrencyAndActualFee(t *testing.T) {
	proc := NewBold(boldConfig())
	body := []byte(`{"reference":"ref-1","status":"APPROVED","amount":5000,"transaction_id":"txn-9","fee":175}`)

	evt, err := proc.Normalize(body)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if evt.Currency != "COP" {
		t.Fatalf("expected default currency COP, got %s", evt.Currency)
	}
	if evt.Amount != 5000 {
		t.Fatalf("COP amount should stay in whole pesos, got %d", evt.Amount)
	}
	if evt.ActualFee == nil || *evt.ActualFee != 175 {
		t.Fatalf("expected actual fee 175, got %v", evt.ActualFee)
	}
}

func TestDeliveryIDStableAndScoped(t *testing.T) {
	proc := NewBold(boldConfig())

	withTxn := &Event{Reference: "ref-1", ExternalID: "txn-9", Kind: enums.EventKindCompleted}
	if got := proc.DeliveryID(http.Header{}, withTxn); got != "bold:ref-1:txn-9" {
		t.Fatalf("unexpected delivery id %s", got)
	}

	// Without a transaction id, distinct event kinds must not collide.
	approved := &Event{Reference: "ref-1", Kind: enums.EventKindCompleted}
	refunded := &Event{Reference: "ref-1", Kind: enums.EventKindRefunded}
	if proc.DeliveryID(http.Header{}, approved) == proc.DeliveryID(http.Header{}, refunded) {
		t.Fatalf("distinct events must have distinct delivery ids")
	}
}

func TestPaymentURLIncludesReference(t *testing.T) {
	proc := NewBold(boldConfig())
	got, err := proc.PaymentURL("tip-1", 5000, "COP", "")
	if err != nil {
		t.Fatalf("payment url failed: %v", err)
	}
	if got != "https://checkout.bold.co/payment?amount=5000&currency=COP&reference=tip-1" {
		t.Fatalf("unexpected url %s", got)
	}
}
