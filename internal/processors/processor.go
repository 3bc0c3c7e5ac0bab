package processors

import (
	"net/http"
	"sort"
	"strings"

	"github.com/santinopnp/PNPtvLive-bot/internal/ledger"
	"github.com/santinopnp/PNPtvLive-bot/pkg/enums"
	pkgerrors "github.com/santinopnp/PNPtvLive-bot/pkg/errors"
)

// Verdict is the outcome of signature verification.
type Verdict string

const (
	// VerdictAuthentic means the notification is cryptographically sound.
	VerdictAuthentic Verdict = "authentic"
	// VerdictInauthentic means verification ran and failed.
	VerdictInauthentic Verdict = "inauthentic"
	// VerdictMalformed means there was nothing to verify: required headers
	// absent, shape checks failed, or the processor has no secret configured.
	VerdictMalformed Verdict = "malformed"
)

// Verification carries the verdict plus a non-sensitive diagnostic. Detail
// never contains secrets or full signature values.
type Verification struct {
	Verdict Verdict
	Detail  string
}

// Event is the normalized form of a processor notification.
type Event struct {
	Processor  string
	Kind       enums.EventKind
	Reference  string
	ExternalID string
	Amount     int64
	Currency   string
	ActualFee  *int64
	Reason     string
	DeliveryID string
}

// Profile is the static per-processor configuration.
type Profile struct {
	Name       string
	Enabled    bool
	PercentFee float64
	FixedFee   int64
	Currencies []string
	Countries  []string
}

// SupportsCurrency reports whether the profile can settle the currency.
func (p Profile) SupportsCurrency(currency string) bool {
	for _, c := range p.Currencies {
		if strings.EqualFold(c, currency) {
			return true
		}
	}
	return false
}

// Processor is the closed capability set one payment provider implements.
// Variants are selected once at configuration time; the dispatcher never
// branches on processor names.
type Processor interface {
	Name() string
	Profile() Profile
	Verify(header http.Header, body []byte) Verification
	Normalize(body []byte) (*Event, error)
	DeliveryID(header http.Header, evt *Event) string
	Fees(amount int64) ledger.FeeBreakdown
	PaymentURL(reference string, amount int64, currency, credential string) (string, error)
}

// Registry holds the configured processors.
type Registry struct {
	byName map[string]Processor
}

func NewRegistry(procs ...Processor) *Registry {
	reg := &Registry{byName: make(map[string]Processor, len(procs))}
	for _, p := range procs {
		if p == nil || !p.Profile().Enabled {
			continue
		}
		reg.byName[strings.ToLower(p.Name())] = p
	}
	return reg
}

// Lookup resolves a processor by name.
func (r *Registry) Lookup(name string) (Processor, error) {
	p, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnsupported, "unknown payment processor").
			WithDetails(map[string]string{"processor": name})
	}
	return p, nil
}

// Names returns the registered processor names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered processor.
func (r *Registry) All() []Processor {
	procs := make([]Processor, 0, len(r.byName))
	for _, name := range r.Names() {
		procs = append(procs, r.byName[name])
	}
	return procs
}
