package tips

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/santinopnp/PNPtvLive-bot/internal/ledger"
	"github.com/santinopnp/PNPtvLive-bot/internal/performers"
	"github.com/santinopnp/PNPtvLive-bot/internal/processors"
	"github.com/santinopnp/PNPtvLive-bot/pkg/enums"
	pkgerrors "github.com/santinopnp/PNPtvLive-bot/pkg/errors"
	"github.com/santinopnp/PNPtvLive-bot/pkg/logger"
)

// Service is the tip-creation path upstream of settlement. It selects a
// processor for each new tip; selection never silently falls back to an
// unsupported processor.
type Service struct {
	repo      ledger.Repository
	directory *performers.Directory
	registry  *processors.Registry
	logg      *logger.Logger
}

type ServiceParams struct {
	Repo      ledger.Repository
	Directory *performers.Directory
	Registry  *processors.Registry
	Logger    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Directory == nil {
		return nil, fmt.Errorf("performer directory required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("processor registry required")
	}
	return &Service{
		repo:      params.Repo,
		directory: params.Directory,
		registry:  params.Registry,
		logg:      params.Logger,
	}, nil
}

// CreateInput carries a tip request.
type CreateInput struct {
	Amount      int64
	Currency    string
	UserEmail   string
	PerformerID string
	Message     string
	Processor   string
}

// Create validates the request, picks a qualifying processor, computes the
// fee estimate and builds the payment link.
func (s *Service) Create(ctx context.Context, input CreateInput) (*ledger.Tip, error) {
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip amount must be positive")
	}
	if strings.TrimSpace(input.UserEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user email is required")
	}

	performer, err := s.directory.Get(ctx, input.PerformerID)
	if err != nil {
		return nil, err
	}
	if !performer.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "performer is not accepting tips")
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = performer.Settings.Currency
	}
	if currency == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency is required")
	}

	if min := performer.Settings.MinTipAmount; min > 0 && input.Amount < min {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount below performer minimum").
			WithDetails(map[string]any{"minimum": min})
	}

	proc, credential, err := s.selectProcessor(performer, currency, input.Processor)
	if err != nil {
		return nil, err
	}

	tip := &ledger.Tip{
		ID:            uuid.NewString(),
		Amount:        input.Amount,
		Currency:      currency,
		UserEmail:     strings.TrimSpace(input.UserEmail),
		PerformerID:   performer.ID,
		Message:       strings.TrimSpace(input.Message),
		Status:        enums.TipStatusPending,
		Processor:     proc.Name(),
		EstimatedFees: proc.Fees(input.Amount),
	}

	paymentURL, err := proc.PaymentURL(tip.ID, tip.Amount, tip.Currency, credential)
	if err != nil {
		return nil, err
	}
	tip.PaymentURL = paymentURL

	created, err := s.repo.Create(ctx, tip)
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		entryCtx := s.logg.WithTipID(ctx, created.ID)
		entryCtx = s.logg.WithProcessor(entryCtx, created.Processor)
		s.logg.Info(entryCtx, "tip created")
	}
	return created, nil
}

// selectProcessor returns the first registered processor that supports the
// currency and for which the performer holds credentials. A requested
// processor must itself qualify.
func (s *Service) selectProcessor(performer *performers.Performer, currency, requested string) (processors.Processor, string, error) {
	candidates := s.registry.All()
	if requested != "" {
		proc, err := s.registry.Lookup(requested)
		if err != nil {
			return nil, "", err
		}
		candidates = []processors.Processor{proc}
	}

	for _, proc := range candidates {
		if !proc.Profile().SupportsCurrency(currency) {
			continue
		}
		credential, ok := performer.Credential(proc.Name())
		if !ok {
			continue
		}
		return proc, credential, nil
	}

	return nil, "", pkgerrors.New(pkgerrors.CodeUnsupported, "no qualifying payment processor").
		WithDetails(map[string]string{"currency": currency})
}

// Get returns one tip.
func (s *Service) Get(ctx context.Context, id string) (*ledger.Tip, error) {
	return s.repo.Get(ctx, id)
}

// Recent returns the newest tips, most recent first.
func (s *Service) Recent(ctx context.Context, limit int) ([]*ledger.Tip, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit)
}

// ByPerformer returns the newest tips for one performer.
func (s *Service) ByPerformer(ctx context.Context, performerID string, limit int) ([]*ledger.Tip, error) {
	if _, err := s.directory.Get(ctx, performerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListByPerformer(ctx, performerID, limit)
}

// Stats aggregates the ledger.
type Stats struct {
	Count          int
	Completed      int
	Pending        int
	Failed         int
	Refunded       int
	GrossCompleted int64
	NetCompleted   int64
	AverageAmount  int64
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	tips, err := s.repo.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Count: len(tips)}
	var totalAmount int64
	for _, tip := range tips {
		totalAmount += tip.Amount
		switch tip.Status {
		case enums.TipStatusCompleted:
			stats.Completed++
			fees := tip.Fees()
			stats.GrossCompleted += tip.Amount
			stats.NetCompleted += fees.Net
		case enums.TipStatusPending:
			stats.Pending++
		case enums.TipStatusFailed:
			stats.Failed++
		case enums.TipStatusRefunded:
			stats.Refunded++
		}
	}
	if stats.Count > 0 {
		stats.AverageAmount = totalAmount / int64(stats.Count)
	}
	return stats, nil
}
