package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/santinopnp/PNPtvLive-bot/api/responses"
	"github.com/santinopnp/PNPtvLive-bot/api/validators"
	"github.com/santinopnp/PNPtvLive-bot/internal/ledger"
	"github.com/santinopnp/PNPtvLive-bot/internal/tips"
	"github.com/santinopnp/PNPtvLive-bot/pkg/logger"
)

type createTipRequest struct {
	Amount      int64  `json:"amount" validate:"required,min=1"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
	UserEmail   string `json:"user_email" validate:"required,email"`
	PerformerID string `json:"performer_id" validate:"required"`
	Message     string `json:"message" validate:"omitempty,max=500"`
	Processor   string `json:"processor" validate:"omitempty,max=32"`
}

type tipResponse struct {
	ID            string        `json:"id"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	PerformerID   string        `json:"performer_id"`
	Message       string        `json:"message,omitempty"`
	Status        string        `json:"status"`
	Processor     string        `json:"processor"`
	Fees          feeResponse   `json:"fees"`
	TransactionID string        `json:"transaction_id,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	PaymentURL    string        `json:"payment_url,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	ProcessedAt   *time.Time    `json:"processed_at,omitempty"`
}

type feeResponse struct {
	Gross int64 `json:"gross"`
	Fee   int64 `json:"fee"`
	Net   int64 `json:"net"`
}

func toTipResponse(tip *ledger.Tip) tipResponse {
	fees := tip.Fees()
	return tipResponse{
		ID:            tip.ID,
		Amount:        tip.Amount,
		Currency:      tip.Currency,
		PerformerID:   tip.PerformerID,
		Message:       tip.Message,
		Status:        tip.Status.String(),
		Processor:     tip.Processor,
		Fees:          feeResponse{Gross: fees.Gross, Fee: fees.Fee, Net: fees.Net},
		TransactionID: tip.TransactionID,
		FailureReason: tip.FailureReason,
		PaymentURL:    tip.PaymentURL,
		CreatedAt:     tip.CreatedAt,
		ProcessedAt:   tip.ProcessedAt,
	}
}

func toTipResponses(items []*ledger.Tip) []tipResponse {
	out := make([]tipResponse, 0, len(items))
	for _, tip := range items {
		out = append(out, toTipResponse(tip))
	}
	return out
}

// CreateTip handles POST /api/v1/tips.
func CreateTip(svc *tips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req createTipRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		tip, err := svc.Create(ctx, tips.CreateInput{
			Amount:      req.Amount,
			Currency:    req.Currency,
			UserEmail:   req.UserEmail,
			PerformerID: req.PerformerID,
			Message:     validators.SanitizeString(req.Message, 500),
			Processor:   req.Processor,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toTipResponse(tip))
	}
}

// GetTip handles GET /api/v1/tips/{tipId}.
func GetTip(svc *tips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tip, err := svc.Get(ctx, chi.URLParam(r, "tipId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toTipResponse(tip))
	}
}

// RecentTips handles GET /api/v1/tips.
func RecentTips(svc *tips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items, err := svc.Recent(ctx, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toTipResponses(items))
	}
}

// TipStats handles GET /api/v1/tips/stats.
func TipStats(svc *tips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		stats, err := svc.Stats(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"count":           stats.Count,
			"completed":       stats.Completed,
			"pending":         stats.Pending,
			"failed":          stats.Failed,
			"refunded":        stats.Refunded,
			"gross_completed": stats.GrossCompleted,
			"net_completed":   stats.NetCompleted,
			"average_amount":  stats.AverageAmount,
		})
	}
}
