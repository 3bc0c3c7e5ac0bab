package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/santinopnp/PNPtvLive-bot/api/responses"
	"github.com/santinopnp/PNPtvLive-bot/api/validators"
	"github.com/santinopnp/PNPtvLive-bot/internal/performers"
	"github.com/santinopnp/PNPtvLive-bot/internal/tips"
	"github.com/santinopnp/PNPtvLive-bot/pkg/logger"
)

type createPerformerRequest struct {
	Name        string            `json:"name" validate:"required,max=120"`
	Email       string            `json:"email" validate:"required,email"`
	Credentials map[string]string `json:"credentials" validate:"omitempty"`
	MinTip      int64             `json:"min_tip_amount" validate:"omitempty,min=0"`
	Currency    string            `json:"currency" validate:"omitempty,len=3"`
}

type updateSettingsRequest struct {
	MinTip   int64  `json:"min_tip_amount" validate:"min=0"`
	Currency string `json:"currency" validate:"required,len=3"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

type performerResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Active     bool      `json:"active"`
	Processors []string  `json:"processors"`
	MinTip     int64     `json:"min_tip_amount"`
	Currency   string    `json:"currency"`
	TipCount   int       `json:"tip_count"`
	TotalNet   int64     `json:"total_net"`
	CreatedAt  time.Time `json:"created_at"`
}

func toPerformerResponse(p *performers.Performer) performerResponse {
	names := make([]string, 0, len(p.Credentials))
	for name := range p.Credentials {
		names = append(names, name)
	}
	return performerResponse{
		ID:         p.ID,
		Name:       p.Name,
		Email:      p.Email,
		Active:     p.Active,
		Processors: names,
		MinTip:     p.Settings.MinTipAmount,
		Currency:   p.Settings.Currency,
		TipCount:   p.Stats.TipCount,
		TotalNet:   p.Stats.TotalAmount,
		CreatedAt:  p.CreatedAt,
	}
}

// CreatePerformer handles POST /api/v1/performers.
func CreatePerformer(dir *performers.Directory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req createPerformerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		performer, err := dir.Create(ctx, performers.CreateInput{
			Name:        req.Name,
			Email:       req.Email,
			Credentials: req.Credentials,
			Settings: performers.Settings{
				MinTipAmount: req.MinTip,
				Currency:     req.Currency,
			},
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toPerformerResponse(performer))
	}
}

// ListPerformers handles GET /api/v1/performers.
func ListPerformers(dir *performers.Directory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		items, err := dir.List(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out := make([]performerResponse, 0, len(items))
		for _, performer := range items {
			out = append(out, toPerformerResponse(performer))
		}
		responses.WriteSuccess(w, out)
	}
}

// GetPerformer handles GET /api/v1/performers/{performerId}.
func GetPerformer(dir *performers.Directory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		performer, err := dir.Get(ctx, chi.URLParam(r, "performerId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPerformerResponse(performer))
	}
}

// SetPerformerActive handles POST /api/v1/performers/{performerId}/active.
func SetPerformerActive(dir *performers.Directory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req setActiveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		performer, err := dir.SetActive(ctx, chi.URLParam(r, "performerId"), req.Active)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPerformerResponse(performer))
	}
}

// UpdatePerformerSettings handles PUT /api/v1/performers/{performerId}/settings.
func UpdatePerformerSettings(dir *performers.Directory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req updateSettingsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		performer, err := dir.UpdateSettings(ctx, chi.URLParam(r, "performerId"), performers.Settings{
			MinTipAmount: req.MinTip,
			Currency:     req.Currency,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPerformerResponse(performer))
	}
}

// PerformerTips handles GET /api/v1/performers/{performerId}/tips.
func PerformerTips(svc *tips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items, err := svc.ByPerformer(ctx, chi.URLParam(r, "performerId"), limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toTipResponses(items))
	}
}
