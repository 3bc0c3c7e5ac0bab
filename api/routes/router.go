package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/santinopnp/PNPtvLive-bot/api/controllers"
	webhookcontrollers "github.com/santinopnp/PNPtvLive-bot/api/controllers/webhooks"
	"github.com/santinopnp/PNPtvLive-bot/api/middleware"
	"github.com/santinopnp/PNPtvLive-bot/internal/alerting"
	"github.com/santinopnp/PNPtvLive-bot/internal/dispatcher"
	"github.com/santinopnp/PNPtvLive-bot/internal/ledger"
	"github.com/santinopnp/PNPtvLive-bot/internal/performers"
	"github.com/santinopnp/PNPtvLive-bot/internal/replay"
	"github.com/santinopnp/PNPtvLive-bot/internal/tips"
	"github.com/santinopnp/PNPtvLive-bot/pkg/config"
	"github.com/santinopnp/PNPtvLive-bot/pkg/logger"
)

type RouterParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	Dispatcher *dispatcher.Dispatcher
	Guard      replay.Store
	Repo       ledger.Repository
	Tips       *tips.Service
	Performers *performers.Directory
	Counters   middleware.CounterStore
	Sink       alerting.Sink
	Gatherer   prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/health", controllers.Health(cfg, params.Guard, params.Repo, logg))

	if params.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Gatherer, promhttp.HandlerOpts{}))
	}

	admission := middleware.Admission(
		middleware.NewAdmissionPolicy(cfg.Admission, "/health"),
		params.Counters,
		params.Sink,
		logg,
	)

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(admission)
		r.Post("/{processor}", webhookcontrollers.Receive(params.Dispatcher, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tips", func(r chi.Router) {
			r.Post("/", controllers.CreateTip(params.Tips, logg))
			r.Get("/", controllers.RecentTips(params.Tips, logg))
			r.Get("/stats", controllers.TipStats(params.Tips, logg))
			r.Get("/{tipId}", controllers.GetTip(params.Tips, logg))
		})
		r.Route("/performers", func(r chi.Router) {
			r.Post("/", controllers.CreatePerformer(params.Performers, logg))
			r.Get("/", controllers.ListPerformers(params.Performers, logg))
			r.Route("/{performerId}", func(r chi.Router) {
				r.Get("/", controllers.GetPerformer(params.Performers, logg))
				r.Post("/active", controllers.SetPerformerActive(params.Performers, logg))
				r.Put("/settings", controllers.UpdatePerformerSettings(params.Performers, logg))
				r.Get("/tips", controllers.PerformerTips(params.Tips, logg))
			})
		})
	})

	return r
}
