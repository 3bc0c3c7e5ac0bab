package controllers

import (
	"net/http"

	"github.com/santinopnp/PNPtvLive-bot/api/responses"
	"github.com/santinopnp/PNPtvLive-bot/internal/ledger"
	"github.com/santinopnp/PNPtvLive-bot/internal/replay"
	"github.com/santinopnp/PNPtvLive-bot/pkg/config"
	"github.com/santinopnp/PNPtvLive-bot/pkg/logger"
)

// Health reports liveness, the tracked replay-record count, how many tips
// the ledger holds, and whether each processor's secret is configured.
// Secret values themselves never appear in the response.
func Health(cfg *config.Config, guard replay.Store, repo ledger.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		replayRecords, err := guard.Len(ctx)
		if err != nil {
			replayRecords = -1
		}
		tipCount := 0
		if repo != nil {
			if count, countErr := repo.Count(ctx); countErr == nil {
				tipCount = count
			}
		}

		responses.WriteSuccess(w, map[string]any{
			"status":         "live",
			"env":            cfg.App.Env,
			"replay_records": replayRecords,
			"tracked_tips":   tipCount,
			"processors": map[string]bool{
				"bold":   cfg.Bold.Enabled && cfg.Bold.Configured(),
				"paypal": cfg.PayPal.Enabled && cfg.PayPal.Configured(),
			},
		})
	}
}
