package webhooks

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/santinopnp/PNPtvLive-bot/api/middleware"
	"github.com/santinopnp/PNPtvLive-bot/api/responses"
	"github.com/santinopnp/PNPtvLive-bot/internal/dispatcher"
	pkgerrors "github.com/santinopnp/PNPtvLive-bot/pkg/errors"
	"github.com/santinopnp/PNPtvLive-bot/pkg/logger"
)

// maxBodyBytes bounds webhook payloads before any parsing.
const maxBodyBytes = 1 << 20

// Receive handles POST /webhooks/{processor}. The raw body bytes reach the
// dispatcher untouched: signature verification runs over exactly what was
// sent on the wire.
func Receive(d *dispatcher.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if d == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatcher unavailable"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}
		if len(body) > maxBodyBytes {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large"))
			return
		}

		summary, err := d.Dispatch(ctx, dispatcher.Inbound{
			Processor:  chi.URLParam(r, "processor"),
			Header:     r.Header,
			Body:       body,
			SourceAddr: middleware.ClientIP(r),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
