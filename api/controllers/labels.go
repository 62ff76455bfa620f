package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lumehaus/liveshop-backend/api/middleware"
	"github.com/lumehaus/liveshop-backend/api/responses"
	"github.com/lumehaus/liveshop-backend/api/validators"
	"github.com/lumehaus/liveshop-backend/internal/labels"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
)

type printBatchRequest struct {
	CartIDs []uuid.UUID `json:"cart_ids" validate:"required,min=1"`
}

// PrintLabel emits a render job for one bag and records the print.
func PrintLabel(svc labels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := pathUUID(r, "cartID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := svc.PrintLabel(r.Context(), cartID, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, job)
	}
}

// PrintBatch prints a set of bags, reporting per-bag failures.
func PrintBatch(svc labels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req printBatchRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PrintBatch(r.Context(), req.CartIDs, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
