package controllers

import (
	"net/http"

	"github.com/lumehaus/liveshop-backend/api/middleware"
	"github.com/lumehaus/liveshop-backend/api/responses"
	"github.com/lumehaus/liveshop-backend/api/validators"
	"github.com/lumehaus/liveshop-backend/internal/scan"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
)

type scanRequest struct {
	Payload string `json:"payload" validate:"required"`
}

// HandleScan resolves a scanner payload against the event's bag set and
// separates every pending unit of the matched bag.
func HandleScan(svc scan.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := pathUUID(r, "eventID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req scanRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.Handle(r.Context(), eventID, req.Payload, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

func ScanTrail(svc scan.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, svc.Trail())
	}
}

func ResetScanTrail(svc scan.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.ResetTrail()
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}
