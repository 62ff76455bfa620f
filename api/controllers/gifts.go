package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lumehaus/liveshop-backend/api/middleware"
	"github.com/lumehaus/liveshop-backend/api/responses"
	"github.com/lumehaus/liveshop-backend/api/validators"
	"github.com/lumehaus/liveshop-backend/internal/gifts"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
)

type manualGiftRequest struct {
	GiftID   uuid.UUID  `json:"gift_id" validate:"required"`
	Source   string     `json:"source" validate:"required,oneof=manual raffle"`
	SourceID *uuid.UUID `json:"source_id"`
	Qty      int        `json:"qty" validate:"omitempty,min=1"`
}

// EvaluateGifts reconciles the cart's awards against the active rule set.
func EvaluateGifts(eng gifts.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := pathUUID(r, "cartID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := eng.Evaluate(r.Context(), cartID, middleware.ActorFromContext(r.Context()))
		if summary == nil && err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// per-rule failures are already logged; the pass is best effort
		responses.WriteSuccess(w, summary)
	}
}

func ListAppliedGifts(eng gifts.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := pathUUID(r, "cartID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		applied, err := eng.AppliedGifts(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, applied)
	}
}

// AddManualGift awards a gift outside the rule engine (manual or raffle).
func AddManualGift(eng gifts.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := pathUUID(r, "cartID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req manualGiftRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		award, err := eng.AddManualGift(r.Context(), gifts.ManualGiftInput{
			CartID:   cartID,
			GiftID:   req.GiftID,
			Source:   enums.GiftSource(req.Source),
			SourceID: req.SourceID,
			Qty:      req.Qty,
			Actor:    middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, award)
	}
}
