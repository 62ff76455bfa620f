package controllers

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/lumehaus/liveshop-backend/api/middleware"
	"github.com/lumehaus/liveshop-backend/api/responses"
	"github.com/lumehaus/liveshop-backend/internal/bags"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	pkgerrors "github.com/lumehaus/liveshop-backend/pkg/errors"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
)

// StartSeparation numbers every unnumbered bag of the event and returns the
// full bag set.
func StartSeparation(svc bags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := pathUUID(r, "eventID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		set, err := svc.StartSeparation(r.Context(), eventID, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, set)
	}
}

// AssignBagNumber gives a late-joining cart the next number in sequence.
func AssignBagNumber(svc bags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := pathUUID(r, "cartID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AssignNext(r.Context(), cartID, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ListBags returns the event's bag set, optionally filtered by separation
// status, searched by bag number or customer handle, and re-sorted.
func ListBags(svc bags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := pathUUID(r, "eventID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		set, err := svc.BagSet(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
			filtered := set[:0]
			for _, bag := range set {
				if string(bag.Status) == status {
					filtered = append(filtered, bag)
				}
			}
			set = filtered
		}

		if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
			needle := strings.ToLower(search)
			filtered := set[:0]
			for _, bag := range set {
				if bagMatches(bag, needle) {
					filtered = append(filtered, bag)
				}
			}
			set = filtered
		}

		switch strings.TrimSpace(r.URL.Query().Get("sort")) {
		case "", "bag_number":
		case "pending_desc":
			sort.SliceStable(set, func(i, j int) bool {
				return set[i].TotalUnits-set[i].SeparatedUnits > set[j].TotalUnits-set[j].SeparatedUnits
			})
		case "attention_first":
			sort.SliceStable(set, func(i, j int) bool {
				return rankStatus(set[i].Status) < rankStatus(set[j].Status)
			})
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown sort"))
			return
		}

		responses.WriteSuccess(w, set)
	}
}

func BagDetail(svc bags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := pathUUID(r, "cartID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.BagByID(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func BagKPIs(svc bags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := pathUUID(r, "eventID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kpis, err := svc.KPIs(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, kpis)
	}
}

func ProductsView(svc bags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := pathUUID(r, "eventID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groups, err := svc.ByProduct(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, groups)
	}
}

func bagMatches(bag bags.BagView, needle string) bool {
	if bag.BagNumber != nil && strconv.Itoa(*bag.BagNumber) == needle {
		return true
	}
	if strings.Contains(strings.ToLower(bag.Customer.InstagramHandle), needle) {
		return true
	}
	return bag.Customer.Name != nil && strings.Contains(strings.ToLower(*bag.Customer.Name), needle)
}

// attention first, then the ones still in motion, finished last
func rankStatus(status enums.SeparationBagStatus) int {
	switch status {
	case enums.SeparationBagAttention:
		return 0
	case enums.SeparationBagSeparating:
		return 1
	case enums.SeparationBagPending:
		return 2
	case enums.SeparationBagSeparated:
		return 3
	default:
		return 4
	}
}
