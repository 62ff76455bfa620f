package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumehaus/liveshop-backend/api/controllers"
	"github.com/lumehaus/liveshop-backend/api/middleware"
	"github.com/lumehaus/liveshop-backend/internal/bags"
	"github.com/lumehaus/liveshop-backend/internal/gifts"
	"github.com/lumehaus/liveshop-backend/internal/labels"
	"github.com/lumehaus/liveshop-backend/internal/scan"
	"github.com/lumehaus/liveshop-backend/internal/separation"
	"github.com/lumehaus/liveshop-backend/pkg/config"
	"github.com/lumehaus/liveshop-backend/pkg/db"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
	"github.com/lumehaus/liveshop-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	separationService separation.Service,
	bagsService bags.Service,
	giftsEngine gifts.Engine,
	labelsService labels.Service,
	scanService scan.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/events/{eventID}", func(r chi.Router) {
			r.Post("/separation/start", controllers.StartSeparation(bagsService, logg))
			r.Get("/bags", controllers.ListBags(bagsService, logg))
			r.Get("/bags/kpis", controllers.BagKPIs(bagsService, logg))
			r.Get("/products", controllers.ProductsView(bagsService, logg))
			r.Post("/scan", controllers.HandleScan(scanService, logg))
		})

		r.Route("/items/{itemID}", func(r chi.Router) {
			r.Post("/separate", controllers.SeparateItem(separationService, logg))
			r.Post("/cancel", controllers.CancelItem(separationService, logg))
			r.Post("/quantity", controllers.ReduceQuantity(separationService, logg))
			r.Post("/confirm-removal", controllers.ConfirmRemoval(separationService, logg))
			r.Post("/unconfirm-removal", controllers.UnconfirmRemoval(separationService, logg))
			r.Post("/reallocate", controllers.ReallocateItem(separationService, logg))
		})

		r.Post("/attention/{logID}/resolve", controllers.ResolveAttention(separationService, logg))

		r.Route("/bags/{cartID}", func(r chi.Router) {
			r.Get("/", controllers.BagDetail(bagsService, logg))
			r.Post("/assign-number", controllers.AssignBagNumber(bagsService, logg))
			r.Post("/separate", controllers.SeparateBag(separationService, logg))
			r.Post("/complete", controllers.CompleteBag(separationService, logg))
			r.Post("/label/print", controllers.PrintLabel(labelsService, logg))
		})

		r.Post("/labels/print-batch", controllers.PrintBatch(labelsService, logg))

		r.Route("/scan", func(r chi.Router) {
			r.Get("/trail", controllers.ScanTrail(scanService, logg))
			r.Delete("/trail", controllers.ResetScanTrail(scanService, logg))
		})

		r.Route("/carts/{cartID}/gifts", func(r chi.Router) {
			r.Get("/", controllers.ListAppliedGifts(giftsEngine, logg))
			r.Post("/", controllers.AddManualGift(giftsEngine, logg))
			r.Post("/evaluate", controllers.EvaluateGifts(giftsEngine, logg))
		})
	})

	return r
}
