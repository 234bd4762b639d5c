package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/cardkeeper/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса cardkeeper.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/profiles", h.CreateProfile)
			r.Get("/profiles", h.GetProfiles)
			r.Post("/profiles/{profileID}/cards", h.CreateCard)
			r.Get("/profiles/{profileID}/cards", h.GetCards)
			r.Get("/profiles/{profileID}/events", h.GetProfileEvents)
			r.Get("/profiles/{profileID}/five-twenty-four", h.GetAdmissionWindow)
			r.Get("/profiles/{profileID}/timeline", h.GetTimeline)

			r.Get("/cards/{cardID}", h.GetCard)
			r.Post("/cards/{cardID}/close", h.CloseCard)
			r.Get("/cards/{cardID}/projection", h.GetCardProjection)

			r.Post("/cards/{cardID}/benefits", h.CreateBenefit)
			r.Get("/cards/{cardID}/benefits", h.GetBenefits)
			r.Put("/cards/{cardID}/benefits/{benefitID}/usage", h.UpdateBenefitUsage)

			r.Post("/cards/{cardID}/bonuses", h.CreateBonus)
			r.Get("/cards/{cardID}/bonuses", h.GetBonuses)
			r.Post("/cards/{cardID}/bonuses/{bonusID}/resolve", h.ResolveBonus)
			r.Post("/cards/{cardID}/retention-offers", h.CreateRetentionOffer)

			r.Post("/cards/{cardID}/events", h.CreateEvent)
			r.Get("/cards/{cardID}/events", h.GetCardEvents)

			r.Get("/templates", h.GetTemplates)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
