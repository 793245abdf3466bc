package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/openfantasy/draftcore/internal/draft/gateway"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// NewRouter builds the HTTP surface: draft lifecycle, pick commits, slots,
// the sweep trigger, and the websocket subscription endpoint.
func NewRouter(h *Handler, hub *gateway.Hub, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sweep", h.Sweep)

		r.Route("/drafts", func(r chi.Router) {
			r.Post("/", h.CreateDraft)

			r.Route("/{draftID}", func(r chi.Router) {
				r.Get("/", h.GetDraft)
				r.Post("/start", h.StartDraft)
				r.Get("/state", h.GetState)
				r.Get("/results", h.Results)
				r.Post("/pause", h.PauseDraft)
				r.Post("/resume", h.ResumeDraft)

				r.Post("/picks", h.CommitPick)
				r.Get("/picks", h.ListPicks)

				r.Post("/slots/claim", h.ClaimSlot)
				r.Get("/slots", h.ListSlots)

				r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
					id, err := uuid.Parse(chi.URLParam(req, "draftID"))
					if err != nil {
						http.Error(w, "invalid draft id", http.StatusBadRequest)
						return
					}
					if err := hub.Subscribe(w, req, id); err != nil {
						log.Error().Err(err).Msg("websocket subscribe failed")
					}
				})
			})
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}
