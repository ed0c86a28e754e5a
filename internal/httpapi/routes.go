package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tactics-arena/arena-backend/internal/hub"
	"github.com/tactics-arena/arena-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware(allowedOrigins))

	// Public routes
	r.Post("/matches", CreateMatch(h))
	r.Get("/matches", ListMatches(h))
	r.Get("/matches/{id}", GetMatch(h))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, allowedOrigins))
	return r
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

			// Preflight requests stop here
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
