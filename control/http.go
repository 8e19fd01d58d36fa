package control

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/payfill/kit"
)

// Router returns the HTTP API:
//
//	GET  /health
//	POST /fill      {"settings": {...}}       forced scan
//	POST /cards     {"bin": "...", "length": 16, "save": true}
//	GET  /settings
//	PUT  /settings  {"settings": {...}}
//	GET  /scans?limit=N
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(propagateRequestID)
	r.Use(securityHeaders)
	r.Use(middleware.RequestSize(DefaultMaxBody))
	r.Use(middleware.GetHead)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		kit.WriteJSON(w, http.StatusOK, s.Health())
	})
	r.Post("/fill", kit.HTTPHandler(s.wrap("fill_now", s.fillEndpoint()), kit.DecodeJSONBody[FillRequest], Status))
	r.Post("/cards", kit.HTTPHandler(s.wrap("generate_card", s.cardEndpoint()), kit.DecodeJSONBody[CardRequest], Status))
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", kit.HTTPHandler(s.wrap("get_settings", s.getSettingsEndpoint()), kit.NoBody, Status))
		r.Put("/", kit.HTTPHandler(s.wrap("save_settings", s.saveSettingsEndpoint()), kit.DecodeJSONBody[SettingsRequest], Status))
	})
	r.Get("/scans", kit.HTTPHandler(s.wrap("recent_scans", s.scansEndpoint()), decodeScans, Status))
	return r
}

// propagateRequestID copies chi's request ID into the header kit reads.
func propagateRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" && r.Header.Get("X-Request-Id") == "" {
			r.Header.Set("X-Request-Id", id)
		}
		next.ServeHTTP(w, r)
	})
}

func decodeScans(r *http.Request) (any, error) {
	req := &ScansRequest{}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		req.Limit = n
	}
	return req, nil
}
