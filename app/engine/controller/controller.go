package controller

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/openrounds/roundsx/app/engine/types"
	"github.com/openrounds/roundsx/pkg/utils"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller. If the app carries no authorizer, a
// static bearer-token check (API_TOKEN) stands in; real policy is the
// caller's concern, the engine only runs the predicate.
func NewController(app *types.App) *Controller {
	if app.Authorize == nil {
		token := utils.Env("API_TOKEN", "devtoken")
		app.Authorize = func(r *http.Request) bool {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
		}
	}
	return &Controller{App: app}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAuth runs the caller-supplied permission check.
func (c *Controller) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.App.Authorize(r) {
			c.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the engine routes.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.Handle("/api/ingest", c.RequireAuth(http.HandlerFunc(c.HandleIngest))).Methods(http.MethodPost)

	r.Handle("/api/rounds/{round}/streams/process", c.RequireAuth(http.HandlerFunc(c.HandleProcessStreams))).Methods(http.MethodPost)

	r.Handle("/api/teams", c.RequireAuth(http.HandlerFunc(c.HandleCreateTeam))).Methods(http.MethodPost)
	r.Handle("/api/teams/{id}", c.RequireAuth(http.HandlerFunc(c.HandleRetireTeam))).Methods(http.MethodDelete)
	r.Handle("/api/teams/{id}/status", c.RequireAuth(http.HandlerFunc(c.HandleTeamStatus))).Methods(http.MethodGet)
	r.Handle("/api/orgs/{org}/teams/history", c.RequireAuth(http.HandlerFunc(c.HandleTeamHistory))).Methods(http.MethodGet)

	r.Handle("/api/attest/publish", c.RequireAuth(http.HandlerFunc(c.HandlePublish))).Methods(http.MethodPost)
	r.Handle("/api/attest/revoke", c.RequireAuth(http.HandlerFunc(c.HandleRevoke))).Methods(http.MethodPost)

	return r, nil
}

func (c *Controller) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		c.App.Logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (c *Controller) writeError(w http.ResponseWriter, status int, msg string) {
	c.writeJSON(w, status, map[string]string{"error": msg})
}
