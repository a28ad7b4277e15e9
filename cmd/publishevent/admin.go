package main

import (
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/resilientfanout/auth"
)

// withAdminAuth authenticates the caller via a.authenticator and, for
// actions requiring it, authorizes the resulting identity via
// a.authorizer before invoking next.
func (a *application) withAdminAuth(resource, action string, next http.HandlerFunc) http.Handler {
	return auth.WithAuthHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := &auth.AuthRequest{Headers: r.Header, Resource: resource}

		result, err := a.authenticator.Authenticate(r.Context(), req)
		if err != nil {
			http.Error(w, "authentication error", http.StatusInternalServerError)
			return
		}
		if !result.Authenticated {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if action != "" {
			azReq := &auth.AuthzRequest{Subject: result.Identity, Resource: resource, Action: action}
			if err := a.authorizer.Authorize(r.Context(), azReq); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		ctx := auth.WithIdentity(r.Context(), result.Identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	}))
}

// handleTrigger manually invokes the pipeline driver outside its normal
// schedule. Any recognized identity may call it.
func (a *application) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if err := a.driver.Run(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type circuitResponse struct {
	State string `json:"state"`
}

// handleCircuit reports the breaker's state on GET, and resets it on POST
// (the reset action is gated behind the operator role by the router).
func (a *application) handleCircuit(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(circuitResponse{State: a.publisher.CircuitState()})
	case http.MethodPost:
		a.publisher.ResetCircuit()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(circuitResponse{State: a.publisher.CircuitState()})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// registerAdminRoutes wires the authenticated control surface onto mux.
// /admin/trigger requires only a recognized identity; /admin/circuit's
// reset path additionally requires the operator role when resetting, so the
// GET and POST cases are routed through different authorization actions.
func (a *application) registerAdminRoutes(mux *http.ServeMux) {
	mux.Handle("/admin/trigger", a.withAdminAuth("admin:trigger", "", http.HandlerFunc(a.handleTrigger)))

	circuitHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := ""
		if r.Method == http.MethodPost {
			action = "reset"
		}
		a.withAdminAuth("admin:circuit", action, a.handleCircuit).ServeHTTP(w, r)
	})
	mux.Handle("/admin/circuit", circuitHandler)
}
