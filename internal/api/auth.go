package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bher20/tariffmatrix/internal/auth"
	"github.com/bher20/tariffmatrix/internal/storage"
)

func registerAuthRoutes(mux *http.ServeMux, authSvc *auth.Service, st storage.Storage) {
	// POST /api/v1/auth/register
	// Open for bootstrap while no users exist; afterwards requires a token
	// with settings write (admin).
	mux.HandleFunc("/api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		users, err := st.ListUsers(r.Context())
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if len(users) > 0 {
			authSvc.Middleware(authSvc.RequirePermission("settings", "write",
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					handleRegister(w, r, authSvc, false)
				}))).ServeHTTP(w, r)
			return
		}

		// First user becomes the admin.
		handleRegister(w, r, authSvc, true)
	})

	// POST /api/v1/auth/login exchanges credentials for a new API token.
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Username  string `json:"username"`
			Password  string `json:"password"`
			TokenName string `json:"token_name"`
			ExpiresIn string `json:"expires_in"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		u, err := authSvc.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}

		expiresAt, err := auth.ParseExpirationDuration(req.ExpiresIn)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		name := req.TokenName
		if name == "" {
			name = "login"
		}
		t, raw, err := authSvc.CreateToken(r.Context(), u.ID, name, u.Role, expiresAt)
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Token     string         `json:"token"`
			TokenMeta *storage.Token `json:"token_meta"`
			User      *storage.User  `json:"user"`
		}{Token: raw, TokenMeta: t, User: u})
	})

	// GET /api/v1/tokens lists the caller's tokens.
	// DELETE /api/v1/tokens/{id} revokes one.
	mux.Handle("/api/v1/tokens", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		tokens, err := st.ListTokens(r.Context(), token.UserID)
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokens)
	})))

	mux.Handle("/api/v1/tokens/", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/api/v1/tokens/")
		if id == "" {
			http.NotFound(w, r)
			return
		}

		// Only the owner or an admin can revoke a token.
		if !ownsToken(r.Context(), st, token.UserID, id) {
			if allowed, err := authSvc.Enforce(token.UserID, "settings", "write"); err != nil || !allowed {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}

		if err := st.DeleteToken(r.Context(), id); err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})))
}

func handleRegister(w http.ResponseWriter, r *http.Request, authSvc *auth.Service, bootstrap bool) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}
	if bootstrap {
		req.Role = "admin"
	} else if req.Role == "" {
		req.Role = "viewer"
	}

	u, err := authSvc.Register(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(u)
}

func ownsToken(ctx context.Context, st storage.Storage, userID, tokenID string) bool {
	tokens, err := st.ListTokens(ctx, userID)
	if err != nil {
		return false
	}
	for _, t := range tokens {
		if t.ID == tokenID {
			return true
		}
	}
	return false
}
