package router

import (
	"net/http"

	"github.com/boosthive/backend/internal/auth"
	"github.com/boosthive/backend/internal/dashboard"
)

// New returns an http.Handler that serves the account API under /api/v1.
func New(authHandler *auth.Handler, dashHandler *dashboard.Handler) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"
	mux.HandleFunc(base+"/auth/register", authHandler.Register)
	mux.HandleFunc(base+"/auth/login", authHandler.Login)

	mux.HandleFunc(base+"/account/me", methodGET(dashHandler.GetMe))
	mux.HandleFunc(base+"/wallet", methodGET(dashHandler.ListWallet))
	mux.HandleFunc(base+"/trust-log", methodGET(dashHandler.ListTrustLog))
	mux.HandleFunc(base+"/bans", methodGET(dashHandler.ListBans))
	mux.HandleFunc(base+"/notifications", methodGET(dashHandler.ListNotifications))

	return mux
}

func methodGET(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}
