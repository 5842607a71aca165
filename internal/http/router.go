// Package apihttp wires the chi router and middleware chain.
package apihttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/walletcore/internal/auth"
	"github.com/example/walletcore/internal/handlers"
	"github.com/example/walletcore/internal/rate"
)

// Deps carries everything the router mounts.
type Deps struct {
	Wallet *handlers.WalletHandler
	Verify *handlers.VerifyHandler
	Signup *handlers.SignupHandler
	Admin  *handlers.AdminHandler

	Limiter *rate.LimiterMap
	Store   auth.KeyStore
	Log     *zap.Logger
}

// NewRouter assembles routes and middlewares.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(d.Log))
	r.Use(CORS)
	if d.Limiter != nil {
		r.Use(RateLimit(d.Limiter))
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if d.Store != nil {
			if err := d.Store.Ping(req.Context()); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"status":"unhealthy"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if d.Signup != nil {
		r.Post("/public/signup", d.Signup.ServeHTTP)
	}
	if d.Admin != nil {
		r.Post("/admin/create-key", d.Admin.ServeHTTP)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(Auth(d.Store))
		api.Route("/wallet/{address}", func(wr chi.Router) {
			wr.Get("/", d.Wallet.Complete)
			wr.Get("/holdings", d.Wallet.Holdings)
			wr.Get("/balance", d.Wallet.Balance)
			wr.Get("/transactions", d.Wallet.Transactions)
			wr.Post("/snapshot", d.Verify.Snapshot)
		})
		api.Post("/verify", d.Verify.Verify)
	})

	return r
}
