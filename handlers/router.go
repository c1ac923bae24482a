package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configura o roteador HTTP.
type RouterOptions struct {
	Logger           *slog.Logger
	AllowedOrigins   []string
	RequireSignature bool
	SignatureWindow  time.Duration // 0 usa DefaultSignatureWindow
}

// NewRouter monta as rotas da API.
func NewRouter(stars *StarHandler, accounts *AccountHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderCaller, HeaderSignature, HeaderTimestamp},
		MaxAge:         300,
	}))

	var guard *ReplayGuard
	if opts.RequireSignature {
		guard = NewReplayGuard(opts.SignatureWindow)
	}
	auth := RequireCaller(guard)

	r.Get("/collection", stars.GetCollection)
	r.Get("/market", stars.GetMarket)

	r.Route("/stars", func(r chi.Router) {
		r.With(auth).Post("/", stars.CreateStar)
		r.With(auth).Post("/exchange", stars.ExchangeStars)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", stars.GetStar)
			r.Get("/name", stars.LookUpStar)
			r.Get("/owner", stars.OwnerOf)
			r.Get("/sale", stars.GetPrice)
			r.Get("/history", stars.GetHistory)
			r.With(auth).Post("/sale", stars.PutUpForSale)
			r.With(auth).Post("/buy", stars.BuyStar)
			r.With(auth).Post("/transfer", stars.TransferStar)
			r.With(auth).Post("/approve", stars.Approve)
		})
	})

	r.Route("/accounts", func(r chi.Router) {
		r.With(auth).Post("/withdraw", accounts.Withdraw)
		r.Get("/{id}", accounts.GetAccount)
		r.Get("/{id}/stars", accounts.GetAccountStars)
		r.Post("/{id}/deposit", accounts.Deposit)
	})

	return r
}

// RequestLogger registra cada requisição no logger estruturado.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("requisição",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
