// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"bowlsbackend/internal/account"
	"bowlsbackend/internal/auth"
	"bowlsbackend/internal/checkout"
	"bowlsbackend/internal/config"
	"bowlsbackend/internal/docstore"
	"bowlsbackend/internal/fulfill"
	"bowlsbackend/internal/httpapi"
	"bowlsbackend/internal/logger"
	"bowlsbackend/internal/payments"
	"bowlsbackend/internal/store"
	"bowlsbackend/internal/user"
	"bowlsbackend/internal/waitlist"
	"bowlsbackend/internal/webhook"
)

// App owns the HTTP server lifecycle.
type App struct {
	addr    string
	handler http.Handler
}

func main() {
	config.LoadEnv()

	if err := logger.Setup(config.LoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.LogFatal("Failed to load configuration: %v", err)
	}

	docs, err := docstore.Open(cfg.DatabasePath)
	if err != nil {
		logger.LogFatal("Failed to open document store: %v", err)
	}
	defer docs.Close()

	processor := payments.NewStripeClient(cfg.StripeSecretKey)

	app := &App{
		addr:    cfg.Addr(),
		handler: routes(cfg, docs, processor),
	}
	app.Run()
}

// routes assembles the API surface. Webhook and checkout endpoints are
// public; the callable endpoints require a bearer token.
func routes(cfg *config.Config, docs *docstore.Store, processor payments.Client) http.Handler {
	accountSvc := &account.Service{Docs: docs, Processor: processor, Cfg: cfg}
	checkoutSvc := &checkout.Service{
		Docs:       docs,
		Processor:  processor,
		SuccessURL: cfg.CheckoutSuccessURL(),
		CancelURL:  cfg.CheckoutCancelURL(),
	}
	reconciler := &fulfill.Reconciler{Docs: docs, Processor: processor}
	userSvc := &user.Service{Docs: docs, Accounts: accountSvc, Processor: processor}
	storeSvc := &store.Service{Docs: docs}
	waitlistSvc := &waitlist.Service{Docs: docs}

	paymentHook := webhook.NewPaymentRouter(cfg.PaymentWebhookSecret, reconciler)
	connectHook := webhook.NewConnectRouter(cfg.ConnectWebhookSecret, accountSvc)

	r := chi.NewRouter()
	r.Use(httpapi.WithRequestID)
	r.Use(httpapi.LogRequests)
	r.Use(httpapi.Recover)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/checkout", checkout.Handler(checkoutSvc))
		r.Post("/waitlist", waitlist.JoinHandler(waitlistSvc))
		r.Handle("/webhooks/payment", paymentHook)
		r.Handle("/webhooks/connect", connectHook)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.JWTSecret))

			r.Post("/users", user.CreateHandler(userSvc))
			r.Put("/users", user.UpdateHandler(userSvc))
			r.Delete("/users", user.DeleteHandler(userSvc))
			r.Post("/users/setup", user.SetupHandler(userSvc))
			r.Post("/users/account-link", user.AccountLinkHandler(userSvc))

			r.Put("/stores", store.UpdateHandler(storeSvc))
		})
	})

	return r
}

// Run starts the server and blocks until a shutdown signal arrives.
func (a *App) Run() {
	server := &http.Server{
		Addr:         a.addr,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.LogInfo("Starting server on %s", a.addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogFatal("Server failed: %v", err)
		}
	}()

	<-stop
	logger.LogInfo("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.LogError("Server shutdown error: %v", err)
	} else {
		logger.LogInfo("Server shut down gracefully")
	}
}
