package router

import (
	"net/http"

	"github.com/HaruCodeTI/manifeste/api/internal/auth"
	"github.com/HaruCodeTI/manifeste/api/internal/config"
	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/HaruCodeTI/manifeste/api/internal/handler"
	mw "github.com/HaruCodeTI/manifeste/api/internal/middleware"
	"github.com/HaruCodeTI/manifeste/api/internal/notify"
	"github.com/HaruCodeTI/manifeste/api/internal/payment"
	"github.com/HaruCodeTI/manifeste/api/internal/service"
	"github.com/HaruCodeTI/manifeste/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// New creates a Chi router with all application routes wired up.
// payments may be nil when Stripe is not configured: card checkout is then
// refused and the webhook route is not mounted.
func New(cfg *config.Config, logger *zap.Logger, pool *pgxpool.Pool, hub *ws.Hub, payments *payment.StripeProvider, mailer notify.Sender) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Services
	queries := database.New(pool)
	orderService := service.NewOrderService(
		pool,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		cfg.PriceTolerance,
		hub,
		logger,
	)
	statusService := service.NewStatusService(
		pool,
		func(db database.DBTX) service.StatusStore { return database.New(db) },
		hub,
		logger,
	)
	couponService := service.NewCouponService(queries)
	sessions := auth.NewSessions(queries, cfg.JWTSecret, cfg.AdminSessionTTL)
	notifier := notify.NewNotifier(queries, mailer, cfg.MailFrom, cfg.StoreWhatsApp, logger)

	var checkout handler.CheckoutProvider
	if payments != nil {
		checkout = payments
	}

	// Storefront routes (public)
	handler.NewOrderHandler(orderService, statusService, checkout, queries, logger).RegisterRoutes(r)
	handler.NewCouponHandler(couponService, logger).RegisterRoutes(r)
	handler.NewNotifyHandler(notifier, logger).RegisterRoutes(r)
	handler.NewPricingHandler().RegisterRoutes(r)
	if payments != nil {
		handler.NewWebhookHandler(payments, statusService, logger).RegisterRoutes(r)
	} else {
		logger.Warn("stripe not configured, card checkout and payment webhook disabled")
	}

	// WebSocket routes (handle auth internally via query params)
	r.Get("/ws/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeCustomer(hub, queries, w, r)
	})
	r.Get("/ws/admin/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeAdmin(hub, sessions, w, r)
	})

	// Admin routes
	authHandler := handler.NewAuthHandler(sessions, logger)
	r.Post("/admin/auth/login", authHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(sessions, logger))

		r.Post("/admin/auth/logout", authHandler.Logout)

		adminOrderHandler := handler.NewAdminOrderHandler(queries, statusService, notifier, logger)
		r.Route("/admin/orders", adminOrderHandler.RegisterRoutes)
	})

	logger.Info("router initialized")
	return r
}
