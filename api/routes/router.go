package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/angelmondragon/pos-backend/api/controllers"
	catalogcontrollers "github.com/angelmondragon/pos-backend/api/controllers/catalog"
	inventorycontrollers "github.com/angelmondragon/pos-backend/api/controllers/inventory"
	registercontrollers "github.com/angelmondragon/pos-backend/api/controllers/register"
	salescontrollers "github.com/angelmondragon/pos-backend/api/controllers/sales"
	"github.com/angelmondragon/pos-backend/api/middleware"
	"github.com/angelmondragon/pos-backend/internal/auth"
	"github.com/angelmondragon/pos-backend/internal/catalog"
	"github.com/angelmondragon/pos-backend/internal/register"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/internal/stock"
	"github.com/angelmondragon/pos-backend/pkg/auth/session"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/metrics"
	"github.com/angelmondragon/pos-backend/pkg/ratelimit"
	"github.com/angelmondragon/pos-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager sessionManager,
	authService auth.Service,
	registerService auth.RegisterService,
	catalogService catalog.Service,
	salesService sales.Service,
	stockService stock.Service,
	registerSessions register.Service,
	httpMetrics *metrics.HTTPMetrics,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg, httpMetrics))
	r.Use(middleware.SecureHeaders(cfg.Security, cfg.App.IsDev(), logg))
	r.Use(middleware.CORS(cfg.Security.CORSOrigins))
	clientIP := middleware.ClientIP(cfg.Security.TrustProxyHeaders)
	r.Use(middleware.APIRateLimit(cfg.APIRateLimit, clientIP, logg))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisClient,
		}, logg))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.LoginThrottle(loginLimiters(cfg.AuthRateLimit, clientIP, redisClient, logg), logg)).
				Post("/login", controllers.AuthLogin(authService, logg))
			r.Post("/bootstrap", controllers.AuthBootstrap(registerService, authService, logg))
			r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
			r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
				r.Use(middleware.RequireAdmin(logg))
				r.Use(middleware.Idempotency(redisClient, logg))
				r.Post("/register", controllers.AuthRegister(registerService, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
			r.Use(middleware.Idempotency(redisClient, logg))

			r.Route("/catalog", func(r chi.Router) {
				r.Get("/lookup", catalogcontrollers.Lookup(catalogService, logg))
				r.Get("/search", catalogcontrollers.Search(catalogService, logg))
			})

			r.Route("/sales", func(r chi.Router) {
				r.Get("/", salescontrollers.List(salesService, logg))
				r.Post("/", salescontrollers.Create(salesService, logg))
				r.Get("/{ticket}", salescontrollers.Get(salesService, logg))
				r.With(middleware.RequireAdmin(logg)).
					Post("/{ticket}/void", salescontrollers.Void(salesService, logg))
			})

			r.With(middleware.RequireAdmin(logg)).
				Get("/reports/sales", salescontrollers.Report(salesService, logg))

			r.Route("/registers", func(r chi.Router) {
				r.Post("/open", registercontrollers.Open(registerSessions, logg))
				r.Get("/current", registercontrollers.Current(registerSessions, logg))
				r.Get("/{id}", registercontrollers.Get(registerSessions, logg))
				r.Post("/{id}/close", registercontrollers.Close(registerSessions, logg))
			})

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", inventorycontrollers.Levels(stockService, logg))
				r.Get("/movements", inventorycontrollers.Movements(stockService, logg))
				r.Get("/low-stock", inventorycontrollers.LowStock(stockService, logg))
				r.With(middleware.RequireAdmin(logg)).
					Post("/adjust", inventorycontrollers.Adjust(stockService, logg))
			})
		})
	})

	return r
}

func loginLimiters(cfg config.AuthRateLimitConfig, clientIP httprate.KeyFunc, redisClient *redis.Client, logg *logger.Logger) middleware.LoginLimiters {
	limiters := middleware.LoginLimiters{Window: cfg.LoginWindow, ClientIP: clientIP}
	if redisClient == nil {
		return limiters
	}
	ip, err := ratelimit.NewFixedWindow(redisClient, ratelimit.Policy{
		Name:   "login:ip",
		Limit:  cfg.LoginIPLimit,
		Window: cfg.LoginWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "login ip limiter disabled", err)
	} else {
		limiters.IP = ip
	}
	email, err := ratelimit.NewFixedWindow(redisClient, ratelimit.Policy{
		Name:   "login:email",
		Limit:  cfg.LoginEmailLimit,
		Window: cfg.LoginWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "login email limiter disabled", err)
	} else {
		limiters.Email = email
	}
	return limiters
}
