package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ovenlight/pizzeria-backend/api/controllers"
	"github.com/ovenlight/pizzeria-backend/api/middleware"
	cartsvc "github.com/ovenlight/pizzeria-backend/internal/cart"
	"github.com/ovenlight/pizzeria-backend/internal/catalog"
	ordersvc "github.com/ovenlight/pizzeria-backend/internal/orders"
	"github.com/ovenlight/pizzeria-backend/internal/tokens"
	"github.com/ovenlight/pizzeria-backend/internal/users"
	"github.com/ovenlight/pizzeria-backend/pkg/config"
	"github.com/ovenlight/pizzeria-backend/pkg/db"
	"github.com/ovenlight/pizzeria-backend/pkg/logger"
	"github.com/ovenlight/pizzeria-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	menu *catalog.Catalog,
	userService users.Service,
	tokenService tokens.Service,
	cartService cartsvc.Service,
	orderService ordersvc.Service,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	signupPolicy := middleware.NewAuthRateLimitPolicy(
		"signup",
		cfg.AuthRateLimit.SignupWindow,
		cfg.AuthRateLimit.SignupIPLimit,
		cfg.AuthRateLimit.SignupEmailLimit,
	)

	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = redisClient
	}

	authed := middleware.Auth(tokenService, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1/users", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(signupPolicy, limiter, logg)).Post("/", controllers.UserSignup(userService, logg))
		r.With(authed).Get("/", controllers.UserGet(userService, logg))
		r.With(authed).Put("/", controllers.UserUpdate(userService, logg))
		r.With(authed).Delete("/", controllers.UserDelete(userService, logg))
	})

	r.Route("/v1/tokens", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/", controllers.TokenCreate(tokenService, logg))
		r.Put("/", controllers.TokenRenew(tokenService, logg))
		r.With(authed).Delete("/", controllers.TokenRevoke(tokenService, logg))
	})

	r.With(authed).Get("/v1/menu", controllers.MenuList(menu))

	r.Route("/v1/cart", func(r chi.Router) {
		r.Use(authed)
		r.Post("/", controllers.CartSet(cartService, logg))
		r.Get("/", controllers.CartGet(cartService, logg))
		r.Delete("/", controllers.CartClear(cartService, logg))
	})

	r.Route("/v1/orders", func(r chi.Router) {
		r.Use(authed)
		r.Post("/", controllers.OrderPlace(orderService, logg))
		r.Get("/", controllers.OrderList(orderService, logg))
		r.Put("/", controllers.OrderUpdate(orderService, logg))
		r.Delete("/", controllers.OrderCancel(orderService, logg))
	})

	return r
}
