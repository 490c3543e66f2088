package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/infra/config"
	"github.com/busline/backoffice-iam/internal/transport/http/handlers"
	"github.com/busline/backoffice-iam/internal/transport/http/middleware"
)

// SessionService validates bearer tokens and drives session lifecycle endpoints.
type SessionService interface {
	middleware.SessionValidator
	handlers.SessionController
}

// PermissionResolver answers single checks and whole effective sets.
type PermissionResolver interface {
	middleware.Authorizer
	handlers.EffectiveResolver
}

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth            handlers.Authenticator
	Sessions        SessionService
	Resolver        PermissionResolver
	Roles           handlers.RoleManager
	AdminOverrides  handlers.OverrideManager
	VendorOverrides handlers.OverrideManager
	Audit           handlers.AuditReader
	AuditQueue      middleware.AuditEnqueuer
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Catalog     *domain.Catalog
	RateLimiter *middleware.RateLimiter
	HTTPMetrics *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Services    ServiceSet
	Checks      map[string]handlers.HealthChecker
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Catalog == nil {
		deps.Catalog = domain.DefaultCatalog()
	}
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())
	if deps.Config != nil && len(deps.Config.App.CORSOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.CORSOrigins))
	}

	healthHandler := handlers.NewHealthHandler(deps.Checks)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(metricsHandler(deps.Gatherer)))

	svc := deps.Services
	api := r.Group("/api/v1")
	api.Use(middleware.AuditTrail(svc.AuditQueue, deps.Logger))
	{
		if svc.Auth != nil {
			authHandler := handlers.NewAuthHandler(svc.Auth)
			authHandler.RegisterRoutes(api.Group("/auth"), buildLoginMiddlewares(deps)...)
		}

		if svc.Sessions == nil {
			return r
		}
		authMiddleware := middleware.RequireAuth(svc.Sessions)

		sessionHandler := handlers.NewSessionHandler(svc.Sessions)
		sessionHandler.RegisterPublicRoutes(api.Group("/sessions"))
		sessionHandler.RegisterRoutes(api.Group("/sessions", authMiddleware))

		if svc.Resolver == nil {
			return r
		}
		guard := func(perm domain.PermissionID) gin.HandlerFunc {
			return middleware.RequirePermission(svc.Resolver, perm, deps.Logger)
		}

		secured := api.Group("", authMiddleware)
		adminOnly := middleware.RequirePrincipalKind(domain.PrincipalAdmin)

		permissionHandler := handlers.NewPermissionHandler(deps.Catalog, svc.Resolver)
		secured.GET("/permissions", permissionHandler.Catalog)
		secured.GET("/me/permissions", permissionHandler.Mine)

		if svc.Roles != nil {
			handlers.NewRoleHandler(svc.Roles).RegisterRoutes(secured.Group("/roles"), guard, adminOnly)
		}
		if svc.AdminOverrides != nil {
			handlers.NewOverrideHandler(svc.AdminOverrides).RegisterRoutes(secured.Group("/overrides/admins"), guard)
		}
		if svc.VendorOverrides != nil {
			handlers.NewOverrideHandler(svc.VendorOverrides).RegisterRoutes(secured.Group("/overrides/vendor-users"), guard)
		}
		if svc.Audit != nil {
			handlers.NewAuditHandler(svc.Audit).RegisterRoutes(secured.Group("/audit-logs", adminOnly), guard)
		}
	}

	return r
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "auth_login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
