// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/estate-registry/app/dto"
	"github.com/amirphl/estate-registry/app/handlers"
	"github.com/amirphl/estate-registry/app/middleware"
	"github.com/amirphl/estate-registry/config"
	"github.com/amirphl/estate-registry/docs"
	"github.com/amirphl/estate-registry/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups the HTTP handlers the router mounts
type Handlers struct {
	AdminAuth   handlers.AdminAuthHandlerInterface
	CompanyAuth handlers.CompanyAuthHandlerInterface
	Company     handlers.CompanyHandlerInterface
	Client      handlers.ClientHandlerInterface
	Marketer    handlers.MarketerHandlerInterface
	Sequence    handlers.SequenceAdminHandlerInterface
}

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	cfg      *config.ProductionConfig
	handlers Handlers
	auth     *middleware.AuthMiddleware
	checks   map[string]HealthCheck
	logger   *zap.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.ProductionConfig, h Handlers, auth *middleware.AuthMiddleware, checks map[string]HealthCheck, log *zap.Logger) Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := &FiberRouter{
		cfg:      cfg,
		handlers: h,
		auth:     auth,
		checks:   checks,
		logger:   log,
	}

	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 1024 * 1024
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Estate Registry API",
		ServerHeader: "Estate-Registry",
		ErrorHandler: r.errorHandler,
		BodyLimit:    bodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ProxyHeader:  cfg.Server.ProxyHeader,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Info("Setting up routes")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		path := r.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	env := r.cfg.Deployment.Environment
	if env == "development" || env == "local" {
		api.Get("/docs", r.getAPIDocumentation)
		api.Get("/swagger.json", r.serveSwaggerJSON)
		r.app.Get("/swagger", r.serveSwaggerUI)
		r.logger.Info("API documentation enabled", zap.String("environment", env))
	}

	api.Use(newLimiter(r.cfg.Security.GlobalRateLimit, r.cfg.Security.RateLimitWindow, func(c fiber.Ctx) bool {
		return c.Path() == healthPath
	}))

	// Auth routes with stricter rate limiting
	auth := api.Group("/auth")
	auth.Use(newLimiter(r.cfg.Security.AuthRateLimit, r.cfg.Security.RateLimitWindow, nil))
	auth.Post("/admin/login", r.handlers.AdminAuth.Login)
	auth.Post("/admin/refresh", r.handlers.AdminAuth.Refresh)
	auth.Post("/admin/logout", r.auth.AdminAuthenticate(), r.handlers.AdminAuth.Logout)
	auth.Post("/company/token", r.handlers.CompanyAuth.IssueToken)

	// Platform admin routes
	admin := api.Group("/admin", r.auth.AdminAuthenticate())

	companies := admin.Group("/companies")
	companies.Post("/", r.handlers.Company.Onboard)
	companies.Get("/", r.handlers.Company.List)
	companies.Get("/:id", r.handlers.Company.Get)
	companies.Delete("/:id", r.handlers.Company.Remove)
	companies.Put("/:id/prefix", r.handlers.Company.OverridePrefix)
	companies.Post("/:id/api-key", r.handlers.Company.RotateAPIKey)
	companies.Post("/:id/activate", r.handlers.Company.Activate)
	companies.Post("/:id/deactivate", r.handlers.Company.Deactivate)

	sequences := admin.Group("/sequences")
	sequences.Post("/backfill", r.handlers.Sequence.Backfill)
	sequences.Post("/repair-uids", r.handlers.Sequence.RepairUIDs)
	sequences.Get("/audit", r.handlers.Sequence.Audit)
	sequences.Get("/audit/export", r.handlers.Sequence.ExportAudit)

	// Tenant routes
	tenant := api.Group("/companies/:slug", r.auth.TenantAuthenticate())
	tenant.Post("/clients", r.handlers.Client.Register)
	tenant.Get("/clients", r.handlers.Client.List)
	tenant.Get("/clients/:id", r.handlers.Client.Get)
	tenant.Post("/marketers", r.handlers.Marketer.Register)
	tenant.Get("/marketers", r.handlers.Marketer.List)
	tenant.Get("/marketers/:id", r.handlers.Marketer.Get)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))
	r.app.Use(func(c fiber.Ctx) error {
		c.Locals(middleware.LocalRequestID, requestid.FromContext(c))
		return c.Next()
	})

	r.app.Use(middleware.Metrics())

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        r.cfg.Security.XContentTypeOptions,
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data: https:; frame-ancestors 'none';",
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     slices.Concat(r.cfg.Security.AllowedHeaders, []string{"X-Request-ID"}),
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After", "Content-Disposition"},
		AllowCredentials: r.cfg.Security.AllowCredentials && !containsWildcard(r.cfg.Security.AllowedOrigins),
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	// Only the documentation route is cached
	r.app.Use(cache.New(cache.Config{
		Next: func(c fiber.Ctx) bool {
			return c.Method() != fiber.MethodGet || !strings.HasPrefix(c.Path(), "/api/v1/docs")
		},
		Expiration:   30 * time.Minute,
		CacheControl: true,
	}))

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		},
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("panic recovered",
				zap.String("request_id", requestid.FromContext(c)),
				zap.Any("error", e),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.String("ip", c.IP()),
			)
		},
	}))
}

func newLimiter(max int, window time.Duration, next func(c fiber.Ctx) bool) fiber.Handler {
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: next,
	})
}

func (r *FiberRouter) Start(address string) error {
	r.logger.Info("Starting server", zap.String("address", address))
	return r.app.Listen(address)
}

func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	components := make(map[string]string, len(r.checks))
	for name, check := range r.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	code, message := fiber.StatusOK, "Service is healthy"
	if status != "ok" {
		code, message = fiber.StatusServiceUnavailable, "Service is degraded"
	}
	return c.Status(code).JSON(dto.APIResponse{
		Success: status == "ok",
		Message: message,
		Data: fiber.Map{
			"status":     status,
			"components": components,
			"timestamp":  utils.UTCNow().Unix(),
			"version":    r.cfg.Deployment.Version,
			"service":    "estate-registry-api",
		},
	})
}

func (r *FiberRouter) getAPIDocumentation(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "API documentation retrieved successfully",
		Data: fiber.Map{
			"title":       "Estate Registry API Documentation",
			"version":     r.cfg.Deployment.Version,
			"description": "Multi-tenant company registry with per-company client and marketer identifiers",
			"endpoints":   GetRouteDocumentation(),
		},
	})
}

func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(docs.SwaggerInfo.ReadDoc())
}

func (r *FiberRouter) serveSwaggerUI(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(swaggerUIPage)
}

const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Estate Registry API - Swagger UI</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: '/api/v1/swagger.json',
                dom_id: '#swagger-ui',
                deepLinking: true,
                validatorUrl: null
            });
        };
    </script>
</body>
</html>`

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errCode := "INTERNAL_ERROR"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
			errCode = "REQUEST_ERROR"
		}
	}

	if code >= fiber.StatusInternalServerError {
		r.logger.Error("request failed",
			zap.Int("status", code),
			zap.String("path", c.Path()),
			zap.String("request_id", requestid.FromContext(c)),
			zap.Error(err))
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func containsWildcard(origins []string) bool {
	return slices.Contains(origins, "*")
}

// GetRouteDocumentation lists the public endpoints for the /docs route
func GetRouteDocumentation() []map[string]any {
	return []map[string]any{
		{
			"method":      "POST",
			"path":        "/api/v1/auth/admin/login",
			"description": "Authenticate a platform admin",
			"parameters": map[string]any{
				"username": "string (required)",
				"password": "string (required) - at least 8 characters",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/auth/company/token",
			"description": "Exchange a company API key for an access token",
			"parameters": map[string]any{
				"api_key": "string (required) - <company uuid>.<secret>",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/admin/companies",
			"description": "Onboard a company; the identifier prefix is derived from the name unless uid_prefix is given",
			"parameters": map[string]any{
				"company_name": "string (required)",
				"uid_prefix":   "string (optional) - 2 to 12 letters or digits",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/companies/:slug/clients",
			"description": "Register a client and allocate its identifier, for example LPL-CLT005",
			"parameters": map[string]any{
				"full_name":   "string (required)",
				"email":       "string (required)",
				"marketer_id": "number (optional) - marketer of the same company",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/companies/:slug/marketers",
			"description": "Register a marketer and allocate its identifier, for example LPL-MKT002",
			"parameters": map[string]any{
				"full_name": "string (required)",
				"email":     "string (required)",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/admin/sequences/backfill",
			"description": "Raise counters to the highest stored sequence number",
			"parameters": map[string]any{
				"company_id": "number (optional)",
				"kinds":      "string[] (optional) - client|marketer",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/admin/sequences/audit",
			"description": "Compare counters with stored sequence numbers",
			"parameters": map[string]any{
				"company_id": "number (optional) - query parameter",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/health",
			"description": "Health check endpoint",
			"parameters":  map[string]any{},
		},
	}
}
