package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/beligro/smart-carwash-sub000/internal/domain/actor"
	"github.com/beligro/smart-carwash-sub000/internal/handler/api"
	"github.com/beligro/smart-carwash-sub000/internal/handler/middleware"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/config"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
	Mw      []gin.HandlerFunc
}

func NewRouter(
	engine *gin.Engine,
	cfg config.Config,
	sessionHandler *api.SessionHandler,
	paymentHandler *api.PaymentHandler,
	queueHandler *api.QueueHandler,
	adminHandler *api.AdminHandler,
	authMiddleware *middleware.AuthMiddleware,
) {
	setupMiddleware(engine, cfg)
	setupRoutes(engine, sessionHandler, paymentHandler, queueHandler, adminHandler, authMiddleware)
}

func setupMiddleware(engine *gin.Engine, cfg config.Config) {
	// Recovery must be first (outermost) to catch panics from all other middleware
	engine.Use(middleware.CustomRecovery())
	engine.Use(middleware.NewCORSMiddleware(cfg.CORS))
	engine.Use(middleware.NewLogger(cfg.Log).LoggingMiddleware())
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(
	engine *gin.Engine,
	sessionHandler *api.SessionHandler,
	paymentHandler *api.PaymentHandler,
	queueHandler *api.QueueHandler,
	adminHandler *api.AdminHandler,
	authMiddleware *middleware.AuthMiddleware,
) {
	engine.GET("/health", healthCheck)

	if gin.Mode() == gin.DebugMode {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	apiGroup := engine.Group("/api")
	{
		// The provider authenticates webhooks with its own signature, not a
		// user token.
		addRoutes(apiGroup.Group("/webhooks"), []route{
			{Method: http.MethodPost, Path: "/payments", Handler: paymentHandler.Webhook},
		})

		addRoutes(apiGroup.Group("/queue"), []route{
			{Method: http.MethodGet, Path: "/status", Handler: queueHandler.Status},
		})

		sessions := apiGroup.Group("/sessions")
		sessions.Use(authMiddleware.RequireAuth())
		{
			addRoutes(sessions, []route{
				{Method: http.MethodPost, Path: "", Handler: sessionHandler.CreateSession},
				{Method: http.MethodGet, Path: "", Handler: sessionHandler.ListSessions},
				{Method: http.MethodGet, Path: "/active", Handler: sessionHandler.GetActiveSession},
				{Method: http.MethodGet, Path: "/:id", Handler: sessionHandler.GetSession},
				{Method: http.MethodPost, Path: "/:id/start", Handler: sessionHandler.StartSession},
				{Method: http.MethodPost, Path: "/:id/complete", Handler: sessionHandler.CompleteSession},
				{Method: http.MethodPost, Path: "/:id/cancel", Handler: sessionHandler.CancelSession},
				{Method: http.MethodPost, Path: "/:id/extend", Handler: sessionHandler.ExtendSession},
				{Method: http.MethodPost, Path: "/:id/chemistry/enable", Handler: sessionHandler.EnableChemistry},
				{Method: http.MethodPost, Path: "/:id/chemistry/disable", Handler: sessionHandler.DisableChemistry},
				{Method: http.MethodGet, Path: "/:id/payments", Handler: sessionHandler.ListSessionPayments},
				{Method: http.MethodPost, Path: "/:id/payments/retry", Handler: sessionHandler.RetryMainPayment},
				{Method: http.MethodPost, Path: "/:id/payments/retry-extension", Handler: sessionHandler.RetryExtensionPayment},
			})
		}

		payments := apiGroup.Group("/payments")
		payments.Use(authMiddleware.RequireAuth(), authMiddleware.RequireRole(actor.RoleCashier, actor.RoleAdmin))
		{
			addRoutes(payments, []route{
				{Method: http.MethodPost, Path: "/:id/refund", Handler: paymentHandler.Refund},
			})
		}

		admin := apiGroup.Group("/admin")
		admin.Use(authMiddleware.RequireAuth())
		{
			boxes := admin.Group("/boxes")
			boxes.Use(authMiddleware.RequireRole(actor.RoleCashier, actor.RoleAdmin))
			addRoutes(boxes, []route{
				{Method: http.MethodGet, Path: "", Handler: adminHandler.ListBoxes},
				{Method: http.MethodPost, Path: "/:number/cleaning/complete", Handler: adminHandler.CompleteCleaning},
				{Method: http.MethodGet, Path: "/:number/audit", Handler: adminHandler.AuditTrail},
			})

			adminOnly := admin.Group("")
			adminOnly.Use(authMiddleware.RequireRole(actor.RoleAdmin))
			addRoutes(adminOnly, []route{
				{Method: http.MethodPost, Path: "/boxes", Handler: adminHandler.CreateBox},
				{Method: http.MethodPost, Path: "/boxes/:number/maintenance", Handler: adminHandler.SetMaintenance},
				{Method: http.MethodPost, Path: "/sessions/:id/reassign", Handler: adminHandler.ReassignSession},
			})
		}
	}
}

// @Summary Health check
// @Description Check if the service is healthy
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Service is healthy",
	})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		h := r.Handler
		if len(r.Mw) > 0 {
			h = chainHandlers(append(r.Mw, r.Handler)...)
		}
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, h)
		case http.MethodPost:
			g.POST(r.Path, h)
		case http.MethodPut:
			g.PUT(r.Path, h)
		case http.MethodPatch:
			g.PATCH(r.Path, h)
		case http.MethodDelete:
			g.DELETE(r.Path, h)
		default:
			g.Any(r.Path, h)
		}
	}
}

func chainHandlers(hs ...gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range hs {
			h(c)
			if c.IsAborted() {
				return
			}
		}
	}
}
