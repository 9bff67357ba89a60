package mockserver

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"supplier-conformance/internal/mockserver/middleware"
	"supplier-conformance/internal/pkg/config"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// NewRouter mounts both protocol generations on the engine. Every protocol
// route sits behind the API key check; unknown methods on known paths get the
// 405 the conformance suite expects.
func NewRouter(engine *gin.Engine, cfg config.Config, handler *Handler, logger *slog.Logger) {
	engine.HandleMethodNotAllowed = true

	setupMiddleware(engine, cfg, logger)
	setupRoutes(engine, cfg, handler)
}

func setupMiddleware(engine *gin.Engine, cfg config.Config, logger *slog.Logger) {
	// Recovery must be first (outermost) to catch panics from all other middleware
	engine.Use(middleware.Recovery())
	engine.Use(middleware.NewCORSMiddleware(cfg.CORS))
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(engine *gin.Engine, cfg config.Config, handler *Handler) {
	engine.GET("/health", healthCheck)

	v1 := engine.Group("/v1")
	v1.Use(middleware.RequireAPIKey(cfg.Auth.APIKey))
	addRoutes(v1, handler.v1Routes())

	v2 := engine.Group("/v2")
	v2.Use(middleware.RequireAPIKey(cfg.Auth.APIKey))
	addRoutes(v2, handler.v2Routes())
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, r.Handler)
		case http.MethodPost:
			g.POST(r.Path, r.Handler)
		case http.MethodDelete:
			g.DELETE(r.Path, r.Handler)
		default:
			g.Any(r.Path, r.Handler)
		}
	}
}
