package api

import (
	"github.com/gin-gonic/gin"
	"github.com/indrayudh19/Job-Mapper/internal/api/handler"
	"github.com/indrayudh19/Job-Mapper/internal/api/middleware"
	"github.com/indrayudh19/Job-Mapper/internal/logger"
	"github.com/indrayudh19/Job-Mapper/internal/repository"
	"github.com/indrayudh19/Job-Mapper/internal/service"
	"github.com/indrayudh19/Job-Mapper/internal/store"
)

// RouterDeps holds the services the router exposes.
type RouterDeps struct {
	PinStore     *store.PinStore
	QueryService *service.PinQueryService
	Orchestrator *service.Orchestrator
	RunRepo      *repository.RunRepository
	Logger       *logger.Logger
	CORS         middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps *RouterDeps, mode string) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(deps.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.PinStore)
	pinHandler := handler.NewPinHandler(deps.QueryService)
	searchHandler := handler.NewSearchHandler(deps.QueryService)
	refreshHandler := handler.NewRefreshHandler(deps.Orchestrator, deps.RunRepo)

	// Liveness
	r.GET("/", healthHandler.Root)
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Pins (read-only snapshot view)
		v1.GET("/pins", pinHandler.ListPins)

		// Semantic search
		v1.GET("/search", searchHandler.Search)

		// Refresh pipeline
		v1.POST("/refresh", refreshHandler.Trigger)
		v1.GET("/runs/latest", refreshHandler.LatestRun)
	}

	return r
}
