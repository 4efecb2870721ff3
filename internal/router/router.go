package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/uwazi254/uwazi-api/internal/handler"
	"github.com/uwazi254/uwazi-api/internal/middleware"
	"github.com/uwazi254/uwazi-api/internal/models"
	"github.com/uwazi254/uwazi-api/internal/service"
	"github.com/uwazi254/uwazi-api/pkg/config"
	"github.com/uwazi254/uwazi-api/pkg/logger"
	corsmiddleware "github.com/uwazi254/uwazi-api/pkg/middleware/cors"
	reqidmiddleware "github.com/uwazi254/uwazi-api/pkg/middleware/requestid"
)

// Params collects everything the router needs. Redis and Metrics may be nil.
type Params struct {
	Config     *config.Config
	Logger     *zap.Logger
	Redis      *redis.Client
	Auth       *service.AuthService
	Metrics    *service.MetricsService
	AuthH      *handler.AuthHandler
	IssueH     *handler.IssueHandler
	ModH       *handler.ModerationHandler
	AnalyticsH *handler.AnalyticsHandler
	ReferenceH *handler.ReferenceHandler
	MetricsH   *handler.MetricsHandler
}

// New assembles the gin engine with all routes and middleware.
func New(p Params) *gin.Engine {
	if p.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(p.Logger))
	r.Use(corsmiddleware.New(p.Config.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	if p.Metrics != nil {
		r.Use(middleware.Metrics(p.Metrics))
	}

	r.GET("/health", p.MetricsH.Health)
	if p.Config.Storage.UploadDir != "" {
		r.Static("/uploads", p.Config.Storage.UploadDir)
	}
	r.GET("/metrics", p.MetricsH.Prometheus)
	if p.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(p.Config.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", p.AuthH.Register)
		auth.POST("/login", p.AuthH.Login)
		auth.POST("/refresh", p.AuthH.Refresh)
		auth.POST("/logout", p.AuthH.Logout)
		auth.GET("/profile", middleware.JWT(p.Auth), p.AuthH.Profile)
		auth.PUT("/profile", middleware.JWT(p.Auth), p.AuthH.UpdateProfile)
	}

	issues := api.Group("/issues")
	{
		issues.GET("", middleware.OptionalJWT(p.Auth), p.IssueH.List)
		issues.GET("/:id", middleware.OptionalJWT(p.Auth), p.IssueH.Get)

		authed := issues.Group("", middleware.JWT(p.Auth))
		{
			authed.POST("", middleware.IssueRateLimit(p.Redis, p.Config.RateLimit.IssueLimit, p.Config.RateLimit.IssueWindow, p.Logger), p.IssueH.Create)
			authed.GET("/my-issues", p.IssueH.MyIssues)
			authed.POST("/categorize", p.IssueH.Categorize)
			authed.PUT("/:id", p.IssueH.Update)
			authed.PATCH("/:id", p.IssueH.Patch)
			authed.DELETE("/:id", p.IssueH.Delete)
			authed.POST("/:id/vote", p.IssueH.Vote)
			authed.POST("/:id/images", p.IssueH.UploadImage)

			moderators := authed.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleModerator))
			{
				moderators.POST("/:id/response", p.ModH.Respond)
				moderators.POST("/:id/note", p.ModH.AddNote)
				moderators.POST("/:id/updates", p.ModH.AddUpdate)
				moderators.PATCH("/:id/status", p.ModH.SetStatus)
			}
		}
	}

	analytics := api.Group("/analytics")
	{
		analytics.GET("/dashboard", p.AnalyticsH.Dashboard)
		analytics.GET("/counties", p.AnalyticsH.Counties)
		analytics.GET("/categories", p.AnalyticsH.Categories)
		analytics.GET("/trends", p.AnalyticsH.Trends)
		analytics.GET("/export",
			middleware.JWT(p.Auth),
			middleware.RequireRoles(models.RoleAdmin, models.RoleModerator),
			p.AnalyticsH.Export)
	}

	api.GET("/counties", p.ReferenceH.Counties)
	api.GET("/constituencies", p.ReferenceH.Constituencies)
	api.GET("/wards", p.ReferenceH.Wards)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
	})

	return r
}
