package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/handler"
	"github.com/campusops/ta-scheduler-api/internal/middleware"
	"github.com/campusops/ta-scheduler-api/internal/models"
	"github.com/campusops/ta-scheduler-api/pkg/config"
	"github.com/campusops/ta-scheduler-api/pkg/logger"
	corsmiddleware "github.com/campusops/ta-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusops/ta-scheduler-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, deps dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	authHandler := handler.NewAuthHandler(deps.auth)
	semesterHandler := handler.NewSemesterHandler(deps.semesters)
	courseHandler := handler.NewCourseHandler(deps.courses, deps.exports)
	sectionHandler := handler.NewSectionHandler(deps.sections)
	userHandler := handler.NewUserHandler(deps.users)
	metricsHandler := handler.NewMetricsHandler(deps.metrics)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth))

	secured.POST("/auth/logout", authHandler.Logout)
	secured.POST("/auth/change-password", authHandler.ChangePassword)
	secured.GET("/auth/me", authHandler.Me)

	adminOnly := middleware.RBAC(string(models.RoleAdmin))

	secured.GET("/semesters", semesterHandler.List)
	secured.GET("/semesters/:semester", semesterHandler.Get)
	secured.POST("/semesters", adminOnly, middleware.Audit(deps.userRepo, "CREATE", "semester"), semesterHandler.Create)
	secured.PUT("/semesters/:semester", adminOnly, middleware.Audit(deps.userRepo, "UPDATE", "semester"), semesterHandler.Update)
	secured.DELETE("/semesters/:semester", adminOnly, middleware.Audit(deps.userRepo, "DELETE", "semester"), semesterHandler.Delete)

	secured.GET("/courses", courseHandler.Search)
	secured.GET("/semesters/:semester/courses", courseHandler.List)
	secured.GET("/semesters/:semester/courses/:code", courseHandler.Get)
	secured.POST("/semesters/:semester/courses", adminOnly, middleware.Audit(deps.userRepo, "CREATE", "course"), courseHandler.Create)
	secured.PUT("/semesters/:semester/courses/:code", adminOnly, middleware.Audit(deps.userRepo, "UPDATE", "course"), courseHandler.Update)
	secured.DELETE("/semesters/:semester/courses/:code", adminOnly, middleware.Audit(deps.userRepo, "DELETE", "course"), courseHandler.Delete)

	if cfg.Exports.Enabled {
		secured.GET("/semesters/:semester/courses/:code/roster", courseHandler.Roster)
	}

	// Section and assignment permissions depend on the instructor-of-record
	// policy, so authorization happens in the service rather than here.
	secured.POST("/semesters/:semester/courses/:code/sections", middleware.Audit(deps.userRepo, "CREATE", "section"), sectionHandler.Create)
	secured.PUT("/semesters/:semester/courses/:code/sections/:type/:number", middleware.Audit(deps.userRepo, "UPDATE", "section"), sectionHandler.Update)
	secured.DELETE("/semesters/:semester/courses/:code/sections/:type/:number", middleware.Audit(deps.userRepo, "DELETE", "section"), sectionHandler.Delete)
	secured.PUT("/semesters/:semester/courses/:code/sections/:type/:number/staff", middleware.Audit(deps.userRepo, "ASSIGN", "section_staff"), sectionHandler.AssignStaff)
	secured.DELETE("/semesters/:semester/courses/:code/sections/:type/:number/staff", middleware.Audit(deps.userRepo, "UNASSIGN", "section_staff"), sectionHandler.UnassignStaff)
	secured.POST("/semesters/:semester/courses/:code/tas", middleware.Audit(deps.userRepo, "ASSIGN", "course_ta"), sectionHandler.AssignCourseTA)
	secured.DELETE("/semesters/:semester/courses/:code/tas/:username", middleware.Audit(deps.userRepo, "UNASSIGN", "course_ta"), sectionHandler.RemoveCourseTA)

	secured.GET("/users", userHandler.Search)
	secured.GET("/users/:username", userHandler.Profile)
	secured.POST("/users", middleware.Audit(deps.userRepo, "CREATE", "user"), userHandler.Create)
	secured.PUT("/users/:username", middleware.Audit(deps.userRepo, "UPDATE", "user"), userHandler.Update)
	secured.DELETE("/users/:username", middleware.Audit(deps.userRepo, "DELETE", "user"), userHandler.Delete)

	return r
}
