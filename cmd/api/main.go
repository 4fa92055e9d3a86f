package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/campusops/ta-scheduler-api/api/swagger"
	"github.com/campusops/ta-scheduler-api/internal/authz"
	"github.com/campusops/ta-scheduler-api/internal/repository"
	"github.com/campusops/ta-scheduler-api/internal/service"
	"github.com/campusops/ta-scheduler-api/pkg/cache"
	"github.com/campusops/ta-scheduler-api/pkg/config"
	"github.com/campusops/ta-scheduler-api/pkg/database"
	"github.com/campusops/ta-scheduler-api/pkg/logger"
)

// @title TA Scheduler API
// @version 1.0.0
// @description Role-based TA and instructor scheduling for academic semesters
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	deps := buildDependencies(cfg, logr, db, redisClient)
	r := newRouter(cfg, logr, deps)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// dependencies bundles the wired repositories and services for routing.
type dependencies struct {
	userRepo *repository.UserRepository

	auth      *service.AuthService
	semesters *service.SemesterService
	courses   *service.CourseService
	sections  *service.SectionService
	users     *service.UserService
	exports   *service.ExportService
	metrics   *service.MetricsService
}

func buildDependencies(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) dependencies {
	validate := validator.New()
	engine := authz.NewEngine(cfg.Policy)

	userRepo := repository.NewUserRepository(db)
	semesterRepo := repository.NewSemesterRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	semesterSvc := service.NewSemesterService(semesterRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, semesterRepo, sectionRepo, cacheRepo, cfg.Cache, validate, logr)
	sectionSvc := service.NewSectionService(sectionRepo, courseRepo, semesterRepo, userRepo, assignmentRepo, engine, cacheRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, assignmentRepo, sectionRepo, engine, cacheRepo, cfg.Cache, cfg.Policy, validate, logr)
	exportSvc := service.NewExportService(courseSvc, nil, nil, logr)

	return dependencies{
		userRepo:  userRepo,
		auth:      authSvc,
		semesters: semesterSvc,
		courses:   courseSvc,
		sections:  sectionSvc,
		users:     userSvc,
		exports:   exportSvc,
		metrics:   service.NewMetricsService(),
	}
}
