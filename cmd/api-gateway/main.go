package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campuskit/lms-enroll-api/api/swagger"
	"github.com/campuskit/lms-enroll-api/internal/handler"
	"github.com/campuskit/lms-enroll-api/internal/middleware"
	"github.com/campuskit/lms-enroll-api/internal/models"
	"github.com/campuskit/lms-enroll-api/internal/repository"
	"github.com/campuskit/lms-enroll-api/internal/service"
	"github.com/campuskit/lms-enroll-api/pkg/cache"
	"github.com/campuskit/lms-enroll-api/pkg/config"
	"github.com/campuskit/lms-enroll-api/pkg/database"
	"github.com/campuskit/lms-enroll-api/pkg/jobs"
	"github.com/campuskit/lms-enroll-api/pkg/logger"
	corsmiddleware "github.com/campuskit/lms-enroll-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuskit/lms-enroll-api/pkg/middleware/requestid"
)

// @title LMS Enrollment API
// @version 1.0.0
// @description Course enrollment admission-control and lifecycle engine
// @BasePath /
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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	throttleRepo := repository.NewThrottleRepository(redisClient)

	metrics := service.NewMetricsService()

	notificationQueue := service.NewNotificationQueue(notificationRepo, metrics, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)
	notificationQueue.Start(context.Background())
	defer notificationQueue.Stop()
	notifier := service.NewQueueNotifier(notificationQueue, logr)

	policy := service.NewAdmissionPolicy(studentRepo, courseRepo, subjectRepo, enrollmentRepo, service.BcryptVerifier{})
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, policy, throttleRepo, notifier, metrics, nil, logr, service.EnrollmentOptions{
		Cooldown:             cfg.Enrollment.Cooldown,
		DailySelfEnrollLimit: cfg.Enrollment.DailySelfEnrollLimit,
	})
	statisticsSvc := service.NewStatisticsService(enrollmentRepo, courseRepo, quizRepo, assignmentRepo, logr)

	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	statisticsHandler := handler.NewStatisticsHandler(statisticsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		enrollments := api.Group("/enrollments")
		enrollments.GET("", enrollmentHandler.List)
		enrollments.GET("/:id", enrollmentHandler.Get)
		enrollments.POST("", enrollmentHandler.Create)
		enrollments.PATCH("/:id",
			middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), enrollmentHandler.Update)
		enrollments.POST("/:id/cancel",
			middleware.RequireRoles(models.RoleStudent), enrollmentHandler.Cancel)
		enrollments.POST("/:id/kick",
			middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), enrollmentHandler.Kick)
		enrollments.GET("/:id/statistics", statisticsHandler.Get)

		if cfg.Exports.Enabled {
			enrollments.GET("/export",
				middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), enrollmentHandler.ExportRoster)
			enrollments.GET("/:id/statistics/export", statisticsHandler.ExportPDF)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
