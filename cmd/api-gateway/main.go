package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sas-tenancy-api/api/swagger"
	"github.com/noah-isme/sas-tenancy-api/internal/handler"
	"github.com/noah-isme/sas-tenancy-api/internal/middleware"
	"github.com/noah-isme/sas-tenancy-api/internal/repository"
	"github.com/noah-isme/sas-tenancy-api/internal/service"
	"github.com/noah-isme/sas-tenancy-api/pkg/cache"
	"github.com/noah-isme/sas-tenancy-api/pkg/config"
	"github.com/noah-isme/sas-tenancy-api/pkg/database"
	"github.com/noah-isme/sas-tenancy-api/pkg/export"
	"github.com/noah-isme/sas-tenancy-api/pkg/jobs"
	"github.com/noah-isme/sas-tenancy-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sas-tenancy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sas-tenancy-api/pkg/middleware/requestid"
	"github.com/noah-isme/sas-tenancy-api/pkg/storage"
)

// @title SAS Tenancy API
// @version 0.1.0
// @description Tenant and term scoping gateway for the academic administration platform
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		// Scope caches degrade to database lookups without Redis; fail only
		// the cache, not the process.
		logr.Sugar().Warnw("redis unavailable, scope caches disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	validate := validator.New()

	orgRepo := repository.NewOrganizationRepository(db)
	termRepo := repository.NewTermRepository(db)
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	teachingRepo := repository.NewTeachingAssignmentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	refRepo := repository.NewReferenceRepository(db)
	consistencyRepo := repository.NewConsistencyRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sas-tenancy-api",
	})

	tenantSvc := service.NewTenantContextService(orgRepo, cacheRepo, cfg.Tenancy.LastOrgCacheTTL, logr)
	termContextSvc := service.NewTermContextService(termRepo, cacheRepo, cfg.Tenancy.CurrentTermCacheTTL, logr)
	accessSvc := service.NewAccessService(teachingRepo, studentRepo, logr)
	guard := service.NewScopeGuard(refRepo, logr)

	orgSvc := service.NewOrganizationService(orgRepo, userRepo, validate, logr)
	termSvc := service.NewTermService(termRepo, accessSvc, termContextSvc, userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, accessSvc, guard, validate, logr)
	classSvc := service.NewClassService(classRepo, teachingRepo, accessSvc, guard, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, accessSvc, guard, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, enrollmentRepo, accessSvc, guard, validate, logr)
	feeSvc := service.NewFeeService(feeRepo, accessSvc, guard, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, accessSvc, validate, logr)
	consistencySvc := service.NewConsistencyService(consistencyRepo, export.NewCSVExporter(), export.NewPDFExporter(), metricsSvc.Registry(), logr)

	archiveStore, err := storage.NewLocalStorage(cfg.Consistency.ArchiveDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare report archive directory", "error", err)
	}
	archiveSigner := storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Consistency.ArchiveTTL)
	archiveSvc := service.NewArchiveService(archiveStore, archiveSigner, cfg.Consistency.ArchiveTTL, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(metricsSvc))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, handler.RouterDeps{
		APIPrefix:     cfg.APIPrefix,
		AuthService:   authSvc,
		Tenants:       tenantSvc,
		Terms:         termContextSvc,
		Metrics:       metricsSvc,
		Users:         userRepo,
		Auth:          handler.NewAuthHandler(authSvc),
		Organizations: handler.NewOrganizationHandler(orgSvc),
		TermRegistry:  handler.NewTermHandler(termSvc),
		Students:      handler.NewStudentHandler(studentSvc),
		Classes:       handler.NewClassHandler(classSvc),
		Enrollments:   handler.NewEnrollmentHandler(enrollmentSvc),
		Grades:        handler.NewGradeHandler(gradeSvc),
		Fees:          handler.NewFeeHandler(feeSvc),
		Announcements: handler.NewAnnouncementHandler(announcementSvc),
		Consistency:   handler.NewConsistencyHandler(consistencySvc, archiveSvc),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sweepQueue *jobs.Queue
	if cfg.Consistency.SweepEnabled {
		sweepQueue = jobs.NewQueue("consistency-sweep", func(ctx context.Context, job jobs.Job) error {
			report, err := consistencySvc.Run(ctx)
			if err != nil {
				return err
			}
			if report.Total > 0 {
				out, err := consistencySvc.ExportCSV(report)
				if err != nil {
					return err
				}
				if _, err := archiveSvc.Archive(report, out, "csv"); err != nil {
					return err
				}
			}
			archiveSvc.Cleanup()
			return nil
		}, jobs.QueueConfig{
			Workers:    1,
			MaxRetries: cfg.Consistency.WorkerRetries,
			Logger:     logr,
		})
		sweepQueue.Start(ctx)
		defer sweepQueue.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Consistency.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := sweepQueue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "sweep"}); err != nil {
						logr.Sugar().Warnw("failed to enqueue consistency sweep", "error", err)
					}
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
