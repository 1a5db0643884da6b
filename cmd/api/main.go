package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/inkwise/inkwise-backend/internal/application"
	appfeedback "github.com/inkwise/inkwise-backend/internal/application/feedback"
	"github.com/inkwise/inkwise-backend/internal/application/pipeline"
	"github.com/inkwise/inkwise-backend/internal/config"
	"github.com/inkwise/inkwise-backend/internal/domain/entitlements"
	domfeedback "github.com/inkwise/inkwise-backend/internal/domain/feedback"
	"github.com/inkwise/inkwise-backend/internal/domain/submissions"
	domvision "github.com/inkwise/inkwise-backend/internal/domain/vision"
	aiopenai "github.com/inkwise/inkwise-backend/internal/infra/ai/openai"
	mysqlp "github.com/inkwise/inkwise-backend/internal/infra/db/mysql"
	postgresp "github.com/inkwise/inkwise-backend/internal/infra/db/postgres"
	"github.com/inkwise/inkwise-backend/internal/infra/httpserver"
	minioStore "github.com/inkwise/inkwise-backend/internal/infra/storage"
	visiongoogle "github.com/inkwise/inkwise-backend/internal/infra/vision/google"
	"github.com/inkwise/inkwise-backend/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database (mysql primary, postgres alternative)
	var (
		subRepo submissions.Repository
		entRepo entitlements.Repository
		fbRepo  domfeedback.Repository
		closeDB func() error
	)

	health := map[string]middleware.HealthChecker{}

	switch cfg.Database.Driver {
	case "postgres":
		pdb, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		subRepo = postgresp.NewSubmissionRepository(pdb)
		entRepo = postgresp.NewEntitlementRepository(pdb)
		fbRepo = postgresp.NewFeedbackRepository(pdb)
		health["database"] = &middleware.DatabaseHealthChecker{DB: pdb}
		closeDB = pdb.Close
	default:
		mdb, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		subRepo = mysqlp.NewSubmissionRepository(mdb)
		entRepo = mysqlp.NewEntitlementRepository(mdb)
		fbRepo = mysqlp.NewFeedbackRepository(mdb)
		health["database"] = &middleware.DatabaseHealthChecker{DB: mdb}
		closeDB = mdb.Close
	}
	defer closeDB()

	// init vision client
	visionClient, err := visiongoogle.New(ctx, cfg.Vision.APIKey)
	if err != nil {
		log.Fatalf("vision init error: %v", err)
	}

	// init annotation archive (optional)
	var archive domvision.ArchiveStore
	if cfg.ArchiveEnabled() {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		archive = store
	}

	// init pipeline
	pipelineSvc := &pipeline.Service{
		Submissions:  subRepo,
		Entitlements: entRepo,
		Vision:       visionClient,
		Archive:      archive,
		Clock:        application.SystemClock{},
	}

	// init AI coach (optional)
	var feedbackSvc *appfeedback.Service
	if cfg.FeedbackEnabled() {
		feedbackSvc = &appfeedback.Service{
			Submissions: subRepo,
			Feedback:    fbRepo,
			AI:          aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model),
			Model:       cfg.OpenAI.Model,
			Clock:       application.SystemClock{},
		}
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))
	if len(cfg.Server.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		}))
	}
	mux.Mount("/", httpserver.NewRouter(httpserver.Deps{
		Pipeline:      pipelineSvc,
		Feedback:      feedbackSvc,
		Submissions:   subRepo,
		Entitlements:  entRepo,
		WebhookSecret: cfg.Webhook.Secret,
		APIKeys:       cfg.Auth.APIKeys,
		Health:        health,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
