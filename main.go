package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	controller "github.com/docupilot/docupilot/controller"
	"github.com/docupilot/docupilot/initializers"
	middleware "github.com/docupilot/docupilot/middleware"
	service "github.com/docupilot/docupilot/service"
	"github.com/docupilot/docupilot/worker"

	"github.com/gin-gonic/gin"
)

func init() {
	// if err := initializers.LoadEnv(); err != nil {
	// 	log.Fatalf("[CRITICAL] Failed to load env: %s", err)
	// }
	if err := initializers.ConnectDB(); err != nil {
		log.Fatalf("[CRITICAL] Failed to initialize database connection: %s", err)
	}
	if err := initializers.Migrate(); err != nil {
		log.Fatalf("[CRITICAL] Failed to run database migrations: %s", err)
	}
	if err := initializers.ConnectNATS(); err != nil {
		log.Fatalf("[CRITICAL] Failed to connect to NATS: %s", err)
	}
}

func main() {
	storage, err := service.NewS3Storage()
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %s", err)
	}

	docService, err := service.NewDocumentService(initializers.DB, storage, initializers.NC)
	if err != nil {
		log.Fatalf("Failed to initialize document service: %s", err)
	}
	ruleService := service.NewRuleService(initializers.DB)
	vendorService := service.NewVendorService(initializers.DB)
	authService := service.NewAuthService(initializers.DB)

	agent := service.NewAgentService(
		service.NewGormStore(initializers.DB),
		storage,
		service.NewExtractService(),
		service.NewQAService(),
		service.NewValidateService(initializers.DB),
		ruleService,
		service.NewNotifyService(),
		docService,
	)

	w := worker.New(initializers.NC, agent)
	if err := w.Start(); err != nil {
		log.Fatalf("Failed to start processing worker: %s", err)
	}

	docController := controller.NewDocumentController(docService)
	ruleController := controller.NewRuleController(ruleService)
	vendorController := controller.NewVendorController(vendorService)
	authController := controller.NewAuthController(authService)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())

	// Global rate limiter for most routes
	router.Use(middleware.GlobalRateLimiter.Limit())

	router.POST("/auth/register",
		middleware.StrictRateLimiter.Limit(),
		authController.Register)
	router.POST("/auth/login",
		middleware.StrictRateLimiter.Limit(),
		authController.Login)

	// Healthcheck endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	authed := router.Group("/", middleware.AuthRequired())

	// Sensitive routes with stricter rate limiting
	authed.POST("/upload",
		middleware.StrictRateLimiter.Limit(),
		docController.UploadDocument)

	authed.GET("/documents", docController.ListDocuments)
	authed.GET("/documents/:id", docController.GetDocument)
	authed.DELETE("/documents/:id",
		middleware.StrictRateLimiter.Limit(),
		docController.DeleteDocument)
	authed.GET("/documents/:id/entities", docController.GetEntities)
	authed.GET("/documents/:id/logs", docController.GetLogs)
	authed.POST("/documents/:id/reprocess",
		middleware.StrictRateLimiter.Limit(),
		docController.Reprocess)
	authed.GET("/stats", docController.GetStats)
	authed.GET("/search", docController.SearchDocuments)

	// Processing rules endpoints with strict rate limiting on writes
	authed.POST("/rules",
		middleware.StrictRateLimiter.Limit(),
		ruleController.AddRule)
	authed.GET("/rules", ruleController.GetAllRules)
	authed.PUT("/rules/:id",
		middleware.StrictRateLimiter.Limit(),
		ruleController.UpdateRule)
	authed.DELETE("/rules/:id",
		middleware.StrictRateLimiter.Limit(),
		ruleController.DeleteRule)

	authed.POST("/vendors",
		middleware.StrictRateLimiter.Limit(),
		vendorController.AddVendor)
	authed.GET("/vendors", vendorController.GetAllVendors)

	srv := &http.Server{Addr: ":8080", Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[CRITICAL] HTTP server error: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	w.Shutdown(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown: %s", err)
	}
}
