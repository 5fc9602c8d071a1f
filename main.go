package main

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"audit-dashboard/client"
	"audit-dashboard/config"
	"audit-dashboard/database"
	"audit-dashboard/handlers"
	"audit-dashboard/services"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn(".env file not found, using system environment variables")
	}

	cfg := config.Load()
	log.SetLevelFromString(cfg.LogLevel)

	log.Infof("starting audit dashboard service, upstream %s", cfg.AuditAPIURL)

	apiClient := client.New(cfg.AuditAPIURL, cfg.AuditAPITimeout)

	// Run history persistence is optional; an empty DB_HOST disables it.
	var db *database.Database
	var history services.RunRecorder
	if cfg.DBHost != "" {
		var err error
		db, err = database.NewDatabase(cfg)
		if err != nil {
			log.Fatalf("failed to initialize database: %v", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.EnsureTables(ctx); err != nil {
			cancel()
			log.Fatalf("failed to ensure tables: %v", err)
		}
		cancel()
		history = db
	} else {
		log.Info("DB_HOST not set, run history persistence disabled")
	}

	websocketHub := services.NewWebSocketHub()
	go websocketHub.Start()
	defer websocketHub.Stop()

	session := services.NewSession(apiClient, cfg.PollInterval, history, websocketHub, cfg.SuccessDismissAfter)
	defer session.Poller().Stop()

	auditHandler := handlers.NewAuditHandler(session, apiClient, db)
	websocketHandler := handlers.NewWebSocketHandler(websocketHub)

	r := gin.Default()

	// CORS middleware for Gin
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	r.GET("/health", auditHandler.HealthHandler)
	r.GET("/companies/grouped", auditHandler.CompaniesGroupedHandler)

	r.POST("/audit/day", auditHandler.RunDayAuditHandler)
	r.GET("/audit/summary", auditHandler.SummaryHandler)
	r.GET("/audit/company/:code", auditHandler.CompanyDetailHandler)
	r.POST("/audit/company/:code/approve", auditHandler.ToggleApprovalHandler)
	r.GET("/audit/company/:code/export", auditHandler.ExportCompanyHandler)
	r.GET("/audit/export", auditHandler.ExportSummaryHandler)
	r.POST("/audit/fopag", auditHandler.FopagAuditHandler)

	r.POST("/rpa/import-consignments", auditHandler.ImportConsignmentsHandler)
	r.GET("/rpa/status", auditHandler.QueueStatusHandler)
	r.POST("/rpa/errors/dismiss", auditHandler.DismissQueueErrorsHandler)

	r.POST("/reports/generate", auditHandler.GenerateReportsHandler)
	r.POST("/corrections/apply", auditHandler.ApplyCorrectionsHandler)

	r.POST("/session/reset", auditHandler.ResetSessionHandler)
	r.POST("/session/back", auditHandler.BackHandler)
	r.POST("/session/generation", auditHandler.EnterGenerationHandler)
	r.POST("/session/errors/clear", auditHandler.ClearErrorHandler)

	r.GET("/runs/history", auditHandler.RunHistoryHandler)
	r.GET("/ws/status", websocketHandler.ListenStatus)

	log.Infof("listening on %s:%s", cfg.Host, cfg.Port)
	if err := r.Run(cfg.Host + ":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
