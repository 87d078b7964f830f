package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shehryarbajwa/casefiler/internal/api"
	"github.com/shehryarbajwa/casefiler/internal/config"
	"github.com/shehryarbajwa/casefiler/internal/documents"
	"github.com/shehryarbajwa/casefiler/internal/fields"
	"github.com/shehryarbajwa/casefiler/internal/localbrowser"
	"github.com/shehryarbajwa/casefiler/internal/proxy"
	"github.com/shehryarbajwa/casefiler/internal/ratelimit"
	"github.com/shehryarbajwa/casefiler/internal/remote"
	"github.com/shehryarbajwa/casefiler/internal/session"
	"github.com/shehryarbajwa/casefiler/internal/workflow"
)

func main() {
	log.Println("Starting casefiler...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Browser provider
	var client workflow.SessionClient
	var status api.StatusSource
	switch cfg.Provider.Kind {
	case config.ProviderLocal:
		local, err := localbrowser.Start(localbrowser.Options{
			Headless:       cfg.Provider.Headless,
			NavTimeout:     cfg.Provider.Timeout,
			InstallDrivers: cfg.Provider.InstallDrivers,
		})
		if err != nil {
			log.Fatalf("Failed to start local browser: %v", err)
		}
		defer local.Stop()
		client = local
		status = local
	default:
		rc := remote.NewClient(cfg.Provider.URL, cfg.Provider.Token, cfg.Provider.ProjectID, cfg.Provider.Timeout)
		client = rc
		status = rc
		log.Printf("✓ Remote provider client initialized (%s)", cfg.Provider.URL)
	}

	// Document sources
	var s3Client documents.ObjectGetter
	if cfg.S3Enabled() {
		c, err := documents.NewS3Client(cfg.AWS.Region, cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey)
		if err != nil {
			log.Fatalf("Failed to create S3 client: %v", err)
		}
		s3Client = c
		log.Printf("✓ S3 document source enabled (%s)", cfg.AWS.Region)
	}
	fetcher := documents.NewFetcher(cfg.Provider.Timeout, cfg.Workflow.MaxUploadBytes, s3Client)

	// Workflow
	wfCfg := workflow.DefaultConfig()
	wfCfg.Session.ProjectID = cfg.Provider.ProjectID
	wfCfg.Session.ContextID = cfg.Provider.ContextID
	wfCfg.AuthPollInterval = cfg.Workflow.AuthPollInterval
	wfCfg.AuthMaxAttempts = cfg.Workflow.AuthMaxAttempts
	wfCfg.AbortOnAuthTimeout = cfg.Workflow.AbortOnAuthTimeout
	wfCfg.StepDelay = cfg.Workflow.StepDelay
	wfCfg.MaxUploadBytes = cfg.Workflow.MaxUploadBytes
	controller := workflow.NewController(client, fetcher, fields.Taqadi(), wfCfg)
	log.Println("✓ Workflow controller initialized")

	sessionMgr := session.NewManager(client, cfg.MaxSessionsPerTenant, cfg.ReviewTTL)
	sessionMgr.SetRetention(cfg.RecordRetention)
	log.Printf("✓ Session registry initialized (%d per tenant, review TTL %s, retention %s)", cfg.MaxSessionsPerTenant, cfg.ReviewTTL, cfg.RecordRetention)

	validator, err := api.NewValidator()
	if err != nil {
		log.Fatalf("Failed to build request schema: %v", err)
	}

	proxyServer := proxy.NewServer(sessionMgr)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerHour, cfg.RateLimitBurst)
	log.Printf("✓ Rate limiter initialized (%d req/hour per tenant)", cfg.RateLimitPerHour)

	handler := api.NewHandler(controller, sessionMgr, validator)
	handler.SetStatusSource(status)
	router := handler.SetupRoutes(proxyServer, rateLimiter)
	log.Println("✓ HTTP routes configured")

	// A submission request lasts as long as the login wait plus filling
	writeTimeout := time.Duration(cfg.Workflow.AuthMaxAttempts)*cfg.Workflow.AuthPollInterval + 10*time.Minute

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on http://localhost:%s", cfg.Port)
		log.Printf("📍 API endpoints available at http://localhost:%s/v1", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("⏳ Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
		return
	}

	log.Println("✅ Server stopped cleanly")
}
