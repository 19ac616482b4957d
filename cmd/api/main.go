package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"caseload/api/internal/app"
	"caseload/api/internal/auth"
	"caseload/api/internal/blob"
	"caseload/api/internal/config"
	"caseload/api/internal/email"
	"caseload/api/internal/linkpreview"
	"caseload/api/internal/search"
	"caseload/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	pgSearch := search.NewPgSearch(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgSearch)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	var blobs *blob.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobs, err = blob.NewStore(ctx, blob.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Printf("WARNING: upload storage unavailable: %v", err)
			blobs = nil
		}
	}

	var previewCache linkpreview.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisCache, err := linkpreview.NewRedisCache(cfg.RedisURL, cfg.PreviewCacheTTL)
		if err != nil {
			log.Printf("WARNING: preview cache unavailable: %v", err)
		} else {
			defer redisCache.Close()
			previewCache = redisCache
		}
	}
	previewFetcher := linkpreview.NewFetcher(cfg.LinkFetchTimeout, previewCache)

	emailService := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !emailService.IsConfigured() {
		log.Printf("SMTP not configured, intake invites will not be emailed")
	}

	verifier := auth.NewVerifier(cfg.JWKSURL, cfg.JWTIssuer, cfg.DevJWTSecret)

	service := app.NewService(dataStore, app.ServiceOptions{
		Search:           searchService,
		Email:            emailService,
		Blobs:            blobs,
		Preview:          previewFetcher,
		PublicBaseURL:    cfg.PublicBaseURL,
		IntakeExpiryDays: cfg.IntakeExpiryDays,
	})

	httpServer := app.NewHTTPServer(service, verifier, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Caseload API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
