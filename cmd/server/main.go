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

	"mizupay/config"
	"mizupay/internal/database"
	"mizupay/internal/middleware"
	"mizupay/internal/repository"
	"mizupay/internal/router"
	"mizupay/internal/service"
	"mizupay/internal/ws"
	"mizupay/pkg/cardcipher"
	"mizupay/pkg/cloudinary"
	"mizupay/pkg/indexer"
	"mizupay/pkg/mailer"
	"mizupay/pkg/pricefeed"
)

func main() {
	cfg := config.Load()
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	database.SeedAdmin(db)

	cipher, err := cardcipher.New(cfg.Cards.CipherKey)
	if err != nil {
		log.Fatalf("cardcipher: %v", err)
	}

	var cloud cloudinary.Client = cloudinary.NoOp{}
	if cfg.Cloudinary.CloudName != "" {
		cloud, err = cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			log.Fatalf("cloudinary: %v", err)
		}
	}

	limiter := middleware.NewRateLimiter(100, 60*time.Second)
	defer limiter.Stop()

	hub := ws.NewSessionHub()
	deps := router.Deps{
		DB:      db,
		Cipher:  cipher,
		Cloud:   cloud,
		Mailer:  mailer.NewClient(cfg.Mailer.BaseURL, cfg.Mailer.APIKey, cfg.Mailer.From),
		Indexer: indexer.NewClient(cfg.Indexer.BaseURL, cfg.Indexer.APIKey),
		Feed:    pricefeed.NewClient(cfg.PriceFeed.BaseURL, cfg.PriceFeed.CacheTTL),
		Hub:     hub,
		Limiter: limiter,
	}
	engine := router.Setup(cfg, deps)

	// Background expiry sweep for sessions nobody queries. Lazy expiry on the
	// read path keeps correctness even if this is disabled.
	stopSweep := make(chan struct{})
	if cfg.Session.SweepInterval > 0 {
		sessionSvc := service.NewSessionService(repository.NewSessionRepository(db), cfg.Session.DefaultTTL)
		go func() {
			tick := time.NewTicker(cfg.Session.SweepInterval)
			defer tick.Stop()
			for {
				select {
				case <-stopSweep:
					return
				case <-tick.C:
					if _, err := sessionSvc.ExpireOverdue(); err != nil {
						log.Printf("[Sweep] expiry sweep failed: %v", err)
					}
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")
	close(stopSweep)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server shutdown:", err)
	}
	fmt.Println("server stopped")
}
