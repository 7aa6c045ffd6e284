package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"morentube/internal/api"
	"morentube/internal/blobstore"
	"morentube/internal/cache"
	"morentube/internal/catalog"
	"morentube/internal/config"
	"morentube/internal/leaderboard"
	"morentube/internal/monitoring"
	"morentube/internal/registry"
	"morentube/internal/security"
	"morentube/internal/tgbot"
	"morentube/internal/youtube"
)

func main() {
	// Загружаем переменные окружения
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blobs, closeBlobs, err := blobstore.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}
	defer closeBlobs()

	catalogStore, closeCatalog, err := catalog.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open catalog store: %v", err)
	}
	defer closeCatalog()

	yt := youtube.New(cfg.YouTubeAPIKey)
	if cfg.YouTubeAPIBase != "" {
		yt.BaseURL = cfg.YouTubeAPIBase
	}
	if cfg.YouTubeCacheTTL > 0 && cfg.RedisURL != "" {
		ytCache, err := cache.Dial(ctx, cfg.RedisURL, "morentube:youtube:", cfg.YouTubeCacheTTL)
		if err != nil {
			log.Printf("Warning: YouTube cache disabled: %v", err)
		} else {
			yt.Cache = ytCache
			defer ytCache.Close()
			log.Printf("YouTube cache enabled, ttl %s", cfg.YouTubeCacheTTL)
		}
	}

	var bot *tgbot.Bot
	if cfg.BotToken != "" {
		bot, err = tgbot.New(cfg.BotToken, cfg.TelegramAPIEndpoint, nil)
		if err != nil {
			log.Printf("Warning: Telegram bot unavailable: %v", err)
			bot = nil
		} else {
			log.Printf("Authorized on account @%s", bot.Username())
		}
	}

	metrics := monitoring.New()

	limiter := security.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, "/api/webhook", "/health", "/metrics")
	go limiter.Run(ctx, time.Minute)

	hub := leaderboard.NewHub(cfg.LeaderboardTop)
	defer hub.Close()

	srv := api.New(api.Deps{
		Config:      cfg,
		Registry:    registry.New(blobs),
		Leaderboard: leaderboard.NewService(blobs, cfg.LeaderboardMaxSize),
		Hub:         hub,
		Catalog:     catalogStore,
		YouTube:     yt,
		Bot:         bot,
		Metrics:     metrics,
		Limiter:     limiter,
	})

	if bot != nil {
		startTelegram(ctx, cfg, bot, srv.Webhook())
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	log.Printf("🚀 morentube server started on port %s", cfg.Port)

	// Ожидание сигнала для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🔄 Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server exited")
}

// startTelegram registers the webhook when a public URL is known, or falls
// back to long polling when asked to.
func startTelegram(ctx context.Context, cfg config.Config, bot *tgbot.Bot, hook *tgbot.Webhook) {
	switch {
	case cfg.SetWebhookOnStart && cfg.PublicBaseURL != "":
		url := fmt.Sprintf("%s/api/webhook", cfg.PublicBaseURL)
		if err := bot.SetWebhook(url, cfg.WebhookSecret); err != nil {
			log.Printf("Warning: setWebhook failed: %v", err)
			return
		}
		log.Printf("Webhook set to %s", url)
	case cfg.PollUpdates:
		go func() {
			if err := bot.Poll(ctx, hook); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Telegram polling stopped: %v", err)
			}
		}()
	}
}
