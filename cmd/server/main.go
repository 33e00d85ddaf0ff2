package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/facility_triage/configs"
	"github.com/facility_triage/internal/auth"
	"github.com/facility_triage/internal/config"
	"github.com/facility_triage/internal/feed"
	"github.com/facility_triage/internal/handlers"
	"github.com/facility_triage/internal/repositories"
	"github.com/facility_triage/internal/routes"
	"github.com/facility_triage/internal/services"
	"github.com/facility_triage/pkg/db"
	"github.com/facility_triage/pkg/email"
	"github.com/facility_triage/pkg/storage"
	"github.com/facility_triage/pkg/utils"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
)

// @title Facility Triage API
// @version 1.0
// @description Complaint intake, triage and slot scheduling for campus facilities.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
func main() {
	configs.LoadConfig()
	cfg := configs.AppConfig

	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		log.Fatalf("Failed to load triage policy: %v", err)
	}
	if err := utils.RegisterBindingValidators(policy.KnownCategory); err != nil {
		log.Fatalf("Failed to register validators: %v", err)
	}

	db.InitDB(cfg.DBDriver, cfg.DBSource)
	defer db.CloseDB()
	gdb := db.GetDB()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := feed.NewHub()
	go hub.Run(ctx)

	var (
		rdb       *redis.Client
		publisher feed.Publisher = feed.NewHubPublisher(hub)
		denylist  auth.Denylist  = auth.NewMemoryDenylist()
		notifiers services.MultiNotifier
	)
	if cfg.RedisAddr != "" {
		rdb, err = db.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		publisher = feed.NewRedisPublisher(rdb, feed.DefaultChannel)
		denylist = auth.NewRedisDenylist(rdb)
		notifiers = append(notifiers, services.NewRedisNotifier(rdb))
		go feed.Bridge(ctx, rdb, feed.DefaultChannel, hub)
	}
	if smtpCfg, err := email.LoadSMTPConfigFromEnv(); err == nil {
		notifiers = append(notifiers, services.NewEmailNotifier(smtpCfg, cfg.FrontendBaseURL))
	} else {
		log.Printf("INFO: email notifications disabled: %v", err)
	}

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			log.Fatalf("Failed to connect to Telegram: %v", err)
		}
		log.Printf("INFO: staff alerts go to Telegram chat %d as %s", cfg.TelegramChatID, bot.Self.UserName)
		notifiers = append(notifiers, services.NewTelegramNotifier(bot, cfg.TelegramChatID))
	}

	ledger := repositories.NewGormReservationLedger(gdb)
	complaintRepo := repositories.NewGormComplaintRepository(gdb, ledger)
	userRepo := repositories.NewGormUserRepository(gdb)

	triage, err := services.NewTriageService(complaintRepo, ledger, policy, publisher, notifiers)
	if err != nil {
		log.Fatalf("Failed to build triage service: %v", err)
	}

	var attachments *handlers.AttachmentHandler
	if cfg.MinioEndpoint != "" {
		minioClient, err := storage.NewMinioClient(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("Failed to initialise attachment storage: %v", err)
		}
		store := storage.NewMinioStore(minioClient, cfg.MinioBucket, cfg.MinioPublicURL)
		attachments = handlers.NewAttachmentHandler(services.NewAttachmentService(store))
	}

	origins := splitOrigins(cfg.FrontendBaseURL)
	router := gin.Default()
	routes.SetupRoutes(router, routes.Dependencies{
		Auth:           handlers.NewAuthHandler(userRepo, cfg.JWTSecret, denylist),
		Complaints:     handlers.NewComplaintHandler(triage),
		Feed:           handlers.NewFeedHandler(hub, origins),
		Attachments:    attachments,
		JWT:            auth.JWTMiddleware(cfg.JWTSecret, denylist),
		AllowedOrigins: origins,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}
	go func() {
		log.Printf("Server starting on port %s...", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shut down: %v", err)
	}
	triage.Wait()
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
