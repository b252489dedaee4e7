package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"raffle-bot/internal/bot"
	"raffle-bot/internal/config"
	"raffle-bot/internal/paystack"
	"raffle-bot/internal/repository"
	"raffle-bot/internal/service"
	"raffle-bot/internal/web"
)

func main() {
	_ = godotenv.Load() // Load .env file if exists

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	winnerRepo := repository.NewWinnerRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)

	gateway := paystack.NewClient(cfg.PaystackSecret)

	checkoutSvc := service.NewCheckoutService(db, userRepo, purchaseRepo, gateway, cfg.TicketPrice)
	reportSvc := service.NewReportService(userRepo, purchaseRepo, ticketRepo, txnRepo)

	raffleBot, err := bot.New(&cfg, userRepo, ticketRepo, winnerRepo, checkoutSvc, reportSvc)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	reconcileSvc := service.NewReconcileService(db, userRepo, purchaseRepo, ticketRepo, txnRepo, eventRepo, gateway, raffleBot, cfg.WebhookSecret)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: web.Router(reconcileSvc),
	}
	go func() {
		log.Printf("[info] webhook server listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	scheduler := service.NewSchedulerService(time.Local)
	if cfg.DigestInterval > 0 && len(cfg.AdminIDs) > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.DigestInterval, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := sendDigest(jobCtx, raffleBot, reportSvc, cfg.AdminIDs); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("digest: %v", err)
			}
		}); err != nil {
			log.Fatalf("schedule digest: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	log.Println("Raffle bot started.")
	if err := raffleBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	log.Println("Shutdown complete.")
}

func sendDigest(ctx context.Context, raffleBot *bot.Bot, reportSvc *service.ReportService, adminIDs []int64) error {
	text, err := reportSvc.SalesSummary(ctx)
	if err != nil {
		return err
	}
	raffleBot.SendDigest(adminIDs, text)
	return nil
}
