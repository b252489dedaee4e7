package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the raffle bot.
type Config struct {
	TelegramToken  string
	BotUsername    string
	AdminIDs       []int64
	PaystackSecret string
	WebhookSecret  string
	TicketPrice    int
	DatabaseURL    string
	Addr           string
	DigestInterval time.Duration
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken:  strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		BotUsername:    strings.TrimSpace(os.Getenv("BOT_USERNAME")),
		AdminIDs:       parseAdminIDs(os.Getenv("ADMIN_IDS")),
		PaystackSecret: strings.TrimSpace(os.Getenv("PAYSTACK_SECRET")),
		WebhookSecret:  strings.TrimSpace(os.Getenv("PAYSTACK_WEBHOOK_SECRET")),
		TicketPrice:    parsePositiveInt(os.Getenv("TICKET_PRICE")),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Addr:           strings.TrimSpace(os.Getenv("ADDR")),
		DigestInterval: parseInterval(strings.TrimSpace(os.Getenv("DIGEST_INTERVAL_HOURS"))),
	}

	if cfg.BotUsername == "" {
		cfg.BotUsername = "MegaWinRaffleBot"
	}
	if cfg.TicketPrice == 0 {
		cfg.TicketPrice = 500
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "raffle.db"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("BOT_TOKEN is required")
	}
	if cfg.PaystackSecret == "" {
		return cfg, fmt.Errorf("PAYSTACK_SECRET is required")
	}
	if cfg.WebhookSecret == "" {
		// Paystack signs webhook bodies with the account secret key, so the
		// gateway secret doubles as the webhook secret when none is set.
		log.Println("WARNING: PAYSTACK_WEBHOOK_SECRET not set; using PAYSTACK_SECRET for webhook signature checks")
		cfg.WebhookSecret = cfg.PaystackSecret
	}

	return cfg, nil
}

// IsAdmin reports whether the given Telegram ID is a configured admin.
func (c Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func parseAdminIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("ignoring malformed admin id %q", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func parsePositiveInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
