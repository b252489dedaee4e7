package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("PAYSTACK_SECRET", "sk_test_x")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TicketPrice != 500 {
		t.Errorf("TicketPrice = %d, want default 500", cfg.TicketPrice)
	}
	if cfg.DatabaseURL != "raffle.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.WebhookSecret != "sk_test_x" {
		t.Errorf("WebhookSecret = %q, want fallback to gateway secret", cfg.WebhookSecret)
	}
}

func TestLoad_RefusesWithoutGatewaySecret(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("PAYSTACK_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without PAYSTACK_SECRET")
	}
}

func TestLoad_RefusesWithoutBotToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("PAYSTACK_SECRET", "sk_test_x")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without BOT_TOKEN")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYSTACK_WEBHOOK_SECRET", "whsec_y")
	t.Setenv("TICKET_PRICE", "750")
	t.Setenv("ADMIN_IDS", "11, 22,bogus,33")
	t.Setenv("DIGEST_INTERVAL_HOURS", "6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WebhookSecret != "whsec_y" {
		t.Errorf("WebhookSecret = %q", cfg.WebhookSecret)
	}
	if cfg.TicketPrice != 750 {
		t.Errorf("TicketPrice = %d", cfg.TicketPrice)
	}
	if want := []int64{11, 22, 33}; len(cfg.AdminIDs) != len(want) {
		t.Errorf("AdminIDs = %v, want %v", cfg.AdminIDs, want)
	} else {
		for i := range want {
			if cfg.AdminIDs[i] != want[i] {
				t.Errorf("AdminIDs[%d] = %d, want %d", i, cfg.AdminIDs[i], want[i])
			}
		}
	}
	if cfg.DigestInterval != 6*time.Hour {
		t.Errorf("DigestInterval = %v", cfg.DigestInterval)
	}

	if !cfg.IsAdmin(22) || cfg.IsAdmin(44) {
		t.Error("IsAdmin misclassified configured ids")
	}
}
