package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"raffle-bot/internal/model"
)

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	if !b.config.IsAdmin(msg.From.ID) {
		return b.sendText(msg.Chat.ID, "⛔ Admin only")
	}

	text, err := b.reportSvc.SalesSummary(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build stats: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleBroadcast(ctx context.Context, msg *tgbotapi.Message) error {
	if !b.config.IsAdmin(msg.From.ID) {
		return b.sendText(msg.Chat.ID, "⛔ Admin only")
	}

	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		return b.sendText(msg.Chat.ID, "Usage: /broadcast your message")
	}

	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load users: %s", escape(err.Error())))
	}

	sent := 0
	for _, u := range users {
		if err := b.sendText(u.TelegramID, text); err != nil {
			log.Printf("broadcast to %d: %v", u.TelegramID, err)
			continue
		}
		sent++
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Broadcast sent to %d users", sent))
}

// SendDigest pushes the periodic sales summary to every configured admin.
func (b *Bot) SendDigest(adminIDs []int64, text string) {
	for _, id := range adminIDs {
		if err := b.sendText(id, text); err != nil {
			log.Printf("send digest to %d: %v", id, err)
		}
	}
}

// handleAnnounceWinner records a manually picked winning ticket and
// congratulates its holder. Picking the code is up to the admin.
func (b *Bot) handleAnnounceWinner(ctx context.Context, msg *tgbotapi.Message) error {
	if !b.config.IsAdmin(msg.From.ID) {
		return b.sendText(msg.Chat.ID, "⛔ Admin only")
	}

	code := strings.ToUpper(strings.TrimSpace(msg.CommandArguments()))
	if code == "" {
		return b.sendText(msg.Chat.ID, "Usage: /announce_winner TICKET_CODE")
	}
	if !strings.HasPrefix(code, "#") {
		code = "#" + code
	}

	ticket, err := b.ticketRepo.FindByCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return b.sendText(msg.Chat.ID, "❌ Ticket not found")
	}
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not look up ticket: %s", escape(err.Error())))
	}

	if err := b.winnerRepo.Create(ctx, &model.Winner{
		TicketCode:  ticket.Code,
		UserID:      ticket.UserID,
		AnnouncedBy: fmt.Sprintf("%d", msg.From.ID),
	}); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not record winner: %s", escape(err.Error())))
	}

	if holder, err := b.userRepo.FindByID(ctx, ticket.UserID); err == nil {
		if err := b.sendText(holder.TelegramID, fmt.Sprintf("🏆 <b>Your ticket %s won the raffle!</b>\nWe will contact you shortly.", escape(ticket.Code))); err != nil {
			log.Printf("congratulate winner %d: %v", holder.TelegramID, err)
		}
	}

	return b.sendText(msg.Chat.ID, fmt.Sprintf("🏆 Winner announced: %s", escape(ticket.Code)))
}
