package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	qrcode "github.com/skip2/go-qrcode"

	"raffle-bot/internal/model"
	"raffle-bot/internal/service"
)

func (b *Bot) handleBuyCallback(ctx context.Context, chatID int64, from *tgbotapi.User, rawQty string) error {
	qty, err := strconv.Atoi(rawQty)
	if err != nil {
		return b.sendText(chatID, "❌ Unknown ticket quantity.")
	}
	return b.initiatePurchase(ctx, chatID, from, qty)
}

func (b *Bot) initiatePurchase(ctx context.Context, chatID int64, from *tgbotapi.User, qty int) error {
	checkout, err := b.checkoutSvc.Initiate(ctx, service.Buyer{TelegramID: from.ID, Username: from.UserName}, qty)
	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		return b.sendText(chatID, "❌ Ticket quantity must be at least 1.")
	case errors.Is(err, service.ErrGatewayUnavailable):
		return b.sendText(chatID, "Payment init failed. Try again later.")
	case err != nil:
		log.Printf("initiate purchase user=%d qty=%d: %v", from.ID, qty, err)
		return b.sendText(chatID, "Something went wrong starting your payment. Try again later.")
	}

	text := fmt.Sprintf(
		"🛒 <b>Payment Started</b>\n\n"+
			"Tickets: %d\n"+
			"Amount: ₦%d\n\n"+
			"<a href='%s'>Click here to pay</a>",
		checkout.Quantity, checkout.Amount, checkout.URL,
	)
	if err := b.sendText(chatID, text); err != nil {
		return err
	}

	b.sendCheckoutQR(chatID, checkout.URL)
	return nil
}

// sendCheckoutQR posts a scannable version of the checkout link. Purely a
// convenience; failures are logged and dropped.
func (b *Bot) sendCheckoutQR(chatID int64, url string) {
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		log.Printf("encode checkout qr: %v", err)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "checkout.png", Bytes: png})
	photo.Caption = "Scan to pay"
	if _, err := b.api.Send(photo); err != nil {
		log.Printf("send checkout qr: %v", err)
	}
}

func (b *Bot) showTickets(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	user, err := b.userRepo.FindByTelegramID(ctx, from.ID)
	if err != nil {
		return b.sendText(chatID, "You have no tickets yet.")
	}

	tickets, err := b.ticketRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load your tickets: %s", escape(err.Error())))
	}
	if len(tickets) == 0 {
		return b.sendText(chatID, "You have no tickets yet.")
	}

	var codes []string
	for _, t := range tickets {
		codes = append(codes, t.Code)
	}
	return b.sendText(chatID, "🎟 <b>Your Tickets:</b>\n"+strings.Join(codes, "\n"))
}

func (b *Bot) showBalance(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	balance := 0
	if user, err := b.userRepo.FindByTelegramID(ctx, from.ID); err == nil {
		balance = user.Balance
	}
	return b.sendText(chatID, fmt.Sprintf("💰 Balance: ₦%d", balance))
}

func (b *Bot) showReferral(chatID int64, telegramID int64) error {
	link := fmt.Sprintf("https://t.me/%s?start=ref_%d", b.config.BotUsername, telegramID)
	return b.sendText(chatID, "Invite friends with this link:\n"+link)
}

// PaymentConfirmed implements service.Notifier. The ledger has already
// committed, so every failure here is logged and swallowed.
func (b *Bot) PaymentConfirmed(_ context.Context, user *model.User, quantity int, codes []string) {
	text := fmt.Sprintf(
		"🎉 <b>Payment Confirmed!</b>\n\n"+
			"🎟 Tickets issued: %d\n"+
			"Your ticket codes:\n%s\n\n"+
			"Good luck 🍀",
		quantity, strings.Join(codes, "\n"),
	)
	if err := b.sendText(user.TelegramID, text); err != nil {
		log.Printf("notify payment confirmed to %d: %v", user.TelegramID, err)
	}
}
