package bot

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"raffle-bot/internal/config"
	"raffle-bot/internal/model"
	"raffle-bot/internal/repository"
	"raffle-bot/internal/service"
)

const (
	cbOpenBuy   = "open_buy"
	cbTickets   = "tickets"
	cbReferral  = "referral"
	cbHelp      = "help"
	cbBack      = "back"
	cbBuyPrefix = "buy_"
)

// Bot aggregates the Telegram API with the raffle services.
type Bot struct {
	api         *tgbotapi.BotAPI
	userRepo    *repository.UserRepository
	ticketRepo  *repository.TicketRepository
	winnerRepo  *repository.WinnerRepository
	checkoutSvc *service.CheckoutService
	reportSvc   *service.ReportService
	config      *config.Config
}

func New(cfg *config.Config, userRepo *repository.UserRepository, ticketRepo *repository.TicketRepository, winnerRepo *repository.WinnerRepository, checkoutSvc *service.CheckoutService, reportSvc *service.ReportService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:         api,
		userRepo:    userRepo,
		ticketRepo:  ticketRepo,
		winnerRepo:  winnerRepo,
		checkoutSvc: checkoutSvc,
		reportSvc:   reportSvc,
		config:      cfg,
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Use the menu below 👇")
}

// canonicalCommand folds legacy command aliases into their current names.
func canonicalCommand(cmd string) string {
	switch cmd {
	case "userstat":
		return "tickets"
	default:
		return cmd
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch canonicalCommand(msg.Command()) {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "buy":
		return b.sendWithMarkup(msg.Chat.ID, "Choose ticket quantity:", buyMenuKeyboard(b.checkoutSvc.TicketPrice()))
	case "tickets":
		return b.showTickets(ctx, msg.Chat.ID, msg.From)
	case "balance":
		return b.showBalance(ctx, msg.Chat.ID, msg.From)
	case "referral":
		return b.showReferral(msg.Chat.ID, msg.From.ID)
	case "stats":
		return b.handleStats(ctx, msg)
	case "broadcast":
		return b.handleBroadcast(ctx, msg)
	case "announce_winner":
		return b.handleAnnounceWinner(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "❌ Unknown command.\n\nUse /help or the menu below.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	chatID := cb.Message.Chat.ID
	switch {
	case cb.Data == cbOpenBuy:
		return b.sendWithMarkup(chatID, "Choose ticket quantity:", buyMenuKeyboard(b.checkoutSvc.TicketPrice()))
	case cb.Data == cbTickets:
		return b.showTickets(ctx, chatID, cb.From)
	case cb.Data == cbReferral:
		return b.showReferral(chatID, cb.From.ID)
	case cb.Data == cbHelp:
		return b.handleHelp(cb.Message)
	case cb.Data == cbBack:
		return b.sendText(chatID, "Main menu:")
	case strings.HasPrefix(cb.Data, cbBuyPrefix):
		return b.handleBuyCallback(ctx, chatID, cb.From, strings.TrimPrefix(cb.Data, cbBuyPrefix))
	default:
		return nil
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	b.creditReferral(ctx, user, msg.CommandArguments())

	text := fmt.Sprintf(
		"🎉 <b>Welcome to MegaWin Raffle</b>\n\n"+
			"Each ticket costs ₦%d.\n"+
			"Use the menu below 👇",
		b.checkoutSvc.TicketPrice(),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Help</b>\n\n" +
		"/buy – Buy tickets\n" +
		"/tickets – My tickets\n" +
		"/balance – Wallet balance\n" +
		"/referral – Referral link\n" +
		"/help – This message"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.GetOrCreate(ctx, from.ID, from.UserName, service.SynthesizeEmail(from.ID))
}

// creditReferral handles a /start deep link payload of the form ref_<id>.
func (b *Bot) creditReferral(ctx context.Context, user *model.User, payload string) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "ref_") {
		return
	}
	var referrerID int64
	if _, err := fmt.Sscanf(strings.TrimPrefix(payload, "ref_"), "%d", &referrerID); err != nil {
		return
	}
	referrer, err := b.userRepo.FindByTelegramID(ctx, referrerID)
	if err != nil {
		return
	}
	if err := b.userRepo.CreditReferral(ctx, user, referrer); err != nil {
		log.Printf("credit referral %d -> %d: %v", referrerID, user.TelegramID, err)
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendWithMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎟 Buy Tickets", cbOpenBuy),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 My Tickets", cbTickets),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👥 Referral", cbReferral),
			tgbotapi.NewInlineKeyboardButtonData("ℹ Help", cbHelp),
		),
	)
}

func buyMenuKeyboard(price int) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Buy 1 (₦%d)", price), cbBuyPrefix+"1"),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Buy 5 (₦%d)", 5*price), cbBuyPrefix+"5"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Buy 10 (₦%d)", 10*price), cbBuyPrefix+"10"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cbBack),
		),
	)
}

func escape(s string) string {
	return html.EscapeString(s)
}
