package service

import (
	"context"
	"fmt"
	"strings"

	"raffle-bot/internal/repository"
)

// ReportService builds the sales summary used by the /stats command and
// the periodic admin digest.
type ReportService struct {
	users     *repository.UserRepository
	purchases *repository.PurchaseRepository
	tickets   *repository.TicketRepository
	txns      *repository.TransactionRepository
}

func NewReportService(users *repository.UserRepository, purchases *repository.PurchaseRepository, tickets *repository.TicketRepository, txns *repository.TransactionRepository) *ReportService {
	return &ReportService{users: users, purchases: purchases, tickets: tickets, txns: txns}
}

// SalesSummary returns an HTML-formatted snapshot of users, tickets and
// confirmed revenue.
func (s *ReportService) SalesSummary(ctx context.Context) (string, error) {
	userCount, err := s.users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("count users: %w", err)
	}
	purchaseCount, err := s.purchases.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("count purchases: %w", err)
	}
	ticketCount, err := s.tickets.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("count tickets: %w", err)
	}
	revenue, err := s.txns.TotalRevenue(ctx)
	if err != nil {
		return "", fmt.Errorf("sum revenue: %w", err)
	}

	var b strings.Builder
	b.WriteString("📊 <b>Raffle Stats</b>\n\n")
	fmt.Fprintf(&b, "Users: %d\n", userCount)
	fmt.Fprintf(&b, "Checkouts: %d\n", purchaseCount)
	fmt.Fprintf(&b, "Tickets issued: %d\n", ticketCount)
	fmt.Fprintf(&b, "Revenue: ₦%d", revenue)
	return b.String(), nil
}
