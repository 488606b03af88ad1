package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"noirqr/config"
	"noirqr/internal/database"
	"noirqr/internal/domain"
	"noirqr/internal/repository"
	"noirqr/internal/service"

	"gorm.io/gorm"
)

// creditctl is an operator tool for inspecting and adjusting credit balances,
// replacing ad-hoc SQL against production.
//
//	creditctl -email user@example.com                 show balance and recent history
//	creditctl -email user@example.com -grant 5000 -price 2500 -note "support comp"
func main() {
	email := flag.String("email", "", "user email")
	grant := flag.Int("grant", 0, "credits to grant manually")
	priceCents := flag.Int64("price", 0, "monetary amount in cents recorded with the grant")
	note := flag.String("note", "", "description for the grant transaction")
	flag.Parse()

	if *email == "" {
		log.Fatal("creditctl: -email is required")
	}

	cfg := config.Load()
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	ledger := service.NewLedgerService(db, &cfg.Credits)

	u, err := userRepo.GetByEmail(*email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatalf("user not found: %s", *email)
		}
		log.Fatalf("lookup user: %v", err)
	}

	if *grant > 0 {
		desc := *note
		if desc == "" {
			desc = fmt.Sprintf("Manually added: %d QR credits", *grant)
		}
		if _, err := ledger.Grant(u.ID, domain.TxPurchase, *grant, *priceCents, desc, ""); err != nil {
			log.Fatalf("grant: %v", err)
		}
		fmt.Printf("granted %d credits to %s\n", *grant, u.Email)
	}

	bal, err := ledger.Balance(u.ID)
	if err != nil {
		log.Fatalf("balance: %v", err)
	}
	fmt.Printf("\nUser: %s (%s)\n", u.Name, u.Email)
	fmt.Printf("Total:     %d\n", bal.Total)
	fmt.Printf("Used:      %d\n", bal.Used)
	fmt.Printf("Remaining: %d\n", bal.Remaining)

	txns, err := ledger.History(u.ID, 10)
	if err != nil {
		log.Fatalf("history: %v", err)
	}
	fmt.Println("\nRecent transactions:")
	for _, t := range txns {
		fmt.Printf("  %s  %-14s %6d  %s\n", t.CreatedAt.Format("2006-01-02 15:04"), t.Kind, t.Credits, t.Description)
	}
}
