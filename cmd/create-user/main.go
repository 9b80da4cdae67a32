package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/apikey"
	"github.com/dejobratic/storefront/internal/config"
	"github.com/dejobratic/storefront/internal/database"
	orderspostgres "github.com/dejobratic/storefront/internal/orders/adapters/postgres"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

func main() {
	email := flag.String("email", "", "Account email")
	name := flag.String("name", "", "Display name")
	role := flag.String("role", string(domain.RoleCustomer), "CUSTOMER or ADMIN")
	flag.Parse()

	user, err := newUser(*email, *name, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: create-user --email ops@example.com --name \"Ops\" --role ADMIN")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.Driver != "postgres" {
		fmt.Fprintln(os.Stderr, "create-user needs DATABASE_DRIVER=postgres")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	creds, err := apikey.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate API key: %v\n", err)
		os.Exit(1)
	}
	user.APIKeyHash = creds.Hash
	user.APIKeyLookup = creds.Lookup

	err = orderspostgres.NewStore(pool).InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Users().Create(ctx, user)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User created\n\n")
	fmt.Printf("ID:    %s\n", user.ID)
	fmt.Printf("Email: %s\n", user.Email)
	fmt.Printf("Role:  %s\n", user.Role)
	fmt.Printf("Key:   %s\n\n", creds.Plain)
	fmt.Println("Store this key now. Only its hash is kept.")
	fmt.Printf("Authorization: Bearer %s\n", creds.Plain)
}

func newUser(email, name, role string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, fmt.Errorf("a valid --email is required")
	}

	r := domain.Role(strings.ToUpper(strings.TrimSpace(role)))
	if r != domain.RoleCustomer && r != domain.RoleAdmin {
		return domain.User{}, fmt.Errorf("unknown role %q", role)
	}

	return domain.User{
		ID:        domain.NewID(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Role:      r,
		CreatedAt: time.Now().UTC(),
	}, nil
}
