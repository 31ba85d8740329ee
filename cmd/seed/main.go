package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"vessel-trajectory-service/internal/config"
	"vessel-trajectory-service/internal/domain"
	"vessel-trajectory-service/internal/domain/model"
	"vessel-trajectory-service/internal/domain/ports/repository"
	pg "vessel-trajectory-service/internal/infra/db/postgres"
	"vessel-trajectory-service/internal/infra/web"
)

// Seeds an admin and a demo user and prints bearer tokens for both, so a
// fresh deployment can be exercised without a separate identity provider.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	userRepo := pg.NewPostgresUserRepo(pool)
	auth := web.NewAuthManager(cfg.Auth.JWTSecret)

	seed := []struct {
		Email    string
		Username string
		Role     model.Role
		Credits  float64
	}{
		{"admin@example.com", "admin", model.RoleAdmin, 100},
		{"demo@example.com", "demo", model.RoleUser, 10},
	}

	for _, s := range seed {
		existing, err := userRepo.FindByEmail(ctx, repository.NoTX, s.Email)
		if err == nil {
			fmt.Printf("%s already present (id=%s). No changes.\n", s.Email, existing.ID)
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			log.Fatalf("lookup %q: %v", s.Email, err)
		}

		u, err := model.NewUser("", s.Email, s.Username, s.Role)
		if err != nil {
			log.Fatalf("build user %q: %v", s.Email, err)
		}
		u.CreditMicros = model.CreditsToMicros(s.Credits)
		if err := userRepo.Save(ctx, repository.NoTX, u); err != nil {
			log.Fatalf("save user %q: %v", s.Email, err)
		}

		token, err := auth.Mint(model.IdentityClaims{Email: u.Email, Username: u.Username})
		if err != nil {
			log.Fatalf("mint token for %q: %v", s.Email, err)
		}
		fmt.Printf("seeded: %s (id=%s, role=%s, credit=%.2f)\n", u.Email, u.ID, u.Role, s.Credits)
		fmt.Printf("  token: %s\n", token)
	}

	fmt.Println("Seeding complete.")
}
