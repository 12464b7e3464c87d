package main

import (
	"context"
	"log"

	"telegram-media-courier/internal/config"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/infra/db/postgres"
	"telegram-media-courier/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
)

// This script is for setting up a clean, predictable database state
// for manual end-to-end testing.
func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	// --- Connect to Postgres ---
	pool := postgres.MustConnectPostgres(cfg.Database.URL)
	defer pool.Close()

	// --- Connect to Redis ---
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer redisClient.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	// 1. Clean the Redis cache to remove any stale locks and cached reports.
	log.Println("[1/3] Wiping Redis cache...")
	if err := redisClient.FlushDB(ctx); err != nil {
		log.Fatalf("failed to flush redis: %v", err)
	}

	// 2. Clean the database completely.
	log.Println("[2/3] Wiping all existing database data...")
	_, err = pool.Exec(ctx, `
		TRUNCATE
			users, sessions, jobs, media_items
		RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	// 3. Seed a known test user so the bot flows have an owner to work with.
	log.Println("[3/3] Seeding test user...")
	seedTestUser(ctx, pool)

	log.Println("--- ✅ E2E Environment Setup Complete ---")
}

func seedTestUser(ctx context.Context, pool *pgxpool.Pool) {
	userRepo := postgres.NewUserRepo(pool)

	u, err := model.NewUser("", 100001, "courier_e2e")
	if err != nil {
		log.Fatalf("failed to build test user: %v", err)
	}
	u.IsAdmin = true
	if err := userRepo.Save(ctx, nil, u); err != nil {
		log.Printf("failed to save test user: %v", err)
	}
}
