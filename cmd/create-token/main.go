package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/liezira/simutbk-backend/internal/config"
	"github.com/liezira/simutbk-backend/internal/database"
	"github.com/liezira/simutbk-backend/internal/logger"
	"github.com/liezira/simutbk-backend/internal/repository"
	"github.com/liezira/simutbk-backend/internal/service"
)

func main() {
	var count int
	flag.IntVar(&count, "n", 1, "Number of tokens to issue for the same name")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Service ────────────────────────────────────────────
	tokenRepo := repository.NewTokenRepository(pool)
	authService := service.NewAuthService(cfg, rdb, tokenRepo)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Issue Exam Tokens ===")

	fmt.Print("Enter Participant Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Phone (optional, for the dispatch list): ")
	phone, _ := reader.ReadString('\n')
	phone = strings.TrimSpace(phone)

	// ─── Logic ─────────────────────────────────────────────────────────
	for i := 0; i < count; i++ {
		t, err := authService.IssueToken(ctx, name, phone)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to issue token")
		}
		fmt.Printf("%s  (valid until %s)\n", t.Code, t.ExpiresAt.Format("2006-01-02 15:04"))
	}
}
