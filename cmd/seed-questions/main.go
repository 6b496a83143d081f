package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/vocab-quiz/internal/config"
	"github.com/stemsi/vocab-quiz/internal/database"
	"github.com/stemsi/vocab-quiz/internal/logger"
	"github.com/stemsi/vocab-quiz/internal/repository"
	"github.com/stemsi/vocab-quiz/internal/service"
)

func main() {
	var bankPath string
	flag.StringVar(&bankPath, "file", "", "Path to a YAML question bank")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "seed_questions").Logger()

	if bankPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: seed-questions -file <bank.yaml>")
		os.Exit(2)
	}

	f, err := os.Open(bankPath)
	if err != nil {
		log.Fatal().Err(err).Str("file", bankPath).Msg("Failed to open bank")
	}
	meta, questions, err := parseBank(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Str("file", bankPath).Msg("Invalid bank")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	testRepo := repository.NewTestRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)

	if err := testRepo.Upsert(ctx, meta); err != nil {
		log.Fatal().Err(err).Msg("Failed to upsert test")
	}

	removed, err := questionRepo.DeleteByTest(ctx, meta.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to clear old questions")
	}

	for i := range questions {
		questions[i].TestID = meta.ID
		if err := questionRepo.Create(ctx, &questions[i]); err != nil {
			log.Fatal().Err(err).Int("order", questions[i].OrderNum).Msg("Failed to insert question")
		}
	}

	log.Info().
		Str("test_id", meta.ID.String()).
		Str("title", meta.Title).
		Int64("removed", removed).
		Int("inserted", len(questions)).
		Msg("Question bank seeded")

	// Drop stale cache entries so running servers pick up the new bank.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, cached bank expires on its own")
		return
	}
	defer rdb.Close()

	bank := service.NewQuestionBankService(questionRepo, testRepo, rdb, cfg.QuestionCacheTTL, log)
	if err := bank.Invalidate(ctx, meta.ID); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate cached bank")
	}
}
