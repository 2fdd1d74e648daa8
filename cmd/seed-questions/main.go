package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/exstem-practice/internal/cache"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/database"
	"github.com/stemsi/exstem-practice/internal/logger"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/repository"
	"github.com/stemsi/exstem-practice/internal/service"
)

func main() {
	replace := flag.Bool("replace", false, "delete existing questions of each exam code before inserting")
	dryRun := flag.Bool("dry-run", false, "validate the banks without touching the database")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: seed-questions [flags] <bank.yaml>...")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.Component(logger.Setup(cfg.LogLevel, cfg.LogFormat), "seed_questions")

	// Parse and validate everything before connecting anywhere.
	banks := make([]*Bank, 0, flag.NArg())
	for _, path := range flag.Args() {
		bank, err := loadBank(path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load question bank")
		}
		questions := bank.Expand()
		for i, q := range questions {
			if err := service.ValidateQuestion(q); err != nil {
				log.Fatal().Err(err).Str("file", path).Int("question", i).Msg("Invalid question")
			}
		}
		banks = append(banks, bank)
		log.Info().Str("file", path).Str("exam_code", bank.ExamCode).Int("questions", len(questions)).Msg("Bank loaded")
	}
	if *dryRun {
		fmt.Println("All banks are valid.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	questionService := service.NewQuestionService(
		repository.NewPracticeQuestionRepository(pool),
		cache.NewQuestionCache(rdb, cfg.QuestionCacheTTL),
		log,
	)

	total := 0
	for _, bank := range banks {
		if *replace {
			n, err := questionService.DeleteByFilter(ctx, model.QuestionFilter{ExamCode: bank.ExamCode})
			if err != nil {
				log.Fatal().Err(err).Str("exam_code", bank.ExamCode).Msg("Failed to clear exam code")
			}
			log.Info().Str("exam_code", bank.ExamCode).Int("deleted", n).Msg("Existing questions removed")
		}

		questions := bank.Expand()
		if err := questionService.CreateBatch(ctx, questions); err != nil {
			log.Fatal().Err(err).Str("exam_code", bank.ExamCode).Msg("Failed to insert questions")
		}
		total += len(questions)
	}

	fmt.Printf("Seed completed! Inserted %d questions across %d exam codes.\n", total, len(banks))
}
