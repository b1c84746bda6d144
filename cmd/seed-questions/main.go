package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tossconsultancy/assessment-backend/internal/config"
	"github.com/tossconsultancy/assessment-backend/internal/database"
	"github.com/tossconsultancy/assessment-backend/internal/logger"
	"github.com/tossconsultancy/assessment-backend/internal/model"
	"github.com/tossconsultancy/assessment-backend/internal/repository"
	"gopkg.in/yaml.v3"
)

// questionFile is the seed document: a flat list of questions.
type questionFile struct {
	Questions []model.Question `yaml:"questions"`
}

func main() {
	var path string
	var dryRun bool
	flag.StringVar(&path, "file", "questions.yaml", "YAML file holding the question bank")
	flag.BoolVar(&dryRun, "dry-run", false, "Validate the file without writing")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	questions, err := readQuestions(path, cfg.Catalog)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Invalid question file")
	}
	fmt.Printf("=== %d valid questions in %s ===\n", len(questions), path)
	if dryRun {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)
	n, err := questionRepo.BulkInsert(ctx, questions)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to insert questions")
	}

	fmt.Printf("\nSeed completed! Inserted %d questions.\n", n)
}

// readQuestions decodes and validates the seed file, canonicalising role,
// level and correct option.
func readQuestions(path string, catalog *config.Catalog) ([]model.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc questionFile
	if err := yaml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(doc.Questions) == 0 {
		return nil, fmt.Errorf("no questions found")
	}

	for i := range doc.Questions {
		if err := normalizeQuestion(&doc.Questions[i], catalog); err != nil {
			return nil, fmt.Errorf("question #%d: %w", i+1, err)
		}
	}
	return doc.Questions, nil
}

func normalizeQuestion(q *model.Question, catalog *config.Catalog) error {
	role, ok := catalog.CanonicalRole(q.Role)
	if !ok {
		return fmt.Errorf("unknown role %q", q.Role)
	}
	level, ok := catalog.CanonicalLevel(q.Level)
	if !ok {
		return fmt.Errorf("unknown level %q", q.Level)
	}
	q.Role, q.Level = role, level

	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return fmt.Errorf("question text is empty")
	}
	for _, opt := range []string{q.OptionA, q.OptionB, q.OptionC, q.OptionD} {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("all four options are required")
		}
	}

	q.CorrectOption = strings.ToUpper(strings.TrimSpace(q.CorrectOption))
	switch q.CorrectOption {
	case "A", "B", "C", "D":
	default:
		return fmt.Errorf("correct_option must be one of A, B, C, D; got %q", q.CorrectOption)
	}
	return nil
}
