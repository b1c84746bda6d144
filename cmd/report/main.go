package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/tossconsultancy/assessment-backend/internal/config"
	"github.com/tossconsultancy/assessment-backend/internal/database"
	"github.com/tossconsultancy/assessment-backend/internal/logger"
	"github.com/tossconsultancy/assessment-backend/internal/model"
	"github.com/tossconsultancy/assessment-backend/internal/repository"
)

func main() {
	var passMark float64
	flag.Float64Var(&passMark, "pass", 0.6, "Score ratio highlighted as a pass")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)
	resultRepo := repository.NewResultRepository(pool)

	counts, err := questionRepo.CountByRoleLevel(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count questions")
	}
	submissions, err := resultRepo.ListAllSubmissions(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list submissions")
	}

	printBank(cfg.Catalog, cfg.Quiz.QuestionCount, counts)
	fmt.Println()
	printSubmissions(submissions, passMark)
}

// printBank shows how many questions each catalog pair holds, flagging pairs
// that cannot fill a full attempt.
func printBank(catalog *config.Catalog, perAttempt int, counts map[[2]string]int) {
	color.Cyan("Question bank (%d per attempt)", perAttempt)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Role", "Level", "Questions"})
	for _, role := range catalog.Roles {
		for _, level := range catalog.Levels {
			n := counts[[2]string{role, level}]
			cell := strconv.Itoa(n)
			switch {
			case n == 0:
				cell = color.RedString("%d", n)
			case n < perAttempt:
				cell = color.YellowString("%d", n)
			}
			table.Append([]string{role, level, cell})
		}
	}
	table.Render()
}

func printSubmissions(items []model.SubmissionSummary, passMark float64) {
	color.Cyan("Submissions (%d)", len(items))
	if len(items) == 0 {
		color.Yellow("No graded submissions yet.")
		return
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SubmittedAt.After(items[j].SubmittedAt)
	})

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "Email", "Role", "Level", "Score", "Submitted"})
	passed := 0
	for _, s := range items {
		score, pass := formatScore(s.Correct, s.Total, passMark)
		if pass {
			passed++
		}
		table.Append([]string{
			strconv.FormatInt(s.CandidateID, 10),
			s.Name,
			s.Email,
			s.Role,
			s.Level,
			score,
			s.SubmittedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	color.Green("%d of %d at or above %.0f%%", passed, len(items), passMark*100)
}

// formatScore renders correct/total, in green when it reaches passMark.
func formatScore(correct, total int, passMark float64) (string, bool) {
	score := fmt.Sprintf("%d/%d", correct, total)
	if total == 0 || float64(correct)/float64(total) < passMark {
		return score, false
	}
	return color.GreenString("%s", score), true
}
