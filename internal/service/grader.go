package service

import (
	"strings"

	"github.com/tossconsultancy/assessment-backend/internal/model"
)

// Grade produces one result per question in questionIDs order. An unanswered
// question has a nil selection and a nil correctness. A selection for a question
// missing from key is graded incorrect.
func Grade(candidateID int64, questionIDs []int64, ledger map[int64]*string, key map[int64]string) []model.Result {
	results := make([]model.Result, 0, len(questionIDs))
	for _, qid := range questionIDs {
		res := model.Result{CandidateID: candidateID, QuestionID: qid}

		if sel, ok := ledger[qid]; ok && sel != nil && *sel != "" {
			opt := strings.ToUpper(*sel)
			correct := opt == strings.ToUpper(key[qid])
			res.SelectedOption = &opt
			res.IsCorrect = &correct
		}

		results = append(results, res)
	}
	return results
}

// Score counts correct results.
func Score(results []model.Result) (correct, attempted int) {
	for _, r := range results {
		if r.SelectedOption != nil {
			attempted++
		}
		if r.IsCorrect != nil && *r.IsCorrect {
			correct++
		}
	}
	return correct, attempted
}
