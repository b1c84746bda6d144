package model

import "time"

// Result is the graded outcome for one question, written once at submission.
type Result struct {
	CandidateID    int64     `json:"candidate_id"`
	QuestionID     int64     `json:"question_id"`
	SelectedOption *string   `json:"selected_option"`
	IsCorrect      *bool     `json:"is_correct"`
	CreatedAt      time.Time `json:"created_at"`
}

// ResultItem is one row of a result view.
type ResultItem struct {
	QuestionID     int64   `json:"question_id"`
	Question       string  `json:"question"`
	SelectedOption *string `json:"selected_option"`
	IsCorrect      *bool   `json:"is_correct"`
	CorrectOption  string  `json:"correct_option,omitempty"`
}

// ResultView is a candidate's graded submission.
type ResultView struct {
	CandidateID int64        `json:"candidate_id"`
	Name        string       `json:"name"`
	Role        string       `json:"role"`
	Level       string       `json:"level"`
	Score       int          `json:"score"`
	Total       int          `json:"total"`
	Attempted   int          `json:"attempted"`
	SubmittedAt time.Time    `json:"submitted_at"`
	Items       []ResultItem `json:"items"`
}

// SubmissionSummary is one line of the admin submission listing.
type SubmissionSummary struct {
	CandidateID int64     `json:"candidate_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Mobile      string    `json:"mobile"`
	Role        string    `json:"role"`
	Level       string    `json:"level"`
	Location    string    `json:"location"`
	Correct     int       `json:"correct"`
	Total       int       `json:"total"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ResultQuery selects whose result to show.
type ResultQuery struct {
	CandidateID int64 `form:"candidate_id" binding:"required,gt=0"`
}

// ListSubmissionsQuery pages through submissions.
type ListSubmissionsQuery struct {
	Page    int `form:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1,max=200"`
}
