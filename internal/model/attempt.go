package model

import "time"

// AttemptStatus enumerates attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusExpired    AttemptStatus = "expired"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
)

// Attempt is one candidate's run at one (role, level) assessment.
type Attempt struct {
	ID                   int64         `json:"attempt_id"`
	CandidateID          int64         `json:"candidate_id"`
	Role                 string        `json:"role"`
	Level                string        `json:"level"`
	QuestionIDs          []int64       `json:"question_ids"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	Status               AttemptStatus `json:"status"`
	StartTime            time.Time     `json:"start_time"`
	ExpiresAt            time.Time     `json:"expires_at"`
	DurationSeconds      int           `json:"duration_seconds"`
	RemainingTimeSeconds int           `json:"remaining_time_seconds"`
	LastActivityTime     time.Time     `json:"last_activity_time"`
	ExpiredAt            *time.Time    `json:"expired_at,omitempty"`
	EndTime              *time.Time    `json:"end_time,omitempty"`
}

// RemainingSeconds is the seconds left before ExpiresAt, rounded up, so it is
// zero only once the deadline has been reached.
func (a *Attempt) RemainingSeconds(now time.Time) int {
	d := a.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// HasQuestion reports whether questionID belongs to the attempt's fixed set.
func (a *Attempt) HasQuestion(questionID int64) bool {
	for _, id := range a.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// SaveAnswerRequest records a selection. A null or empty option clears it.
type SaveAnswerRequest struct {
	AttemptID      int64   `json:"attempt_id" binding:"required,gt=0"`
	QuestionID     int64   `json:"question_id" binding:"required,gt=0"`
	SelectedOption *string `json:"selected_option" binding:"omitempty,quiz_option"`
}

// TimerSyncRequest carries the client's view of the countdown.
type TimerSyncRequest struct {
	AttemptID              int64 `json:"attempt_id" binding:"required,gt=0"`
	ClientRemainingSeconds *int  `json:"client_remaining_seconds" binding:"omitempty,gte=0"`
}

// TimerSync is the authoritative countdown returned to the client.
type TimerSync struct {
	RemainingSeconds int   `json:"remaining_seconds"`
	ElapsedSeconds   int   `json:"elapsed_seconds"`
	Expired          bool  `json:"expired"`
	NeedsCorrection  bool  `json:"needs_correction"`
	ServerTime       int64 `json:"server_time"`
}

// UpdatePositionRequest stores the question the candidate is looking at.
type UpdatePositionRequest struct {
	AttemptID     int64 `json:"attempt_id" binding:"required,gt=0"`
	QuestionIndex *int  `json:"question_index" binding:"required,gte=0"`
}

// SubmitRequest finishes an attempt. Answers is accepted for older clients and never graded.
type SubmitRequest struct {
	AttemptID int64              `json:"attempt_id" binding:"omitempty,gt=0"`
	Answers   map[string]*string `json:"answers"`
}

// SubmitResponse tells the client where to go next.
type SubmitResponse struct {
	CandidateID int64  `json:"candidate_id"`
	AttemptID   int64  `json:"attempt_id"`
	Redirect    string `json:"redirect"`
}

// QuizState is everything a client needs to render or resume the quiz.
type QuizState struct {
	AttemptID            int64             `json:"attempt_id"`
	CandidateID          int64             `json:"candidate_id"`
	CandidateName        string            `json:"candidate_name"`
	Role                 string            `json:"role"`
	Level                string            `json:"level"`
	Status               AttemptStatus     `json:"status"`
	QuestionIDs          []int64           `json:"question_ids"`
	Questions            []Question        `json:"questions"`
	Answers              map[int64]*string `json:"answers"`
	CurrentQuestionIndex int               `json:"current_question_index"`
	RemainingSeconds     int               `json:"remaining_seconds"`
	DurationSeconds      int               `json:"duration_seconds"`
	ExpiresAt            time.Time         `json:"expires_at"`
	ServerTime           int64             `json:"server_time"`
}
