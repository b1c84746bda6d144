package model

import "time"

// Answer is the latest selection for one question of an attempt.
type Answer struct {
	AttemptID      int64     `json:"attempt_id"`
	QuestionID     int64     `json:"question_id"`
	SelectedOption *string   `json:"selected_option"`
	SavedAt        time.Time `json:"saved_at"`
}
