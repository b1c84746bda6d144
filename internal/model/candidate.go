package model

import "time"

// Candidate is a person taking the assessment. Identity fields are fixed after creation;
// only Location may change when a candidate re-registers.
type Candidate struct {
	ID        int64     `json:"candidate_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Mobile    string    `json:"mobile"`
	Role      string    `json:"role"`
	Level     string    `json:"level"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterRequest is the payload for registering or resuming.
// Mobile and email formats are checked after normalization by the identity service.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,max=255"`
	Mobile   string `json:"mobile" binding:"required,max=20"`
	Role     string `json:"role" binding:"required,max=100"`
	Level    string `json:"level" binding:"required,max=50"`
	Location string `json:"location" binding:"required,max=100"`
}

// RegisterResponse is returned once a session is bound to an attempt.
type RegisterResponse struct {
	Token       string `json:"token"`
	CandidateID int64  `json:"candidate_id"`
	AttemptID   int64  `json:"attempt_id"`
	Resumed     bool   `json:"resumed"`
	Redirect    string `json:"redirect"`
}

// CheckAttemptRequest looks a candidate up by email or mobile.
type CheckAttemptRequest struct {
	Email  string `json:"email" binding:"required_without=Mobile,max=255"`
	Mobile string `json:"mobile" binding:"required_without=Email,max=20"`
}

// CheckAttemptResponse reports whether an identity is known and whether it is locked out.
type CheckAttemptResponse struct {
	Exists    bool `json:"exists"`
	Attempted bool `json:"attempted"`
}
