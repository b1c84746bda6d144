package model

import "time"

// Admin is a reviewer account.
type Admin struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AdminLoginRequest is the payload for admin authentication.
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// AdminLoginResponse is returned after successful admin login.
type AdminLoginResponse struct {
	Token string `json:"token"`
	Admin Admin  `json:"admin"`
}

// PurgeCandidatesRequest removes candidates and everything they own.
type PurgeCandidatesRequest struct {
	CandidateIDs []int64 `json:"candidate_ids" binding:"required,min=1,max=500,dive,gt=0"`
}

// PurgeCandidatesResponse lists the names that were removed.
type PurgeCandidatesResponse struct {
	Deleted []string `json:"deleted"`
}
