package model

// RequestScope identifies who is calling and which attempt their session is bound to.
// It is built by the session middleware and passed down explicitly.
type RequestScope struct {
	CandidateID int64
	AttemptID   int64
	RequestID   string
}
