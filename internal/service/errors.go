package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tossconsultancy/assessment-backend/internal/model"
)

// Domain errors. Handlers map them to HTTP statuses with errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrAlreadyAttempted   = errors.New("assessment already attempted")
	ErrCredentialMismatch = errors.New("credentials do not match the attempt in progress")
	ErrForbidden          = errors.New("attempt belongs to another candidate")
	ErrNotFound           = errors.New("not found")
	ErrNotInProgress      = errors.New("attempt is not in progress")
	ErrNoQuestions        = errors.New("no questions available for role and level")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalidated = errors.New("session invalidated")
)

// InputError lists the offending fields. It matches ErrInvalidInput.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("invalid input: %s", strings.Join(keys, ", "))
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalidField(field, msg string) error {
	return &InputError{Fields: map[string]string{field: msg}}
}

// StateError reports the status that blocked a write. It matches ErrNotInProgress.
type StateError struct {
	Status model.AttemptStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("attempt is %s", e.Status)
}

func (e *StateError) Unwrap() error { return ErrNotInProgress }
