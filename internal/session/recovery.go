package session

import (
	"fmt"
	"sync"

	"resumeflow/internal/errors"
)

// Phase is the state of a recovery flow.
type Phase int

const (
	PhaseIdle Phase = iota
	// PhasePrompting: an unconfirmed session was found and the user must choose.
	PhasePrompting
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePrompting:
		return "prompting"
	case PhaseActive:
		return "active"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// recoverable is the part of a stage store the recovery flow drives.
type recoverable[S any] interface {
	Active() *S
	CheckExisting(threadID string) *S
	Existing() *S
	Resume(rec S)
	ClearSession(threadID string)
}

// Recovery decides, once per thread id, whether to offer resuming a prior
// session before a stage continues.
type Recovery[S any] struct {
	mu        sync.Mutex
	store     recoverable[S]
	threadID  string
	evaluated bool
	phase     Phase
}

func NewRecovery[S any](store recoverable[S]) *Recovery[S] {
	return &Recovery[S]{store: store}
}

// Evaluate checks storage for a resumable session on threadID. It runs once
// per thread id and never while a session is already active.
func (r *Recovery[S]) Evaluate(threadID string) Phase {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.evaluated && r.threadID == threadID {
		return r.phase
	}
	r.threadID = threadID
	r.evaluated = true

	if r.store.Active() != nil {
		r.phase = PhaseActive
		return r.phase
	}
	if r.store.CheckExisting(threadID) != nil {
		r.phase = PhasePrompting
	} else {
		r.phase = PhaseActive
	}
	return r.phase
}

// Phase returns the current phase.
func (r *Recovery[S]) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Resume adopts the staged session verbatim.
func (r *Recovery[S]) Resume() (*S, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhasePrompting {
		return nil, errors.NewValidationError(errors.ErrCodeNoSession, "no session is waiting to be resumed", nil)
	}
	existing := r.store.Existing()
	if existing == nil {
		return nil, errors.NewValidationError(errors.ErrCodeNoSession, "staged session is no longer available", nil)
	}
	r.store.Resume(*existing)
	r.phase = PhaseActive
	return existing, nil
}

// StartFresh deletes the stored session and lets start create a new one.
func (r *Recovery[S]) StartFresh(start func(threadID string)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhasePrompting {
		return errors.NewValidationError(errors.ErrCodeNoSession, "no session is waiting to be replaced", nil)
	}
	r.store.ClearSession(r.threadID)
	start(r.threadID)
	r.phase = PhaseActive
	return nil
}
