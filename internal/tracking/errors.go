package tracking

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSessionActive     = errors.New("session already active")
	ErrNoActiveSession   = errors.New("no active session")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionFinalized  = errors.New("session already finalized")
	ErrInvalidEdit       = errors.New("invalid session edit")
)

// RecoverableSessionError reports a session left active by an abnormal
// shutdown. The caller chooses ResumeRecovered or FinalizeRecovered.
type RecoverableSessionError struct {
	Session Session
}

func (e *RecoverableSessionError) Error() string {
	return fmt.Sprintf("session %s was left active since %s", e.Session.ID, e.Session.StartedAt.Format(time.RFC3339))
}

// Unwrap lets errors.Is(err, ErrSessionActive) match an orphan blocking Start.
func (e *RecoverableSessionError) Unwrap() error {
	return ErrSessionActive
}
