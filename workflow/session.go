package workflow

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session holds one user's wizard: its id, creation time and the controller
// that owns the brief, ledger and approved results. Teardown is Reset or
// dropping the session.
type Session struct {
	ID        string
	CreatedAt time.Time
	*Controller
}

// NewSession creates a session in the config phase.
func NewSession(gen CopyGenerator, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		Controller: NewController(gen, logger.With(zap.String("session", id))),
	}
}
