package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidSession = errors.New("session id is empty")
	ErrInvalidAgent   = errors.New("agent id is empty")
)

// RunRecord is one agent invocation kept in the session history. The
// history is an audit trail keyed by (agent_id, session_id); the engine
// never reads it back to make decisions.
type RunRecord struct {
	AgentID     string    `json:"agent_id"`
	SessionID   string    `json:"session_id"`
	Instruction string    `json:"instruction"`
	Status      string    `json:"status"`
	Summary     string    `json:"summary"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r RunRecord) Validate() error {
	if strings.TrimSpace(r.AgentID) == "" {
		return ErrInvalidAgent
	}
	if strings.TrimSpace(r.SessionID) == "" {
		return ErrInvalidSession
	}
	if r.Status == "" {
		return fmt.Errorf("run record for agent %s has no status", r.AgentID)
	}
	return nil
}

// Trim keeps the newest limit records, assuming recs ordered oldest first.
func Trim(recs []RunRecord, limit int) []RunRecord {
	if limit <= 0 || len(recs) <= limit {
		return recs
	}
	return recs[len(recs)-limit:]
}
