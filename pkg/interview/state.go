// Package interview holds the interview domain: session state and phase
// progression, the question bank, and the dialogue generator that turns a
// candidate utterance into the interviewer's next spoken turns.
package interview

import (
	"context"
	"time"
)

// Phase is the coarse stage an interview session is in.
type Phase string

const (
	PhaseIntroduction Phase = "introduction"
	PhaseQuestion     Phase = "question"
	PhaseExplanation  Phase = "explanation"
	PhaseFollowUp     Phase = "followup"
	PhaseCompleted    Phase = "completed"
)

// State is the per-session interview state held in the ephemeral state store.
// It is mutated only through Orchestrator transitions and expires after a
// fixed TTL (with a short grace period once completed).
type State struct {
	SessionID            string    `json:"sessionId"`
	CurrentQuestionIndex int       `json:"currentQuestionIndex"`
	TotalQuestionsAsked  int       `json:"totalQuestionsAsked"`
	Phase                Phase     `json:"interviewPhase"`
	LastQuestionAskedAt  time.Time `json:"lastQuestionAskedAt"`
	CodeSnapshotCount    int       `json:"codeSnapshotCount"`
	AgentContext         string    `json:"agentContext"`
}

// StateStore holds interview state with a TTL. Get returns (nil, nil) when
// the state is missing or expired.
type StateStore interface {
	Get(ctx context.Context, sessionID string) (*State, error)
	Set(ctx context.Context, sessionID string, state *State, ttl time.Duration) error

	// Expire shortens the remaining lifetime of existing state, used for
	// the post-completion grace period.
	Expire(ctx context.Context, sessionID string, ttl time.Duration) error
}

// Turn is one sentence-bounded chunk of an assistant reply, paired with the
// pause to insert before the next turn begins. Immutable once produced.
type Turn struct {
	Text       string
	PauseAfter time.Duration
}
