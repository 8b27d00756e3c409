package interview

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	// StateTTL is the lifetime of interview state in the ephemeral store.
	StateTTL = time.Hour
	// CompletionGrace keeps completed state around briefly for final
	// processing (evaluation, results page).
	CompletionGrace = 5 * time.Minute
)

// Orchestrator drives interview progression: which question is active, what
// phase the session is in, and the agent context handed to the dialogue
// generator. All state lives in the external state store under the session ID.
type Orchestrator struct {
	states    StateStore
	questions QuestionBank
}

// NewOrchestrator creates an Orchestrator over the given collaborators.
func NewOrchestrator(states StateStore, questions QuestionBank) *Orchestrator {
	return &Orchestrator{states: states, questions: questions}
}

// Initialize picks the opening question and writes fresh interview state.
func (o *Orchestrator) Initialize(ctx context.Context, sessionID string) (*Question, error) {
	q, err := o.questions.Random(ctx, "Easy")
	if err != nil {
		return nil, fmt.Errorf("pick opening question: %w", err)
	}

	state := &State{
		SessionID:            sessionID,
		CurrentQuestionIndex: 0,
		TotalQuestionsAsked:  1,
		Phase:                PhaseIntroduction,
		LastQuestionAskedAt:  time.Now(),
		AgentContext:         buildInitialContext(q),
	}
	if err := o.states.Set(ctx, sessionID, state, StateTTL); err != nil {
		return nil, fmt.Errorf("write interview state: %w", err)
	}
	return q, nil
}

// State returns the current interview state, or (nil, nil) when expired.
func (o *Orchestrator) State(ctx context.Context, sessionID string) (*State, error) {
	return o.states.Get(ctx, sessionID)
}

// NextQuestion advances to a new random question and updates state.
func (o *Orchestrator) NextQuestion(ctx context.Context, sessionID string) (*Question, error) {
	state, err := o.states.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("interview state not found for session %s", sessionID)
	}

	q, err := o.questions.Random(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("pick next question: %w", err)
	}

	state.CurrentQuestionIndex++
	state.TotalQuestionsAsked++
	state.Phase = PhaseQuestion
	state.LastQuestionAskedAt = time.Now()
	state.AgentContext = buildQuestionContext(q)
	if err := o.states.Set(ctx, sessionID, state, StateTTL); err != nil {
		return nil, fmt.Errorf("write interview state: %w", err)
	}
	return q, nil
}

// HandleFollowUp switches the session into the follow-up phase and returns
// the context the agent should probe with.
func (o *Orchestrator) HandleFollowUp(ctx context.Context, sessionID, topic string) (string, error) {
	state, err := o.states.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if state == nil {
		return "", fmt.Errorf("interview state not found for session %s", sessionID)
	}

	state.Phase = PhaseFollowUp
	if err := o.states.Set(ctx, sessionID, state, StateTTL); err != nil {
		return "", fmt.Errorf("write interview state: %w", err)
	}
	return fmt.Sprintf("Ask a follow-up question about %s. Probe deeper into their understanding.", topic), nil
}

// Complete marks the interview finished and shortens the state's remaining
// lifetime to the completion grace period.
func (o *Orchestrator) Complete(ctx context.Context, sessionID string) error {
	state, err := o.states.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("interview state not found for session %s", sessionID)
	}

	state.Phase = PhaseCompleted
	if err := o.states.Set(ctx, sessionID, state, StateTTL); err != nil {
		return fmt.Errorf("write interview state: %w", err)
	}
	return o.states.Expire(ctx, sessionID, CompletionGrace)
}

func buildInitialContext(q *Question) string {
	var b strings.Builder
	b.WriteString("You are conducting a coding interview. Start by introducing yourself warmly, then present this problem:\n\n")
	writeQuestion(&b, q)
	b.WriteString("\nAfter explaining the problem, encourage the candidate to think aloud and ask clarifying questions.")
	return b.String()
}

func buildQuestionContext(q *Question) string {
	var b strings.Builder
	b.WriteString("Present this new coding problem to the candidate:\n\n")
	writeQuestion(&b, q)
	b.WriteString("\nEncourage them to explain their approach before coding.")
	return b.String()
}

func writeQuestion(b *strings.Builder, q *Question) {
	fmt.Fprintf(b, "Title: %s\n", q.Title)
	fmt.Fprintf(b, "Difficulty: %s\n", q.Difficulty)
	fmt.Fprintf(b, "Description: %s\n", q.Description)
	if len(q.Constraints) > 0 {
		b.WriteString("\nConstraints:\n")
		for _, c := range q.Constraints {
			fmt.Fprintf(b, "- %s\n", c)
		}
	}
}
