package interview

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/hirevoice/interview-agent/pkg/ai/llm"
)

// maxHistoryEntries bounds the conversation window: the original system
// message plus the most recent entries, 20 in total.
const maxHistoryEntries = 20

// Fallback and closing remarks. The candidate always hears something, even
// when a collaborator fails.
const (
	closingRemark = "Thank you for completing the interview. Please click the \"End Interview\" button to see your results."
	missingRemark = "I apologize, but I cannot find your interview session. Please start a new interview."
	errorRemark   = "I apologize, I encountered an error. Could you try rephrasing your response?"
)

// endPhrases are matched case-insensitively as substrings of the candidate
// utterance to detect an explicit end-of-interview intent.
var endPhrases = []string{
	"end interview",
	"end the interview",
	"i'm done",
	"im done",
	"let's wrap up",
	"lets wrap up",
	"finish interview",
	"that's all",
	"thats all",
}

// DetectEndIntent reports whether the utterance explicitly asks to end the
// interview.
func DetectEndIntent(utterance string) bool {
	lower := strings.ToLower(strings.TrimSpace(utterance))
	for _, phrase := range endPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Generator produces the interviewer's next reply from the candidate's
// utterance and the bounded per-session conversation history. Histories live
// in process memory; they are created on first utterance and cleared when
// the session ends.
type Generator struct {
	llm    llm.LLM
	states StateStore
	logger *slog.Logger

	mu        sync.Mutex
	histories map[string][]llm.Message
}

// NewGenerator creates a Generator.
func NewGenerator(model llm.LLM, states StateStore, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		llm:       model,
		states:    states,
		logger:    logger,
		histories: make(map[string][]llm.Message),
	}
}

// Reply generates the next assistant reply as sentence-bounded turns.
// end reports that the candidate asked to finish the interview.
//
// Every failure is converted to a safe spoken fallback; Reply never leaves
// the candidate in silence. On LLM errors the history is left untouched.
func (g *Generator) Reply(ctx context.Context, sessionID, utterance string) (turns []Turn, end bool) {
	state, err := g.states.Get(ctx, sessionID)
	if err != nil {
		g.logger.Error("interview state lookup failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
	if state == nil {
		return SplitTurns(missingRemark), false
	}

	history := g.snapshotHistory(sessionID, state.AgentContext)

	if DetectEndIntent(utterance) {
		g.appendHistory(sessionID, llm.Message{Role: llm.RoleUser, Content: utterance})
		return SplitTurns(closingRemark), true
	}

	messages := boundHistory(append(history, llm.Message{Role: llm.RoleUser, Content: utterance}))
	resp, err := g.llm.Chat(ctx, llm.ChatRequest{
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		g.logger.Error("chat completion failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return SplitTurns(errorRemark), false
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		content = "I apologize, could you repeat that?"
	}

	g.appendHistory(sessionID,
		llm.Message{Role: llm.RoleUser, Content: utterance},
		llm.Message{Role: llm.RoleAssistant, Content: content},
	)
	return SplitTurns(content), false
}

// History returns a copy of the session's conversation history.
func (g *Generator) History(sessionID string) []llm.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]llm.Message, len(g.histories[sessionID]))
	copy(out, g.histories[sessionID])
	return out
}

// ClearHistory drops the session's conversation history.
func (g *Generator) ClearHistory(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.histories, sessionID)
}

// snapshotHistory returns a copy of the session history, seeding the system
// message on first use.
func (g *Generator) snapshotHistory(sessionID, agentContext string) []llm.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.histories[sessionID]) == 0 {
		g.histories[sessionID] = []llm.Message{{
			Role:    llm.RoleSystem,
			Content: buildSystemPrompt(agentContext),
		}}
	}
	out := make([]llm.Message, len(g.histories[sessionID]))
	copy(out, g.histories[sessionID])
	return out
}

func (g *Generator) appendHistory(sessionID string, msgs ...llm.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.histories[sessionID] = boundHistory(append(g.histories[sessionID], msgs...))
}

// boundHistory truncates to the last maxHistoryEntries messages while always
// keeping the original system message as entry 0.
func boundHistory(history []llm.Message) []llm.Message {
	if len(history) <= maxHistoryEntries {
		return history
	}
	bounded := make([]llm.Message, 0, maxHistoryEntries)
	bounded = append(bounded, history[0])
	bounded = append(bounded, history[len(history)-(maxHistoryEntries-1):]...)
	return bounded
}

func buildSystemPrompt(agentContext string) string {
	var b strings.Builder
	b.WriteString("You are an expert technical interviewer conducting a live coding interview.\n\n")
	b.WriteString(agentContext)
	b.WriteString("\n\n[Turn Control & Silence Rules]\n")
	b.WriteString("- Long periods of silence are expected while the candidate is coding.\n")
	b.WriteString("- Do NOT speak or interrupt during silence.\n")
	b.WriteString("- Only respond after the candidate finishes speaking.\n")
	b.WriteString("- Never end the interview due to silence.\n")
	b.WriteString("- The interview ends ONLY if:\n")
	b.WriteString("  - the candidate explicitly says \"end interview\", \"I'm done\", or \"let's wrap up\", OR\n")
	b.WriteString("  - the system signals an end via UI action.\n")
	b.WriteString("\n[Interviewer Behavior]\n")
	b.WriteString("- Ask one question at a time\n")
	b.WriteString("- Wait for complete answers\n")
	b.WriteString("- Ask follow-ups about time complexity, edge cases, and optimizations\n")
	b.WriteString("- Challenge assumptions constructively\n")
	b.WriteString("- Be encouraging but maintain professional standards\n")
	b.WriteString("- If they ask for hints, provide gentle guidance without giving away the solution\n")
	b.WriteString("\nRemember: You are evaluating their problem-solving process, not just the final code.")
	return b.String()
}
