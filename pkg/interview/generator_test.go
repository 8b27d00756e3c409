package interview_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/hirevoice/interview-agent/pkg/ai/llm"
	llmfake "github.com/hirevoice/interview-agent/pkg/ai/llm/fake"
	"github.com/hirevoice/interview-agent/pkg/interview"
	"github.com/hirevoice/interview-agent/pkg/store"
)

func seedState(t *testing.T, states *store.MemoryStateStore, sessionID string) {
	t.Helper()
	err := states.Set(context.Background(), sessionID, &interview.State{
		SessionID:    sessionID,
		Phase:        interview.PhaseIntroduction,
		AgentContext: "Present the Two Sum problem.",
	}, time.Hour)
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}
}

func TestDetectEndIntent(t *testing.T) {
	tests := []struct {
		utterance string
		want      bool
	}{
		{"I think that's all for me", true},
		{"Let's wrap up now", true},
		{"END INTERVIEW", true},
		{"im done with this one", true},
		{"that sounds good", false},
		{"let me finish this loop", false},
		{"", false},
		{"I'm done", true},
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			if got := interview.DetectEndIntent(tt.utterance); got != tt.want {
				t.Errorf("DetectEndIntent(%q) = %v, want %v", tt.utterance, got, tt.want)
			}
		})
	}
}

func TestSplitTurnsSentenceBoundaries(t *testing.T) {
	is := is.New(t)

	turns := interview.SplitTurns("Hello there. How are you? I am fine.")
	is.Equal(len(turns), 3)
	is.Equal(turns[0].Text, "Hello there.")
	is.Equal(turns[1].Text, "How are you?")
	is.Equal(turns[2].Text, "I am fine.")

	// Non-final turns carry the short pause, the last the longer one.
	is.Equal(turns[0].PauseAfter, interview.InterTurnPause)
	is.Equal(turns[1].PauseAfter, interview.InterTurnPause)
	is.Equal(turns[2].PauseAfter, interview.FinalTurnPause)
	is.True(interview.FinalTurnPause > interview.InterTurnPause)
}

func TestSplitTurnsEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"no terminator", "just a fragment", []string{"just a fragment"}},
		{"decimal stays intact", "Use pi as 3.14 here.", []string{"Use pi as 3.14 here."}},
		{"ellipsis is one boundary", "Well... I see. Good.", []string{"Well...", "I see.", "Good."}},
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns := interview.SplitTurns(tt.text)
			if len(turns) != len(tt.want) {
				t.Fatalf("got %d turns, want %d: %+v", len(turns), len(tt.want), turns)
			}
			for i, w := range tt.want {
				if turns[i].Text != w {
					t.Errorf("turn %d = %q, want %q", i, turns[i].Text, w)
				}
			}
		})
	}
}

func TestReplyGeneratesTurnsAndRecordsHistory(t *testing.T) {
	is := is.New(t)

	model := llmfake.NewFakeLLM("Good. What is the time complexity? Walk me through it.")
	states := store.NewMemoryStateStore()
	seedState(t, states, "s1")
	g := interview.NewGenerator(model, states, nil)

	turns, end := g.Reply(context.Background(), "s1", "I would use a hash map.")
	is.True(!end)
	is.Equal(len(turns), 3)
	is.Equal(turns[0].Text, "Good.")

	history := g.History("s1")
	is.Equal(len(history), 3)
	is.Equal(history[0].Role, llm.RoleSystem)
	is.True(strings.Contains(history[0].Content, "Present the Two Sum problem."))
	is.Equal(history[1].Role, llm.RoleUser)
	is.Equal(history[1].Content, "I would use a hash map.")
	is.Equal(history[2].Role, llm.RoleAssistant)

	// The completion saw the system prompt and the utterance.
	reqs := model.Requests()
	is.Equal(len(reqs), 1)
	is.Equal(reqs[0].Messages[0].Role, llm.RoleSystem)
	is.Equal(reqs[0].Messages[1].Content, "I would use a hash map.")
	is.Equal(reqs[0].MaxTokens, 500)
}

func TestReplyEndIntentSkipsModel(t *testing.T) {
	is := is.New(t)

	model := llmfake.NewFakeLLM("should never be called")
	states := store.NewMemoryStateStore()
	seedState(t, states, "s1")
	g := interview.NewGenerator(model, states, nil)

	turns, end := g.Reply(context.Background(), "s1", "I think that's all for me.")
	is.True(end)
	is.True(len(turns) > 0)
	is.True(strings.Contains(turns[0].Text, "Thank you for completing the interview"))
	is.Equal(len(model.Requests()), 0)
}

func TestReplyModelErrorLeavesHistoryUntouched(t *testing.T) {
	is := is.New(t)

	model := llmfake.NewFakeLLM("fine answer")
	states := store.NewMemoryStateStore()
	seedState(t, states, "s1")
	g := interview.NewGenerator(model, states, nil)

	// One successful exchange first.
	g.Reply(context.Background(), "s1", "first answer")
	before := g.History("s1")

	model.Err = errors.New("rate limited")
	turns, end := g.Reply(context.Background(), "s1", "second answer")
	is.True(!end)
	is.True(len(turns) > 0)
	is.True(strings.Contains(turns[0].Text, "I apologize"))

	// The failed exchange must not pollute the conversation.
	is.Equal(g.History("s1"), before)
}

func TestReplyMissingSessionFallback(t *testing.T) {
	is := is.New(t)

	model := llmfake.NewFakeLLM("unused")
	states := store.NewMemoryStateStore()
	g := interview.NewGenerator(model, states, nil)

	turns, end := g.Reply(context.Background(), "ghost", "hello?")
	is.True(!end)
	is.True(strings.Contains(turns[0].Text, "cannot find your interview session"))
	is.Equal(len(model.Requests()), 0)
}

func TestHistoryBoundedAtTwentyKeepingSystem(t *testing.T) {
	is := is.New(t)

	model := llmfake.NewFakeLLM("ok")
	states := store.NewMemoryStateStore()
	seedState(t, states, "s1")
	g := interview.NewGenerator(model, states, nil)

	for i := 0; i < 25; i++ {
		g.Reply(context.Background(), "s1", "answer")
	}

	history := g.History("s1")
	is.Equal(len(history), 20)
	is.Equal(history[0].Role, llm.RoleSystem)
	// The tail is the most recent exchanges.
	is.Equal(history[len(history)-1].Role, llm.RoleAssistant)
	is.Equal(history[len(history)-2].Role, llm.RoleUser)
}

func TestClearHistory(t *testing.T) {
	is := is.New(t)

	model := llmfake.NewFakeLLM("ok")
	states := store.NewMemoryStateStore()
	seedState(t, states, "s1")
	g := interview.NewGenerator(model, states, nil)

	g.Reply(context.Background(), "s1", "answer")
	is.True(len(g.History("s1")) > 0)

	g.ClearHistory("s1")
	is.Equal(len(g.History("s1")), 0)
}
