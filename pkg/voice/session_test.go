package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	sttfake "github.com/hirevoice/interview-agent/pkg/ai/stt/fake"
	ttsfake "github.com/hirevoice/interview-agent/pkg/ai/tts/fake"
	"github.com/hirevoice/interview-agent/pkg/interview"
	"github.com/hirevoice/interview-agent/pkg/rtc"
	rtcfake "github.com/hirevoice/interview-agent/pkg/rtc/fake"
	"github.com/hirevoice/interview-agent/pkg/store"
)

// scriptedGenerator returns a fixed reply for every utterance and records
// what it was asked.
type scriptedGenerator struct {
	turns []interview.Turn
	end   bool

	mu         sync.Mutex
	utterances []string
	cleared    []string
}

func (g *scriptedGenerator) Reply(ctx context.Context, sessionID, utterance string) ([]interview.Turn, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.utterances = append(g.utterances, utterance)
	return g.turns, g.end
}

func (g *scriptedGenerator) ClearHistory(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cleared = append(g.cleared, sessionID)
}

func (g *scriptedGenerator) Utterances() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.utterances))
	copy(out, g.utterances)
	return out
}

func (g *scriptedGenerator) Cleared() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.cleared))
	copy(out, g.cleared)
	return out
}

type recordingCompleter struct {
	mu        sync.Mutex
	completed []string
}

func (c *recordingCompleter) Complete(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = append(c.completed, sessionID)
	return nil
}

func (c *recordingCompleter) Completed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.completed))
	copy(out, c.completed)
	return out
}

type sessionFixture struct {
	session     *Session
	transport   *rtcfake.FakeTransport
	recognizer  *sttfake.FakeRecognizer
	synth       *ttsfake.FakeTTS
	generator   *scriptedGenerator
	transcripts *store.MemoryTranscriptStore
	completer   *recordingCompleter
	runErr      chan error
	cancel      context.CancelFunc
}

func newSessionFixture(t *testing.T, generator *scriptedGenerator, chunks ...[]byte) *sessionFixture {
	t.Helper()

	if len(chunks) == 0 {
		chunks = [][]byte{ttsfake.SilentChunk(5, 48000)}
	}
	transport := rtcfake.NewFakeTransport()
	recognizer := sttfake.NewFakeRecognizer()
	synth := ttsfake.NewFakeTTS(chunks...)
	transcripts := store.NewMemoryTranscriptStore()
	completer := &recordingCompleter{}

	speaker, err := NewSpeaker(SpeakerConfig{
		Synthesizer: synth,
		Transport:   transport,
		SampleRate:  48000,
	})
	if err != nil {
		t.Fatalf("NewSpeaker: %v", err)
	}

	session, err := NewSession(SessionConfig{
		ID:          "session-1",
		Speaker:     speaker,
		Generator:   generator,
		Recognizer:  recognizer,
		Transport:   transport,
		Transcripts: transcripts,
		Completer:   completer,
		SampleRate:  48000,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &sessionFixture{
		session:     session,
		transport:   transport,
		recognizer:  recognizer,
		synth:       synth,
		generator:   generator,
		transcripts: transcripts,
		completer:   completer,
		runErr:      make(chan error, 1),
		cancel:      cancel,
	}
	go func() { f.runErr <- session.Run(ctx) }()
	return f
}

// connectCandidate delivers a remote audio track and waits for the session to
// open a recognition stream for it.
func (f *sessionFixture) connectCandidate(t *testing.T) (*sttfake.FakeStream, chan rtc.AudioFrame) {
	t.Helper()
	frames := make(chan rtc.AudioFrame, 8)
	f.transport.AddRemoteTrack("candidate", frames)
	waitFor(t, func() bool { return f.recognizer.Last() != nil })
	return f.recognizer.Last(), frames
}

func TestSessionSpeaksReplyToFinalTranscript(t *testing.T) {
	is := is.New(t)

	generator := &scriptedGenerator{
		turns: []interview.Turn{{Text: "Good thinking.", PauseAfter: time.Millisecond}},
	}
	f := newSessionFixture(t, generator)
	stream, _ := f.connectCandidate(t)

	stream.EmitInterim("I would")
	stream.EmitInterim("I would use")
	stream.EmitFinal("I would use a hash map.")

	waitFor(t, func() bool { return f.transport.Unpublishes() >= 1 })

	// Interim results never reach the generator.
	is.Equal(f.generator.Utterances(), []string{"I would use a hash map."})

	reqs := f.synth.Requests()
	is.Equal(len(reqs), 1)
	is.Equal(reqs[0].Text, "Good thinking.")

	entries, err := f.transcripts.List(context.Background(), "session-1")
	is.NoErr(err)
	is.Equal(len(entries), 2)
	is.Equal(entries[0].Role, "user")
	is.Equal(entries[0].Content, "I would use a hash map.")
	is.Equal(entries[1].Role, "assistant")
	is.Equal(entries[1].Content, "Good thinking.")

	f.transport.DropConnection()
	is.NoErr(<-f.runErr)
}

func TestSessionFeedsCandidateAudioToRecognizer(t *testing.T) {
	is := is.New(t)

	generator := &scriptedGenerator{}
	f := newSessionFixture(t, generator)
	stream, frames := f.connectCandidate(t)

	for i := 0; i < 5; i++ {
		frames <- rtc.AudioFrame{Data: make([]byte, 960), SampleRate: 48000, NumChannels: 1}
	}
	waitFor(t, func() bool { return stream.FrameCount() == 5 })

	// Closing the mic track closes the recognizer stream.
	close(frames)
	waitFor(t, func() bool { return stream.FrameCount() == 5 })

	f.transport.DropConnection()
	is.NoErr(<-f.runErr)
}

func TestSessionBargeInInterruptsPlayback(t *testing.T) {
	is := is.New(t)

	// A long reply so the agent is still talking when the candidate speaks.
	chunks := make([][]byte, 40)
	for i := range chunks {
		chunks[i] = ttsfake.SilentChunk(30, 48000)
	}
	generator := &scriptedGenerator{
		turns: []interview.Turn{
			{Text: "Let me explain this at length.", PauseAfter: 100 * time.Millisecond},
			{Text: "There is more to say.", PauseAfter: 100 * time.Millisecond},
		},
	}
	f := newSessionFixture(t, generator, chunks...)
	stream, _ := f.connectCandidate(t)

	stream.EmitFinal("What about edge cases?")
	waitFor(t, func() bool {
		tracks := f.transport.Tracks()
		return len(tracks) >= 1 && tracks[0].ChunkCount() >= 1
	})

	// Candidate barges in mid-utterance.
	stream.EmitFinal("Actually, wait.")

	waitFor(t, func() bool { return f.transport.Publishes() >= 2 })
	waitFor(t, func() bool { return len(f.generator.Utterances()) == 2 })

	is.Equal(f.generator.Utterances()[1], "Actually, wait.")
	// The interrupted track was retired before the new reply published.
	is.Equal(f.transport.MaxActive(), 1)

	f.transport.DropConnection()
	is.NoErr(<-f.runErr)
}

func TestSessionEndIntentCompletesInterview(t *testing.T) {
	is := is.New(t)

	generator := &scriptedGenerator{
		turns: []interview.Turn{{Text: "Thank you for completing the interview.", PauseAfter: time.Millisecond}},
		end:   true,
	}
	f := newSessionFixture(t, generator)
	stream, _ := f.connectCandidate(t)

	stream.EmitFinal("I think that's all for me.")

	// The closing remark is spoken, then the session ends on its own.
	select {
	case err := <-f.runErr:
		is.NoErr(err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after end intent")
	}

	is.Equal(f.completer.Completed(), []string{"session-1"})
	is.Equal(f.generator.Cleared(), []string{"session-1"})
	is.Equal(f.synth.Requests()[0].Text, "Thank you for completing the interview.")
}

func TestSessionContinuesWhenTranscriptAppendFails(t *testing.T) {
	is := is.New(t)

	generator := &scriptedGenerator{
		turns: []interview.Turn{{Text: "Noted.", PauseAfter: time.Millisecond}},
	}
	f := newSessionFixture(t, generator)
	f.transcripts.AppendErr = errors.New("disk full")
	stream, _ := f.connectCandidate(t)

	stream.EmitFinal("My answer is linear time.")

	// Persistence failure must not silence the agent.
	waitFor(t, func() bool { return len(f.synth.Requests()) == 1 })
	is.Equal(f.synth.Requests()[0].Text, "Noted.")

	f.transport.DropConnection()
	is.NoErr(<-f.runErr)
}

func TestSessionGreetingIsSpokenOnJoin(t *testing.T) {
	is := is.New(t)

	transport := rtcfake.NewFakeTransport()
	recognizer := sttfake.NewFakeRecognizer()
	synth := ttsfake.NewFakeTTS(ttsfake.SilentChunk(5, 48000))

	speaker, err := NewSpeaker(SpeakerConfig{Synthesizer: synth, Transport: transport})
	is.NoErr(err)

	session, err := NewSession(SessionConfig{
		ID:         "session-greet",
		Speaker:    speaker,
		Generator:  &scriptedGenerator{},
		Recognizer: recognizer,
		Transport:  transport,
		Greeting:   "Hello! Are you ready to begin?",
	})
	is.NoErr(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(ctx) }()

	// The greeting is split into sentence turns like any other reply.
	waitFor(t, func() bool { return len(synth.Requests()) == 2 })
	is.Equal(synth.Requests()[0].Text, "Hello!")
	is.Equal(synth.Requests()[1].Text, "Are you ready to begin?")

	transport.DropConnection()
	is.NoErr(<-runErr)
}
