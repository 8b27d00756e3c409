package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hirevoice/interview-agent/internal/config"
	"github.com/hirevoice/interview-agent/internal/httpapi"
	"github.com/hirevoice/interview-agent/pkg/interview"
	"github.com/hirevoice/interview-agent/pkg/plugin/deepgram"
	"github.com/hirevoice/interview-agent/pkg/plugin/elevenlabs"
	"github.com/hirevoice/interview-agent/pkg/plugin/groq"
	"github.com/hirevoice/interview-agent/pkg/rtc/livekit"
	"github.com/hirevoice/interview-agent/pkg/store"
	"github.com/hirevoice/interview-agent/pkg/version"
	"github.com/hirevoice/interview-agent/pkg/voice"
)

const greeting = "Hello! I'm your AI interviewer today. Are you ready to begin?"

var rootCmd = &cobra.Command{
	Use:          "interview-agent",
	Short:        "Voice-driven AI interview agent",
	Long:         "interview-agent joins a LiveKit room as a spoken technical interviewer and exposes the session management API.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Join a room and conduct the interview",
	RunE: func(cmd *cobra.Command, args []string) error {
		room, _ := cmd.Flags().GetString("room")
		token, _ := cmd.Flags().GetString("token")
		sessionID, _ := cmd.Flags().GetString("session")

		if room == "" {
			return fmt.Errorf("--room is required")
		}
		if sessionID == "" {
			sessionID = room
		}

		logger := setupLogger()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.ValidateAgent(); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		logger.Info("starting interview agent",
			slog.String("version", version.Version),
			slog.String("room", room),
			slog.String("session_id", sessionID))

		return runAgent(ctx, cfg, room, token, sessionID, logger)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session management HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.ValidateServer(); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runServer(ctx, cfg, logger)
	},
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{}
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "console" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// openStores connects the state and transcript stores, degrading to in-memory
// implementations when the external services are unreachable. The interview
// must be able to run even if storage is down.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.StateStore, store.TranscriptStore) {
	var states store.StateStore
	redisStates, err := store.NewRedisStateStore(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory state",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()))
		states = store.NewMemoryStateStore()
	} else {
		states = redisStates
	}

	var transcripts store.TranscriptStore
	sqliteTranscripts, err := store.NewSQLiteTranscriptStore(cfg.DBPath)
	if err != nil {
		logger.Warn("sqlite unavailable, using in-memory transcripts",
			slog.String("path", cfg.DBPath),
			slog.String("error", err.Error()))
		transcripts = store.NewMemoryTranscriptStore()
	} else {
		transcripts = sqliteTranscripts
	}

	return states, transcripts
}

func runAgent(ctx context.Context, cfg *config.Config, room, token, sessionID string, logger *slog.Logger) error {
	states, transcripts := openStores(ctx, cfg, logger)
	defer states.Close()
	defer transcripts.Close()

	questions := interview.NewMemoryQuestionBank(interview.SeedQuestions(), time.Now().UnixNano())
	orchestrator := interview.NewOrchestrator(states, questions)

	// The API server normally initializes the session; running the agent
	// standalone starts a fresh one.
	state, err := orchestrator.State(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("look up interview state: %w", err)
	}
	if state == nil {
		q, err := orchestrator.Initialize(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("initialize interview: %w", err)
		}
		logger.Info("interview initialized", slog.String("question", q.Title))
	}

	transport, err := livekit.New(livekit.Config{
		URL:       cfg.LiveKitURL,
		APIKey:    cfg.LiveKitAPIKey,
		APISecret: cfg.LiveKitAPISecret,
		Room:      room,
		Identity:  "interview-agent",
		Token:     token,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	recognizer, err := deepgram.New(deepgram.Config{
		APIKey: cfg.DeepgramAPIKey,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	synthesizer, err := elevenlabs.New(elevenlabs.Config{
		APIKey: cfg.ElevenLabsAPIKey,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	model, err := groq.New(groq.Config{
		APIKey: cfg.GroqAPIKey,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	speaker, err := voice.NewSpeaker(voice.SpeakerConfig{
		Synthesizer:    synthesizer,
		Transport:      transport,
		VoiceID:        cfg.ElevenLabsVoice,
		SampleRate:     48000,
		PreSpeechPause: 300 * time.Millisecond,
		TrailingPause:  200 * time.Millisecond,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	generator := interview.NewGenerator(model, states, logger)

	session, err := voice.NewSession(voice.SessionConfig{
		ID:          sessionID,
		Speaker:     speaker,
		Generator:   generator,
		Recognizer:  recognizer,
		Transport:   transport,
		Transcripts: transcripts,
		Completer:   orchestrator,
		Greeting:    greeting,
		SampleRate:  48000,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	if err := session.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	states, transcripts := openStores(ctx, cfg, logger)
	defer states.Close()
	defer transcripts.Close()

	questions := interview.NewMemoryQuestionBank(interview.SeedQuestions(), time.Now().UnixNano())
	orchestrator := interview.NewOrchestrator(states, questions)

	api := httpapi.New(httpapi.Config{
		Orchestrator: orchestrator,
		Transcripts:  transcripts,
		APIKey:       cfg.LiveKitAPIKey,
		APISecret:    cfg.LiveKitAPISecret,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening", slog.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down API server")
		return server.Shutdown(shutdownCtx)
	}
}

func init() {
	runCmd.Flags().String("room", "", "LiveKit room name to join")
	runCmd.Flags().String("token", "", "pre-minted LiveKit join token (minted from credentials when omitted)")
	runCmd.Flags().String("session", "", "interview session ID (defaults to the room name)")
	runCmd.MarkFlagRequired("room")

	rootCmd.AddCommand(versionCmd, runCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
