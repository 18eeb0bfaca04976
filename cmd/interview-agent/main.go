// Command interview-agent runs one voice interview session: it joins the
// candidate's media room, personalizes the interviewer from their
// platform profile, and drives the STT -> LLM -> TTS loop until the
// session ends.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/hireloop/interviewd/pkg/agent/interview"
	"github.com/hireloop/interviewd/pkg/agent/profile"
	"github.com/hireloop/interviewd/pkg/agent/rag"
	"github.com/hireloop/interviewd/pkg/agent/session"
	"github.com/hireloop/interviewd/pkg/agent/transcript"
	"github.com/hireloop/interviewd/pkg/agent/usage"
	"github.com/hireloop/interviewd/pkg/blob"
	"github.com/hireloop/interviewd/pkg/core/types"
	"github.com/hireloop/interviewd/pkg/llm"
	"github.com/hireloop/interviewd/pkg/media"
	"github.com/hireloop/interviewd/pkg/pipeline"
	"github.com/hireloop/interviewd/pkg/pipeline/cartesia"
	"github.com/hireloop/interviewd/pkg/pipeline/deepgram"
)

type agentConfig struct {
	MediaWSURL     string
	Room           string
	Token          string
	MediaAPIKey    string
	MediaAPISecret string

	PlatformURL string
	RedisAddr   string

	GeminiAPIKey   string
	LLMModel       string
	DeepgramAPIKey string
	STTModel       string
	CartesiaAPIKey string
	Voice          string
	SampleRate     int

	Greeting string

	RAGIndexPath     string
	RAGFragmentsPath string
	EmbedModel       string
	EmbedDimensions  int

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	TranscriptDir      string
	DrainTimeout       time.Duration
	ParticipantTimeout time.Duration
}

func loadAgentConfig() (agentConfig, error) {
	cfg := agentConfig{
		MediaWSURL:         envOr("AGENT_MEDIA_WS_URL", "ws://localhost:7880/rtc"),
		Room:               os.Getenv("AGENT_ROOM"),
		Token:              os.Getenv("AGENT_TOKEN"),
		MediaAPIKey:        os.Getenv("INTERVIEWD_MEDIA_API_KEY"),
		MediaAPISecret:     os.Getenv("INTERVIEWD_MEDIA_API_SECRET"),
		PlatformURL:        envOr("AGENT_PLATFORM_URL", "http://localhost:8000"),
		RedisAddr:          os.Getenv("AGENT_REDIS_ADDR"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		LLMModel:           envOr("AGENT_LLM_MODEL", "gemini-2.0-flash"),
		DeepgramAPIKey:     os.Getenv("DEEPGRAM_API_KEY"),
		STTModel:           envOr("AGENT_STT_MODEL", "nova-2"),
		CartesiaAPIKey:     os.Getenv("CARTESIA_API_KEY"),
		Voice:              os.Getenv("AGENT_VOICE"),
		SampleRate:         envIntOr("AGENT_SAMPLE_RATE", 24000),
		Greeting:           envOr("AGENT_GREETING", "Hi, thanks for joining. Ready to get started?"),
		RAGIndexPath:       os.Getenv("AGENT_RAG_INDEX"),
		RAGFragmentsPath:   os.Getenv("AGENT_RAG_FRAGMENTS"),
		EmbedModel:         envOr("AGENT_EMBED_MODEL", "bert-embeddings"),
		EmbedDimensions:    envIntOr("AGENT_EMBED_DIMENSIONS", 2048),
		S3Endpoint:         os.Getenv("INTERVIEWD_S3_ENDPOINT"),
		S3Region:           envOr("INTERVIEWD_S3_REGION", "us-east-1"),
		S3Bucket:           os.Getenv("INTERVIEWD_S3_BUCKET"),
		S3AccessKey:        os.Getenv("INTERVIEWD_S3_ACCESS_KEY"),
		S3SecretKey:        os.Getenv("INTERVIEWD_S3_SECRET_KEY"),
		TranscriptDir:      envOr("AGENT_TRANSCRIPT_DIR", os.TempDir()),
		DrainTimeout:       envDurationOr("AGENT_DRAIN_TIMEOUT", 30*time.Second),
		ParticipantTimeout: envDurationOr("AGENT_PARTICIPANT_TIMEOUT", 2*time.Minute),
	}

	if cfg.Room == "" {
		return agentConfig{}, fmt.Errorf("AGENT_ROOM must be set")
	}
	if cfg.Token == "" && (cfg.MediaAPIKey == "" || cfg.MediaAPISecret == "") {
		return agentConfig{}, fmt.Errorf("AGENT_TOKEN or INTERVIEWD_MEDIA_API_KEY/SECRET must be set")
	}
	if cfg.GeminiAPIKey == "" {
		return agentConfig{}, fmt.Errorf("GEMINI_API_KEY must be set")
	}
	if cfg.DeepgramAPIKey == "" {
		return agentConfig{}, fmt.Errorf("DEEPGRAM_API_KEY must be set")
	}
	if cfg.CartesiaAPIKey == "" {
		return agentConfig{}, fmt.Errorf("CARTESIA_API_KEY must be set")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func joinToken(cfg agentConfig) (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}
	return media.NewAccessToken(cfg.MediaAPIKey, cfg.MediaAPISecret).
		SetIdentity("interviewer-agent").
		SetName("AI Interviewer").
		SetVideoGrant(media.VideoGrant{RoomJoin: true, Room: cfg.Room}).
		ToJWT()
}

// transcriptKey derives the object key from the room so artifacts land
// under the owning user's prefix ("interview-<uid>" rooms).
func transcriptKey(room string) string {
	uid := strings.TrimPrefix(room, "interview-")
	return fmt.Sprintf("calls/%s/transcript-%s.log", uid, room)
}

func buildHook(ctx context.Context, cfg agentConfig, gem *llm.Gemini, logger *slog.Logger) (pipeline.PreTurnHook, error) {
	if cfg.RAGIndexPath == "" || cfg.RAGFragmentsPath == "" {
		return nil, nil
	}

	index, err := rag.LoadIndex(cfg.RAGIndexPath)
	if err != nil {
		return nil, fmt.Errorf("load rag index: %w", err)
	}
	fragments, err := rag.LoadFragments(cfg.RAGFragmentsPath)
	if err != nil {
		return nil, fmt.Errorf("load rag fragments: %w", err)
	}

	enricher := rag.NewEnricher(rag.EnricherConfig{
		EmbedModel: cfg.EmbedModel,
		Dimensions: cfg.EmbedDimensions,
	}, gem, index, fragments, logger)
	return enricher.Enrich, nil
}

func runAgent(ctx context.Context, logger *slog.Logger) error {
	cfg, err := loadAgentConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	token, err := joinToken(cfg)
	if err != nil {
		return fmt.Errorf("mint join token: %w", err)
	}

	room := media.NewWSRoom(media.WSRoomConfig{
		URL:          cfg.MediaWSURL,
		Room:         cfg.Room,
		Token:        token,
		PingInterval: 15 * time.Second,
		Logger:       logger,
	})

	gem, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
	if err != nil {
		return fmt.Errorf("init llm: %w", err)
	}

	hook, err := buildHook(ctx, cfg, gem, logger)
	if err != nil {
		return err
	}

	sinkPath := fmt.Sprintf("%s/transcript-%s.log", strings.TrimRight(cfg.TranscriptDir, "/"), cfg.Room)
	sink, err := transcript.NewFileSink(sinkPath)
	if err != nil {
		return fmt.Errorf("open transcript sink: %w", err)
	}

	transcriptOpts := transcript.Options{Logger: logger}
	if cfg.S3Bucket != "" {
		artifacts, err := blob.New(ctx, blob.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}
		transcriptOpts.Uploader = artifacts
		transcriptOpts.ObjectKey = transcriptKey(cfg.Room)
		transcriptOpts.RemoveLocal = true
	}
	transcriptLogger := transcript.NewLogger(sink, transcriptOpts)

	// The request store is optional: without it the interviewer still
	// runs, just without the requested-job focus.
	var interviews session.InterviewFetcher
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		interviews = interview.NewStore(redisClient, 0)
	}

	stt := deepgram.New(cfg.DeepgramAPIKey)
	tts := cartesia.New(cfg.CartesiaAPIKey)

	factory := func(pcfg pipeline.Config, chatCtx *types.ChatContext, handler pipeline.EventHandler, h pipeline.PreTurnHook) session.PipelineRunner {
		return pipeline.New(pcfg, gem, stt, tts, chatCtx, handler, h)
	}

	orch := session.New(session.Config{
		Greeting:               cfg.Greeting,
		LLMModel:               cfg.LLMModel,
		STTModel:               cfg.STTModel,
		Voice:                  cfg.Voice,
		SampleRate:             cfg.SampleRate,
		VideoKeepaliveInterval: time.Second,
		ParticipantTimeout:     cfg.ParticipantTimeout,
		DrainTimeout:           cfg.DrainTimeout,
		Logger:                 logger,
	}, room, profile.NewClient(cfg.PlatformURL), interviews, gem, transcriptLogger, usage.New(logger), hook, factory)

	logger.Info("agent starting", "room", cfg.Room)
	return orch.Run(ctx)
}

func runMain(ctx context.Context, stderr io.Writer) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "interview-agent: load .env: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runAgent(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "interview-agent: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr))
}
