// Command interviewd runs the hiring platform API: accounts, jobs,
// applications, interview rooms, and call artifacts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/hireloop/interviewd/pkg/agent/interview"
	"github.com/hireloop/interviewd/pkg/blob"
	"github.com/hireloop/interviewd/pkg/llm"
	"github.com/hireloop/interviewd/pkg/media"
	"github.com/hireloop/interviewd/pkg/server"
	"github.com/hireloop/interviewd/pkg/server/config"
	"github.com/hireloop/interviewd/pkg/store"
)

type apiDeps struct {
	loadConfig   func() (config.Config, error)
	openStore    func(ctx context.Context, dsn string, logger *slog.Logger) (*store.Store, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultAPIDeps() apiDeps {
	return apiDeps{
		loadConfig: config.LoadFromEnv,
		openStore:  store.Open,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func runAPI(ctx context.Context, logger *slog.Logger, deps apiDeps) error {
	if deps.loadConfig == nil || deps.openStore == nil {
		return errors.New("missing dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := deps.openStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	interviews := interview.NewStore(redisClient, 0)

	var artifacts *blob.Store
	if cfg.S3Bucket != "" {
		artifacts, err = blob.New(ctx, blob.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}
	}

	var feedback llm.Client
	if cfg.GeminiAPIKey != "" {
		gem, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.FeedbackModel)
		if err != nil {
			return fmt.Errorf("init feedback model: %w", err)
		}
		feedback = gem
	}

	srvDeps := server.Deps{
		Store:       st,
		Interviews:  interviews,
		Rooms:       media.NewRoomService(cfg.MediaURL, cfg.MediaAPIKey, cfg.MediaAPISecret),
		Feedback:    feedback,
		CachePinger: interviews,
	}
	if artifacts != nil {
		srvDeps.Artifacts = artifacts
	}

	srv := server.New(cfg, srvDeps, logger)

	listenErrCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("platform api stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps apiDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "interviewd: load .env: %v\n", err)
		return 1
	}

	if err := runAPI(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "interviewd: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultAPIDeps()))
}
