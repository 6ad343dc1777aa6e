package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-email-verify/internal/application/verification"
	"github.com/go-email-verify/internal/config"
	"github.com/go-email-verify/internal/infrastructure/awscfg"
	"github.com/go-email-verify/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-email-verify/internal/infrastructure/jwt"
	"github.com/go-email-verify/internal/infrastructure/memory"
	"github.com/go-email-verify/internal/infrastructure/metrics"
	"github.com/go-email-verify/internal/infrastructure/redis"
	s3infra "github.com/go-email-verify/internal/infrastructure/s3"
	"github.com/go-email-verify/internal/infrastructure/smtp"
	"github.com/go-email-verify/internal/infrastructure/sns"
	"github.com/go-email-verify/internal/infrastructure/templates"
	transporthttp "github.com/go-email-verify/internal/transport/http"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))

	if err := run(cfg); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	m := metrics.New()

	// AWS config is only loaded when a component needs it.
	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			c, err := awscfg.Load(ctx, cfg)
			if err != nil {
				return aws.Config{}, err
			}
			awsCfg = &c
		}
		return *awsCfg, nil
	}

	store, background, err := newStore(ctx, cfg, m, loadAWS)
	if err != nil {
		return err
	}

	renderer := templates.Default()
	if cfg.EmailTemplateS3Bucket != "" && cfg.EmailTemplateS3Key != "" {
		ac, err := loadAWS()
		if err != nil {
			return err
		}
		objects := s3infra.NewStore(s3infra.NewClient(ac, cfg.AWSEndpointURL), cfg.EmailTemplateS3Bucket)
		if renderer, err = templates.Load(ctx, objects, cfg.EmailTemplateS3Key); err != nil {
			return err
		}
		slog.Info("loaded email template from S3", "bucket", cfg.EmailTemplateS3Bucket, "key", cfg.EmailTemplateS3Key)
	}

	var publisher sns.Publisher = sns.Noop{}
	if cfg.SNSTopicARN != "" {
		ac, err := loadAWS()
		if err != nil {
			return err
		}
		publisher = sns.NewPublisher(sns.NewClient(ac, cfg.AWSEndpointURL), cfg.SNSTopicARN)
	}

	// JWT provider (optional, graceful fallback if keys are missing).
	var signer verification.TokenSigner
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		signer = p
	} else {
		slog.Warn("JWT provider not available, verify-code responses carry no token", "err", err)
	}

	deps := &transporthttp.Deps{
		Store:     store,
		Mailer:    smtp.NewMailer(cfg),
		Renderer:  renderer,
		Publisher: publisher,
		Signer:    signer,
		Metrics:   m,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background work starts only once every fallible setup step is done.
	for _, fn := range background {
		g.Go(fn)
	}
	g.Go(func() error {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("forced shutdown: %w", err)
		}
		slog.Info("server stopped")
		return nil
	})

	return g.Wait()
}

// newStore builds the pending-registration store selected by STORE_DRIVER,
// along with the background work it owns. The caller runs that work.
func newStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics, loadAWS func() (aws.Config, error)) (verification.Store, []func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		s := memory.NewStore(cfg.StoreShards, cfg.CodeTTL)
		sw := memory.NewSweeper(s, cfg.SweepInterval, m.Swept)
		return s, []func() error{func() error { return sw.Run(ctx) }}, nil

	case config.StoreDynamo:
		ac, err := loadAWS()
		if err != nil {
			return nil, nil, err
		}
		client := dynamo.NewClient(ac, cfg.AWSEndpointURL)
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return dynamo.NewPendingRegistrationRepo(client, cfg.DynamoTables.PendingRegistrations, cfg.CodeTTL), nil, nil

	case config.StoreRedis:
		rdb, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		closeOnDone := func() error {
			<-ctx.Done()
			return rdb.Close()
		}
		return redis.NewStore(rdb, redis.Options{Prefix: cfg.RedisPrefix, TTL: cfg.CodeTTL}), []func() error{closeOnDone}, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
