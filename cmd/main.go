package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dtroode/anonrelay-server/internal/config"
	"github.com/dtroode/anonrelay-server/internal/logger"
	"github.com/dtroode/anonrelay-server/internal/repository/memory"
	"github.com/dtroode/anonrelay-server/internal/repository/postgres"
	"github.com/dtroode/anonrelay-server/internal/service"
	storage "github.com/dtroode/anonrelay-server/internal/storage/minio"
	"github.com/dtroode/anonrelay-server/internal/transport/telegram"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	keywordRepo := postgres.NewKeywordRepository(db)
	forwardRepo := postgres.NewForwardRepository(db)
	messageRepo := postgres.NewSentMessageRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)
	challengeStore := memory.NewChallengeStore()

	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatal("failed to create minio client", "error", err)
	}
	artifactStore, err := storage.NewArtifactStore(ctx, minioClient, cfg.Storage.Bucket)
	if err != nil {
		logger.Fatal("failed to initialize artifact store", "error", err)
	}

	botClient := telegram.NewClient(cfg.Telegram.APIBaseURL, cfg.Telegram.Token, cfg.Telegram.OperatorID, cfg.Telegram.PollTimeout)

	filter := service.NewKeywordFilter(keywordRepo, logger)
	verification := service.NewVerificationEngine(userRepo, settingsRepo, challengeStore, artifactStore, logger)
	router := service.NewRelayRouter(forwardRepo, logger)
	admin := service.NewAdmin(userRepo, keywordRepo, filter, messageRepo, settingsRepo, botClient, logger)
	relay := service.NewRelay(userRepo, filter, verification, router, admin, messageRepo, settingsRepo, challengeStore, botClient, cfg.Telegram.OperatorID, logger)

	poller := telegram.NewPoller(botClient, relay, cfg.Telegram.OperatorID, cfg.Telegram.PollTimeout, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("poller stopped", "error", err)
		}
	}()

	if cfg.ChallengeSweepSeconds > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweepChallenges(ctx, challengeStore, time.Duration(cfg.ChallengeSweepSeconds)*time.Second, logger)
		}()
	}

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	wg.Wait()
	logger.Info("shutdown complete")
}

func sweepChallenges(ctx context.Context, store *memory.ChallengeStore, interval time.Duration, logger *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if dropped := store.Sweep(now); dropped > 0 {
				logger.Info("swept expired challenges", "count", dropped)
			}
		}
	}
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
