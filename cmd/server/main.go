package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unsend-dev/unsend-sub000/internal/api"
	"github.com/unsend-dev/unsend-sub000/internal/config"
	"github.com/unsend-dev/unsend-sub000/internal/dispatch"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/cache"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/distlock"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/logger"
	"github.com/unsend-dev/unsend-sub000/internal/render"
	"github.com/unsend-dev/unsend-sub000/internal/repository/postgres"
	"github.com/unsend-dev/unsend-sub000/internal/service/campaign"
	"github.com/unsend-dev/unsend-sub000/internal/service/ingest"
	"github.com/unsend-dev/unsend-sub000/internal/service/sending"
	"github.com/unsend-dev/unsend-sub000/internal/service/suppression"
	"github.com/unsend-dev/unsend-sub000/internal/service/webhook"
	"github.com/unsend-dev/unsend-sub000/internal/ses"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.App.LogLevel))

	if err := run(cfg); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	db, err := postgres.Open(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	subCache := cache.New(rdb, 10*time.Minute)

	emailRepo := postgres.NewEmailRepo(db)
	campaignRepo := postgres.NewCampaignRepo(db)
	suppressionRepo := postgres.NewSuppressionRepo(db)
	webhookRepo := postgres.NewWebhookRepo(db)
	queueRepo := postgres.NewQueueRepo(db)
	settingsRepo := postgres.NewSettingsRepo(db)

	suppressionSvc := suppression.NewService(suppressionRepo)
	webhookSvc := webhook.NewService(webhookRepo, subCache)
	notifier := webhook.NewNotifier(webhookSvc, nil)

	ingestSvc := ingest.NewService(emailRepo, suppressionSvc, notifier)
	ingestSvc.UseUnsubscribeBase(cfg.App.BaseURL)

	sender := ses.NewSender(ses.Options{
		AccessKey:       cfg.AWS.AccessKey,
		SecretKey:       cfg.AWS.SecretKey,
		ConfigSetPrefix: cfg.AWS.ConfigSetPrefix,
		Endpoint:        cfg.AWS.SESEndpoint,
	})

	manager := dispatch.NewManager(queueRepo, emailRepo, sender, ingestSvc, cfg.Dispatch.PollInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := settingsRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading send rate settings: %w", err)
	}
	if len(settings) > 0 {
		manager.ConfigureFromSettings(settings)
	} else {
		manager.Configure(cfg.AWS.DefaultRegion, cfg.Dispatch.DefaultQuota, cfg.Dispatch.DefaultTransactionalPct)
	}

	sendingSvc := sending.NewService(emailRepo, manager, suppressionSvc, ingestSvc)
	campaignSvc := campaign.NewService(
		campaignRepo,
		render.New(),
		manager,
		suppressionSvc,
		cfg.App.UnsubscribeSecret,
		cfg.App.BaseURL,
	)
	campaignSvc.UseLockFactory(func(key string) campaign.Lock {
		return distlock.New(rdb, db, key, 2*time.Minute)
	})

	srv := api.NewServer(sendingSvc, campaignSvc, suppressionSvc, webhookSvc, ingestSvc, manager, settingsRepo)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := srv.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	manager.Stop()
	notifier.Flush()
	return nil
}
