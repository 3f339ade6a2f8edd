package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/resellerdesk/resellerdesk/internal/api"
	"github.com/resellerdesk/resellerdesk/internal/api/cron"
	v1 "github.com/resellerdesk/resellerdesk/internal/api/v1"
	"github.com/resellerdesk/resellerdesk/internal/auth"
	"github.com/resellerdesk/resellerdesk/internal/cache"
	"github.com/resellerdesk/resellerdesk/internal/config"
	"github.com/resellerdesk/resellerdesk/internal/httpclient"
	"github.com/resellerdesk/resellerdesk/internal/integration/mercadopago"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/postgres"
	"github.com/resellerdesk/resellerdesk/internal/provisioning"
	"github.com/resellerdesk/resellerdesk/internal/pubsub"
	"github.com/resellerdesk/resellerdesk/internal/pubsub/kafka"
	"github.com/resellerdesk/resellerdesk/internal/pubsub/memory"
	"github.com/resellerdesk/resellerdesk/internal/pyroscope"
	"github.com/resellerdesk/resellerdesk/internal/ratelimit"
	"github.com/resellerdesk/resellerdesk/internal/repository"
	"github.com/resellerdesk/resellerdesk/internal/security"
	"github.com/resellerdesk/resellerdesk/internal/sentry"
	"github.com/resellerdesk/resellerdesk/internal/service"
	"github.com/resellerdesk/resellerdesk/internal/types"
	"github.com/resellerdesk/resellerdesk/internal/validator"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			postgres.NewDB,
			provideDBClient,

			// HTTP Client
			httpclient.NewDefaultClient,

			// Security
			security.NewEncryptionService,
			security.NewSignatureVerifier,
			auth.NewSessionResolver,
			ratelimit.NewPollLimiter,

			// Repositories
			repository.NewPaymentRepository,
			repository.NewClientRepository,
			repository.NewIntegrationRepository,
			repository.NewEventRepository,

			// External systems
			mercadopago.NewClient,
			provisioning.NewFactory,

			// PubSub
			providePubSub,
			providePublisher,
		),
		sentry.Module(),
		pyroscope.Module(),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewApprovalService,
			service.NewNotifier,
			service.NewRenewalService,
			service.NewRecoveryService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			validator.NewValidator,
			registerShutdownHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideDBClient(db *postgres.DB) postgres.IClient {
	return db
}

func providePubSub(cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	switch cfg.Notifications.PubSub {
	case types.KafkaPubSub:
		return kafka.NewPubSub(cfg, log)
	default:
		return memory.NewPubSub(log), nil
	}
}

func providePublisher(ps pubsub.PubSub) pubsub.Publisher {
	return ps
}

func provideHandlers(
	cfg *config.Configuration,
	logger *logger.Logger,
	renewalService service.RenewalService,
	recoveryService service.RecoveryService,
	verifier security.SignatureVerifier,
	sessions auth.SessionResolver,
	limiter *ratelimit.KeyedLimiter,
) api.Handlers {
	return api.Handlers{
		Health:          v1.NewHealthHandler(logger),
		Webhook:         v1.NewWebhookHandler(renewalService, verifier, logger),
		Portal:          v1.NewPortalHandler(renewalService, sessions, limiter, logger),
		Admin:           v1.NewAdminHandler(renewalService, logger),
		CronFulfillment: cron.NewFulfillmentCronHandler(recoveryService, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger)
}

// registerShutdownHooks drains in-flight side effects before the bus and the
// database go away. fx runs OnStop hooks in reverse order.
func registerShutdownHooks(
	lc fx.Lifecycle,
	db *postgres.DB,
	ps pubsub.PubSub,
	notifier service.Notifier,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing database connections...")
			db.Close()
			return nil
		},
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing notification bus...")
			return ps.Close()
		},
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Waiting for in-flight notifications...")
			notifier.Drain()
			return nil
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	recoveryService service.RecoveryService,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		startRecoverySweeper(lc, recoveryService, cfg, log)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeAWSLambdaAPI:
		startAWSLambdaAPI(r)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}

// startRecoverySweeper periodically frees renewals stuck in processing.
// Disabled unless fulfillment.recovery.enabled is set.
func startRecoverySweeper(
	lc fx.Lifecycle,
	recoveryService service.RecoveryService,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	if !cfg.Fulfillment.Recovery.Enabled {
		log.Info("Fulfillment recovery sweeper is disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				recoveryService.Run(ctx, cfg.Fulfillment.Recovery.Interval)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func startAWSLambdaAPI(r *gin.Engine) {
	ginLambda := ginadapter.New(r)
	lambda.Start(ginLambda.ProxyWithContext)
}
