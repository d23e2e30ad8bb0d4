package app

import (
	"context"
	"errors"
	"fmt"

	"sentinel/config"
	middle "sentinel/internals/middleware"
	"sentinel/internals/modules/alert"
	"sentinel/internals/modules/monitor"
	"sentinel/internals/modules/notification"
	"sentinel/internals/modules/probe"
	"sentinel/internals/modules/result"
	"sentinel/internals/modules/scheduler"
	"sentinel/internals/modules/tenant"
	"sentinel/internals/security"
	"sentinel/pkg/httpclient"
	"sentinel/pkg/rabbitmq"
	"sentinel/pkg/redisstore"
	"sentinel/pkg/validation"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	fastRedis       = "redis"
	transportRabbit = "rabbitmq"
)

type Container struct {
	DB          *pgxpool.Pool
	RedisClient *redisstore.Client // nil when store.fast is memory
	Logger      *zerolog.Logger
	Config      *config.Config

	MonitorSvc  *monitor.Service
	Scheduler   *scheduler.Scheduler
	RetryWorker *notification.RetryWorker
	Reclaimer   *notification.Reclaimer
	RetryQueue  notification.RetryQueue

	// transport: Notifier in memory mode, the rest with rabbitmq
	Notifier  *notification.Service
	AMQPConn  *amqp091.Connection
	Publisher *rabbitmq.Publisher
	Consumer  *rabbitmq.Consumer

	dispatcher     *notification.Dispatcher
	authMW         *middle.AuthMiddleware
	tenantHandler  *tenant.Handler
	monitorHandler *monitor.Handler
	resultHandler  *result.Handler
	alertHandler   *alert.Handler
	channelHandler *notification.Handler
}

// fastStores is everything that lives in the fast store.
type fastStores struct {
	cache  monitor.Cache
	status probe.StatusStore
	states alert.StateStore
	queue  notification.RetryQueue
}

func NewContainer(ctx context.Context, db *pgxpool.Pool, cfg *config.Config, logger *zerolog.Logger) (*Container, error) {
	c := &Container{DB: db, Logger: logger, Config: cfg}

	v := validation.New()

	cipher, err := security.NewCipher(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, err
	}
	tokenSvc := security.NewTokenService(cfg.Auth)

	fast, err := c.newFastStores(ctx)
	if err != nil {
		return nil, err
	}
	c.RetryQueue = fast.queue

	// durable stores
	tenantRepo := tenant.NewRepository(db, logger)
	monitorRepo := monitor.NewRepository(db, logger)
	resultRepo := result.NewRepository(db, logger)
	alertRepo := alert.NewRepository(db, logger)
	channelRepo := notification.NewChannelRepository(db, cipher, logger)
	deliveryRepo := notification.NewDeliveryRepository(db, logger)

	tenantSvc := tenant.NewService(tenantRepo, cipher, tokenSvc, logger)
	c.MonitorSvc = monitor.NewService(monitorRepo, fast.cache, v, logger)

	// check pipeline: executor -> aggregator -> alert engine
	exec, err := probe.NewExecutor(cfg.Probe, result.NewStore(resultRepo, fast.status, logger), logger)
	if err != nil {
		return nil, fmt.Errorf("probe executor: %w", err)
	}
	aggregator := probe.NewAggregator(exec, fast.status, cfg.Probe.StatusCacheTTL, logger)
	engine := alert.NewEngine(alertRepo, fast.states, alert.Rules{
		SSLWarningDays:  cfg.Alert.SSLWarningDays,
		SSLCriticalDays: cfg.Alert.SSLCriticalDays,
		SSLDedupWindow:  cfg.Alert.SSLDedupWindow,
	}, logger)
	c.MonitorSvc.AddCleaner(engine, aggregator)
	c.MonitorSvc.AddStatusInvalidator(aggregator)

	// notification
	deliveryClient, err := httpclient.NewHttpClient(httpclient.Options{})
	if err != nil {
		return nil, fmt.Errorf("delivery http client: %w", err)
	}
	c.dispatcher = notification.NewDispatcher(
		notification.NewDeliverers(deliveryClient),
		channelRepo,
		alertRepo,
		deliveryRepo,
		fast.queue,
		notification.OptionsFromConfig(cfg.Notification, cfg.Retry),
		logger,
	)
	c.RetryWorker = notification.NewRetryWorker(c.dispatcher, fast.queue, cfg.Retry.PollInterval, cfg.Retry.BatchSize, logger)
	c.Reclaimer = notification.NewReclaimer(fast.queue, cfg.Retry.ReclaimInterval, cfg.Retry.BatchSize, logger)

	publisher, err := c.newTransport()
	if err != nil {
		return nil, err
	}

	processor := result.NewProcessor(c.MonitorSvc, aggregator, engine, publisher, logger)
	c.Scheduler = scheduler.NewScheduler(processor.RunCheck, cfg.Scheduler.MaxConcurrentChecks, logger)
	c.MonitorSvc.AttachScheduler(c.Scheduler)

	// read side
	alertSvc := alert.NewService(alertRepo, logger)
	resultSvc := result.NewService(c.MonitorSvc, aggregator, resultRepo, alertSvc, logger)
	channelSvc := notification.NewChannelService(channelRepo, deliveryRepo, v, logger)

	c.authMW = middle.NewAuthMiddleware(tokenSvc, tenantSvc)
	c.tenantHandler = tenant.NewHandler(tenantSvc)
	c.monitorHandler = monitor.NewHandler(c.MonitorSvc)
	c.resultHandler = result.NewHandler(resultSvc)
	c.alertHandler = alert.NewHandler(alertSvc)
	c.channelHandler = notification.NewHandler(channelSvc)

	return c, nil
}

func (c *Container) newFastStores(ctx context.Context) (fastStores, error) {
	cfg := c.Config
	if cfg.Store.Fast != fastRedis {
		c.Logger.Warn().Msg("fast store runs in memory, state is lost on restart")
		return fastStores{
			cache:  monitor.NoopCache{},
			status: probe.NewMemoryStatusStore(),
			states: alert.NewMemoryStateStore(),
			queue:  notification.NewMemoryRetryQueue(cfg.Retry.VisibilityTimeout),
		}, nil
	}

	rc, err := redisstore.New(cfg.Redis)
	if err != nil {
		return fastStores{}, fmt.Errorf("redis: %w", err)
	}
	c.RedisClient = rc
	c.Logger.Info().Bool("healthy", rc.Healthy(ctx)).Msg("redis fast store connected")

	return fastStores{
		cache:  redisstore.NewMonitorCache(rc, 0),
		status: redisstore.NewStatusStore(rc),
		states: redisstore.NewAlertStateStore(rc),
		queue:  redisstore.NewRetryQueue(rc, cfg.Retry.VisibilityTimeout),
	}, nil
}

// newTransport picks where the processor publishes raised alerts.
func (c *Container) newTransport() (result.AlertPublisher, error) {
	cfg := c.Config
	if cfg.Notification.Transport != transportRabbit {
		c.Notifier = notification.NewService(cfg.Notification.Workers, cfg.Notification.ChannelSize, c.dispatcher, c.Logger)
		return c.Notifier, nil
	}

	conn, err := rabbitmq.NewConnection(cfg.RabbitMQ, c.Logger)
	if err != nil {
		return nil, err
	}
	c.AMQPConn = conn

	if err := rabbitmq.SetupTopology(conn, cfg.RabbitMQ); err != nil {
		return nil, fmt.Errorf("rabbitmq topology: %w", err)
	}
	c.Publisher, err = rabbitmq.NewPublisher(conn, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq publisher: %w", err)
	}
	c.Consumer, err = rabbitmq.NewConsumer(conn, cfg.RabbitMQ.Queue, cfg.RabbitMQ.WorkerCount, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq consumer: %w", err)
	}
	return c.Publisher, nil
}

// Shutdown stops producers before consumers: no new ticks, then drain the
// notification transport, then close infra.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error

	// 1. Stop scheduling and wait for in-flight checks
	if err := c.Scheduler.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	// 2. Drain the transport
	if c.Notifier != nil {
		c.Notifier.Close()
		c.Notifier.WorkerClosingWait()
	}
	if c.Consumer != nil {
		if err := c.Consumer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("rabbitmq consumer: %w", err))
		}
	}
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("rabbitmq publisher: %w", err))
		}
	}
	if c.AMQPConn != nil && !c.AMQPConn.IsClosed() {
		if err := c.AMQPConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("rabbitmq connection: %w", err))
		}
	}

	// 3. Close fast store and DB pool
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
	return errors.Join(errs...)
}
