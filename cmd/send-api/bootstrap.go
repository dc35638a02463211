package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/SendBox/config"
	"github.com/BearBump/SendBox/internal/api/httpapi"
	"github.com/BearBump/SendBox/internal/broker/kafka"
	"github.com/BearBump/SendBox/internal/cache/rediscache"
	"github.com/BearBump/SendBox/internal/notify"
	"github.com/BearBump/SendBox/internal/realtime"
	"github.com/BearBump/SendBox/internal/services/drivers"
	"github.com/BearBump/SendBox/internal/services/routes"
	"github.com/BearBump/SendBox/internal/services/sends"
	"github.com/BearBump/SendBox/internal/services/users"
	"github.com/BearBump/SendBox/internal/storage/pgsend"
	"github.com/BearBump/SendBox/internal/token"
)

type sendAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc

	opts       sendAPIOpts
	handler    http.Handler
	dispatcher *notify.Dispatcher
	consumer   *kafka.Consumer
	closeDB    func()
}

func mustBootstrapSendAPI() *sendAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.SendBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	appURL := cfg.SendBox.AppURL
	if appURL == "" {
		appURL = "http://localhost"
	}
	if cfg.SendBox.JWTSecret == "" {
		panic("sendbox.jwt_secret is required")
	}
	timezone := cfg.SendBox.Timezone
	if timezone == "" {
		timezone = "Europe/Madrid"
	}
	consumerGroup := cfg.SendBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "send-api"
	}
	topic := cfg.Kafka.SendEventsTopicName
	if topic == "" {
		topic = "send.events"
	}
	cacheTTL := time.Duration(cfg.SendBox.TrackingCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	limits := httpapi.RateLimits{
		GeneralPer15Min: int64(cfg.SendBox.GeneralRateLimitPer15Min),
		AuthPer15Min:    int64(cfg.SendBox.AuthRateLimitPer15Min),
		ModifyPerMinute: int64(cfg.SendBox.ModifyRateLimitPerMinute),
	}
	if limits.GeneralPer15Min <= 0 {
		limits.GeneralPer15Min = 100
	}
	if limits.AuthPer15Min <= 0 {
		limits.AuthPer15Min = 5
	}
	if limits.ModifyPerMinute <= 0 {
		limits.ModifyPerMinute = 10
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, timezone, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	limiter := rediscache.NewRateLimiter(redisAddr)

	tokens := token.New(cfg.SendBox.JWTSecret, appURL)

	registry := realtime.NewRegistry()
	// сокеты аутентифицируются токеном, выпущенным на общий секрет
	hub := realtime.NewHub(registry, tokens, cfg.SendBox.JWTSecret)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	dispatcher := notify.NewDispatcher(registry, producer, topic)

	// Группа у каждого инстанса своя, иначе Kafka отдаст событие только
	// одному участнику и остальные реестры его не увидят. Имя из конфига
	// остаётся префиксом.
	consumerGroup = consumerGroup + "-" + dispatcher.InstanceID()
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	sendsSvc := sends.New(st, dispatcher, rc, cacheTTL)
	usersSvc := users.New(st, tokens, dispatcher)
	driversSvc := drivers.New(st)
	routesSvc := routes.New(st)

	handler := httpapi.NewRouter(httpapi.Deps{
		Sends:       sendsSvc,
		Users:       usersSvc,
		Drivers:     driversSvc,
		Routes:      routesSvc,
		Notifier:    dispatcher,
		Tokens:      tokens,
		Limiter:     limiter,
		Limits:      limits,
		WSHandler:   hub,
		SwaggerPath: swaggerPath,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &sendAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: sendAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		handler:    handler,
		dispatcher: dispatcher,
		consumer:   consumer,
		closeDB:    st.Close,
	}
}

func mustOpenPostgresWithRetry(connString, timezone string, wait time.Duration) *pgsend.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgsend.New(connString, timezone)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *sendAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *sendAPIApp) Run() error {
	return runSendAPI(a.ctx, a.opts, a.handler, a.dispatcher, a.consumer)
}
