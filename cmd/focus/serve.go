package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-focus/internal/config"
	"github.com/teslashibe/go-focus/internal/log"
	"github.com/teslashibe/go-focus/pkg/cloud"
	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/gaze"
	"github.com/teslashibe/go-focus/pkg/gaze/detection"
	"github.com/teslashibe/go-focus/pkg/hub"
	"github.com/teslashibe/go-focus/pkg/persist"
	"github.com/teslashibe/go-focus/pkg/session"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tracking server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg, debug)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "log every HTTP request")
	return cmd
}

// backends holds everything serve opens and must close on exit.
type backends struct {
	sink  *persist.Multi
	store *persist.SQLiteStore
	redis *redis.Client
}

func (b *backends) Close() error {
	err := b.sink.Close()
	if b.redis != nil {
		err = errors.Join(err, b.redis.Close())
	}
	return err
}

func serve(ctx context.Context, cfg *config.AppConfig, debug bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	classifier, closeClassifier, err := newClassifier(cfg.Classifier)
	if err != nil {
		return err
	}
	defer closeClassifier()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Error("Closing sinks failed", "error", err)
		}
	}()

	tracker := session.NewTracker(classifier, b.sink, session.Config{
		Focus: focus.Config{
			WindowSize: cfg.Focus.Window,
			Threshold:  cfg.Focus.Threshold,
		},
		Flush: persist.SchedulerConfig{
			Interval: cfg.Persistence.Interval,
			Timeout:  cfg.Persistence.Timeout,
		},
		SessionKind: cfg.Persistence.SessionKind,
	})

	dashboard := hub.New("dashboard")
	go dashboard.Run(ctx)

	serverCfg := cloud.Config{
		MaxFrameBytes:   int64(cfg.Server.MaxFrameBytes),
		TokenQueryParam: cfg.Auth.TokenQueryParam,
	}
	if cfg.Metrics.Enabled {
		serverCfg.MetricsPath = cfg.Metrics.Path
	}
	serverOpts := []cloud.Option{cloud.WithDashboard(dashboard)}
	if b.store != nil {
		serverOpts = append(serverOpts, cloud.WithStore(b.store))
	}
	if cfg.Auth.Enabled {
		var rdb redis.Cmdable
		if b.redis != nil {
			rdb = b.redis
		}
		serverOpts = append(serverOpts, cloud.WithAuth(cloud.NewValidator(cfg.Auth.JWTSecret, rdb)))
	}
	server := cloud.NewServer(tracker, serverCfg, serverOpts...)

	app := fiber.New(fiber.Config{
		AppName:               "go-focus",
		DisableStartupMessage: true,
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:             cfg.Server.MaxFrameBytes,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if debug {
		app.Use(logger.New())
	}

	server.RegisterRoutes(app)
	server.RegisterAPIRoutes(app.Group("/api"))
	server.RegisterMetrics(app)

	listenErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info("Starting server",
			"addr", addr,
			"tracking", fmt.Sprintf("ws://localhost:%d/ws/tracking", cfg.Server.Port),
			"dashboard", fmt.Sprintf("ws://localhost:%d/ws/dashboard", cfg.Server.Port),
			"sinks", len(b.sink.Sinks()),
		)
		listenErr <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Info("Shutting down", "signal", sig.String())
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// Final flushes run before the listener goes away so every open
	// session is persisted.
	tracker.Shutdown(shutdownCtx)
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("Shutdown error", "error", err)
	}
	log.Info("Server stopped")
	return nil
}

func newClassifier(cfg config.ClassifierConfig) (gaze.Classifier, func(), error) {
	detCfg := detection.DefaultConfig()
	if cfg.ModelPath != "" {
		detCfg.ModelPath = cfg.ModelPath
	}
	if cfg.Confidence > 0 {
		detCfg.ConfidenceThresh = cfg.Confidence
	}
	detector, err := detection.NewYuNet(detCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("face detector: %w", err)
	}

	lmCfg := gaze.DefaultLandmarkConfig()
	if cfg.MinEyeDistance > 0 {
		lmCfg.MinEyeDistance = cfg.MinEyeDistance
	}
	if cfg.MaxEyeDistance > 0 {
		lmCfg.MaxEyeDistance = cfg.MaxEyeDistance
	}
	if cfg.EyesClosedConfidence > 0 {
		lmCfg.EyesClosedConfidence = cfg.EyesClosedConfidence
	}
	lc, err := gaze.NewLandmarkClassifier(detector, lmCfg)
	if err != nil {
		detector.Close()
		return nil, nil, err
	}
	closer := func() {
		if err := lc.Close(); err != nil {
			log.Warn("Closing classifier failed", "error", err)
		}
	}
	return gaze.WithTimeout(lc, cfg.Timeout), closer, nil
}

// openBackends opens every enabled sink. A sink that fails to open
// aborts startup.
func openBackends(ctx context.Context, cfg *config.AppConfig) (*backends, error) {
	p := cfg.Persistence
	b := &backends{}
	var sinks []persist.Sink

	fail := func(err error) (*backends, error) {
		b.sink = persist.NewMulti(sinks...)
		if cerr := b.Close(); cerr != nil {
			log.Warn("Closing partially opened sinks failed", "error", cerr)
		}
		return nil, err
	}

	if p.SQLite.Enabled {
		store, err := persist.OpenSQLite(p.SQLite.Path)
		if err != nil {
			return fail(err)
		}
		b.store = store
		sinks = append(sinks, store)
	}

	if p.HTTP.Enabled {
		retries := p.HTTP.MaxRetries
		if retries < 0 {
			retries = 0
		}
		sink, err := persist.NewHTTPSink(persist.HTTPConfig{
			Endpoint:   p.HTTP.Endpoint,
			MaxRetries: uint64(retries),
		})
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, sink)
	}

	// The Redis client also backs token revocation, so it is opened
	// whenever auth needs it even if the sink is disabled.
	if p.Redis.Enabled || (cfg.Auth.Enabled && p.Redis.Address != "") {
		client, err := persist.NewRedisClient(ctx, persist.RedisConfig{
			Address:  p.Redis.Address,
			Password: p.Redis.Password,
			DB:       p.Redis.DB,
			PoolSize: p.Redis.PoolSize,
		})
		switch {
		case err == nil:
			b.redis = client
			if p.Redis.Enabled {
				// The backends own the client; the sink must not close it.
				sinks = append(sinks, persist.NewRedisSink(client, p.Redis.TTL, p.Redis.Channel).WithoutClose())
			}
		case p.Redis.Enabled:
			return fail(err)
		default:
			log.Warn("Redis unavailable, token revocation disabled", "error", err)
		}
	}

	if p.Kafka.Enabled {
		producer, err := persist.NewKafkaProducer(p.Kafka.Brokers)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, persist.NewKafkaSink(producer, p.Kafka.Topic))
	}

	if p.Sheets.Enabled {
		sink, err := persist.NewSheetsSink(ctx, persist.SheetsConfig{
			CredentialsFile: p.Sheets.CredentialsFile,
			SpreadsheetID:   p.Sheets.SpreadsheetID,
			Range:           p.Sheets.Range,
		})
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, sink)
	}

	if len(sinks) == 0 {
		log.Warn("No persistence sinks enabled, records are discarded")
		sinks = append(sinks, persist.Discard{})
	}
	b.sink = persist.NewMulti(sinks...)
	return b, nil
}
