package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/eventcron/internal/analytics"
	"github.com/djlord-it/eventcron/internal/api"
	"github.com/djlord-it/eventcron/internal/circuitbreaker"
	"github.com/djlord-it/eventcron/internal/config"
	"github.com/djlord-it/eventcron/internal/generator"
	"github.com/djlord-it/eventcron/internal/leaderelection"
	"github.com/djlord-it/eventcron/internal/lifecycle"
	"github.com/djlord-it/eventcron/internal/metrics"
	"github.com/djlord-it/eventcron/internal/notify"
	"github.com/djlord-it/eventcron/internal/reconciler"
	"github.com/djlord-it/eventcron/internal/runner"
	"github.com/djlord-it/eventcron/internal/scheduler"
	"github.com/djlord-it/eventcron/internal/store/postgres"
	"github.com/djlord-it/eventcron/internal/transport/channel"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`eventcron - event lifecycle scheduler

Usage:
  eventcron <command>

Commands:
  serve      Start the scheduler, runner, and HTTP API
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL               PostgreSQL connection string (required)
  REDIS_ADDR                 Redis address for run analytics (optional)
  HTTP_ADDR                  HTTP server address (default: ":8080")
  TICK_INTERVAL              Scheduler tick interval (default: "1s")

  DB_MAX_OPEN_CONNS          Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS          Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME       Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME      Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT      Graceful HTTP shutdown timeout (default: "10s")
  RUNNER_DRAIN_TIMEOUT       Runner fire drain timeout (default: "30s")
  TASKBUS_BUFFER_SIZE        Task fire buffer size (default: "100")

  METRICS_ENABLED            Enable Prometheus metrics (default: "false")
  METRICS_PATH               Metrics endpoint path (default: "/metrics")

  RESYNC_ENABLED             Enable periodic trigger resync (default: "true")
  RESYNC_INTERVAL            How often to resync triggers (default: "5m")

  NOTIFY_WEBHOOK_URL         Webhook destination for notifications (optional)
  NOTIFY_WEBHOOK_SECRET      HMAC signing secret for webhook payloads
  NOTIFY_TIMEOUT             Webhook request timeout (default: "10s")
  BREAKER_THRESHOLD          Failures before the webhook circuit opens (default: "5", "0" disables)
  BREAKER_COOLDOWN           Open-circuit cooldown before a probe (default: "2m")

  LEADER_ENABLED             Gate scheduling behind a Postgres advisory lock (default: "false")
  LEADER_LOCK_KEY            Advisory lock key shared by all instances
  LEADER_RETRY_INTERVAL      Follower acquisition retry interval (default: "15s")
  LEADER_HEARTBEAT_INTERVAL  Leader connection heartbeat interval (default: "5s")

  ANALYTICS_WINDOW           Analytics counter bucket size (default: "1m")
  ANALYTICS_RETENTION        Analytics counter TTL (default: "24h")`)
}

func runServe() int {
	if err := godotenv.Load(); err == nil {
		log.Println("eventcron: loaded .env")
	}

	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(&cfg)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("eventcron: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	if err := probeTaskRefColumns(db); err != nil {
		if err == sql.ErrNoRows {
			fmt.Fprintln(os.Stderr, "events table is missing task ref columns; apply the full migration set before starting")
			return exitRuntimeError
		}
		log.Printf("eventcron: schema probe failed (continuing): %v", err)
	}

	store := postgres.New(db)

	// Metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("eventcron: metrics enabled (path=%s)", cfg.MetricsPath)
	}

	// Task bus with optional metrics
	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewTaskBus(cfg.TaskBusBufferSize, busOpts...)

	sched := scheduler.New(scheduler.Config{TickInterval: cfg.TickInterval}, bus)
	if metricsSink != nil {
		sched = sched.WithMetrics(metricsSink)
	}

	// Notification path: webhook when configured, process log otherwise.
	var notifier lifecycle.Notifier
	if cfg.NotifyWebhookURL != "" {
		webhook := notify.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret, cfg.NotifyTimeout)
		if cfg.BreakerThreshold > 0 {
			webhook = webhook.WithBreaker(circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown))
		}
		if metricsSink != nil {
			webhook = webhook.WithMetrics(metricsSink)
		}
		notifier = webhook
		log.Printf("eventcron: webhook notifications enabled (url=%s)", cfg.NotifyWebhookURL)
	} else {
		notifier = notify.NewLogNotifier()
		log.Println("eventcron: NOTIFY_WEBHOOK_URL not set; notifications go to the process log")
	}

	events := lifecycle.New(store, sched, notifier)
	generators := generator.NewManager(store, sched, events)
	pools := generator.NewPoolManager(store, sched, rand.New(rand.NewSource(time.Now().UnixNano())))

	// Run analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sink := analytics.NewRedisSink(redisClient, cfg.AnalyticsWindow, cfg.AnalyticsRetention)
		events = events.WithAnalytics(sink)
		generators = generators.WithAnalytics(sink)
		pools = pools.WithAnalytics(sink)
		log.Printf("eventcron: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("eventcron: REDIS_ADDR not set; analytics disabled")
	}

	run := runner.New().WithDrainTimeout(cfg.RunnerDrainTimeout)
	if metricsSink != nil {
		run = run.WithMetrics(metricsSink)
	}

	registrations := []struct {
		name string
		fn   runner.HandlerFunc
	}{
		{lifecycle.HandlerEventStart, events.HandleStart},
		{lifecycle.HandlerEventFinish, events.HandleFinish},
		{generator.HandlerGeneratorRun, generators.HandleRun},
		{generator.HandlerPoolRun, pools.HandleRun},
	}
	for _, reg := range registrations {
		if err := run.Register(reg.name, reg.fn); err != nil {
			fmt.Fprintf(os.Stderr, "handler registration failed: %v\n", err)
			return exitRuntimeError
		}
	}

	recon := reconciler.New(reconciler.Config{Interval: cfg.ResyncInterval}, events, pools, generators)
	if metricsSink != nil {
		recon = recon.WithMetrics(metricsSink)
	}

	// HTTP server runs regardless of leadership: reads and writes go
	// through the shared database, and scheduling converges via resync.
	apiHandler := api.NewHandler(store, events, generators, pools).
		WithHealthChecker(db).
		WithTaskLister(sched)

	mux := http.NewServeMux()
	if metricsSink != nil {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	mux.Handle("/", apiHandler)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("eventcron: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("eventcron: http server error: %v", err)
		}
	}()

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	core := &core{
		scheduler:     sched,
		runner:        run,
		bus:           bus,
		reconciler:    recon,
		resyncEnabled: cfg.ResyncEnabled,
	}

	var electorWg sync.WaitGroup
	if cfg.LeaderEnabled {
		elector := leaderelection.New(db, leaderelection.Config{
			LockKey:           cfg.LeaderLockKey,
			RetryInterval:     cfg.LeaderRetryInterval,
			HeartbeatInterval: cfg.LeaderHeartbeatInterval,
		}, core.start, func() {
			core.wait()
			log.Println("eventcron: demoted, scheduling paused")
		})
		if metricsSink != nil {
			elector = elector.WithMetrics(metricsSink)
		}
		electorWg.Add(1)
		go func() {
			defer electorWg.Done()
			elector.Run(rootCtx)
		}()
		log.Printf("eventcron: leader election enabled (lock_key=%d)", cfg.LeaderLockKey)
	} else {
		core.start(rootCtx)
	}

	log.Printf("eventcron: started (tick=%s, http=%s)", cfg.TickInterval, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("eventcron: received signal %v, shutting down", received)

	cancelRoot()
	electorWg.Wait()
	core.wait()

	log.Println("eventcron: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("eventcron: http server shutdown error: %v", err)
	}

	log.Println("eventcron: stopped")
	return exitSuccess
}

// core bundles the components that only the scheduling leader runs.
// run blocks until ctx is cancelled, then shuts the pieces down in
// dependency order: scheduler first (no new fires), reconciler next
// (no new restores), runner last (drains buffered fires).
type core struct {
	scheduler     *scheduler.Scheduler
	runner        *runner.Runner
	bus           *channel.TaskBus
	reconciler    *reconciler.Reconciler
	resyncEnabled bool

	mu   sync.Mutex
	done chan struct{}
}

// start launches run in a goroutine and returns immediately.
func (c *core) start(ctx context.Context) {
	c.mu.Lock()
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(ctx)
	}()
}

// wait blocks until the most recent start has fully shut down.
func (c *core) wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *core) run(ctx context.Context) {
	schedCtx, cancelSched := context.WithCancel(context.Background())
	runnerCtx, cancelRunner := context.WithCancel(context.Background())
	reconCtx, cancelRecon := context.WithCancel(context.Background())

	var schedWg, runnerWg, reconWg sync.WaitGroup

	runnerWg.Add(1)
	go func() {
		defer runnerWg.Done()
		c.runner.Run(runnerCtx, c.bus.Channel())
	}()

	// Restore triggers for persisted records before the first tick.
	c.reconciler.RunOnce(ctx)

	schedWg.Add(1)
	go func() {
		defer schedWg.Done()
		c.scheduler.Run(schedCtx)
	}()

	if c.resyncEnabled {
		reconWg.Add(1)
		go func() {
			defer reconWg.Done()
			c.reconciler.Run(reconCtx)
		}()
	}

	<-ctx.Done()

	log.Println("eventcron: stopping scheduler...")
	cancelSched()
	schedWg.Wait()

	cancelRecon()
	reconWg.Wait()

	log.Println("eventcron: stopping runner (draining fires)...")
	cancelRunner()
	runnerWg.Wait()
}

// probeTaskRefColumns checks that the task ref columns from the latest
// migration exist. Returns sql.ErrNoRows when the column is absent.
func probeTaskRefColumns(db *sql.DB) error {
	var column string
	return db.QueryRow(`
		SELECT column_name
		FROM information_schema.columns
		WHERE table_name = 'events' AND column_name = 'start_task_id'
	`).Scan(&column)
}

// logConfigWarnings flags configurations that run but degrade the
// delivery guarantees.
func logConfigWarnings(cfg *config.Config) {
	if !cfg.ResyncEnabled {
		log.Println("WARNING [P0]: RESYNC_ENABLED=false - triggers lost on restart will never be restored")
	}
	if !cfg.MetricsEnabled {
		log.Println("WARNING [P1]: METRICS_ENABLED=false - no visibility into scheduling in production")
	}
	if cfg.NotifyWebhookURL != "" && cfg.BreakerThreshold == 0 {
		log.Println("WARNING [P1]: BREAKER_THRESHOLD=0 with a webhook configured - a dead destination will be retried on every trigger")
	}
	if cfg.NotifyWebhookURL == "" {
		log.Println("INFO: NOTIFY_WEBHOOK_URL not set - participant notifications are logged, not delivered")
	}
	if cfg.LeaderEnabled {
		log.Println("INFO: LEADER_ENABLED=true - scheduling runs only on the advisory lock holder")
	}
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("eventcron version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
