package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/abolsttar/school-management/internal/api"
	"github.com/abolsttar/school-management/internal/cache"
	"github.com/abolsttar/school-management/internal/circuitbreaker"
	"github.com/abolsttar/school-management/internal/config"
	"github.com/abolsttar/school-management/internal/metrics"
	"github.com/abolsttar/school-management/internal/notify"
	"github.com/abolsttar/school-management/internal/ratelimit"
	"github.com/abolsttar/school-management/internal/store/mongo"
	"github.com/abolsttar/school-management/internal/usage"
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
	fmt.Println(`schooladmin - school administration backend

Usage:
  schooladmin <command>

Commands:
  serve      Start the HTTP server
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  MONGO_URI                 MongoDB connection string (required)
  MONGO_DB                  MongoDB database name (default: "school_db")
  REDIS_URL                 Redis URL for counters, cache and usage stats
                            (default: "redis://localhost:6379/0")
  HTTP_ADDR                 HTTP server address (default: ":8080"; falls
                            back to ":$PORT" when PORT is set)

  CACHE_BACKEND             Response cache / counter backend: "redis" or
                            "memcache" (default: "redis")
  MEMCACHED_ADDR            Memcached address (required for memcache backend)
  CACHE_TTL_SECONDS         Response cache TTL in seconds (default: "60")

  RATE_LIMIT_PER_MINUTE     Requests allowed per client per minute (default: "60")
  RATE_LIMIT_PER_HOUR       Requests allowed per client per hour (default: "1000")
  MAX_RECENT_REQUESTS       Size of the recent-requests feed (default: "100")

  ADMIN_API_KEY             Admin API key (reserved)
  SMS_PROVIDER              Absence SMS provider: "log" or "twilio" (default: "log")
  TWILIO_ACCOUNT_SID        Twilio account SID (required for twilio provider)
  TWILIO_AUTH_TOKEN         Twilio auth token (required for twilio provider)
  TWILIO_FROM_NUMBER        Twilio sender number (required for twilio provider)

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	// Connect to MongoDB. The store is required; refuse to start without it.
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connectCancel()

	mongoClient, err := mongodriver.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open mongodb connection: %v\n", err)
		return exitRuntimeError
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			log.Printf("schooladmin: mongodb disconnect error: %v", err)
		}
	}()

	if err := mongoClient.Ping(connectCtx, nil); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to mongodb: %v\n", err)
		return exitRuntimeError
	}

	store := mongo.New(mongoClient.Database(cfg.MongoDB), cfg.DBOpTimeout)
	if err := store.EnsureIndexes(connectCtx); err != nil {
		log.Printf("schooladmin: index creation failed: %v", err)
	}

	// Connect to Redis. Startup continues if it is unreachable; the rate
	// limiter fails closed and stats degrade until it comes back.
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid REDIS_URL: %v\n", err)
		return exitInvalidConfig
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(connectCtx).Err(); err != nil {
		log.Printf("schooladmin: redis unreachable at startup: %v", err)
	}

	// Metrics sink (optional)
	var sink metrics.Sink = metrics.NewNoopSink()
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		sink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("schooladmin: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("schooladmin: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("schooladmin: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("schooladmin: METRICS_ENABLED not set; metrics disabled")
	}

	// Counter and response cache backends
	var counters ratelimit.CounterStore
	var cacheStore cache.Store

	switch cfg.CacheBackend {
	case "memcache":
		mc := memcache.New(cfg.MemcachedAddr)
		counters = ratelimit.NewMemcacheCounters(mc)
		cacheStore = cache.NewMemcacheStore(mc)
		log.Printf("schooladmin: memcache backend (addr=%s)", cfg.MemcachedAddr)
	default:
		counters = ratelimit.NewRedisCounters(redisClient)
		cacheStore = cache.NewRedisStore(redisClient)
		log.Println("schooladmin: redis backend for counters and cache")
	}

	// Usage stats always live in redis; the reporter needs its sorted sets.
	recorder := usage.NewRedisRecorder(redisClient, cfg.MaxRecentRequests)
	reporter := usage.NewRedisReporter(redisClient)

	// Absence SMS
	var sender notify.Sender
	if cfg.SMSProvider == "twilio" {
		sender = notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		log.Println("schooladmin: twilio SMS provider configured")
	} else {
		sender = notify.NewLogSender()
		log.Println("schooladmin: log SMS provider (no delivery)")
	}
	notifier := notify.NewAbsenceNotifier(store, sender).
		WithCache(cacheStore, cfg.CacheTTL).
		WithBreaker(circuitbreaker.New(3, 5*time.Minute)).
		WithMetrics(sink)

	handler := api.NewHandler(store).
		WithCache(cacheStore, cfg.CacheTTL).
		WithUsage(reporter).
		WithNotifier(notifier).
		WithHealth(store, redisPinger{client: redisClient}).
		WithMetrics(sink)

	skipPaths := []string{"/health", "/readiness", cfg.MetricsPath}

	limiter := ratelimit.New(counters, cfg.RateLimitPerMinute, cfg.RateLimitPerHour)
	limited := ratelimit.NewMiddleware(limiter, api.SecurityHeaders(handler), skipPaths).
		WithMetrics(sink)
	tracked := usage.NewMiddleware(recorder, limited, skipPaths).
		WithMetrics(sink)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: tracked,
	}

	go func() {
		log.Printf("schooladmin: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("schooladmin: http server error: %v", err)
		}
	}()

	log.Printf("schooladmin: started (http=%s, rate=%d/min %d/hr, cache_ttl=%s)",
		cfg.HTTPAddr, cfg.RateLimitPerMinute, cfg.RateLimitPerHour, cfg.CacheTTL)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("schooladmin: received signal %v, shutting down", received)

	// Phase 1: Stop the HTTP server, draining in-flight requests.
	log.Println("schooladmin: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("schooladmin: http server shutdown error: %v", err)
	}
	log.Println("schooladmin: http server stopped")

	// Phase 2: Stop the metrics server if running (with same timeout).
	if metricsServer != nil {
		log.Println("schooladmin: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("schooladmin: metrics server shutdown error: %v", err)
		}
		log.Println("schooladmin: metrics server stopped")
	}

	// Phase 3: Close the client connections (deferred above).
	log.Println("schooladmin: stopped")
	return exitSuccess
}

// redisPinger adapts the redis client to the health-check interface.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
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
	fmt.Printf("schooladmin version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
