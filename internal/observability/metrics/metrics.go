package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	Success                  Outcome       = "success"
	Error                    Outcome       = "error"
	MetricRequestTimeout     time.Duration = 5 * time.Second
	MetricRequestIdleTimeout time.Duration = 10 * time.Second
)

func (O Outcome) String() string {
	return string(O)
}

func outcome(failure bool) Outcome {
	if failure {
		return Error
	}
	return Success
}

var defaultHistogramBucketsSeconds = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30}

// Collectors are created eagerly so that recording before Init is a no-op
// against an unregistered collector instead of a nil dereference.
var (
	once          sync.Once
	metricsRouter *chi.Mux

	// client requests are the ones sending to other service
	clientRequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_request_duration_seconds",
			Help:    "Histogram of outgoing client request durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"baseurl", "method", "path", "status"},
	)

	feedClientLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_client_latency_seconds",
			Help:    "Histogram of external feed call durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"feed", "method", "status"},
	)

	apiRequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Histogram of incoming API request durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"method", "route", "status"},
	)

	// add a counter for the number of errors from the fail to push message into queue
	queueSendErrorCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_send_error_count",
			Help: "The total number of errors when sending messages to the queue",
		},
	)

	pollerDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poller_duration_seconds",
			Help:    "Histogram of poller durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"type", "status"},
	)

	dbLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "db_latency_seconds",
			Help: "DB latency in seconds splitted by method and execution status",
		},
		[]string{"method", "status"},
	)

	totalStakedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "total_staked",
			Help: "Last observed protocol wide total staked amount",
		},
	)

	netDeltaGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_net_delta",
			Help: "Last net delta reported by the hedge engine",
		},
	)

	liquidationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liquidations_total",
			Help: "Number of forced unstakes split by reason",
		},
		[]string{"reason"},
	)

	liquidatedAmountCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "liquidated_amount_total",
			Help: "Staked units removed by forced unstakes",
		},
	)

	rewardsAccruedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rewards_accrued_total",
			Help: "Profit units folded into the reward index",
		},
	)

	conflictRetryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "update_conflict_retries_total",
			Help: "Number of retries caused by concurrent state updates",
		},
		[]string{"operation", "retry"},
	)

	governanceUpdateCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governance_updates_total",
			Help: "Number of governance messages handled split by status",
		},
		[]string{"status"},
	)
)

// Init initializes the metrics package.
func Init(metricsPort int) {
	once.Do(func() {
		initMetricsRouter(metricsPort)
		registerMetrics()
	})
}

// initMetricsRouter initializes the metrics router.
func initMetricsRouter(metricsPort int) {
	metricsRouter = chi.NewRouter()
	metricsRouter.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	// Create a custom server with timeout settings
	metricsAddr := fmt.Sprintf(":%d", metricsPort)
	server := &http.Server{
		Addr:         metricsAddr,
		Handler:      metricsRouter,
		ReadTimeout:  MetricRequestTimeout,
		WriteTimeout: MetricRequestTimeout,
		IdleTimeout:  MetricRequestIdleTimeout,
	}

	// Start the server in a separate goroutine
	go func() {
		log.Printf("Starting metrics server on %s", metricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msgf("Error starting metrics server on %s", metricsAddr)
		}
	}()
}

// registerMetrics registers the Prometheus metrics.
func registerMetrics() {
	prometheus.MustRegister(
		clientRequestDurationHistogram,
		feedClientLatency,
		apiRequestDurationHistogram,
		queueSendErrorCounter,
		pollerDurationHistogram,
		dbLatency,
		totalStakedGauge,
		netDeltaGauge,
		liquidationCounter,
		liquidatedAmountCounter,
		rewardsAccruedCounter,
		conflictRetryCounter,
		governanceUpdateCounter,
	)
}

func RecordFeedClientLatency(d time.Duration, feed, method string, failure bool) {
	feedClientLatency.WithLabelValues(feed, method, outcome(failure).String()).Observe(d.Seconds())
}

func RecordDbLatency(d time.Duration, method string, failure bool) {
	dbLatency.WithLabelValues(method, outcome(failure).String()).Observe(d.Seconds())
}

func RecordAPIRequest(d time.Duration, method, route string, statusCode int) {
	apiRequestDurationHistogram.WithLabelValues(method, route, strconv.Itoa(statusCode)).Observe(d.Seconds())
}

func RecordTotalStaked(total uint64) {
	totalStakedGauge.Set(float64(total))
}

func RecordNetDelta(netDelta int64) {
	netDeltaGauge.Set(float64(netDelta))
}

func RecordLiquidation(reason string, quantity uint64) {
	liquidationCounter.WithLabelValues(reason).Inc()
	liquidatedAmountCounter.Add(float64(quantity))
}

func RecordRewardsAccrued(profit uint64) {
	rewardsAccruedCounter.Add(float64(profit))
}

func RecordConflictRetry(operation string, retry uint) {
	conflictRetryCounter.WithLabelValues(operation, strconv.FormatUint(uint64(retry), 10)).Inc()
}

func RecordGovernanceUpdate(failure bool) {
	governanceUpdateCounter.WithLabelValues(outcome(failure).String()).Inc()
}

// StartClientRequestDurationTimer starts a timer to measure outgoing client request duration.
func StartClientRequestDurationTimer(baseUrl, method, path string) func(statusCode int) {
	startTime := time.Now()
	return func(statusCode int) {
		duration := time.Since(startTime).Seconds()
		clientRequestDurationHistogram.WithLabelValues(
			baseUrl,
			method,
			path,
			fmt.Sprintf("%d", statusCode),
		).Observe(duration)
	}
}

func RecordQueueSendError() {
	queueSendErrorCounter.Inc()
}
