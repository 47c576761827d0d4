package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded cardinality constants for metric labels so error/outcome labels
// don't grow unboundedly with free-text content.
const (
	OracleErrorTimeout     = "timeout"
	OracleErrorRateLimit   = "rate_limit"
	OracleErrorAuth        = "authentication"
	OracleErrorServer      = "server_error"
	OracleErrorBreakerOpen = "breaker_open"
	OracleErrorOther       = "other"

	StoreErrorNotFound = "not_found"
	StoreErrorTimeout  = "timeout"
	StoreErrorConn     = "connection"
	StoreErrorOther    = "other"
)

// NormalizeOracleError maps arbitrary oracle client errors to a bounded set.
func NormalizeOracleError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return OracleErrorTimeout
	case strings.Contains(msg, "rate") || strings.Contains(msg, "429"):
		return OracleErrorRateLimit
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "auth"):
		return OracleErrorAuth
	case strings.Contains(msg, "breaker") || strings.Contains(msg, "open"):
		return OracleErrorBreakerOpen
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") || strings.Contains(msg, "503"):
		return OracleErrorServer
	default:
		return OracleErrorOther
	}
}

// NormalizeStoreError maps arbitrary persistence errors to a bounded set.
func NormalizeStoreError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found"):
		return StoreErrorNotFound
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return StoreErrorTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "refused"):
		return StoreErrorConn
	default:
		return StoreErrorOther
	}
}

// Auction and Matching Metrics
var (
	AuctionsRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_auctions_run_total",
		Help: "Total number of auction events run, by kind",
	}, []string{"kind"}) // "initial" or "trading"

	AuctionEmptyEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_auction_empty_events_total",
		Help: "Total number of auction events that collected zero spreads",
	})

	SpreadsCollected = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "market_spreads_collected",
		Help:    "Number of agent spreads collected per auction event",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	})

	TradesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_trades_matched_total",
		Help: "Total number of trades matched, by clearing stage",
	}, []string{"stage"}) // "continuous" or "uniform_price"

	MatchingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "market_matching_duration_ms",
		Help:    "Matching engine clearing duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
	})
)

// Settlement and Resolution Metrics
var (
	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "market_settlement_duration_ms",
		Help:    "Settlement engine apply duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})

	GoalsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_goals_resolved_total",
		Help: "Total number of goals resolved, by outcome",
	}, []string{"outcome"}) // "success" or "failure"

	MarketPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "market_discovered_price",
		Help: "Most recently discovered market price per goal",
	}, []string{"goal_id"})
)

// Oracle Client Metrics
var (
	OracleRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_oracle_requests_total",
		Help: "Total number of reasoning oracle requests, by outcome",
	}, []string{"outcome"}) // "answered" or "abstained"

	OracleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_oracle_errors_total",
		Help: "Total number of reasoning oracle errors by normalized category",
	}, []string{"category"})

	OracleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "market_oracle_latency_ms",
		Help:    "Reasoning oracle request latency in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})

	OracleBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "market_oracle_circuit_breaker_state",
		Help: "Reasoning oracle circuit breaker state (0=closed, 1=half-open, 2=open)",
	})
)

// Persistence Metrics
var (
	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_store_operations_total",
		Help: "Total number of persistence gateway operations by type",
	}, []string{"operation"})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_store_errors_total",
		Help: "Total number of persistence gateway errors by normalized category",
	}, []string{"category"})

	StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "market_store_latency_ms",
		Help:    "Persistence gateway operation latency in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	}, []string{"operation"})
)

// HTTP Metrics
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "market_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "path", "status_code"})

	ActiveGoals = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "market_active_goals",
		Help: "Number of goals not yet resolved",
	})
)

// RecordAuctionRun records one auction event's kind and spread count.
func RecordAuctionRun(kind string, spreadCount int) {
	AuctionsRun.WithLabelValues(kind).Inc()
	SpreadsCollected.Observe(float64(spreadCount))
	if spreadCount == 0 {
		AuctionEmptyEvents.Inc()
	}
}

// RecordTradesMatched records trades cleared at a given stage.
func RecordTradesMatched(stage string, count int) {
	TradesMatched.WithLabelValues(stage).Add(float64(count))
}

// RecordGoalResolved records a resolution outcome.
func RecordGoalResolved(outcome string) {
	GoalsResolved.WithLabelValues(outcome).Inc()
}

// RecordOracleRequest records an oracle call's outcome and latency, plus a
// normalized error category when the call failed.
func RecordOracleRequest(answered bool, durationMs float64, err error) {
	outcome := "answered"
	if !answered {
		outcome = "abstained"
	}
	OracleRequests.WithLabelValues(outcome).Inc()
	OracleLatency.Observe(durationMs)
	if err != nil {
		OracleErrors.WithLabelValues(NormalizeOracleError(err)).Inc()
	}
}

// RecordStoreOperation records a persistence gateway call's latency and,
// when it failed, a normalized error category.
func RecordStoreOperation(operation string, durationMs float64, err error) {
	StoreOperations.WithLabelValues(operation).Inc()
	StoreLatency.WithLabelValues(operation).Observe(durationMs)
	if err != nil {
		StoreErrors.WithLabelValues(NormalizeStoreError(err)).Inc()
	}
}

// RecordHTTPRequest records one HTTP request's method, path, status, and
// duration.
func RecordHTTPRequest(method, path, statusCode string, durationMs float64) {
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
}
