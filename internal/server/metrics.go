package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the dashboard.
type Metrics struct {
	Requests        *prometheus.CounterVec   // by route, method and status
	RequestDuration *prometheus.HistogramVec // by route
	RowsScored      prometheus.Counter
	RiskScores      prometheus.Histogram
	HighRisk        prometheus.Gauge       // high-risk count of the last scored upload
	Errors          *prometheus.CounterVec // by error kind
	Panics          prometheus.Counter
	Drifts          prometheus.Counter
	ScoreMean       prometheus.Gauge // mean of the drift monitor window
}

// NewMetrics registers the dashboard collectors with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attrition_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attrition_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		RowsScored: factory.NewCounter(prometheus.CounterOpts{
			Name: "attrition_rows_scored_total",
			Help: "Total number of employee rows scored",
		}),
		RiskScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "attrition_risk_scores",
			Help:    "Distribution of attrition risk scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		HighRisk: factory.NewGauge(prometheus.GaugeOpts{
			Name: "attrition_high_risk_employees",
			Help: "High-risk employees in the most recent scored upload",
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attrition_errors_total",
			Help: "Total number of request errors by kind",
		}, []string{"kind"}),
		Panics: factory.NewCounter(prometheus.CounterOpts{
			Name: "attrition_panics_total",
			Help: "Total number of recovered handler panics",
		}),
		Drifts: factory.NewCounter(prometheus.CounterOpts{
			Name: "attrition_score_drifts_total",
			Help: "Total number of detected shifts in the risk score distribution",
		}),
		ScoreMean: factory.NewGauge(prometheus.GaugeOpts{
			Name: "attrition_score_window_mean",
			Help: "Mean risk score over the adaptive drift window",
		}),
	}
}
