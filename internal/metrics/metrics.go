package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Event metrics
	EventsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taglock_events_recorded_total",
			Help: "Total usage events recorded",
		},
		[]string{"category"},
	)

	EventsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taglock_events_purged_total",
			Help: "Total usage events removed by retention purges",
		},
	)

	// Gate metrics
	BlockedLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taglock_blocked_launches_total",
			Help: "Total blocked foreground app launches",
		},
		[]string{"package"},
	)

	DebouncedObservations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taglock_debounced_observations_total",
			Help: "Foreground observations suppressed by the cooldown window",
		},
	)

	// Lock metrics
	UnlockAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taglock_unlock_attempts_total",
			Help: "Token-verified toggle attempts",
		},
		[]string{"result"},
	)

	SessionsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taglock_sessions_opened_total",
			Help: "Blocking sessions opened",
		},
	)

	LockEngaged = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taglock_lock_engaged",
			Help: "Whether the lock is currently engaged (1) or released (0)",
		},
	)

	// Risk metrics
	LastRiskScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taglock_last_risk_score",
			Help: "Most recently computed risk score",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EventsRecorded,
		EventsPurged,
		BlockedLaunches,
		DebouncedObservations,
		UnlockAttempts,
		SessionsOpened,
		LockEngaged,
		LastRiskScore,
	)
}

// Server is the metrics HTTP server.
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a new metrics server.
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start starts the metrics server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
