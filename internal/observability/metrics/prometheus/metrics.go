package prometheus

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var requestMetrics = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "request_duration_seconds",
		Help:    "Request duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"status", "op"},
)

func ObserveRequest(d time.Duration, status int, op string) {
	requestMetrics.With(
		prometheus.Labels{
			"status": strconv.Itoa(status),
			"op":     op,
		},
	).Observe(d.Seconds())
}

type Server struct {
	srv *http.Server
}

func New(port int) *Server {
	prometheus.MustRegister(requestMetrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%v", port),
			Handler: mux,
		},
	}
}

func (s *Server) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		if err := s.srv.Shutdown(context.Background()); err != nil {
			zap.L().Warn("Failed to shutdown metrics server", zap.Error(err))
		}
	}()

	zap.L().Info("Starting metrics server", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zap.L().Error("Metrics server error", zap.Error(err))
	}
}
