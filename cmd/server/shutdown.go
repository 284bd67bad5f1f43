package main

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/SyedDaiam9101/breed-classifier/internal/metrics"
)

// shutdown stops the servers in order once a termination signal arrives.
type shutdown struct {
	log            logrus.FieldLogger
	health         *health.Server
	drainDelay     time.Duration
	timeout        time.Duration
	httpServer     *http.Server
	grpcServer     *grpc.Server
	metricsServer  *http.Server
	tracerShutdown func(context.Context) error
}

// run marks the process unhealthy, waits drainDelay for load balancers, then
// stops HTTP, gRPC, metrics and finally flushes the tracer.
func (s *shutdown) run() {
	// Marks every service NOT_SERVING, including "" used by /health
	s.health.Shutdown()
	metrics.SetUnhealthy()

	time.Sleep(s.drainDelay)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.WithError(err).Warn("HTTP server shutdown error")
	}

	s.grpcServer.GracefulStop()

	if err := s.metricsServer.Shutdown(ctx); err != nil {
		s.log.WithError(err).Warn("Metrics server shutdown error")
	}

	if s.tracerShutdown != nil {
		if err := s.tracerShutdown(ctx); err != nil {
			s.log.WithError(err).Warn("Tracer shutdown error")
		}
	}
}
