// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/SyedDaiam9101/breed-classifier/internal/cache"
	"github.com/SyedDaiam9101/breed-classifier/internal/classifier"
	"github.com/SyedDaiam9101/breed-classifier/internal/config"
	"github.com/SyedDaiam9101/breed-classifier/internal/handler"
	"github.com/SyedDaiam9101/breed-classifier/internal/inference"
	"github.com/SyedDaiam9101/breed-classifier/internal/logger"
	"github.com/SyedDaiam9101/breed-classifier/internal/metrics"
	"github.com/SyedDaiam9101/breed-classifier/internal/middleware"
	"github.com/SyedDaiam9101/breed-classifier/internal/service"
)

const serviceName = "breed-classifier"

func main() {
	// Parse command-line flags
	port := flag.Int("port", 0, "HTTP server port (default: 8000)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC server port (default: 50051)")
	metricsPort := flag.Int("metrics-port", 0, "Prometheus metrics port (default: 9100)")
	modelPath := flag.String("model", "", "Path to ONNX model file (default: models/onnx_model.onnx)")
	redisAddr := flag.String("redis", "", "Redis address for the result cache (default: disabled)")
	configFile := flag.String("config", "", "Path to config file (optional)")
	useMock := flag.Bool("mock", false, "Use mock inference engine (for testing)")
	flag.Parse()

	cfg, err := config.Load(*configFile, config.Overrides{
		Port:        *port,
		GRPCPort:    *grpcPort,
		MetricsPort: *metricsPort,
		Model:       *modelPath,
		Redis:       *redisAddr,
		UseMock:     *useMock,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	log.Infof("Starting %s...", serviceName)
	log.WithFields(logrus.Fields{
		"port":         cfg.Port,
		"grpc_port":    cfg.GRPCPort,
		"metrics_port": cfg.MetricsPort,
		"model":        cfg.Model,
		"redis":        cfg.Redis,
		"otel":         cfg.OTELEnabled,
		"mock":         cfg.UseMock,
	}).Info("Configuration loaded")

	// Initialize OpenTelemetry tracer
	var tracerShutdown func(context.Context) error
	if cfg.OTELEnabled {
		tracerShutdown, err = initTracer(log, cfg.OTELEndpoint)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize tracer")
		} else {
			log.Infof("OpenTelemetry tracing enabled (endpoint: %s)", cfg.OTELEndpoint)
		}
	}

	// Load inference engine and run the warm-up pass before serving
	engine, err := loadEngine(log, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to load ONNX model")
	}
	defer engine.Close()

	clf, err := classifier.New(engine, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		engine.Close()
		log.WithError(err).Fatal("Model warm-up failed")
	}
	log.Info("Model warm-up complete")

	// Initialize Redis cache (optional)
	var resultCache service.ResultCache
	if cfg.Redis != "" {
		log.Infof("Connecting to Redis at %s...", cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		cacheClient, err := cache.New(ctx, cfg.Redis, cfg.CacheTTL)
		cancel()
		if err != nil {
			log.WithError(err).Warn("Failed to connect to Redis (continuing without cache)")
		} else {
			defer cacheClient.Close()
			resultCache = cacheClient
			log.Info("Redis connected successfully")
		}
	}

	svc := service.New(clf, resultCache, log)

	// Create gRPC health server
	healthServer := health.NewServer()

	h := handler.New(svc, handler.Options{
		Health:         healthServer,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         log,
	})

	// Start HTTP server for metrics and health checks
	metricsServer := startMetricsServer(log, cfg.MetricsPort, healthServer)

	// Start the user-facing HTTP server
	var router http.Handler = handler.NewRouter(h)
	if cfg.OTELEnabled {
		router = otelhttp.NewHandler(router, "http.server")
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server error")
		}
	}()

	// Build gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			middleware.UnaryRequestIDInterceptor(),
			middleware.UnaryMetricsInterceptor(),
		),
	}
	if cfg.OTELEnabled {
		opts = append(opts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}
	grpcServer := grpc.NewServer(opts...)

	handler.RegisterClassifierServer(grpcServer, h)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Enable server reflection for debugging
	reflection.Register(grpcServer)

	addr := fmt.Sprintf(":%d", cfg.GRPCPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.WithError(err).Fatalf("Failed to listen on %s", addr)
	}

	// Set health status to serving
	healthServer.SetServingStatus(handler.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	metrics.SetHealthy()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sd := &shutdown{
		log:            log,
		health:         healthServer,
		drainDelay:     5 * time.Second,
		timeout:        10 * time.Second,
		httpServer:     httpServer,
		grpcServer:     grpcServer,
		metricsServer:  metricsServer,
		tracerShutdown: tracerShutdown,
	}
	done := make(chan struct{})

	go func() {
		sig := <-sigChan
		log.Infof("Received signal %v, shutting down gracefully...", sig)
		sd.run()
		close(done)
	}()

	log.Infof("gRPC server listening on %s", addr)
	log.Infof("%s is ready to accept requests", serviceName)

	if err := grpcServer.Serve(lis); err != nil {
		log.WithError(err).Fatal("Failed to serve")
	}

	// Serve returns as soon as GracefulStop begins; wait for the metrics
	// server and tracer flush.
	<-done
	log.Info("Server shutdown complete")
}

func loadEngine(log logrus.FieldLogger, cfg *config.Config) (inference.InferenceEngine, error) {
	if cfg.UseMock {
		log.Info("Using mock inference engine")
		return inference.NewMock(), nil
	}

	log.Infof("Loading ONNX model from %s...", cfg.Model)
	engine, err := inference.New(cfg.Model, inference.Options{
		SharedLibraryPath: cfg.ONNXLibrary,
		InputNames:        []string{classifier.InputName},
		OutputNames:       []string{classifier.OutputName},
		OutputShapes: map[string][]int64{
			classifier.OutputName: {1, int64(len(classifier.Labels))},
		},
	})
	if err != nil {
		return nil, err
	}
	log.Info("ONNX model loaded successfully")
	return engine, nil
}

func startMetricsServer(log logrus.FieldLogger, port int, healthServer *health.Server) *http.Server {
	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	statusHandler := func(notReady string, ready string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			resp, err := healthServer.Check(r.Context(), &healthpb.HealthCheckRequest{})
			if err != nil || resp.Status != healthpb.HealthCheckResponse_SERVING {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(notReady))
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(ready))
		}
	}
	mux.HandleFunc("/healthz", statusHandler("Service Unavailable", "OK"))
	mux.HandleFunc("/readyz", statusHandler("Not Ready", "Ready"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Metrics server listening on %s (metrics, health)", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server error")
		}
	}()

	return server
}

func initTracer(log logrus.FieldLogger, endpoint string) (func(context.Context) error, error) {
	// OTLP export needs a collector; spans go to stdout until one is wired.
	if endpoint != "" {
		log.Infof("Using stdout trace exporter (OTLP endpoint: %s)", endpoint)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// Create resource with service information
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
