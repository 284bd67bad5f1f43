// Package service composes preprocessing, the optional result cache and the
// classifier into the per-request classification pipeline.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SyedDaiam9101/breed-classifier/internal/cache"
	"github.com/SyedDaiam9101/breed-classifier/internal/classifier"
	"github.com/SyedDaiam9101/breed-classifier/internal/logger"
	"github.com/SyedDaiam9101/breed-classifier/internal/metrics"
	"github.com/SyedDaiam9101/breed-classifier/internal/preprocess"
)

const tracerName = "github.com/SyedDaiam9101/breed-classifier/internal/service"

// ResultCache stores results keyed by image content.
type ResultCache interface {
	GetResult(ctx context.Context, key string) (classifier.Result, bool, error)
	SetResult(ctx context.Context, key string, result classifier.Result) error
}

// Service runs one synchronous classification per call.
type Service struct {
	classifier *classifier.Classifier
	cache      ResultCache
	log        logrus.FieldLogger
	tracer     trace.Tracer
}

// New creates a Service. cache may be nil.
func New(c *classifier.Classifier, rc ResultCache, log logrus.FieldLogger) *Service {
	return &Service{
		classifier: c,
		cache:      rc,
		log:        log,
		tracer:     otel.Tracer(tracerName),
	}
}

// ClassifyImage decodes raw, runs the model and returns the top predictions.
// Errors wrap preprocess.ErrDecode, preprocess.ErrUnsupportedMode or
// classifier.ErrInference.
func (s *Service) ClassifyImage(ctx context.Context, raw []byte) (classifier.Result, error) {
	ctx, span := s.tracer.Start(ctx, "ClassifyImage", trace.WithAttributes(attribute.Int("image.bytes", len(raw))))
	defer span.End()

	log := logger.WithRequestID(s.log, ctx)

	var key string
	if s.cache != nil {
		key = cache.Key(raw)
		result, ok, err := s.cache.GetResult(ctx, key)
		switch {
		case err != nil:
			metrics.RecordCacheResult("error")
			log.WithError(err).Warn("result cache lookup failed")
		case ok:
			metrics.RecordCacheResult("hit")
			span.SetAttributes(attribute.Bool("cache.hit", true))
			s.observe(span, result)
			return result, nil
		default:
			metrics.RecordCacheResult("miss")
		}
	}

	_, prepSpan := s.tracer.Start(ctx, "preprocess")
	start := time.Now()
	tensor, err := preprocess.Preprocess(raw)
	metrics.RecordPreprocessLatency(time.Since(start).Seconds())
	prepSpan.End()
	if err != nil {
		return nil, s.fail(span, err)
	}

	_, inferSpan := s.tracer.Start(ctx, "classify")
	start = time.Now()
	result, err := s.classifier.Classify(tensor)
	inferDuration := time.Since(start)
	metrics.RecordInferenceLatency(inferDuration.Seconds())
	inferSpan.End()
	if err != nil {
		log.WithError(err).Error("inference error")
		return nil, s.fail(span, err)
	}

	if s.cache != nil {
		if err := s.cache.SetResult(ctx, key, result); err != nil {
			log.WithError(err).Warn("result cache store failed")
		}
	}

	s.observe(span, result)
	if top, ok := result.Top(); ok {
		log.WithFields(logrus.Fields{
			"label":        top.Label,
			"confidence":   top.Probability,
			"inference_ms": float64(inferDuration.Microseconds()) / 1000.0,
		}).Debug("classified image")
	}
	return result, nil
}

func (s *Service) observe(span trace.Span, result classifier.Result) {
	top, ok := result.Top()
	if !ok {
		return
	}
	metrics.RecordPrediction(top.Label)
	span.SetAttributes(
		attribute.String("prediction.label", top.Label),
		attribute.Float64("prediction.confidence", top.Probability),
	)
}

func (s *Service) fail(span trace.Span, err error) error {
	metrics.RecordClassificationError(ErrorKind(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// ErrorKind names the error taxonomy entry err belongs to.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, preprocess.ErrDecode):
		return "decode"
	case errors.Is(err, preprocess.ErrUnsupportedMode):
		return "unsupported_mode"
	case errors.Is(err, classifier.ErrInference):
		return "inference"
	case errors.Is(err, classifier.ErrStartup):
		return "startup"
	default:
		return "internal"
	}
}
