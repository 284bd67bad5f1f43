// internal/handler/handler.go
package handler

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/health"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/SyedDaiam9101/breed-classifier/internal/classifier"
	"github.com/SyedDaiam9101/breed-classifier/internal/logger"
)

// SuccessMessage is returned with every successful classification.
const SuccessMessage = "Classification successful"

// defaultMaxUploadBytes applies when Options leaves the limit unset.
const defaultMaxUploadBytes = 10 << 20

// ImageClassifier runs the full pipeline on raw image bytes.
// *service.Service satisfies it.
type ImageClassifier interface {
	ClassifyImage(ctx context.Context, raw []byte) (classifier.Result, error)
}

// Options configures a Handler.
type Options struct {
	// Health backs GET /health. Nil reports healthy while the classifier is set.
	Health         *health.Server
	MaxUploadBytes int64
	Logger         logrus.FieldLogger
}

// Handler serves classifications over both HTTP and gRPC.
type Handler struct {
	svc       ImageClassifier
	health    *health.Server
	maxUpload int64
	log       logrus.FieldLogger
}

// New creates a new Handler backed by svc.
func New(svc ImageClassifier, opts Options) *Handler {
	h := &Handler{
		svc:       svc,
		health:    opts.Health,
		maxUpload: opts.MaxUploadBytes,
		log:       opts.Logger,
	}
	if h.maxUpload <= 0 {
		h.maxUpload = defaultMaxUploadBytes
	}
	if h.log == nil {
		h.log = logger.Discard()
	}
	return h
}

func (h *Handler) classify(ctx context.Context, raw []byte) (classifier.Result, error) {
	if h.svc == nil {
		return nil, errNotReady
	}
	return h.svc.ClassifyImage(ctx, raw)
}

// Classify implements ClassifierServer.
func (h *Handler) Classify(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	log := logger.WithRequestID(h.log, ctx)

	if req == nil {
		return nil, grpcError(errNoFile)
	}

	result, err := h.classify(ctx, req.GetValue())
	if err != nil {
		log.WithError(err).Warn("gRPC classification failed")
		return nil, grpcError(err)
	}

	resp, err := resultStruct(result)
	if err != nil {
		return nil, grpcError(err)
	}
	return resp, nil
}

// resultStruct encodes result as {predictions, labels, success, message}.
// Struct fields are unordered, so labels carries the ranking.
func resultStruct(result classifier.Result) (*structpb.Struct, error) {
	predictions := make(map[string]interface{}, len(result))
	labels := make([]interface{}, len(result))
	for i, p := range result {
		predictions[p.Label] = p.Probability
		labels[i] = p.Label
	}

	return structpb.NewStruct(map[string]interface{}{
		"predictions": predictions,
		"labels":      labels,
		"success":     true,
		"message":     SuccessMessage,
	})
}

// ResultFromStruct rebuilds the ranked result from a Classify response.
func ResultFromStruct(s *structpb.Struct) classifier.Result {
	fields := s.GetFields()
	probs := fields["predictions"].GetStructValue().GetFields()

	var result classifier.Result
	for _, v := range fields["labels"].GetListValue().GetValues() {
		label := v.GetStringValue()
		result = append(result, classifier.Prediction{
			Label:       label,
			Probability: probs[label].GetNumberValue(),
		})
	}
	return result
}
