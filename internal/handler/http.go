package handler

import (
	"html/template"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/SyedDaiam9101/breed-classifier/internal/classifier"
	"github.com/SyedDaiam9101/breed-classifier/internal/logger"
)

// highConfidence is the top-1 probability above which the result badge turns green.
const highConfidence = 0.8

// uploadFields lists the multipart fields accepted for the image, in order.
var uploadFields = []string{"file", "image"}

// PredictionResponse is the JSON body of POST /predict.
type PredictionResponse struct {
	Predictions classifier.Result `json:"predictions"`
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
}

// HealthResponse is the JSON body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

type resultView struct {
	Preview        template.URL
	Label          string
	Confidence     float64
	HighConfidence bool
	Fact           string
	Predictions    classifier.Result
}

// Index renders the upload page.
func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.tmpl", gin.H{
		"MaxUploadMB": h.maxUpload >> 20,
	})
}

// ClassifyHTML renders the result fragment swapped in by htmx. Failures render
// an alert fragment with status 200 so htmx still swaps it in.
func (h *Handler) ClassifyHTML(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithRequestID(h.log, ctx)

	raw, err := h.readUpload(c)
	if err == nil {
		var result classifier.Result
		result, err = h.classify(ctx, raw)
		if err == nil {
			top, _ := result.Top()
			c.HTML(http.StatusOK, "result.tmpl", resultView{
				Preview:        previewURI(raw),
				Label:          top.Label,
				Confidence:     top.Probability,
				HighConfidence: top.Probability > highConfidence,
				Fact:           classifier.Fact(top.Label),
				Predictions:    result,
			})
			return
		}
	}

	log.WithError(err).Warn("classification failed")
	_ = c.Error(err)
	c.HTML(http.StatusOK, "error.tmpl", gin.H{"Message": err.Error()})
}

// Predict returns the top predictions as JSON.
func (h *Handler) Predict(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithRequestID(h.log, ctx)

	raw, err := h.readUpload(c)
	if err == nil {
		var result classifier.Result
		result, err = h.classify(ctx, raw)
		if err == nil {
			c.JSON(http.StatusOK, PredictionResponse{
				Predictions: result,
				Success:     true,
				Message:     SuccessMessage,
			})
			return
		}
	}

	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		log.WithError(err).Error("prediction failed")
	} else {
		log.WithError(err).Warn("prediction rejected")
	}
	_ = c.Error(err)
	c.JSON(code, PredictionResponse{
		Predictions: classifier.Result{},
		Success:     false,
		Message:     "Error processing image: " + err.Error(),
	})
}

// Health reports liveness from the shared gRPC health server.
func (h *Handler) Health(c *gin.Context) {
	loaded := h.svc != nil
	healthy := loaded
	if h.health != nil {
		resp, err := h.health.Check(c.Request.Context(), &healthpb.HealthCheckRequest{})
		healthy = healthy && err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", ModelLoaded: loaded})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", ModelLoaded: true})
}

// readUpload returns the bytes of the first accepted multipart field.
func (h *Handler) readUpload(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	var fh *multipart.FileHeader
	for _, field := range uploadFields {
		var err error
		fh, err = c.FormFile(field)
		if err == nil {
			break
		}
		if isBodyTooLarge(err) {
			return nil, errTooLarge
		}
	}
	if fh == nil {
		return nil, errNoFile
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
