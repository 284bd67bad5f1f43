package handler

import (
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SyedDaiam9101/breed-classifier/internal/middleware"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"lower": strings.ToLower,
	"percent": func(p float64) string {
		return fmt.Sprintf("%.1f%%", p*100)
	},
	"progress": func(p float64) int {
		return int(p * 100)
	},
}

func parseTemplates() *template.Template {
	return template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.tmpl"))
}

// NewRouter wires the HTTP routes and middleware chain for h.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.CORS(),
		middleware.Metrics(),
		middleware.AccessLog(h.log),
	)
	r.SetHTMLTemplate(parseTemplates())
	r.MaxMultipartMemory = h.maxUpload

	r.GET("/", h.Index)
	r.POST("/classify", h.ClassifyHTML)
	r.POST("/predict", h.Predict)
	r.GET("/health", h.Health)

	return r
}
