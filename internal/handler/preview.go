package handler

import (
	"bytes"
	"encoding/base64"
	"html/template"
	"net/http"

	"github.com/disintegration/imaging"

	"github.com/SyedDaiam9101/breed-classifier/internal/preprocess"
)

const previewSize = 480

// previewURI returns a data URI for the result page. Decodable images are
// shrunk to a JPEG thumbnail; anything else is embedded as uploaded.
func previewURI(raw []byte) template.URL {
	if img, err := preprocess.Decode(raw); err == nil {
		var buf bytes.Buffer
		thumb := imaging.Fit(img, previewSize, previewSize, imaging.Lanczos)
		if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err == nil {
			return dataURI("image/jpeg", buf.Bytes())
		}
	}
	return dataURI(http.DetectContentType(raw), raw)
}

func dataURI(contentType string, data []byte) template.URL {
	return template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data))
}
