package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/cortexlab/neuroscan/common/clients"
	"github.com/cortexlab/neuroscan/common/config"
	"github.com/cortexlab/neuroscan/common/logger"
)

// Diagnostic labels produced by the classification model.
const (
	LabelMildDemented     = "MildDemented"
	LabelModerateDemented = "ModerateDemented"
	LabelNonDemented      = "NonDemented"
	LabelVeryMildDemented = "VeryMildDemented"
)

// Classification is a single model verdict for an uploaded scan.
type Classification struct {
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
}

// Classifier produces a diagnosis for raw MRI image bytes.
type Classifier interface {
	Classify(ctx context.Context, filename string, image []byte) (*Classification, error)
}

// HTTPClassifier calls the model-serving endpoint over HTTP.
type HTTPClassifier struct {
	http    *clients.HTTPClient
	baseURL string
	log     *logger.Logger
}

// NewHTTPClassifier creates a classifier client from config.
func NewHTTPClassifier(cfg config.ClassifierConfig, log *logger.Logger) *HTTPClassifier {
	httpClient := clients.NewHTTPClient(&http.Client{Timeout: cfg.Timeout}, log)
	return &HTTPClassifier{
		http:    httpClient,
		baseURL: cfg.BaseURL,
		log:     log,
	}
}

// Classify posts the image to the model endpoint as a multipart upload and
// decodes the scored verdict.
func (c *HTTPClassifier) Classify(ctx context.Context, filename string, image []byte) (*Classification, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	url := c.baseURL + "/v1/classify"
	resp, err := c.http.DoRequestWithHeaders(ctx, http.MethodPost, url, &buf, map[string]string{
		"Content-Type": writer.FormDataContentType(),
	})
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(body))
	}

	var result Classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	if result.Label == "" {
		return nil, fmt.Errorf("classifier response missing label")
	}

	return &result, nil
}

// Health probes the model endpoint.
func (c *HTTPClassifier) Health(ctx context.Context) error {
	resp, err := c.http.DoRequest(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("classifier unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
