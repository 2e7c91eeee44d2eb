package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexlab/neuroscan/common/clients"
	"github.com/cortexlab/neuroscan/common/config"
	"github.com/cortexlab/neuroscan/common/logger"
)

func newTestClassifier(t *testing.T, handler http.HandlerFunc) (*HTTPClassifier, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.ClassifierConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}
	return NewHTTPClassifier(cfg, logger.New("error", "text")), srv
}

func TestClassifySendsMultipartAndDecodesVerdict(t *testing.T) {
	var gotFilename string
	var gotBytes []byte

	classifier, _ := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/classify", r.URL.Path)

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()

		gotFilename = header.Filename
		gotBytes, err = io.ReadAll(file)
		require.NoError(t, err)

		json.NewEncoder(w).Encode(Classification{
			Label:      LabelModerateDemented,
			Confidence: 0.82,
			Scores:     map[string]float64{LabelModerateDemented: 0.82},
		})
	})

	verdict, err := classifier.Classify(context.Background(), "scan.png", []byte("mri-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "scan.png", gotFilename)
	assert.Equal(t, []byte("mri-bytes"), gotBytes)
	assert.Equal(t, LabelModerateDemented, verdict.Label)
	assert.Equal(t, 0.82, verdict.Confidence)
}

func TestClassifyPropagatesUserHeader(t *testing.T) {
	var gotUserID string
	classifier, _ := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		gotUserID = r.Header.Get("X-User-ID")
		json.NewEncoder(w).Encode(Classification{Label: LabelNonDemented, Confidence: 0.9})
	})

	ctx := clients.WithUserID(context.Background(), "42")
	_, err := classifier.Classify(ctx, "scan.png", []byte("mri-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "42", gotUserID)
}

func TestClassifierHealth(t *testing.T) {
	healthy := true
	classifier, _ := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" && healthy {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	assert.NoError(t, classifier.Health(context.Background()))

	healthy = false
	assert.Error(t, classifier.Health(context.Background()))
}

func TestClassifyRejectsNonOKStatus(t *testing.T) {
	classifier, _ := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	_, err := classifier.Classify(context.Background(), "scan.png", []byte("mri-bytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClassifyRejectsMissingLabel(t *testing.T) {
	classifier, _ := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"confidence": 0.5}`))
	})

	_, err := classifier.Classify(context.Background(), "scan.png", []byte("mri-bytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing label")
}

func TestClassifyRejectsMalformedResponse(t *testing.T) {
	classifier, _ := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := classifier.Classify(context.Background(), "scan.png", []byte("mri-bytes"))
	assert.Error(t, err)
}
