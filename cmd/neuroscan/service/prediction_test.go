package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexlab/neuroscan/cmd/neuroscan/models"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/storage"
	"github.com/cortexlab/neuroscan/common/cache"
	"github.com/cortexlab/neuroscan/common/logger"
	"github.com/cortexlab/neuroscan/common/queue"
)

type stubClassifier struct {
	verdict *Classification
	err     error
	calls   int
}

func (s *stubClassifier) Classify(ctx context.Context, filename string, image []byte) (*Classification, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.verdict, nil
}

type stubPipeline struct {
	storeResult *storage.StoreResult
	storeErr    error
	storeCalls  int

	fetchResult *storage.FetchResult
	fetchErr    error
	fetchCalls  int
}

func (s *stubPipeline) Store(ctx context.Context, userID int64, raw []byte, label string, confidence float64, scores map[string]float64) (*storage.StoreResult, error) {
	s.storeCalls++
	if s.storeErr != nil {
		return nil, s.storeErr
	}
	return s.storeResult, nil
}

func (s *stubPipeline) Fetch(ctx context.Context, predictionID, userID int64) (*storage.FetchResult, error) {
	s.fetchCalls++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.fetchResult, nil
}

type stubHistory struct {
	rows []*models.Prediction
	err  error
}

func (s *stubHistory) ListByOwner(ctx context.Context, userID int64, limit int) ([]*models.Prediction, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.rows) {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

type capturedEvent struct {
	topic string
	key   string
	value []byte
}

type captureQueue struct {
	events []capturedEvent
	err    error
}

func (q *captureQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, capturedEvent{topic: topic, key: key, value: message})
	return nil
}

func (q *captureQueue) Subscribe(ctx context.Context, topic string, handler queue.MessageHandler) error {
	return nil
}

func (q *captureQueue) Close() error { return nil }

func healthyVerdict() *Classification {
	return &Classification{
		Label:      LabelNonDemented,
		Confidence: 0.93,
		Scores: map[string]float64{
			LabelMildDemented:     0.03,
			LabelModerateDemented: 0.01,
			LabelNonDemented:      0.93,
			LabelVeryMildDemented: 0.03,
		},
	}
}

func storedRecord(id int64) *storage.StoreResult {
	return &storage.StoreResult{
		Record:  &models.Prediction{ID: id, UserID: 7},
		Outcome: storage.OutcomeComplete,
	}
}

func TestPredictClassifiesAndStores(t *testing.T) {
	classifier := &stubClassifier{verdict: healthyVerdict()}
	pipeline := &stubPipeline{storeResult: storedRecord(42)}
	events := &captureQueue{}

	svc := NewPredictionService(classifier, pipeline, &stubHistory{}, events, nil, logger.New("error", "text"))

	outcome, err := svc.Predict(context.Background(), 7, "scan.png", []byte("image-bytes"))
	require.NoError(t, err)

	assert.Equal(t, int64(42), outcome.PredictionID)
	assert.Equal(t, LabelNonDemented, outcome.Label)
	assert.Equal(t, 0.93, outcome.Confidence)
	assert.Equal(t, storage.OutcomeComplete, outcome.Outcome)
	assert.Equal(t, 1, classifier.calls)
	assert.Equal(t, 1, pipeline.storeCalls)
}

func TestPredictPublishesAuditEvent(t *testing.T) {
	events := &captureQueue{}
	svc := NewPredictionService(
		&stubClassifier{verdict: healthyVerdict()},
		&stubPipeline{storeResult: storedRecord(42)},
		&stubHistory{}, events, nil, logger.New("error", "text"),
	)

	_, err := svc.Predict(context.Background(), 7, "scan.png", []byte("image-bytes"))
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	assert.Equal(t, TopicPredictionStored, events.events[0].topic)
	assert.Equal(t, "7", events.events[0].key)

	var event storedEvent
	require.NoError(t, json.Unmarshal(events.events[0].value, &event))
	assert.Equal(t, int64(42), event.PredictionID)
	assert.Equal(t, int64(7), event.UserID)
	assert.Equal(t, LabelNonDemented, event.Label)
	assert.Equal(t, string(storage.OutcomeComplete), event.Outcome)
}

func TestPredictEventFailureDoesNotFailRequest(t *testing.T) {
	events := &captureQueue{err: errors.New("broker down")}
	svc := NewPredictionService(
		&stubClassifier{verdict: healthyVerdict()},
		&stubPipeline{storeResult: storedRecord(42)},
		&stubHistory{}, events, nil, logger.New("error", "text"),
	)

	_, err := svc.Predict(context.Background(), 7, "scan.png", []byte("image-bytes"))
	assert.NoError(t, err)
}

func TestPredictClassifierFailureAbortsBeforeStore(t *testing.T) {
	pipeline := &stubPipeline{storeResult: storedRecord(1)}
	svc := NewPredictionService(
		&stubClassifier{err: errors.New("model unavailable")},
		pipeline, &stubHistory{}, nil, nil, logger.New("error", "text"),
	)

	_, err := svc.Predict(context.Background(), 7, "scan.png", []byte("image-bytes"))
	require.Error(t, err)
	assert.Zero(t, pipeline.storeCalls)
}

func TestPredictStoreFailure(t *testing.T) {
	svc := NewPredictionService(
		&stubClassifier{verdict: healthyVerdict()},
		&stubPipeline{storeErr: errors.New("everything is down")},
		&stubHistory{}, nil, nil, logger.New("error", "text"),
	)

	_, err := svc.Predict(context.Background(), 7, "scan.png", []byte("image-bytes"))
	assert.Error(t, err)
}

func TestPredictRejectsEmptyUpload(t *testing.T) {
	classifier := &stubClassifier{verdict: healthyVerdict()}
	svc := NewPredictionService(classifier, &stubPipeline{}, &stubHistory{}, nil, nil, logger.New("error", "text"))

	_, err := svc.Predict(context.Background(), 7, "scan.png", nil)
	assert.ErrorIs(t, err, storage.ErrEmptyImage)
	assert.Zero(t, classifier.calls)
}

func TestPredictFileOnlyOutcomeHasNoRecordID(t *testing.T) {
	svc := NewPredictionService(
		&stubClassifier{verdict: healthyVerdict()},
		&stubPipeline{storeResult: &storage.StoreResult{Outcome: storage.OutcomeFileOnly}},
		&stubHistory{}, nil, nil, logger.New("error", "text"),
	)

	outcome, err := svc.Predict(context.Background(), 7, "scan.png", []byte("image-bytes"))
	require.NoError(t, err)
	assert.Zero(t, outcome.PredictionID)
	assert.Equal(t, storage.OutcomeFileOnly, outcome.Outcome)
}

func TestHistoryMapsRows(t *testing.T) {
	path := "prediction_1700000000_7.jpg"
	result, err := models.EncodeResult(LabelVeryMildDemented, 0.71, map[string]float64{LabelVeryMildDemented: 0.71})
	require.NoError(t, err)

	now := time.Now().UTC()
	history := &stubHistory{rows: []*models.Prediction{
		{ID: 2, UserID: 7, ImagePath: &path, Result: result, Confidence: 0.71, CreatedAt: now},
		{ID: 1, UserID: 7, Result: "NonDemented", Confidence: 0.88, CreatedAt: now.Add(-time.Hour)},
	}}

	svc := NewPredictionService(&stubClassifier{}, &stubPipeline{}, history, nil, nil, logger.New("error", "text"))

	entries, err := svc.History(context.Background(), 7, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, int64(2), entries[0].ID)
	assert.Equal(t, LabelVeryMildDemented, entries[0].Label)
	assert.True(t, entries[0].HasImage)

	// Legacy row: bare label, no stored image in any form
	assert.Equal(t, "NonDemented", entries[1].Label)
	assert.False(t, entries[1].HasImage)
}

func TestHistoryCapsLimit(t *testing.T) {
	rows := make([]*models.Prediction, maxHistoryLimit+10)
	for i := range rows {
		rows[i] = &models.Prediction{ID: int64(i + 1), UserID: 7, Result: "NonDemented"}
	}
	svc := NewPredictionService(&stubClassifier{}, &stubPipeline{}, &stubHistory{rows: rows}, nil, nil, logger.New("error", "text"))

	entries, err := svc.History(context.Background(), 7, maxHistoryLimit+10)
	require.NoError(t, err)
	assert.Len(t, entries, maxHistoryLimit)
}

func TestFetchImageCachesResult(t *testing.T) {
	pipeline := &stubPipeline{fetchResult: &storage.FetchResult{
		Bytes: []byte("jpeg-bytes"),
		Tier:  storage.TierRecordFile,
	}}
	imageCache := cache.NewMemoryCache(logger.New("error", "text"))
	defer imageCache.Close()

	svc := NewPredictionService(&stubClassifier{}, pipeline, &stubHistory{}, nil, imageCache, logger.New("error", "text"))

	first, err := svc.FetchImage(context.Background(), 42, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), first)

	second, err := svc.FetchImage(context.Background(), 42, 7)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, pipeline.fetchCalls)
}

func TestFetchImageNotFoundPassesThrough(t *testing.T) {
	pipeline := &stubPipeline{fetchErr: storage.ErrNotFound}
	svc := NewPredictionService(&stubClassifier{}, pipeline, &stubHistory{}, nil, nil, logger.New("error", "text"))

	_, err := svc.FetchImage(context.Background(), 42, 7)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
