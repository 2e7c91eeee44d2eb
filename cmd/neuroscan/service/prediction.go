package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cortexlab/neuroscan/cmd/neuroscan/models"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/storage"
	"github.com/cortexlab/neuroscan/common/cache"
	"github.com/cortexlab/neuroscan/common/clients"
	"github.com/cortexlab/neuroscan/common/logger"
	"github.com/cortexlab/neuroscan/common/queue"
)

// TopicPredictionStored carries audit events for completed store attempts.
const TopicPredictionStored = "predictions.stored"

const (
	imageCacheTTL   = 5 * time.Minute
	defaultHistoryN = 50
	maxHistoryLimit = 200
)

// ImagePipeline persists and retrieves scan images with their records.
type ImagePipeline interface {
	Store(ctx context.Context, userID int64, raw []byte, label string, confidence float64, scores map[string]float64) (*storage.StoreResult, error)
	Fetch(ctx context.Context, predictionID, userID int64) (*storage.FetchResult, error)
}

// HistoryStore lists a user's past predictions.
type HistoryStore interface {
	ListByOwner(ctx context.Context, userID int64, limit int) ([]*models.Prediction, error)
}

// PredictionOutcome is the full result of a classify-and-store round trip.
type PredictionOutcome struct {
	PredictionID int64                `json:"prediction_id"`
	Label        string               `json:"label"`
	Confidence   float64              `json:"confidence"`
	Scores       map[string]float64   `json:"scores"`
	Outcome      storage.StoreOutcome `json:"storage_outcome"`
}

// HistoryEntry is one row of a user's prediction history. Image bytes are
// never included; they are fetched separately by id.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	HasImage   bool      `json:"has_image"`
	CreatedAt  time.Time `json:"created_at"`
}

// storedEvent is the audit payload published after each store attempt.
type storedEvent struct {
	PredictionID int64  `json:"prediction_id"`
	UserID       int64  `json:"user_id"`
	Label        string `json:"label"`
	Outcome      string `json:"outcome"`
	OccurredAt   string `json:"occurred_at"`
}

// PredictionService runs the classify, persist, and retrieve flows.
type PredictionService struct {
	classifier Classifier
	pipeline   ImagePipeline
	history    HistoryStore
	events     queue.Queue
	cache      cache.Cache
	log        *logger.Logger
}

// NewPredictionService creates the prediction service. The queue and cache
// are optional; a nil queue skips audit events and a nil cache disables
// image response caching.
func NewPredictionService(
	classifier Classifier,
	pipeline ImagePipeline,
	history HistoryStore,
	events queue.Queue,
	imageCache cache.Cache,
	log *logger.Logger,
) *PredictionService {
	return &PredictionService{
		classifier: classifier,
		pipeline:   pipeline,
		history:    history,
		events:     events,
		cache:      imageCache,
		log:        log,
	}
}

// Predict classifies an uploaded scan and persists it. Classification
// failures abort the flow; persistence degradation does not, the outcome
// reports how much survived.
func (s *PredictionService) Predict(ctx context.Context, userID int64, filename string, image []byte) (*PredictionOutcome, error) {
	if len(image) == 0 {
		return nil, storage.ErrEmptyImage
	}

	log := s.log.WithUserID(userID)

	// Downstream services see the caller via X-User-ID
	ctx = clients.WithUserID(ctx, strconv.FormatInt(userID, 10))

	verdict, err := s.classifier.Classify(ctx, filename, image)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}
	verdict.Confidence = round4(verdict.Confidence)
	log.Info("scan classified", "label", verdict.Label, "confidence", verdict.Confidence)

	stored, err := s.pipeline.Store(ctx, userID, image, verdict.Label, verdict.Confidence, verdict.Scores)
	if err != nil {
		return nil, fmt.Errorf("failed to persist scan: %w", err)
	}

	s.publishStored(ctx, stored, userID, verdict.Label)

	var predictionID int64
	if stored.Record != nil {
		predictionID = stored.Record.ID
	}

	return &PredictionOutcome{
		PredictionID: predictionID,
		Label:        verdict.Label,
		Confidence:   verdict.Confidence,
		Scores:       verdict.Scores,
		Outcome:      stored.Outcome,
	}, nil
}

// History returns the user's predictions, newest first.
func (s *PredictionService) History(ctx context.Context, userID int64, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryN
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := s.history.ListByOwner(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		result := row.ParseResult()
		entries = append(entries, HistoryEntry{
			ID:         row.ID,
			Label:      result.Prediction,
			Confidence: row.Confidence,
			// Listings skip the blob column; the content hash is only ever
			// written alongside an encrypted copy, so it stands in for one
			HasImage:  row.ImagePath != nil || row.ImageHash != nil,
			CreatedAt: row.CreatedAt,
		})
	}
	return entries, nil
}

// FetchImage retrieves the stored scan for a prediction the user owns.
// Successful retrievals are cached briefly since history pages re-request
// the same images.
func (s *PredictionService) FetchImage(ctx context.Context, predictionID, userID int64) ([]byte, error) {
	cacheKey := fmt.Sprintf("scan:%d:%d", userID, predictionID)

	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, cacheKey); err == nil && ok {
			return cached, nil
		}
	}

	result, err := s.pipeline.Fetch(ctx, predictionID, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result.Bytes, imageCacheTTL); err != nil {
			s.log.Warn("image cache write failed", "error", err)
		}
	}

	return result.Bytes, nil
}

// round4 trims confidence to four decimal places for storage and responses.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// publishStored emits an audit event. Event delivery is best effort and
// never affects the caller's result.
func (s *PredictionService) publishStored(ctx context.Context, stored *storage.StoreResult, userID int64, label string) {
	if s.events == nil {
		return
	}

	var predictionID int64
	if stored.Record != nil {
		predictionID = stored.Record.ID
	}

	payload, err := json.Marshal(storedEvent{
		PredictionID: predictionID,
		UserID:       userID,
		Label:        label,
		Outcome:      string(stored.Outcome),
		OccurredAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.log.Warn("failed to encode stored event", "error", err)
		return
	}

	key := fmt.Sprintf("%d", userID)
	if err := s.events.Publish(ctx, TopicPredictionStored, key, payload); err != nil {
		s.log.Warn("failed to publish stored event", "error", err)
	}
}
