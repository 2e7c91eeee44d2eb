package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cortexlab/neuroscan/cmd/neuroscan/models"
	"github.com/cortexlab/neuroscan/common/db"
	"github.com/jackc/pgx/v5"
)

// ErrRecordNotFound is returned when no prediction matches the requested
// id and owner. A missing row is an expected condition on the read path,
// distinct from the store being unreachable.
var ErrRecordNotFound = errors.New("prediction record not found")

// PredictionRepository handles database operations for prediction records
type PredictionRepository struct {
	db *db.DB
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(database *db.DB) *PredictionRepository {
	return &PredictionRepository{db: database}
}

// Create inserts a prediction record and fills in its assigned id.
// Records are created exactly once and never updated in place.
func (r *PredictionRepository) Create(ctx context.Context, p *models.Prediction) error {
	query := `
		INSERT INTO predictions (user_id, image_path, prediction_result, confidence,
			image_data, image_hash, encryption_key, prediction_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		p.UserID,
		p.ImagePath,
		p.Result,
		p.Confidence,
		p.ImageData,
		p.ImageHash,
		p.EncryptionKey,
		p.CreatedAt,
	).Scan(&p.ID)

	if err != nil {
		return fmt.Errorf("failed to create prediction: %w", err)
	}

	return nil
}

// GetByIDAndOwner retrieves one prediction, filtered by owner. Rows belonging
// to other users are invisible here; ownership is enforced in the query, not
// in the caller.
func (r *PredictionRepository) GetByIDAndOwner(ctx context.Context, id, userID int64) (*models.Prediction, error) {
	query := `
		SELECT id, user_id, image_path, prediction_result, confidence,
			image_data, image_hash, encryption_key, prediction_date
		FROM predictions
		WHERE id = $1 AND user_id = $2
	`

	p := &models.Prediction{}
	err := r.db.QueryRow(ctx, query, id, userID).Scan(
		&p.ID,
		&p.UserID,
		&p.ImagePath,
		&p.Result,
		&p.Confidence,
		&p.ImageData,
		&p.ImageHash,
		&p.EncryptionKey,
		&p.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	return p, nil
}

// ListByOwner retrieves a user's predictions, newest first. The encrypted
// blob is left out; history listings only need metadata.
func (r *PredictionRepository) ListByOwner(ctx context.Context, userID int64, limit int) ([]*models.Prediction, error) {
	query := `
		SELECT id, user_id, image_path, prediction_result, confidence,
			image_hash, prediction_date
		FROM predictions
		WHERE user_id = $1
		ORDER BY prediction_date DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	var predictions []*models.Prediction
	for rows.Next() {
		p := &models.Prediction{}
		err := rows.Scan(&p.ID, &p.UserID, &p.ImagePath, &p.Result, &p.Confidence, &p.ImageHash, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictions: %w", err)
	}

	return predictions, nil
}
