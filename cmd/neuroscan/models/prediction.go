package models

import (
	"encoding/json"
	"time"
)

// Prediction is the durable record of one classified scan.
// Maps to: predictions table
//
// The metadata row is the system of record; the filesystem copy referenced by
// ImagePath is best-effort and may be absent even when the row exists.
type Prediction struct {
	// Assigned by the metadata store on insert
	ID int64 `db:"id" json:"id"`

	// Owning user, set at creation
	UserID int64 `db:"user_id" json:"user_id"`

	// Stored filename under the upload root (NULL if the filesystem write failed)
	ImagePath *string `db:"image_path" json:"image_path,omitempty"`

	// JSON document: {prediction, confidence, details}
	Result string `db:"prediction_result" json:"prediction_result"`

	// Top-class confidence, duplicated out of Result for querying
	Confidence float64 `db:"confidence" json:"confidence"`

	// Encrypted copy of the compressed image. ImageData, ImageHash and
	// EncryptionKey are present or absent as a group.
	ImageData []byte `db:"image_data" json:"-"`

	// SHA-256 hex digest of the compressed plaintext
	ImageHash *string `db:"image_hash" json:"image_hash,omitempty"`

	// Base64-encoded per-image key
	EncryptionKey *string `db:"encryption_key" json:"-"`

	// Creation timestamp
	CreatedAt time.Time `db:"prediction_date" json:"prediction_date"`
}

// HasEncryptedCopy reports whether the record carries a decryptable blob.
func (p *Prediction) HasEncryptedCopy() bool {
	return len(p.ImageData) > 0 && p.EncryptionKey != nil
}

// PredictionResult is the JSON document stored in the prediction_result column.
type PredictionResult struct {
	Prediction string             `json:"prediction"`
	Confidence float64            `json:"confidence"`
	Details    map[string]float64 `json:"details"`
}

// EncodeResult renders a result document for storage.
func EncodeResult(label string, confidence float64, scores map[string]float64) (string, error) {
	doc, err := json.Marshal(PredictionResult{
		Prediction: label,
		Confidence: confidence,
		Details:    scores,
	})
	if err != nil {
		return "", err
	}
	return string(doc), nil
}

// ParseResult decodes a stored result document. Rows written before the JSON
// format carry a bare label; those fall back to a document built from the
// label and the confidence column.
func (p *Prediction) ParseResult() PredictionResult {
	var result PredictionResult
	if err := json.Unmarshal([]byte(p.Result), &result); err != nil || result.Prediction == "" {
		return PredictionResult{
			Prediction: p.Result,
			Confidence: p.Confidence,
		}
	}
	return result
}
