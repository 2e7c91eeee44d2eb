// Package storage implements the secure persistence pipeline for classified
// scans: compression, content hashing, per-image encryption, dual-path
// storage (filesystem + database blob) and the tiered fallback lookup that
// reconstructs an image even when the primary path has failed.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cortexlab/neuroscan/cmd/neuroscan/models"
	"github.com/cortexlab/neuroscan/common/imaging"
	"github.com/cortexlab/neuroscan/common/logger"
	"github.com/cortexlab/neuroscan/common/secure"
)

// ErrNotFound is returned by Fetch after every lookup tier has been
// exhausted.
var ErrNotFound = errors.New("no stored image found")

// ErrEmptyImage is returned by Store for a zero-byte payload.
var ErrEmptyImage = errors.New("empty image payload")

// ImageFiles is the filename-addressed store consumed by the pipeline,
// implemented by FileStore.
type ImageFiles interface {
	Save(data []byte, suggestedName string) (string, error)
	Load(storedName string) ([]byte, error)
	ScanForToken(token string) (string, []byte, bool)
}

// RecordStore is the metadata store adapter. The relational store behind it
// provides row-level atomicity; the pipeline holds no locks of its own.
type RecordStore interface {
	// Create persists a new record and assigns its id.
	Create(ctx context.Context, p *models.Prediction) error

	// GetByIDAndOwner returns the record matching both id and owner, or an
	// error when the row is missing or the store is unreachable. The
	// pipeline treats both the same way: fall through to the next tier.
	GetByIDAndOwner(ctx context.Context, id, userID int64) (*models.Prediction, error)
}

// StoreOutcome tags which rung of the degradation ladder satisfied a Store
// call.
type StoreOutcome string

const (
	// OutcomeComplete: the metadata record was written (the filesystem copy
	// may still be absent; the record's ImagePath says).
	OutcomeComplete StoreOutcome = "complete"

	// OutcomeFileOnly: the metadata store was unreachable but the compressed
	// image landed on disk. A durable copy exists, so the store succeeded.
	OutcomeFileOnly StoreOutcome = "file_only"

	// OutcomeFallbackFile: every normal path failed and the original
	// uncompressed bytes were written under a fallback name.
	OutcomeFallbackFile StoreOutcome = "fallback_file"
)

// FetchTier tags which lookup tier produced the image.
type FetchTier string

const (
	TierRecordFile    FetchTier = "record_file"
	TierRecordDecrypt FetchTier = "record_decrypt"
	TierScanByID      FetchTier = "scan_by_id"
	TierScanByOwner   FetchTier = "scan_by_owner"
)

// StoreResult is the outcome of a Store call.
type StoreResult struct {
	Record  *models.Prediction
	Outcome StoreOutcome
}

// FetchResult is the outcome of a Fetch call.
type FetchResult struct {
	Bytes []byte
	Tier  FetchTier
}

// Pipeline orchestrates compression, hashing, encryption and dual-path
// persistence. Each Store or Fetch call is independent and stateless; a
// Pipeline is constructed once at process start and shared read-only.
type Pipeline struct {
	compressor *imaging.Compressor
	files      ImageFiles
	records    RecordStore
	log        *logger.Logger
}

// NewPipeline creates a storage pipeline
func NewPipeline(compressor *imaging.Compressor, files ImageFiles, records RecordStore, log *logger.Logger) *Pipeline {
	return &Pipeline{
		compressor: compressor,
		files:      files,
		records:    records,
		log:        log,
	}
}

// Store persists a classified scan. The degradation ladder, from strongest
// to weakest: full persistence (metadata row with encrypted copy, plus a
// best-effort file), file-only, fallback-file-only. Only when every rung
// fails does Store report an error. Availability of some durable copy
// outranks completeness of metadata.
func (p *Pipeline) Store(ctx context.Context, userID int64, raw []byte, label string, confidence float64, scores map[string]float64) (*StoreResult, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyImage
	}

	log := p.log.WithUserID(userID)

	// Compression degrades to the raw bytes, never aborts.
	comp, err := p.compressor.Compress(raw)
	if err != nil {
		log.Warn("compression degraded to original bytes", "error", err)
	}

	resultDoc, err := models.EncodeResult(label, confidence, scores)
	if err != nil {
		// Scores came out of a JSON response; marshalling them back cannot
		// realistically fail. Fall back to the bare label if it does.
		log.Warn("result encoding failed, storing bare label", "error", err)
		resultDoc = label
	}

	rec := &models.Prediction{
		UserID:     userID,
		Result:     resultDoc,
		Confidence: confidence,
		CreatedAt:  time.Now(),
	}

	// Encrypted copy: hash, key and ciphertext are present or absent as a
	// group. A failure in any of the three drops the whole group, never a
	// partial trio.
	p.attachEncryptedCopy(rec, comp.Bytes, log)

	// Best-effort filesystem copy of the compressed plaintext.
	name := fmt.Sprintf("prediction_%d_%d.jpg", time.Now().Unix(), userID)
	storedName, err := p.files.Save(comp.Bytes, name)
	if err != nil {
		log.Warn("filesystem save failed, continuing without file copy", "error", err)
	} else {
		rec.ImagePath = &storedName
	}

	if err := p.records.Create(ctx, rec); err != nil {
		log.Warn("metadata store write failed", "error", err)

		if rec.ImagePath != nil {
			log.Info("prediction stored as file only", "file", *rec.ImagePath)
			return &StoreResult{Record: rec, Outcome: OutcomeFileOnly}, nil
		}

		// Last resort: the original uncompressed bytes under a fallback
		// name. Only if this also fails is the store a failure.
		fallbackName := fmt.Sprintf("fallback_%d_%d.jpg", time.Now().Unix(), userID)
		saved, ferr := p.files.Save(raw, fallbackName)
		if ferr != nil {
			log.Error("all persistence paths failed", "metadata_error", err, "fallback_error", ferr)
			return nil, fmt.Errorf("store prediction: %w", err)
		}

		rec.ImagePath = &saved
		log.Info("prediction stored via fallback file", "file", saved)
		return &StoreResult{Record: rec, Outcome: OutcomeFallbackFile}, nil
	}

	log.Info("prediction stored",
		"prediction_id", rec.ID,
		"compressed", comp.Applied,
		"has_file", rec.ImagePath != nil,
		"has_encrypted_copy", rec.HasEncryptedCopy(),
	)
	return &StoreResult{Record: rec, Outcome: OutcomeComplete}, nil
}

// attachEncryptedCopy fills the record's image_data/image_hash/encryption_key
// group from the compressed plaintext. Each image gets a fresh key.
func (p *Pipeline) attachEncryptedCopy(rec *models.Prediction, plaintext []byte, log *logger.Logger) {
	digest, err := secure.Hash(plaintext)
	if err != nil {
		log.Warn("content hash failed, skipping encrypted copy", "error", err)
		return
	}

	key, err := secure.GenerateKey()
	if err != nil {
		log.Warn("key generation failed, skipping encrypted copy", "error", err)
		return
	}

	ciphertext, err := secure.Encrypt(plaintext, key)
	if err != nil {
		log.Warn("encryption failed, skipping encrypted copy", "error", err)
		return
	}

	encodedKey := secure.EncodeKey(key)
	rec.ImageData = ciphertext
	rec.ImageHash = &digest
	rec.EncryptionKey = &encodedKey
}

// Fetch reconstructs a stored image through an ordered list of lookup tiers,
// each attempted only when the previous yielded nothing:
//
//  1. metadata record -> file at its recorded path
//  2. metadata record -> decrypt the database blob
//  3. upload dir scan for filenames containing the prediction id
//  4. upload dir scan for filenames containing the owner id
//
// Tiers 1-2 are ownership-filtered in the metadata store. Tiers 3-4 rely on
// filename convention only, a documented weaker guarantee kept for records
// created before metadata linkage was reliable. Corrupted or undecryptable
// bytes are never returned; the tier is skipped instead.
func (p *Pipeline) Fetch(ctx context.Context, predictionID, userID int64) (*FetchResult, error) {
	log := p.log.WithUserID(userID).WithPredictionID(predictionID)

	rec, err := p.records.GetByIDAndOwner(ctx, predictionID, userID)
	if err != nil {
		log.Debug("metadata lookup yielded nothing", "error", err)
		rec = nil
	}

	if rec != nil {
		if rec.ImagePath != nil {
			data, err := p.files.Load(*rec.ImagePath)
			if err == nil {
				return &FetchResult{Bytes: data, Tier: TierRecordFile}, nil
			}
			log.Warn("recorded file unreadable, trying database copy", "file", *rec.ImagePath, "error", err)
		}

		if rec.HasEncryptedCopy() {
			data, err := p.decryptRecord(rec)
			if err == nil {
				return &FetchResult{Bytes: data, Tier: TierRecordDecrypt}, nil
			}
			if errors.Is(err, secure.ErrIntegrity) {
				// Corruption signal, not a retryable error. Abort the tier,
				// never hand out partial plaintext.
				log.Error("stored ciphertext failed integrity check", "error", err)
			} else {
				log.Warn("database copy unusable", "error", err)
			}
		}
	}

	if name, data, ok := p.files.ScanForToken(strconv.FormatInt(predictionID, 10)); ok {
		log.Info("image recovered by prediction-id scan", "file", name)
		return &FetchResult{Bytes: data, Tier: TierScanByID}, nil
	}

	if name, data, ok := p.files.ScanForToken(strconv.FormatInt(userID, 10)); ok {
		log.Info("image recovered by owner-id scan", "file", name)
		return &FetchResult{Bytes: data, Tier: TierScanByOwner}, nil
	}

	return nil, ErrNotFound
}

func (p *Pipeline) decryptRecord(rec *models.Prediction) ([]byte, error) {
	key, err := secure.DecodeKey(*rec.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("stored key unusable: %w", err)
	}

	return secure.Decrypt(rec.ImageData, key)
}
