package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cortexlab/neuroscan/common/db"
)

// Migrate creates the schema if it does not exist. Run through the bootstrap
// DB init hook at process start.
func Migrate(database *db.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            BIGSERIAL PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password      TEXT NOT NULL,
			birth_year    INTEGER NOT NULL DEFAULT 1990,
			gender        TEXT NOT NULL DEFAULT 'Other',
			blood_group   TEXT NOT NULL DEFAULT 'O+',
			address       TEXT NOT NULL DEFAULT '',
			register_date TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			id                BIGSERIAL PRIMARY KEY,
			user_id           BIGINT NOT NULL REFERENCES users(id),
			image_path        TEXT,
			prediction_result TEXT NOT NULL,
			confidence        DOUBLE PRECISION NOT NULL,
			image_data        BYTEA,
			image_hash        TEXT,
			encryption_key    TEXT,
			prediction_date   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_user_date
			ON predictions (user_id, prediction_date DESC)`,
	}

	for _, stmt := range statements {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}

	return nil
}
