package secure

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when asked to hash zero bytes. An image always
// has content, so empty input is a caller bug rather than a data condition.
var ErrEmptyInput = errors.New("cannot hash empty input")

// Hash computes the SHA-256 hex digest of content.
// Identical bytes always produce identical digests.
func Hash(content []byte) (string, error) {
	if len(content) == 0 {
		return "", ErrEmptyInput
	}

	sum := sha256.Sum256(content)
	return fmt.Sprintf("%x", sum), nil
}
