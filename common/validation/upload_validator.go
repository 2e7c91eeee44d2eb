package validation

import (
	"fmt"
	"net/http"
	"strings"
)

// UploadValidator checks incoming scan uploads before they reach the
// classifier or storage.
type UploadValidator struct {
	maxSize int64
}

// NewUploadValidator creates an upload validator with a size cap in bytes.
func NewUploadValidator(maxSize int64) *UploadValidator {
	return &UploadValidator{maxSize: maxSize}
}

// Validate checks the upload's size and sniffed content type. The declared
// Content-Type header is ignored; the payload's leading bytes decide.
func (v *UploadValidator) Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("upload validation failed: file is empty")
	}
	if v.maxSize > 0 && int64(len(data)) > v.maxSize {
		return fmt.Errorf("upload validation failed: file exceeds %d byte limit (got: %d)", v.maxSize, len(data))
	}

	detected := http.DetectContentType(data)
	if !strings.HasPrefix(detected, "image/") {
		return fmt.Errorf("upload validation failed: expected an image, detected %s", detected)
	}

	return nil
}
