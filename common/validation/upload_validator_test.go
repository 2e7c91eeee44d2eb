package validation

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func TestValidateAcceptsImage(t *testing.T) {
	v := NewUploadValidator(1 << 20)
	assert.NoError(t, v.Validate(pngBytes(t)))
}

func TestValidateRejectsEmpty(t *testing.T) {
	v := NewUploadValidator(1 << 20)
	assert.Error(t, v.Validate(nil))
}

func TestValidateRejectsOversized(t *testing.T) {
	data := pngBytes(t)
	v := NewUploadValidator(int64(len(data) - 1))
	assert.Error(t, v.Validate(data))
}

func TestValidateRejectsNonImage(t *testing.T) {
	v := NewUploadValidator(1 << 20)

	err := v.Validate([]byte("<html><body>not a scan</body></html>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected an image")
}

func TestValidateIgnoresDeclaredTypeSniffsBytes(t *testing.T) {
	// A renamed script is still not an image regardless of what the client
	// claimed in the multipart header
	v := NewUploadValidator(1 << 20)
	assert.Error(t, v.Validate([]byte("#!/bin/sh\necho hello\n")))
}
