package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidatePosterType(t *testing.T) {
	assert.True(t, ValidatePosterType("image/jpeg", ""))
	assert.True(t, ValidatePosterType("IMAGE/PNG", ""))
	assert.True(t, ValidatePosterType("", "poster.webp"))
	assert.True(t, ValidatePosterType("", "POSTER.JPEG"))
	// Content type wins even when the extension is unknown.
	assert.True(t, ValidatePosterType("image/png", "poster.bin"))

	assert.False(t, ValidatePosterType("application/pdf", "poster.pdf"))
	assert.False(t, ValidatePosterType("", "poster.gif"))
	assert.False(t, ValidatePosterType("", ""))
}

func TestContentTypeForFilename(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeForFilename("a.jpg"))
	assert.Equal(t, "image/jpeg", ContentTypeForFilename("a.JPEG"))
	assert.Equal(t, "image/webp", ContentTypeForFilename("a.webp"))
	assert.Equal(t, "application/octet-stream", ContentTypeForFilename("a.gif"))
}

func TestPosterKey(t *testing.T) {
	assert.Equal(t, "posters/ev-1/flyer.png", PosterKey("ev-1", "flyer.png"))
	// Path components in the filename are stripped.
	assert.Equal(t, "posters/ev-1/flyer.png", PosterKey("ev-1", "../../flyer.png"))
}

func TestPresignExpireDefault(t *testing.T) {
	s := &S3{cfg: S3Config{PresignExpireMinutes: 0}}
	assert.Equal(t, 15*time.Minute, s.PresignExpire())

	s = &S3{cfg: S3Config{PresignExpireMinutes: 60}}
	assert.Equal(t, time.Hour, s.PresignExpire())
}
