package media

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"stemboard/core/apperr"
)

// MaxUploadBytes is the largest accepted primary upload (100 MiB).
const MaxUploadBytes int64 = 100 << 20

// File is an upload in flight. Body is read exactly once.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// IsAudio reports whether a MIME type names audio content.
func IsAudio(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "audio/")
}

// Validate checks a primary upload against the size limit and audio type.
// A non-positive limit means MaxUploadBytes.
func Validate(f File, limit int64) error {
	if limit <= 0 {
		limit = MaxUploadBytes
	}
	if f.Name == "" {
		return apperr.Validation("validate upload", "file name is required")
	}
	if f.Size > limit {
		return apperr.Validation("validate upload", fmt.Sprintf("File size exceeds %d MB limit.", limit>>20))
	}
	if !IsAudio(f.ContentType) {
		return apperr.Validation("validate upload", "Invalid file type. Please upload an audio file.")
	}
	return nil
}

// audio extensions the platform MIME table may not know about
var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".aif":  "audio/aiff",
	".aiff": "audio/aiff",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
}

// ContentTypeFor guesses a MIME type from the file extension, falling back
// to application/octet-stream.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
