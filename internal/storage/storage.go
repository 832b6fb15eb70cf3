// Package storage holds uploaded audio. Objects are addressed by key; the key
// returned from Put is what the pipeline later passes to Get.
package storage

import (
	"context"
	"path"
	"strings"
)

// Store is implemented by S3Store and FSStore. Errors are *types.StoreError.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, reference string) ([]byte, error)
	Delete(ctx context.Context, reference string) error
}

const defaultExtension = ".webm"

var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".aac":  "audio/aac",
}

// GenerateKey builds audio/<id><ext> from the uploaded filename, falling back
// to .webm when the name carries no extension.
func GenerateKey(id, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || ext == "." {
		ext = defaultExtension
	}
	return "audio/" + id + ext
}

// ContentType maps a key or filename to its audio MIME type.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// FilenameHint returns a name whose extension tells the transcription provider
// the container format.
func FilenameHint(reference string) string {
	base := path.Base(strings.TrimSpace(reference))
	if base == "." || base == "/" || base == "" {
		return "audio" + defaultExtension
	}
	if path.Ext(base) == "" {
		return base + defaultExtension
	}
	return base
}
