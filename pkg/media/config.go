package media

import (
	"path/filepath"
	"strings"
)

// Config holds upload handling configuration
type Config struct {
	// Largest accepted upload in bytes
	MaxBytes int64

	// Accepted file extensions without the leading dot
	AllowedExtensions []string

	// Directory uploads are staged in while they are processed
	UploadDir string

	// Seed for synthetic silence candidates; zero derives one from the file
	Seed int64
}

// DefaultConfig returns the stock upload limits.
func DefaultConfig() Config {
	return Config{
		MaxBytes:          100 * 1024 * 1024,
		AllowedExtensions: []string{"mp3", "m4a", "mp4", "wav", "webm", "ogg"},
		UploadDir:         "uploads",
	}
}

// Extension returns the lower-cased extension of filename without the dot.
func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// Allowed reports whether filename carries an accepted extension.
func (c Config) Allowed(filename string) bool {
	ext := Extension(filename)
	if ext == "" {
		return false
	}
	for _, allowed := range c.AllowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return true
		}
	}
	return false
}
