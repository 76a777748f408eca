package audio

import (
	"fmt"
	"os"
)

// WithTempFile creates a temp file matching pattern, runs fn with its path
// and removes the file on every exit path, including a panic inside fn.
// Handlers that download media must go through this; leaked scratch files
// were a recurring defect in this bot's ancestors.
func WithTempFile(pattern string, fn func(path string) error) error {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	// Close right away; downloads and ffmpeg open the path themselves.
	f.Close()
	defer os.Remove(path)

	return fn(path)
}
