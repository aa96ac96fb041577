package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	unsafeChars = regexp.MustCompile(`[^\w\s-]`)
	separators  = regexp.MustCompile(`[-\s]+`)
)

// slugify turns free text (a prompt, an output name) into a short filename
// fragment.
func slugify(s string) string {
	s = unsafeChars.ReplaceAllString(s, "")
	if len(s) > 30 {
		s = s[:30]
	}
	s = separators.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// allocateOutputPath builds a timestamped file name under dir and resolves
// collisions by appending a counter instead of overwriting. The directory is
// created if absent.
func allocateOutputPath(dir, prefix, source, ext string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	base := prefix + "_" + timestamp
	if slug := slugify(source); slug != "" {
		base = prefix + "_" + slug + "_" + timestamp
	}

	path := filepath.Join(dir, base+"."+ext)
	for i := 2; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.%s", base, i, ext))
	}
}
