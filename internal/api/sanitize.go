package api

import (
	"path/filepath"
	"regexp"
	"strings"
)

var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{12}$`)

// ValidJobID reports whether id matches the documented job-id shape.
func ValidJobID(id string) bool {
	return jobIDPattern.MatchString(id)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeDownloadName builds the download filename per the specification:
// drop the extension, replace disallowed characters, strip leading dots,
// truncate to 200 chars, and append "-normalized.<ext>".
func SanitizeDownloadName(originalName, ext string) string {
	base := strings.TrimSuffix(originalName, filepath.Ext(originalName))
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.TrimLeft(base, ".")
	if base == "" {
		base = "file"
	}
	if len(base) > 200 {
		base = base[:200]
	}
	ext = strings.TrimPrefix(ext, ".")
	return base + "-normalized." + ext
}
