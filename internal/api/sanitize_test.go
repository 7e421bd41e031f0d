package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidJobID(t *testing.T) {
	assert.True(t, ValidJobID("AbC123-_xYzW"))
	assert.False(t, ValidJobID("too-short"))
	assert.False(t, ValidJobID("has a space!"))
	assert.False(t, ValidJobID(""))
}

func TestSanitizeDownloadName_StripsUnsafeCharacters(t *testing.T) {
	name := SanitizeDownloadName(`../../etc/passwd; rm -rf ~`, "wav")

	assert.False(t, strings.Contains(name, "/"))
	assert.False(t, strings.Contains(name, ";"))
	assert.False(t, strings.Contains(name, " "))
	assert.True(t, strings.HasSuffix(name, "-normalized.wav"))
}

func TestSanitizeDownloadName_TruncatesLongNames(t *testing.T) {
	longName := strings.Repeat("a", 500) + ".mp3"

	name := SanitizeDownloadName(longName, "mp3")

	base := strings.TrimSuffix(name, "-normalized.mp3")
	assert.LessOrEqual(t, len(base), 200)
}

func TestSanitizeDownloadName_EmptyBaseFallsBackToFile(t *testing.T) {
	name := SanitizeDownloadName("...", "wav")
	assert.Equal(t, "file-normalized.wav", name)
}
