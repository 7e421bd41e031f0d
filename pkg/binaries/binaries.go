// Package binaries locates the external executables the control plane
// shells out to. Paths are resolved from environment overrides first,
// falling back to whatever PATH provides.
package binaries

import "os"

func resolve(envKey, fallback string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return fallback
}

// FFmpeg returns the configured ffmpeg executable path.
func FFmpeg() string {
	return resolve("AUDIOLEVEL_FFMPEG_BIN", "ffmpeg")
}

// FFprobe returns the configured ffprobe executable path.
func FFprobe() string {
	return resolve("AUDIOLEVEL_FFPROBE_BIN", "ffprobe")
}

// QualityModel returns the configured external perceptual-quality model
// command, empty when none is configured (the Evaluator then falls back
// to its fallback heuristic).
func QualityModel() string {
	return os.Getenv("QUALITY_MODEL_BIN")
}

// QualityModelWeights returns the configured weights file path for the
// external quality model, if any.
func QualityModelWeights() string {
	return os.Getenv("QUALITY_MODEL_WEIGHTS")
}
