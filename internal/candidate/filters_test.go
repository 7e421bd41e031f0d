package candidate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFilterSpec_ChainOrderInvariant(t *testing.T) {
	cfg := &Config{
		HighpassHz:     80,
		NoiseStrength:  0.0001,
		MudCutDb:       -3,
		DeesserOn:      true,
		UseLeveler:     true,
		TargetLUFS:     -16,
		TargetTruePeak: -1.5,
		LoudnessRange:  11,
	}

	spec, applied := BuildFilterSpec(cfg)

	assert.Equal(t, []string{"highpass", "anlmdn", "equalizer", "deesser", "dynaudnorm", "loudnorm"}, applied)

	var positions []int
	for _, name := range []string{"highpass", "anlmdn", "equalizer", "deesser", "dynaudnorm", "loudnorm"} {
		positions = append(positions, strings.Index(spec, name))
	}
	for i := 1; i < len(positions); i++ {
		assert.Less(t, positions[i-1], positions[i], "filters must appear in contract order")
	}
}

func TestBuildFilterSpec_LevelerAndCompressorSlotsAreIndependent(t *testing.T) {
	cfg := &Config{UseLeveler: true, UseCompressor: true, TargetLUFS: -16, TargetTruePeak: -1.5}

	_, applied := BuildFilterSpec(cfg)

	hasLeveler := false
	hasCompressor := false
	for _, id := range applied {
		if id == "dynaudnorm" {
			hasLeveler = true
		}
		if id == "acompressor" {
			hasCompressor = true
		}
	}
	// Both flags set is a caller error, but BuildFilterSpec itself does not
	// arbitrate; the generator never sets both. This asserts the current
	// contract: whichever is requested emits its filter independently.
	assert.True(t, hasLeveler)
	assert.True(t, hasCompressor)
}

func TestBuildFilterSpec_SkipsDisabledStages(t *testing.T) {
	cfg := &Config{TargetLUFS: -14, TargetTruePeak: -1}

	spec, applied := BuildFilterSpec(cfg)

	assert.Equal(t, []string{"loudnorm"}, applied)
	assert.True(t, strings.HasPrefix(spec, "loudnorm="))
}
