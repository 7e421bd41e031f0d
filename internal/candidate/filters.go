// Package candidate implements the Candidate Generator. Grounded on the
// jivetalking filter-builder registry pattern: a FilterID-keyed table of
// builder functions, an explicit filter order, and a join step that skips
// empty builder outputs.
package candidate

import "fmt"

// FilterID names one stage of the filter-chain contract.
type FilterID string

const (
	FilterHighpass    FilterID = "highpass"
	FilterNoiseReduce FilterID = "anlmdn"
	FilterEqualizer   FilterID = "equalizer"
	FilterDeesser     FilterID = "deesser"
	FilterLeveler     FilterID = "dynaudnorm"
	FilterCompressor  FilterID = "acompressor"
	FilterLoudnorm    FilterID = "loudnorm"
)

// chainOrder is the fixed, contractual stage order. Leveler and
// compressor are mutually exclusive — at most one of them ever appears —
// but both occupy the same ordering slot.
var chainOrder = []FilterID{
	FilterHighpass,
	FilterNoiseReduce,
	FilterEqualizer,
	FilterDeesser,
	FilterLeveler,
	FilterCompressor,
	FilterLoudnorm,
}

// Config is the typed configuration record a candidate is built from.
type Config struct {
	HighpassHz     float64
	NoiseStrength  float64 // 0 disables anlmdn
	MudCutDb       float64 // 0 disables corrective EQ
	DeesserOn      bool
	UseLeveler     bool // dynaudnorm
	UseCompressor  bool // acompressor
	CompressRatio  float64
	TargetLUFS     float64
	TargetTruePeak float64
	LoudnessRange  float64
}

type builderFunc func(*Config) string

var builders = map[FilterID]builderFunc{
	FilterHighpass:    buildHighpass,
	FilterNoiseReduce: buildNoiseReduce,
	FilterEqualizer:   buildEqualizer,
	FilterDeesser:     buildDeesser,
	FilterLeveler:     buildLeveler,
	FilterCompressor:  buildCompressor,
	FilterLoudnorm:    buildLoudnorm,
}

func buildHighpass(c *Config) string {
	if c.HighpassHz <= 0 {
		return ""
	}
	return fmt.Sprintf("highpass=f=%.0f:poles=2:width_type=q:width=0.707", c.HighpassHz)
}

func buildNoiseReduce(c *Config) string {
	if c.NoiseStrength <= 0 {
		return ""
	}
	return fmt.Sprintf("anlmdn=s=%.0f:p=0.0002:r=0.0040", c.NoiseStrength)
}

func buildEqualizer(c *Config) string {
	if c.MudCutDb == 0 {
		return ""
	}
	return fmt.Sprintf("equalizer=f=300:t=q:w=1.5:g=%.1f", c.MudCutDb)
}

func buildDeesser(c *Config) string {
	if !c.DeesserOn {
		return ""
	}
	return "deesser=i=0.4:m=0.5:f=0.5"
}

func buildLeveler(c *Config) string {
	if !c.UseLeveler {
		return ""
	}
	return "dynaudnorm=f=250:g=15:p=0.9:m=8"
}

func buildCompressor(c *Config) string {
	if !c.UseCompressor {
		return ""
	}
	ratio := c.CompressRatio
	if ratio <= 0 {
		ratio = 2.0
	}
	return fmt.Sprintf("acompressor=threshold=-18dB:ratio=%.1f:attack=20:release=250:detection=rms:mix=1", ratio)
}

func buildLoudnorm(c *Config) string {
	return fmt.Sprintf("loudnorm=I=%.0f:TP=%g:LRA=%.0f:linear=true", c.TargetLUFS, c.TargetTruePeak, c.LoudnessRange)
}

// BuildFilterSpec joins the non-empty builder outputs, in contract order,
// into a single filter-chain string accepted by the media toolchain.
func BuildFilterSpec(c *Config) (spec string, applied []string) {
	parts := make([]string, 0, len(chainOrder))
	for _, id := range chainOrder {
		out := builders[id](c)
		if out == "" {
			continue
		}
		parts = append(parts, out)
		applied = append(applied, string(id))
	}
	spec = joinComma(parts)
	return spec, applied
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
