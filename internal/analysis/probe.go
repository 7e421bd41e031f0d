// Package analysis implements the Analysis Probe: it drives the media
// toolchain's measurement filters and parses their textual output into a
// structured AnalysisMetrics snapshot. Grounded on the jivetalking
// astats/aspectralstats/ebur128 filter-string construction and the
// teacher's tolerant-regex-with-default parsing style used for ffmpeg
// progress lines.
package analysis

import (
	"context"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"audiolevel/internal/media"
	"audiolevel/internal/models"
	"audiolevel/pkg/binaries"
)

// Probe orchestrates Runner invocations to obtain raw measurements and
// parses them into AnalysisMetrics.
type Probe struct {
	runner  *media.Runner
	timeout time.Duration
}

// New returns a Probe that spawns ffmpeg through the Media Runner.
func New(timeout time.Duration) *Probe {
	return &Probe{runner: media.New(binaries.FFmpeg()), timeout: timeout}
}

const measureFilter = "astats=metadata=1:measure_perchannel=all,aspectralstats=win_size=2048:win_func=hann:measure=all,ebur128=metadata=1:peak=sample+true:dualmono=true"

// bandsFilter splits the signal into four parallel bandpass branches plus
// a silence-detection branch, each feeding its own astats/silencedetect
// instance, then remixes them into a single discarded output so a single
// ffmpeg invocation can measure all five in one pass. Band edges follow
// the same low/mid/high/very-high split the Problem Detector's thresholds
// are tuned against.
const bandsFilter = "[0:a]asplit=5[b0][b1][b2][b3][sd];" +
	"[b0]highpass=f=20,lowpass=f=250,astats=metadata=0:measure_perchannel=0:measure_overall=1[o0];" +
	"[b1]highpass=f=250,lowpass=f=4000,astats=metadata=0:measure_perchannel=0:measure_overall=1[o1];" +
	"[b2]highpass=f=4000,lowpass=f=10000,astats=metadata=0:measure_perchannel=0:measure_overall=1[o2];" +
	"[b3]highpass=f=10000,astats=metadata=0:measure_perchannel=0:measure_overall=1[o3];" +
	"[sd]silencedetect=noise=-50dB:d=0.3[osd];" +
	"[o0][o1][o2][o3][osd]amix=inputs=5:duration=longest[out]"

// Measure runs the full measurement pass and parses every field the
// Problem Detector and Classifier need. Any field ffmpeg's output omits
// resolves to its documented default rather than failing the pipeline.
// Bit depth is not probed: BitDepth is always 16.
func (p *Probe) Measure(ctx context.Context, path string) (*models.AnalysisMetrics, error) {
	argv := []string{
		"-hide_banner", "-nostats", "-i", path,
		"-af", measureFilter,
		"-f", "null", "-",
	}

	res, err := p.runner.Run(ctx, argv, p.timeout, nil)
	if err != nil {
		return nil, err
	}

	m := &models.AnalysisMetrics{
		Channels: 2, SampleRate: 44100, BitDepth: 16,
	}
	parseInto(res.Stderr, m)
	parseStereoBalance(res.Stderr, m)

	if probed, err := p.probeFormat(ctx, path); err == nil {
		if probed.Channels > 0 {
			m.Channels = probed.Channels
		}
		if probed.SampleRate > 0 {
			m.SampleRate = probed.SampleRate
		}
		if probed.DurationS > 0 {
			m.DurationS = probed.DurationS
		}
	}

	if bandsRes, err := p.runner.Run(ctx, []string{
		"-hide_banner", "-nostats", "-i", path,
		"-filter_complex", bandsFilter,
		"-map", "[out]",
		"-f", "null", "-",
	}, p.timeout, nil); err == nil {
		parseBandEnergies(bandsRes.Stderr, m)
		parseSilence(bandsRes.Stderr, m.DurationS, m)
	}

	return m, nil
}

// MeasureSummary runs a single ebur128 pass and returns integrated
// loudness, loudness range and true peak, each defaulting when not found.
// The Evaluator scores candidates from Measure and does not call it.
func (p *Probe) MeasureSummary(ctx context.Context, path string) (*models.LoudnessSummary, error) {
	argv := []string{
		"-hide_banner", "-nostats", "-i", path,
		"-af", "ebur128=peak=true",
		"-f", "null", "-",
	}
	res, err := p.runner.Run(ctx, argv, p.timeout, nil)
	if err != nil {
		return nil, err
	}
	s := &models.LoudnessSummary{IntegratedLUFS: -23, LoudnessRange: 7, TruePeak: -1}
	if v, ok := matchFloat(reIntegrated, res.Stderr); ok {
		s.IntegratedLUFS = v
	}
	if v, ok := matchFloat(reLRA, res.Stderr); ok {
		s.LoudnessRange = v
	}
	if v, ok := matchFloat(rePeak, res.Stderr); ok {
		s.TruePeak = v
	}
	return s, nil
}

type formatInfo struct {
	Channels   int
	SampleRate int
	DurationS  float64
}

func (p *Probe) probeFormat(ctx context.Context, path string) (*formatInfo, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(probeCtx, binaries.FFprobe(),
		"-v", "error", "-select_streams", "a:0",
		"-show_entries", "stream=channels,sample_rate:format=duration",
		"-of", "default=noprint_wrappers=1", path)
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	fi := &formatInfo{}
	text := string(out)
	if v, ok := matchInt(regexp.MustCompile(`channels=(\d+)`), text); ok {
		fi.Channels = v
	}
	if v, ok := matchInt(regexp.MustCompile(`sample_rate=(\d+)`), text); ok {
		fi.SampleRate = v
	}
	if v, ok := matchFloat(regexp.MustCompile(`duration=([0-9.]+)`), text); ok {
		fi.DurationS = v
	}
	return fi, nil
}

var (
	reRMSLevel     = regexp.MustCompile(`RMS level dB:\s*(-?[\d.]+)`)
	rePeakLevel    = regexp.MustCompile(`Peak level dB:\s*(-?[\d.]+)`)
	reCrestFactor  = regexp.MustCompile(`Crest factor:\s*(-?[\d.]+)`)
	reFlatFactor   = regexp.MustCompile(`Flat factor:\s*(-?[\d.]+)`)
	rePeakCount    = regexp.MustCompile(`Peak count:\s*(-?[\d.]+)`)
	reDCOffset     = regexp.MustCompile(`DC offset:\s*(-?[\d.]+)`)
	reIntegrated   = regexp.MustCompile(`Integrated loudness:\s*(-?[\d.]+) LUFS`)
	reLRA          = regexp.MustCompile(`Loudness range:\s*(-?[\d.]+) LU`)
	rePeak         = regexp.MustCompile(`True peak:\s*(-?[\d.]+) dBTP`)
	reSpecCentroid = regexp.MustCompile(`Spectral centroid:\s*(-?[\d.]+)`)
	reSpecFlatness = regexp.MustCompile(`Spectral flatness:\s*(-?[\d.]+)`)
)

func parseInto(text string, m *models.AnalysisMetrics) {
	if v, ok := matchFloat(reRMSLevel, text); ok {
		m.RMSDb = v
	}
	if v, ok := matchFloat(rePeakLevel, text); ok {
		m.PeakDb = v
	}
	if v, ok := matchFloat(reCrestFactor, text); ok {
		m.CrestFactor = v
	} else {
		m.CrestFactor = m.PeakDb - m.RMSDb
	}
	if v, ok := matchFloat(reFlatFactor, text); ok {
		m.FlatFactor = v
	}
	if v, ok := matchInt(rePeakCount, text); ok {
		m.PeakSamples = v
	}
	if v, ok := matchFloat(reDCOffset, text); ok {
		m.DCOffset = v
	}
	if v, ok := matchFloat(reIntegrated, text); ok {
		m.IntegratedLUFS = v
	} else {
		m.IntegratedLUFS = -23
	}
	if v, ok := matchFloat(reLRA, text); ok {
		m.LoudnessRange = v
	} else {
		m.LoudnessRange = 7
	}
	if v, ok := matchFloat(rePeak, text); ok {
		m.TruePeak = v
	} else {
		m.TruePeak = -6
	}
	if v, ok := matchFloat(reSpecCentroid, text); ok {
		m.SpectralCentroid = v
	} else {
		m.SpectralCentroid = 1800
	}
	if v, ok := matchFloat(reSpecFlatness, text); ok {
		m.SpectralFlatness = v
	} else {
		m.SpectralFlatness = 0.2
	}
}

var reChannelHeader = regexp.MustCompile(`(?m)^\s*\[.*\]\s*Channel:\s*(\d+)\s*$`)
var reOverallHeader = regexp.MustCompile(`(?m)^\s*\[.*\]\s*Overall\s*$`)

// channelBlock returns the slice of text belonging to channel n: from its
// "Channel: n" header to the next "Channel:" or "Overall" header.
func channelBlock(text string, n int) string {
	headers := reChannelHeader.FindAllStringSubmatchIndex(text, -1)
	overall := reOverallHeader.FindStringIndex(text)
	for i, h := range headers {
		if text[h[2]:h[3]] != strconv.Itoa(n) {
			continue
		}
		start := h[1]
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		if overall != nil && overall[0] < end {
			end = overall[0]
		}
		return text[start:end]
	}
	return ""
}

// parseStereoBalance compares channel 1 and channel 2's per-channel RMS
// level, surfaced by astats' measure_perchannel=all output. Falls back to
// 0 (balanced) if the per-channel sections aren't found, a genuine
// regex-miss rather than an assumed-healthy default.
func parseStereoBalance(text string, m *models.AnalysisMetrics) {
	left := channelBlock(text, 1)
	right := channelBlock(text, 2)
	if left == "" || right == "" {
		m.StereoBalance = 0
		return
	}
	lv, lok := matchFloat(reRMSLevel, left)
	rv, rok := matchFloat(reRMSLevel, right)
	if !lok || !rok {
		m.StereoBalance = 0
		return
	}
	m.StereoBalance = rv - lv
}

// parseBandEnergies reads the four bandpass astats instances' RMS level
// (low, mid, high, very-high, in filter-graph declaration order) and
// converts them to normalized linear-energy fractions. Falls back to a
// healthy-recording split only when fewer than four bands parsed.
func parseBandEnergies(text string, m *models.AnalysisMetrics) {
	matches := reRMSLevel.FindAllStringSubmatch(text, -1)
	if len(matches) < 4 {
		m.LowBandEnergy, m.MidBandEnergy, m.HighBandEnergy, m.VeryHighBandEnergy = 0.3, 0.4, 0.2, 0.1
		return
	}
	energies := make([]float64, 4)
	var total float64
	for i := 0; i < 4; i++ {
		db, err := strconv.ParseFloat(matches[i][1], 64)
		if err != nil {
			m.LowBandEnergy, m.MidBandEnergy, m.HighBandEnergy, m.VeryHighBandEnergy = 0.3, 0.4, 0.2, 0.1
			return
		}
		e := dbToLinearEnergy(db)
		energies[i] = e
		total += e
	}
	if total <= 0 {
		m.LowBandEnergy, m.MidBandEnergy, m.HighBandEnergy, m.VeryHighBandEnergy = 0.3, 0.4, 0.2, 0.1
		return
	}
	m.LowBandEnergy = energies[0] / total
	m.MidBandEnergy = energies[1] / total
	m.HighBandEnergy = energies[2] / total
	m.VeryHighBandEnergy = energies[3] / total
}

func dbToLinearEnergy(db float64) float64 {
	const floorDb = -90
	if db < floorDb {
		db = floorDb
	}
	return math.Pow(10, db/10)
}

var (
	reSilenceStart    = regexp.MustCompile(`silence_start:\s*(-?[\d.]+)`)
	reSilenceDuration = regexp.MustCompile(`silence_duration:\s*([\d.]+)`)
)

// parseSilence reads silencedetect's start/duration pairs. A silence
// region with a start but no matching duration ran to end of stream and
// counts as trailing silence instead of a completed interval.
func parseSilence(text string, durationS float64, m *models.AnalysisMetrics) {
	starts := reSilenceStart.FindAllStringSubmatch(text, -1)
	durations := reSilenceDuration.FindAllStringSubmatch(text, -1)
	if len(starts) == 0 {
		m.SilenceRatio, m.LeadingSilence, m.TrailingSilence = 0, 0, 0
		return
	}

	var total float64
	for _, d := range durations {
		if v, err := strconv.ParseFloat(d[1], 64); err == nil {
			total += v
		}
	}
	if durationS > 0 {
		m.SilenceRatio = total / durationS
	}

	if startVal, err := strconv.ParseFloat(starts[0][1], 64); err == nil && startVal < 0.05 && len(durations) > 0 {
		if v, err := strconv.ParseFloat(durations[0][1], 64); err == nil {
			m.LeadingSilence = v
		}
	}

	if len(starts) > len(durations) {
		if startVal, err := strconv.ParseFloat(starts[len(starts)-1][1], 64); err == nil && durationS > 0 {
			m.TrailingSilence = durationS - startVal
		}
	}
}

func matchFloat(re *regexp.Regexp, text string) (float64, bool) {
	match := re.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func matchInt(re *regexp.Regexp, text string) (int, bool) {
	v, ok := matchFloat(re, text)
	if !ok {
		return 0, false
	}
	return int(v), true
}
