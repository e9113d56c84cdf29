// Package emotion estimates the speaker's emotional tone from acoustic
// features sampled during a recording. The classifier is a cheap heuristic
// over three features (dominant-bin pitch, RMS loudness, spectral variance)
// aggregated across a rolling window; it is not a learned model.
package emotion

import (
	"fmt"
	"math"
)

const (
	// windowCap bounds the rolling sample window; oldest frames evict first.
	windowCap = 100
	// minSamples gates classification until the window is representative.
	minSamples = 10
)

// Calibration constants tuned for normalized [-1,1] time-domain input and
// byte-scale (0-255) frequency-bin magnitudes. Changing any of them shifts
// the decision thresholds, which were tuned against these exact values.
const (
	pitchFloorHz  = 150.0
	pitchRangeHz  = 200.0
	loudnessScale = 0.15
	varianceScale = 800.0
)

// Label is the classified emotional tone. LabelUnset means the window has
// not yet produced a classification.
type Label int

const (
	LabelUnset Label = iota
	LabelNeutral
	LabelHappy
	LabelSad
)

func (l Label) String() string {
	switch l {
	case LabelNeutral:
		return "neutral"
	case LabelHappy:
		return "happy"
	case LabelSad:
		return "sad"
	default:
		return "unset"
	}
}

// MarshalText serializes the label as its lowercase name.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses a label name produced by MarshalText.
func (l *Label) UnmarshalText(data []byte) error {
	parsed, err := ParseLabel(string(data))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLabel maps a label name onto its enum value.
func ParseLabel(s string) (Label, error) {
	switch s {
	case "neutral":
		return LabelNeutral, nil
	case "happy":
		return LabelHappy, nil
	case "sad":
		return LabelSad, nil
	case "unset", "":
		return LabelUnset, nil
	default:
		return LabelUnset, fmt.Errorf("unknown emotion label %q", s)
	}
}

// AnalysisFrame is one discrete measurement derived from a short audio
// frame. Immutable once created.
type AnalysisFrame struct {
	PitchHz          float64
	Loudness         float64
	SpectralVariance float64
}

// Classifier turns a stream of raw audio analysis data into a continuously
// updated emotion estimate. It expects serialized calls from a single
// sampling loop; there is no internal locking.
type Classifier struct {
	window []AnalysisFrame
	label  Label
}

// NewClassifier builds an empty classifier ready for a recording session.
func NewClassifier() *Classifier {
	return &Classifier{
		window: make([]AnalysisFrame, 0, windowCap),
		label:  LabelUnset,
	}
}

// IngestFrame extracts pitch, loudness and spectral variance from one
// analysis tick and appends the result to the rolling window.
//
// spectrum holds one non-negative energy magnitude per frequency bin (half
// the transform size); timeDomain holds the same number of samples in
// [-1,1]. Degenerate all-zero input yields zero features and never fails.
func (c *Classifier) IngestFrame(spectrum, timeDomain []float64, sampleRate float64) AnalysisFrame {
	frame := AnalysisFrame{
		PitchHz:          dominantPitch(spectrum, sampleRate),
		Loudness:         rms(timeDomain),
		SpectralVariance: populationVariance(spectrum),
	}

	c.window = append(c.window, frame)
	if excess := len(c.window) - windowCap; excess > 0 {
		c.window = append(c.window[:0], c.window[excess:]...)
	}
	return frame
}

// CurrentLabel recomputes the emotion estimate from the window. Below the
// minimum sample count it returns the previously held label, or LabelUnset
// if none has been computed yet.
func (c *Classifier) CurrentLabel() Label {
	if len(c.window) < minSamples {
		return c.label
	}

	var sumPitch, sumLoudness, sumVariance float64
	for _, f := range c.window {
		sumPitch += f.PitchHz
		sumLoudness += f.Loudness
		sumVariance += f.SpectralVariance
	}
	n := float64(len(c.window))
	avgPitch := sumPitch / n
	avgLoudness := sumLoudness / n
	avgVariance := sumVariance / n

	pitchScore := clamp((avgPitch-pitchFloorHz)/pitchRangeHz, 0, 1)
	loudnessScore := clamp(avgLoudness/loudnessScale, 0, 1)
	varianceScore := clamp(avgVariance/varianceScale, 0, 1)

	// Piecewise knee boosts saturate quickly past the knee so confidently
	// high or low features count more than proportionally. Boosted terms
	// are intentionally left unclamped; the decision thresholds below were
	// tuned against the unclamped sums.
	happyScore := 0.35*kneeHigh(pitchScore, 0.5, 2) +
		0.35*kneeHigh(loudnessScore, 0.6, 1) +
		0.30*kneeHigh(varianceScore, 0.4, 1.5)

	sadScore := 0.35*kneeLow(pitchScore, 0.4, 1.5) +
		0.40*kneeLow(loudnessScore, 0.5, 1.2) +
		0.25*kneeLow(varianceScore, 0.35, 1.3)

	switch {
	case happyScore > 0.45 && happyScore > sadScore+0.1:
		c.label = LabelHappy
	case sadScore > 0.45 && sadScore > happyScore+0.1:
		c.label = LabelSad
	case math.Abs(happyScore-sadScore) < 0.1 && (happyScore > 0.3 || sadScore > 0.3):
		if happyScore > sadScore {
			c.label = LabelHappy
		} else {
			c.label = LabelSad
		}
	default:
		c.label = LabelNeutral
	}
	return c.label
}

// Reset clears the window and the current label for a new session.
func (c *Classifier) Reset() {
	c.window = c.window[:0]
	c.label = LabelUnset
}

// WindowLen reports how many frames the rolling window currently holds.
func (c *Classifier) WindowLen() int {
	return len(c.window)
}

// Window returns a copy of the current sample window, oldest first.
func (c *Classifier) Window() []AnalysisFrame {
	out := make([]AnalysisFrame, len(c.window))
	copy(out, c.window)
	return out
}

// dominantPitch estimates the dominant frequency from the strongest
// spectrum bin: index * sampleRate / (bins * 2). Ties go to the lowest
// index. This is deliberately cheap; it is not a fundamental-frequency
// detector.
func dominantPitch(spectrum []float64, sampleRate float64) float64 {
	if len(spectrum) == 0 {
		return 0
	}
	maxIdx := 0
	maxVal := spectrum[0]
	for i, v := range spectrum[1:] {
		if v > maxVal {
			maxVal = v
			maxIdx = i + 1
		}
	}
	return float64(maxIdx) * sampleRate / (float64(len(spectrum)) * 2)
}

// rms computes the root-mean-square amplitude of the time-domain signal.
func rms(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}
	var sum float64
	for _, v := range signal {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(signal)))
}

// populationVariance computes the dispersion of bin energies around their
// arithmetic mean.
func populationVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	return sqDiff / float64(len(values))
}

// kneeHigh returns 1 once score passes the knee, otherwise the boosted
// sub-knee value.
func kneeHigh(score, knee, boost float64) float64 {
	if score > knee {
		return 1
	}
	return score * boost
}

// kneeLow returns 1 while score stays below the knee, otherwise the boosted
// complement.
func kneeLow(score, knee, boost float64) float64 {
	if score < knee {
		return 1
	}
	return (1 - score) * boost
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
