package sound

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind selects one of the keystroke presets.
type Kind string

const (
	KindMechanical Kind = "mechanical"
	KindSoft       Kind = "soft"
	KindClassic    Kind = "classic"
)

// Kinds lists the supported presets.
func Kinds() []Kind {
	return []Kind{KindMechanical, KindSoft, KindClassic}
}

// ParseKind maps a preset name onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMechanical, KindSoft, KindClassic:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sound type %q", s)
	}
}

const (
	// Attenuation scales every cue relative to the configured volume.
	Attenuation = 0.3
	// decayFloor is the gain the envelope reaches at the end of a cue.
	decayFloor = 0.01
)

type preset struct {
	minFreq  float64
	maxFreq  float64
	gain     float64
	duration time.Duration
}

var presets = map[Kind]preset{
	KindMechanical: {minFreq: 150, maxFreq: 200, gain: 1, duration: 50 * time.Millisecond},
	KindSoft:       {minFreq: 300, maxFreq: 400, gain: 0.5, duration: 100 * time.Millisecond},
	KindClassic:    {minFreq: 200, maxFreq: 200, gain: 1, duration: 30 * time.Millisecond},
}

// Duration returns the length of a cue of kind k.
func Duration(k Kind) time.Duration {
	return presets[k].duration
}

// Synthesize renders one cue as 16-bit mono PCM: a sine at the preset
// frequency (jittered within the preset range by jitter in [0,1)) whose gain
// starts at volume*Attenuation*presetGain and decays exponentially to
// decayFloor over the preset duration.
func Synthesize(k Kind, volume float64, sampleRate int, jitter float64) ([]int16, error) {
	p, ok := presets[k]
	if !ok {
		return nil, fmt.Errorf("unknown sound type %q", k)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	volume = math.Max(0, math.Min(1, volume))
	jitter = math.Max(0, math.Min(1, jitter))

	freq := p.minFreq + (p.maxFreq-p.minFreq)*jitter
	start := volume * Attenuation * p.gain
	n := int(float64(sampleRate) * p.duration.Seconds())
	out := make([]int16, n)
	if start <= 0 || n == 0 {
		return out, nil
	}

	ratio := decayFloor / start
	for i := range out {
		t := float64(i) / float64(sampleRate)
		g := start * math.Pow(ratio, t/p.duration.Seconds())
		v := g * math.Sin(2*math.Pi*freq*t)
		out[i] = int16(math.Round(v * math.MaxInt16))
	}
	return out, nil
}
