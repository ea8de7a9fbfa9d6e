package stimulus

import (
	"github.com/aukilabs/kenaz/drbg"
)

// ToneConfig describes an audio snippet request. Invalid bounds are
// normalized rather than rejected: count and lower bounds clamp to 1,
// upper bounds clamp to their lower bound.
type ToneConfig struct {
	Duration     int
	SampleRate   int
	Count        int
	MinLength    int
	MaxLength    int
	MinFrequency int
	MaxFrequency int
}

func (c ToneConfig) normalize() ToneConfig {
	if c.Count < 1 {
		c.Count = 1
	}
	if c.MinLength < 1 {
		c.MinLength = 1
	}
	if c.MaxLength < c.MinLength {
		c.MaxLength = c.MinLength
	}
	if c.MinFrequency < 1 {
		c.MinFrequency = 1
	}
	if c.MaxFrequency < c.MinFrequency {
		c.MaxFrequency = c.MinFrequency
	}
	return c
}

// TonePlan is the timing layout of an audio stability run: count tones
// at the given frequencies, separated by the given gaps.
type TonePlan struct {
	Gaps        []int `json:"gaps"`
	Frequencies []int `json:"frequencies"`
	Duration    int   `json:"duration"`
	SampleRate  int   `json:"sample_rate"`
	Count       int   `json:"count"`
}

// ToneLayout generates tone plans from two independent DRBG streams:
// Gap is seeded with the fast nonce, Frequency with the slow one.
type ToneLayout struct {
	Gap       *drbg.Generator
	Frequency *drbg.Generator
}

// Generate returns the deterministic tone plan for the config: count-1
// gaps from the gap stream, then count frequencies from the frequency
// stream, each uniform within its clamped bounds.
func (l *ToneLayout) Generate(cfg ToneConfig) (TonePlan, error) {
	cfg = cfg.normalize()

	gaps := make([]int, 0, cfg.Count-1)
	for i := 0; i < cfg.Count-1; i++ {
		gap, err := l.Gap.RandInt(cfg.MinLength, cfg.MaxLength)
		if err != nil {
			return TonePlan{}, err
		}
		gaps = append(gaps, gap)
	}

	frequencies := make([]int, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		frequency, err := l.Frequency.RandInt(cfg.MinFrequency, cfg.MaxFrequency)
		if err != nil {
			return TonePlan{}, err
		}
		frequencies = append(frequencies, frequency)
	}

	return TonePlan{
		Gaps:        gaps,
		Frequencies: frequencies,
		Duration:    cfg.Duration,
		SampleRate:  cfg.SampleRate,
		Count:       cfg.Count,
	}, nil
}
