package sensor

import (
	"math"
	"math/rand"
)

// SimSource generates a synthetic PPG waveform: a DC baseline per LED
// with a periodic perfusion pulse and a little deterministic noise. It
// is always ready, so acquisition is paced by the consumer.
type SimSource struct {
	sampleRate float64
	heartBPM   float64
	phase      float64
	rng        *rand.Rand

	irBase  float64
	redBase float64
	irAmp   float64
	redAmp  float64
	noise   float64
}

// NewSimSource returns a simulated sensor producing a clean pulse at
// heartBPM. Baselines sit well above the finger-detect floor so the
// estimator treats the signal as a real finger.
func NewSimSource(sampleRateHz int, heartBPM float64, seed int64) *SimSource {
	return &SimSource{
		sampleRate: float64(sampleRateHz),
		heartBPM:   heartBPM,
		rng:        rand.New(rand.NewSource(seed)),
		irBase:     110000,
		redBase:    90000,
		irAmp:      2400,
		redAmp:     1200,
		noise:      40,
	}
}

// Ready always reports true: the simulator can produce a sample on
// every poll.
func (s *SimSource) Ready() bool { return true }

// ReadSample advances the waveform by one tick and returns the pair.
func (s *SimSource) ReadSample() (Sample, error) {
	cycleHz := s.heartBPM / 60.0
	s.phase += cycleHz / s.sampleRate
	if s.phase >= 1.0 {
		s.phase -= 1.0
	}

	// Systolic peak with a faint dicrotic shoulder. The shoulder is
	// kept weak and close enough that it never forms its own valley.
	pulse := gauss(s.phase, 0.30, 0.06) + 0.12*gauss(s.phase, 0.45, 0.10)

	n := s.noise * (2*s.rng.Float64() - 1)

	ir := s.irBase - s.irAmp*pulse + n
	red := s.redBase - s.redAmp*pulse + n

	return Sample{Red: uint32(red), IR: uint32(ir)}, nil
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}
