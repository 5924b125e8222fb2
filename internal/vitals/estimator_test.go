package vitals

import (
	"math"
	"testing"

	"github.com/oxitrack/pulse-monitor/internal/sensor"
)

// sine builds a synthetic PPG pair: a clean sinusoidal perfusion wave
// of the given sample period riding on a DC baseline.
func sine(n int, period float64, irBase, irAmp, redBase, redAmp float64) (red, ir []uint32) {
	red = make([]uint32, n)
	ir = make([]uint32, n)
	for i := 0; i < n; i++ {
		w := math.Sin(2 * math.Pi * float64(i) / period)
		red[i] = uint32(redBase + redAmp*w)
		ir[i] = uint32(irBase + irAmp*w)
	}
	return red, ir
}

func TestEstimateSyntheticPulse(t *testing.T) {
	e := NewEstimator(25, 50000)

	// Period of 20 samples at 25 Hz is exactly 75 BPM.
	red, ir := sine(100, 20, 100000, 2000, 80000, 1000)

	est := e.Estimate(red, ir)

	if !est.HeartRateValid {
		t.Fatal("Expected valid heart rate for a clean pulse")
	}
	if est.HeartRate < 70 || est.HeartRate > 80 {
		t.Errorf("Expected heart rate near 75 BPM, got %d", est.HeartRate)
	}

	if !est.SpO2Valid {
		t.Fatal("Expected valid SpO2 for a clean pulse")
	}
	if est.SpO2 < 90 || est.SpO2 > 100 {
		t.Errorf("Expected SpO2 in the healthy band, got %d", est.SpO2)
	}
}

func TestEstimateIsDeterministic(t *testing.T) {
	e := NewEstimator(25, 50000)
	red, ir := sine(100, 20, 100000, 2000, 80000, 1000)

	first := e.Estimate(red, ir)
	second := e.Estimate(red, ir)

	if first != second {
		t.Errorf("Identical windows produced different estimates: %+v vs %+v", first, second)
	}
}

func TestEstimateNoFinger(t *testing.T) {
	e := NewEstimator(25, 50000)

	// IR DC collapses when nothing covers the sensor.
	red, ir := sine(100, 20, 900, 200, 700, 100)

	est := e.Estimate(red, ir)

	if est.HeartRateValid {
		t.Error("Expected invalid heart rate with no finger present")
	}
	if est.SpO2Valid {
		t.Error("Expected invalid SpO2 with no finger present")
	}
	if est.HeartRate != 0 || est.SpO2 != 0 {
		t.Errorf("Expected zero values on an invalid estimate, got %+v", est)
	}
}

func TestEstimateFlatSignal(t *testing.T) {
	e := NewEstimator(25, 50000)

	red := make([]uint32, 100)
	ir := make([]uint32, 100)
	for i := range ir {
		red[i] = 80000
		ir[i] = 100000
	}

	est := e.Estimate(red, ir)

	if est.HeartRateValid {
		t.Error("Expected invalid heart rate for a pulseless signal")
	}
	if est.SpO2Valid {
		t.Error("Expected invalid SpO2 for a pulseless signal")
	}
}

func TestEstimateEmptyAndMismatchedWindows(t *testing.T) {
	e := NewEstimator(25, 50000)

	if est := e.Estimate(nil, nil); est.HeartRateValid || est.SpO2Valid {
		t.Error("Expected invalid estimate for an empty window")
	}

	red, ir := sine(100, 20, 100000, 2000, 80000, 1000)
	if est := e.Estimate(red[:50], ir); est.HeartRateValid || est.SpO2Valid {
		t.Error("Expected invalid estimate for mismatched channel lengths")
	}
}

func TestEstimateSimulatedSource(t *testing.T) {
	src := sensor.NewSimSource(25, 72, 1)
	e := NewEstimator(25, 50000)

	red := make([]uint32, 100)
	ir := make([]uint32, 100)
	for i := range ir {
		s, err := src.ReadSample()
		if err != nil {
			t.Fatalf("ReadSample failed: %v", err)
		}
		red[i] = s.Red
		ir[i] = s.IR
	}

	est := e.Estimate(red, ir)

	if !est.HeartRateValid {
		t.Fatal("Expected valid heart rate from the simulated source")
	}
	if est.HeartRate < 65 || est.HeartRate > 85 {
		t.Errorf("Expected heart rate near 72 BPM, got %d", est.HeartRate)
	}
	if !est.SpO2Valid {
		t.Error("Expected valid SpO2 from the simulated source")
	}
}
