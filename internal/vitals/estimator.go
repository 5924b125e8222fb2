// Package vitals derives heart rate and blood-oxygen saturation from a
// window of paired PPG samples and classifies the result.
package vitals

import (
	"math"
	"sort"
)

// Estimate is one windowed reading. Values are zero when the matching
// validity flag is false; an invalid reading is a normal, displayable
// outcome, not an error.
type Estimate struct {
	HeartRate      int  `json:"heart_rate"`
	HeartRateValid bool `json:"heart_rate_valid"`
	SpO2           int  `json:"spo2"`
	SpO2Valid      bool `json:"spo2_valid"`
}

const (
	maWidth         = 4
	minValleyHeight = 30
	maxValleyHeight = 60
	minPeakDistance = 4
	maxValleys      = 15
	maxRatios       = 5

	minHeartRate = 20
	maxHeartRate = 250
)

// Estimator computes estimates from raw ADC counts. It is a pure
// function of the window contents: identical windows yield identical
// estimates.
type Estimator struct {
	sampleRate int
	irFloor    uint32
}

// NewEstimator returns an estimator calibrated for the given sample
// rate. irFloor is the minimum IR DC level for a finger to count as
// present; below it both metrics are reported invalid.
func NewEstimator(sampleRateHz int, irFloor uint32) *Estimator {
	return &Estimator{sampleRate: sampleRateHz, irFloor: irFloor}
}

// Estimate computes heart rate from valley spacing on the IR channel
// and SpO2 from the red/IR AC-DC ratio between valleys.
func (e *Estimator) Estimate(red, ir []uint32) Estimate {
	n := len(ir)
	if n == 0 || len(red) != n {
		return Estimate{}
	}

	var sum uint64
	for _, v := range ir {
		sum += uint64(v)
	}
	irMean := int(sum / uint64(n))

	// No finger on the sensor: the IR DC level collapses.
	if irMean < int(e.irFloor) {
		return Estimate{}
	}

	// Remove DC and invert so the valley detector can run as a peak
	// detector, then smooth with a 4-point moving average.
	x := make([]int, n)
	for i, v := range ir {
		x[i] = -(int(v) - irMean)
	}
	for i := 0; i < n-maWidth; i++ {
		x[i] = (x[i] + x[i+1] + x[i+2] + x[i+3]) / 4
	}

	th := 0
	for _, v := range x {
		th += v
	}
	th /= n
	if th < minValleyHeight {
		th = minValleyHeight
	} else if th > maxValleyHeight {
		th = maxValleyHeight
	}

	valleys := findPeaks(x, th, minPeakDistance, maxValleys)

	var est Estimate

	if len(valleys) >= 2 {
		intervalSum := 0
		for k := 1; k < len(valleys); k++ {
			intervalSum += valleys[k] - valleys[k-1]
		}
		interval := intervalSum / (len(valleys) - 1)
		if interval > 0 {
			hr := e.sampleRate * 60 / interval
			if hr >= minHeartRate && hr <= maxHeartRate {
				est.HeartRate = hr
				est.HeartRateValid = true
			}
		}
	}

	if ratio := ratioAverage(red, ir, valleys); ratio > 2 && ratio < len(spo2Table) {
		est.SpO2 = spo2Table[ratio]
		est.SpO2Valid = true
	}

	return est
}

// findPeaks returns up to maxCount local maxima above minHeight, at
// least minDistance apart, in ascending index order. When two peaks
// crowd each other the taller one wins.
func findPeaks(x []int, minHeight, minDistance, maxCount int) []int {
	var locs []int

	i := 1
	for i < len(x)-1 {
		if x[i] > minHeight && x[i] > x[i-1] {
			// Flat tops register at their left edge.
			width := 1
			for i+width < len(x) && x[i] == x[i+width] {
				width++
			}
			if i+width < len(x) && x[i] > x[i+width] {
				locs = append(locs, i)
				i += width + 1
			} else {
				i += width
			}
		} else {
			i++
		}
	}

	sort.Slice(locs, func(a, b int) bool { return x[locs[a]] > x[locs[b]] })

	var kept []int
	for _, loc := range locs {
		if len(kept) == maxCount {
			break
		}
		if loc < minDistance {
			continue
		}
		tooClose := false
		for _, k := range kept {
			d := loc - k
			if d > -minDistance && d < minDistance {
				tooClose = true
				break
			}
		}
		if !tooClose {
			kept = append(kept, loc)
		}
	}

	sort.Ints(kept)
	return kept
}

// ratioAverage computes the median-averaged (AC_red/DC_red) /
// (AC_ir/DC_ir) ratio, scaled by 100, between consecutive valleys. The
// AC component is the raw maximum minus a linear baseline interpolated
// between the two bounding valleys.
func ratioAverage(red, ir []uint32, valleys []int) int {
	var ratios []int

	for k := 0; k+1 < len(valleys) && len(ratios) < maxRatios; k++ {
		v0, v1 := valleys[k], valleys[k+1]
		if v1-v0 <= 3 {
			continue
		}

		redDCMax, irDCMax := math.MinInt, math.MinInt
		redIdx, irIdx := v0, v0
		for i := v0; i < v1; i++ {
			if int(red[i]) > redDCMax {
				redDCMax = int(red[i])
				redIdx = i
			}
			if int(ir[i]) > irDCMax {
				irDCMax = int(ir[i])
				irIdx = i
			}
		}

		redAC := (int(red[v1]) - int(red[v0])) * (redIdx - v0)
		redAC = int(red[v0]) + redAC/(v1-v0)
		redAC = int(red[redIdx]) - redAC

		irAC := (int(ir[v1]) - int(ir[v0])) * (irIdx - v0)
		irAC = int(ir[v0]) + irAC/(v1-v0)
		irAC = int(ir[irIdx]) - irAC

		nume := (redAC * irDCMax) >> 7
		denom := (irAC * redDCMax) >> 7
		if denom > 0 && nume != 0 {
			ratios = append(ratios, nume*100/denom)
		}
	}

	if len(ratios) == 0 {
		return 0
	}

	sort.Ints(ratios)
	mid := len(ratios) / 2
	if mid > 1 {
		return (ratios[mid-1] + ratios[mid]) / 2
	}
	return ratios[mid]
}
