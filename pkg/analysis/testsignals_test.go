package analysis

import (
	"math"
	"math/rand"
)

// Synthetic signals used across the package tests.

const testSampleRate = 44100

// testConfig returns the default configuration shrunk for test speed.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FrameSize = 1024
	cfg.HopSize = 256
	cfg.Workers = 2
	return cfg
}

// makeSilence returns seconds of pure silence.
func makeSilence(seconds float64) Signal {
	return Signal{
		Samples:    make([]float64, int(seconds*testSampleRate)),
		SampleRate: testSampleRate,
	}
}

// makeSine returns a constant sine tone.
func makeSine(seconds, freq, amp float64) Signal {
	n := int(seconds * testSampleRate)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
	}
	return Signal{Samples: samples, SampleRate: testSampleRate}
}

// makeClickTrack returns evenly spaced short noise bursts at the given BPM,
// starting at startSec. Deterministic for a given seed.
func makeClickTrack(seconds, bpm, startSec float64) Signal {
	n := int(seconds * testSampleRate)
	samples := make([]float64, n)
	rng := rand.New(rand.NewSource(1))

	period := 60 / bpm
	clickLen := 64
	for t := startSec; t < seconds; t += period {
		start := int(t * testSampleRate)
		for j := range clickLen {
			if start+j >= n {
				break
			}
			samples[start+j] = rng.Float64()*2 - 1
		}
	}
	return Signal{Samples: samples, SampleRate: testSampleRate}
}

// clickCount returns the number of clicks makeClickTrack placed.
func clickCount(seconds, bpm, startSec float64) int {
	count := 0
	for t := startSec; t < seconds; t += 60 / bpm {
		count++
	}
	return count
}

// makeNoise returns uniform noise in [-amp, amp], deterministic per seed.
func makeNoise(seconds, amp float64, seed int64) Signal {
	n := int(seconds * testSampleRate)
	samples := make([]float64, n)
	rng := rand.New(rand.NewSource(seed))
	for i := range samples {
		samples[i] = amp * (rng.Float64()*2 - 1)
	}
	return Signal{Samples: samples, SampleRate: testSampleRate}
}

// makeTwoSection returns quiet low-frequency content followed by loud
// brighter noise, for segmentation tests.
func makeTwoSection(sectionSeconds float64) Signal {
	quiet := makeSine(sectionSeconds, 220, 0.1)
	loud := makeNoise(sectionSeconds, 0.8, 7)
	samples := append(quiet.Samples, loud.Samples...)
	return Signal{Samples: samples, SampleRate: testSampleRate}
}
