// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package audio

import (
	"math"
	"testing"
)

func sineWave(freq, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return out
}

func TestAnalyzeSilenceProducesLowEnergy(t *testing.T) {
	a := New()
	samples := make([]float64, FFTSize)
	f := a.Analyze(samples, 44100)
	if f.Energy >= SilenceThreshold {
		t.Errorf("expected energy below silence threshold, got %v", f.Energy)
	}
	if f.Bass != 0 || f.Mid != 0 || f.High != 0 {
		t.Errorf("expected zero bands for silence, got bass=%v mid=%v high=%v", f.Bass, f.Mid, f.High)
	}
}

func TestAnalyzeBassToneRaisesBassBand(t *testing.T) {
	a := New()
	samples := sineWave(100, 44100, FFTSize)
	f := a.Analyze(samples, 44100)
	if f.Bass <= f.High {
		t.Errorf("expected a 100Hz tone to register mostly in bass, got bass=%v high=%v", f.Bass, f.High)
	}
}

func TestAnalyzeHighToneRaisesHighBand(t *testing.T) {
	a := New()
	samples := sineWave(8000, 44100, FFTSize)
	f := a.Analyze(samples, 44100)
	if f.High <= f.Bass {
		t.Errorf("expected an 8kHz tone to register mostly in high, got high=%v bass=%v", f.High, f.Bass)
	}
}

func TestAnalyzeTransientReactsToEnergyJump(t *testing.T) {
	a := New()
	silence := make([]float64, FFTSize)
	a.Analyze(silence, 44100)

	loud := sineWave(1000, 44100, FFTSize)
	f := a.Analyze(loud, 44100)
	if f.Transient <= 0 {
		t.Errorf("expected positive transient after an energy jump, got %v", f.Transient)
	}
}

func TestAnalyzePeakIsMaxOfBands(t *testing.T) {
	a := New()
	samples := sineWave(1000, 44100, FFTSize)
	f := a.Analyze(samples, 44100)
	want := math.Max(f.Bass, math.Max(f.Mid, f.High))
	if f.Peak != want {
		t.Errorf("expected peak %v to equal max(bass,mid,high), got %v", want, f.Peak)
	}
}

func TestAnalyzeRhythmStaysInUnitRangeOverManyFrames(t *testing.T) {
	a := New()
	for i := 0; i < 80; i++ {
		samples := sineWave(440, 44100, FFTSize)
		f := a.Analyze(samples, 44100)
		if f.Rhythm < 0 || f.Rhythm > 1 {
			t.Fatalf("rhythm out of [0,1] at frame %d: %v", i, f.Rhythm)
		}
	}
}

func TestAnalyzeSmoothTracksEnergyGradually(t *testing.T) {
	a := New()
	silence := make([]float64, FFTSize)
	first := a.Analyze(silence, 44100)

	loud := sineWave(1000, 44100, FFTSize)
	second := a.Analyze(loud, 44100)
	if second.Smooth <= first.Smooth {
		t.Errorf("expected smooth to rise toward the louder frame's energy, got %v then %v", first.Smooth, second.Smooth)
	}
	if second.Smooth >= second.Energy {
		t.Errorf("expected smooth to lag behind the instantaneous energy, got smooth=%v energy=%v", second.Smooth, second.Energy)
	}
}
