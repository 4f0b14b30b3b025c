/* Package signals contains logic to express and synthesize test signals. *
 *
 * Copyright 2020 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 *     Unless required by applicable law or agreed to in writing, software
 *     distributed under the License is distributed on an "AS IS" BASIS,
 *     WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *     See the License for the specific language governing permissions and
 *     limitations under the License.
 */
package signals

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"regexp"
	"time"

	"github.com/youpy/go-wav"
)

const (
	// DefaultSampleRate is the sample rate used unless configured otherwise.
	DefaultSampleRate Hz = 10000
	// DefaultWindowSize is the number of samples in each synthesized signal.
	DefaultWindowSize = 1024
	// DefaultNoiseLevel is the default bound of the uniform noise added to signals.
	DefaultNoiseLevel = 0.3
	// DefaultThreshold is the default magnitude a spectrum bin must reach to count as a peak.
	DefaultThreshold = 0.1
)

var (
	// ErrInvalidConfiguration means that a signal or its sampling parameters can't be synthesized.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrEmptySequence means that a computation was asked to run on zero samples.
	ErrEmptySequence = errors.New("empty sequence")
)

// Hz is cycles per second.
type Hz float64

// Power is the signal power, which is equivalent to the variance ( avg(sum(v^2)) - avg(v)^2 ) of a signal.
type Power float64

// DB returns the power converted to Decibel.
func (p Power) DB() DB {
	return DB(10 * math.Log10(float64(p)))
}

// DB is power expressed on a logarithm scale.
type DB float64

// Config holds the sampling parameters shared by every stage of the analysis.
type Config struct {
	// SampleRate is the rate the signals are sampled at.
	SampleRate Hz
	// WindowSize is the number of samples in each signal.
	WindowSize int
	// NoiseLevel is the bound of the uniform noise added to signals, as a fraction of unit amplitude.
	NoiseLevel float64
	// Threshold is the magnitude a spectrum bin must reach to be reported as a peak.
	Threshold float64
}

// DefaultConfig returns the configuration used when nothing else is provided.
func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		WindowSize: DefaultWindowSize,
		NoiseLevel: DefaultNoiseLevel,
		Threshold:  DefaultThreshold,
	}
}

// Validate returns an error wrapping ErrInvalidConfiguration if the config can't be used.
func (c Config) Validate() error {
	if !(c.SampleRate > 0) || math.IsInf(float64(c.SampleRate), 0) {
		return fmt.Errorf("sample rate %v: %w", c.SampleRate, ErrInvalidConfiguration)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("window size %v: %w", c.WindowSize, ErrInvalidConfiguration)
	}
	if c.NoiseLevel < 0 || math.IsNaN(c.NoiseLevel) || math.IsInf(c.NoiseLevel, 0) {
		return fmt.Errorf("noise level %v: %w", c.NoiseLevel, ErrInvalidConfiguration)
	}
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
		return fmt.Errorf("threshold %v: %w", c.Threshold, ErrInvalidConfiguration)
	}
	return nil
}

// BinWidth returns the frequency distance between two spectrum bins.
func (c Config) BinWidth() Hz {
	return c.SampleRate / Hz(c.WindowSize)
}

// Nyquist returns the highest frequency that can be represented without aliasing.
func (c Config) Nyquist() Hz {
	return c.SampleRate / 2
}

// SignalSpec describes a named superposition of cosines.
type SignalSpec struct {
	// Name identifies the signal in reports.
	Name string
	// Frequencies are the frequencies of the harmonics.
	Frequencies []Hz
	// Amplitudes are the amplitudes of the harmonics, one per frequency.
	Amplitudes []float64
}

func (s SignalSpec) String() string {
	return fmt.Sprintf("%s%vHz@%v", s.Name, s.Frequencies, s.Amplitudes)
}

// Validate returns an error wrapping ErrInvalidConfiguration if the spec can't be synthesized.
func (s SignalSpec) Validate() error {
	if len(s.Frequencies) == 0 {
		return fmt.Errorf("%q has no frequencies: %w", s.Name, ErrInvalidConfiguration)
	}
	if len(s.Frequencies) != len(s.Amplitudes) {
		return fmt.Errorf("%q has %v frequencies but %v amplitudes: %w", s.Name, len(s.Frequencies), len(s.Amplitudes), ErrInvalidConfiguration)
	}
	return nil
}

// Aliased returns the frequencies of this spec that are above the Nyquist frequency of conf.
func (s SignalSpec) Aliased(conf Config) []Hz {
	var result []Hz
	for _, f := range s.Frequencies {
		if f > conf.Nyquist() {
			result = append(result, f)
		}
	}
	return result
}

// Sample synthesizes this spec using conf.
func (s SignalSpec) Sample(conf Config) (Float64Slice, error) {
	result, err := GenerateSignal(conf, s.Frequencies, s.Amplitudes)
	if err != nil {
		return nil, fmt.Errorf("unable to synthesize %q: %w", s.Name, err)
	}
	return result, nil
}

// DefaultSignalSpecs returns the signals analyzed unless others are provided.
func DefaultSignalSpecs() []SignalSpec {
	return []SignalSpec{
		{
			Name:        "single_tone",
			Frequencies: []Hz{100},
			Amplitudes:  []float64{1.0},
		},
		{
			Name:        "three_tones",
			Frequencies: []Hz{100, 300, 700},
			Amplitudes:  []float64{3.0, 2.0, 1.0},
		},
		{
			Name:        "close_tones",
			Frequencies: []Hz{1000, 1100},
			Amplitudes:  []float64{1.0, 0.5},
		},
		{
			Name:        "aliased_tone",
			Frequencies: []Hz{6000},
			Amplitudes:  []float64{1.0},
		},
	}
}

// signalNameReg matches names usable as file names and URL path segments.
var signalNameReg = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ParseSignalSpecs parses a JSON list of signal specs and validates each of them.
func ParseSignalSpecs(blob []byte) ([]SignalSpec, error) {
	specs := []SignalSpec{}
	if err := json.Unmarshal(blob, &specs); err != nil {
		return nil, fmt.Errorf("unable to decode %q as []SignalSpec: %v: %w", blob, err, ErrInvalidConfiguration)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no signal specs in %q: %w", blob, ErrInvalidConfiguration)
	}
	seen := map[string]bool{}
	for idx, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("signal spec %v has no name: %w", idx, ErrInvalidConfiguration)
		}
		if !signalNameReg.MatchString(spec.Name) || spec.Name == "." || spec.Name == ".." {
			return nil, fmt.Errorf("signal spec name %q isn't made of letters, digits, '_', '-' and '.': %w", spec.Name, ErrInvalidConfiguration)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("signal spec %q defined twice: %w", spec.Name, ErrInvalidConfiguration)
		}
		seen[spec.Name] = true
		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}
	return specs, nil
}

// GenerateSignal returns conf.WindowSize samples of the sum of amplitudes[j] * cos(2π * frequencies[j] * t),
// where t = i / conf.SampleRate.
// Frequencies above the Nyquist frequency are synthesized as given, and will alias.
func GenerateSignal(conf Config, frequencies []Hz, amplitudes []float64) (Float64Slice, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := (SignalSpec{Frequencies: frequencies, Amplitudes: amplitudes}).Validate(); err != nil {
		return nil, err
	}
	result := make(Float64Slice, conf.WindowSize)
	for idx := range result {
		t := float64(idx) / float64(conf.SampleRate)
		sum := 0.0
		for j, f := range frequencies {
			sum += amplitudes[j] * math.Cos(2*math.Pi*float64(f)*t)
		}
		result[idx] = sum
	}
	return result, nil
}

// NewRand returns a random generator seeded with seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// AddWhiteNoise returns a copy of signal where each sample has been offset by a
// uniformly distributed value in [-level, level].
// A nil r uses a generator seeded with the current time.
func AddWhiteNoise(signal Float64Slice, level float64, r *rand.Rand) Float64Slice {
	if r == nil {
		r = NewRand(time.Now().UnixNano())
	}
	result := make(Float64Slice, len(signal))
	for idx, sample := range signal {
		result[idx] = sample + (2*r.Float64()-1)*level
	}
	return result
}

// Float64Slice represents a sequence of samples.
type Float64Slice []float64

// EqTol returns whether the other float slice is equal to this one,
// within the given tolerance.
func (f Float64Slice) EqTol(o Float64Slice, tol float64) bool {
	if len(f) != len(o) {
		return false
	}
	for idx := range f {
		if math.Abs(f[idx]-o[idx]) > tol {
			return false
		}
	}
	return true
}

// Sub returns f - o, sample by sample.
func (f Float64Slice) Sub(o Float64Slice) (Float64Slice, error) {
	if len(f) != len(o) {
		return nil, fmt.Errorf("can't subtract %v samples from %v samples", len(o), len(f))
	}
	result := make(Float64Slice, len(f))
	for idx := range f {
		result[idx] = f[idx] - o[idx]
	}
	return result, nil
}

// PeakAbs returns the largest absolute value in the slice.
func (f Float64Slice) PeakAbs() float64 {
	peak := 0.0
	for _, v := range f {
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
	}
	return peak
}

// Normalized returns a copy of the slice scaled so that its peak absolute value is 1.
// A silent slice is returned as a silent copy.
func (f Float64Slice) Normalized() Float64Slice {
	result := make(Float64Slice, len(f))
	peak := f.PeakAbs()
	if peak == 0 {
		return result
	}
	for idx := range f {
		result[idx] = f[idx] / peak
	}
	return result
}

// WriteWAV writes the samples as a WAV file to a writer, declaring a given
// sample rate rounded to the nearest integer, since WAV headers only hold whole rates.
// Assumes the slice contains only values between -1.0 and 1.0.
func (f Float64Slice) WriteWAV(w io.Writer, rate float64) error {
	wavSamples := make([]wav.Sample, len(f))
	for idx := range f {
		val := int(f[idx] * float64(math.MaxInt16))
		wavSamples[idx] = wav.Sample{
			Values: [2]int{val, val},
		}
	}
	buf := &bytes.Buffer{}
	wavWriter := wav.NewWriter(buf, uint32(len(f)), 2, uint32(math.Round(rate)), 16)
	if err := wavWriter.WriteSamples(wavSamples); err != nil {
		return err
	}
	_, err := io.Copy(w, buf)
	return err
}

// PowerCalculator calculates power of signals.
type PowerCalculator struct {
	sum          float64
	sumOfSquares float64
	len          float64
}

// Feed feeds the calculator the next sample.
func (p *PowerCalculator) Feed(f float64) {
	p.sum += f
	p.sumOfSquares += f * f
	p.len++
}

// Power returns the power of the signal so far.
func (p *PowerCalculator) Power() Power {
	mean := p.sum / p.len
	return Power(p.sumOfSquares/p.len - mean*mean)
}

// Power returns the signal power of the slice.
func (f Float64Slice) Power() Power {
	pc := &PowerCalculator{}
	for _, val := range f {
		pc.Feed(val)
	}
	return pc.Power()
}

// SNR returns the ratio between the power of clean and the power of what noisy adds to it.
func SNR(clean, noisy Float64Slice) (DB, error) {
	if len(clean) == 0 {
		return 0, ErrEmptySequence
	}
	noise, err := noisy.Sub(clean)
	if err != nil {
		return 0, err
	}
	return clean.Power().DB() - noise.Power().DB(), nil
}
