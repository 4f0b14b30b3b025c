/* spectrum contains functions analysing spectrum composition of signals.
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
package spectrum

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/cmplx"

	"github.com/google-research/spektri/tools/synthesize/signals"
	"github.com/mjibson/go-dsp/fft"
)

// MaxPeaks is the maximum number of peaks PeakFrequencies returns.
const MaxPeaks = 10

// DFT returns the normalized magnitude spectrum of the signal, computed by
// evaluating every bin of the discrete Fourier transform directly.
// Bin k of the result is |sum(signal[m] * e^(-2πikm/n))| / n.
func DFT(signal signals.Float64Slice) (signals.Float64Slice, error) {
	n := len(signal)
	if n == 0 {
		return nil, fmt.Errorf("unable to transform: %w", signals.ErrEmptySequence)
	}
	invN := 1.0 / float64(n)
	result := make(signals.Float64Slice, n)
	for k := range result {
		re := 0.0
		im := 0.0
		for m, sample := range signal {
			angle := 2 * math.Pi * float64(k) * float64(m) * invN
			re += sample * math.Cos(angle)
			im -= sample * math.Sin(angle)
		}
		result[k] = math.Sqrt(re*re+im*im) * invN
	}
	return result, nil
}

// FFT returns the same magnitudes as DFT using a fast Fourier transform.
// Results differ from DFT by floating point rounding only.
func FFT(signal signals.Float64Slice) (signals.Float64Slice, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("unable to transform: %w", signals.ErrEmptySequence)
	}
	coefficients := fft.FFTReal(signal)
	invN := 1.0 / float64(len(signal))
	result := make(signals.Float64Slice, len(coefficients))
	for bin := range coefficients {
		result[bin] = cmplx.Abs(coefficients[bin]) * invN
	}
	return result, nil
}

// Peak is a spectrum bin that reached the peak threshold.
type Peak struct {
	// Bin is the index of the bin in the spectrum.
	Bin int
	// Frequency is the frequency of the bin.
	Frequency signals.Hz
	// Magnitude is the normalized magnitude of the bin.
	Magnitude float64
}

// PeakFrequencies returns the first MaxPeaks bins, in bin order, whose magnitude is not below threshold.
// Bin 0 (DC) is never included. Bins are converted to frequencies using conf.SampleRate / conf.WindowSize.
//
// The result is truncated in bin order and not sorted by magnitude, so strong bins late in the
// spectrum (such as the mirror images above the Nyquist frequency) are dropped when enough
// earlier bins reach the threshold.
func PeakFrequencies(spectrum signals.Float64Slice, conf signals.Config, threshold float64) []Peak {
	binWidth := conf.BinWidth()
	peaks := []Peak{}
	for bin := 1; bin < len(spectrum) && len(peaks) < MaxPeaks; bin++ {
		if spectrum[bin] < threshold {
			continue
		}
		peaks = append(peaks, Peak{
			Bin:       bin,
			Frequency: signals.Hz(bin) * binWidth,
			Magnitude: spectrum[bin],
		})
	}
	return peaks
}

// S is the magnitude spectrum of a signal along with the rate it was sampled at.
type S struct {
	Magnitudes signals.Float64Slice
	BinWidth   signals.Hz
	Rate       signals.Hz
}

// Compute returns the spectrum of the buffer, sampled according to conf.
// If fast is set the spectrum is computed with FFT instead of DFT.
func Compute(buffer signals.Float64Slice, conf signals.Config, fast bool) (*S, error) {
	transform := DFT
	if fast {
		transform = FFT
	}
	magnitudes, err := transform(buffer)
	if err != nil {
		return nil, err
	}
	return &S{
		Magnitudes: magnitudes,
		BinWidth:   conf.SampleRate / signals.Hz(len(buffer)),
		Rate:       conf.SampleRate,
	}, nil
}

// Half returns the bins up to and including the Nyquist frequency.
func (s *S) Half() signals.Float64Slice {
	return s.Magnitudes[:len(s.Magnitudes)/2+1]
}

// Strongest returns the non-DC bin with the largest magnitude up to the Nyquist frequency,
// or -1 if there is no such bin.
func (s *S) Strongest() int {
	best := -1
	for bin, magnitude := range s.Half() {
		if bin == 0 {
			continue
		}
		if best == -1 || magnitude > s.Magnitudes[best] {
			best = bin
		}
	}
	return best
}

// Print draws the spectrum up to the Nyquist frequency as a horizontal bar chart width characters wide.
func (s *S) Print(width int, w io.Writer) {
	headers := []string{}
	maxHeaderLen := 0
	maxGain := 0.0
	half := s.Half()
	for bin, gain := range half {
		header := fmt.Sprintf("%.2fHz ", signals.Hz(bin)*s.BinWidth)
		if len(header) > maxHeaderLen {
			maxHeaderLen = len(header)
		}
		headers = append(headers, header)
		if gain > maxGain {
			maxGain = gain
		}
	}
	gainLen := width - maxHeaderLen
	widthPerGain := 0.0
	if maxGain > 0 {
		widthPerGain = float64(gainLen) / maxGain
	}
	for bin, gain := range half {
		header := bytes.NewBufferString(headers[bin])
		for header.Len() < maxHeaderLen {
			fmt.Fprint(header, " ")
		}
		gainPart := &bytes.Buffer{}
		for gainPart.Len() < int(gain*widthPerGain) {
			fmt.Fprint(gainPart, "*")
		}
		fmt.Fprintf(w, "%v%v\n", header.String(), gainPart.String())
	}
}
