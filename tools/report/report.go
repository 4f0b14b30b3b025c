/* report exports the results of a pipeline run in several formats.
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
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google-research/spektri/tools/pipeline"
	"github.com/google-research/spektri/tools/spectrum"
	"github.com/google-research/spektri/tools/stats"
	"github.com/google-research/spektri/tools/synthesize/signals"
	"github.com/pkg/errors"
)

const (
	// FormatJSON writes report.json.
	FormatJSON = "json"
	// FormatText writes report.txt.
	FormatText = "text"
	// FormatParquet writes samples.parquet and spectra.parquet.
	FormatParquet = "parquet"
	// FormatTFRecord writes report.tfrecord.
	FormatTFRecord = "tfrecord"
	// FormatWAV writes a wav/ directory with the clean and noisy version of each signal.
	FormatWAV = "wav"
)

// Formats lists all formats WriteDir understands.
var Formats = []string{FormatJSON, FormatText, FormatParquet, FormatTFRecord, FormatWAV}

const (
	// Clean selects the synthesized signal.
	Clean = "clean"
	// Noisy selects the signal with noise added.
	Noisy = "noisy"
)

// Analysis describes one version, clean or noisy, of a signal.
type Analysis struct {
	// Summary is the summary of the samples.
	Summary stats.Summary
	// Peaks are the spectrum bins that reached the peak threshold.
	Peaks []spectrum.Peak
	// StrongestFrequency is the frequency of the strongest non-DC bin up to the Nyquist frequency.
	StrongestFrequency signals.Hz
}

// Entry describes the analysis of one signal spec.
type Entry struct {
	// Name is the name of the signal spec.
	Name string
	// Frequencies are the frequencies of the harmonics of the signal.
	Frequencies []signals.Hz
	// Amplitudes are the amplitudes of the harmonics of the signal.
	Amplitudes []float64
	// AliasedFrequencies are the frequencies above the Nyquist frequency.
	AliasedFrequencies []signals.Hz
	// Clean is the analysis of the synthesized signal.
	Clean Analysis
	// Noisy is the analysis of the signal with noise added.
	Noisy Analysis
	// SNR is the signal to noise ratio in dB, missing when no noise was added.
	SNR *float64 `json:",omitempty"`
}

// Report contains the configuration and results of a pipeline run.
type Report struct {
	Config  signals.Config
	Entries []Entry

	results []*pipeline.Result
}

func analysisOf(summary stats.Summary, peaks []spectrum.Peak, s *spectrum.S) Analysis {
	res := Analysis{
		Summary: summary,
		Peaks:   peaks,
	}
	if strongest := s.Strongest(); strongest > 0 {
		res.StrongestFrequency = signals.Hz(strongest) * s.BinWidth
	}
	return res
}

// New returns a report of results, which were computed using conf.
func New(conf signals.Config, results []*pipeline.Result) *Report {
	r := &Report{
		Config:  conf,
		Entries: make([]Entry, len(results)),
		results: results,
	}
	for idx, res := range results {
		entry := Entry{
			Name:               res.Spec.Name,
			Frequencies:        res.Spec.Frequencies,
			Amplitudes:         res.Spec.Amplitudes,
			AliasedFrequencies: res.Spec.Aliased(conf),
			Clean:              analysisOf(res.CleanStats, res.CleanPeaks, res.CleanSpectrum),
			Noisy:              analysisOf(res.NoisyStats, res.NoisyPeaks, res.NoisySpectrum),
		}
		if snr := float64(res.SNR); !math.IsInf(snr, 0) && !math.IsNaN(snr) {
			entry.SNR = &snr
		}
		r.Entries[idx] = entry
	}
	return r
}

// Result returns the pipeline result for the named signal.
func (r *Report) Result(name string) (*pipeline.Result, bool) {
	for _, res := range r.results {
		if res.Spec.Name == name {
			return res, true
		}
	}
	return nil, false
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return errors.Wrap(encoder.Encode(r), "unable to encode report")
}

func printAnalysis(w io.Writer, name string, a Analysis) {
	fmt.Fprintf(w, "  %s: %v, strongest %.2fHz\n", name, a.Summary, a.StrongestFrequency)
	peaks := make([]string, len(a.Peaks))
	for idx, peak := range a.Peaks {
		peaks[idx] = fmt.Sprintf("%.2fHz (%.3f)", peak.Frequency, peak.Magnitude)
	}
	fmt.Fprintf(w, "  %s peaks: %s\n", name, strings.Join(peaks, ", "))
}

// WriteText writes a human readable report.
// If width is positive each signal is followed by bar charts, width characters wide, of its spectra.
func (r *Report) WriteText(w io.Writer, width int) error {
	fmt.Fprintf(w, "sample rate %vHz, window size %v, noise level %v, peak threshold %v\n\n",
		r.Config.SampleRate, r.Config.WindowSize, r.Config.NoiseLevel, r.Config.Threshold)
	for idx, entry := range r.Entries {
		fmt.Fprintf(w, "%s %vHz @ %v\n", entry.Name, entry.Frequencies, entry.Amplitudes)
		if len(entry.AliasedFrequencies) > 0 {
			fmt.Fprintf(w, "  %vHz above Nyquist frequency %vHz\n", entry.AliasedFrequencies, r.Config.Nyquist())
		}
		printAnalysis(w, Clean, entry.Clean)
		printAnalysis(w, Noisy, entry.Noisy)
		if entry.SNR != nil {
			fmt.Fprintf(w, "  SNR: %.2fdB\n", *entry.SNR)
		}
		if width > 0 {
			res := r.results[idx]
			fmt.Fprintf(w, "\n  %s spectrum:\n", Clean)
			res.CleanSpectrum.Print(width, w)
			fmt.Fprintf(w, "\n  %s spectrum:\n", Noisy)
			res.NoisySpectrum.Print(width, w)
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return errors.Wrap(err, "unable to write report")
		}
	}
	return nil
}

// WriteWAV writes one version, Clean or Noisy, of the named signal as a WAV file,
// normalized to full scale.
func (r *Report) WriteWAV(w io.Writer, name, version string) error {
	res, found := r.Result(name)
	if !found {
		return errors.Errorf("no signal named %q", name)
	}
	var signal signals.Float64Slice
	switch version {
	case Clean:
		signal = res.Clean
	case Noisy:
		signal = res.Noisy
	default:
		return errors.Errorf("no version %q of %q, only %q and %q", version, name, Clean, Noisy)
	}
	return errors.Wrapf(signal.Normalized().WriteWAV(w, float64(r.Config.SampleRate)), "unable to write %s %q", version, name)
}

func writeFile(path string, f func(io.Writer) error) error {
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create %q", path)
	}
	if err := f(out); err != nil {
		out.Close()
		return errors.Wrapf(err, "unable to write %q", path)
	}
	return errors.Wrapf(out.Close(), "unable to close %q", path)
}

// WriteWAVs writes the clean and noisy version of every signal to dir as <name>_clean.wav and <name>_noisy.wav.
func (r *Report) WriteWAVs(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "unable to create %q", dir)
	}
	for _, entry := range r.Entries {
		for _, version := range []string{Clean, Noisy} {
			name, version := entry.Name, version
			path := filepath.Join(dir, fmt.Sprintf("%s_%s.wav", name, version))
			if err := writeFile(path, func(w io.Writer) error {
				return r.WriteWAV(w, name, version)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteDir writes the given formats to dir, creating it if necessary.
func (r *Report) WriteDir(dir string, formats []string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "unable to create %q", dir)
	}
	for _, format := range formats {
		var err error
		switch format {
		case FormatJSON:
			err = writeFile(filepath.Join(dir, "report.json"), r.WriteJSON)
		case FormatText:
			err = writeFile(filepath.Join(dir, "report.txt"), func(w io.Writer) error {
				return r.WriteText(w, 80)
			})
		case FormatParquet:
			if err = writeFile(filepath.Join(dir, "samples.parquet"), r.WriteSamplesParquet); err == nil {
				err = writeFile(filepath.Join(dir, "spectra.parquet"), r.WriteSpectraParquet)
			}
		case FormatTFRecord:
			err = writeFile(filepath.Join(dir, "report.tfrecord"), r.WriteTFRecord)
		case FormatWAV:
			err = r.WriteWAVs(filepath.Join(dir, "wav"))
		default:
			err = errors.Errorf("unknown format %q, wanted one of %v", format, Formats)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
