/*
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
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// SampleRow is one sample of one signal, in both versions.
type SampleRow struct {
	Signal string  `parquet:"signal"`
	Index  int64   `parquet:"index"`
	Time   float64 `parquet:"time"`
	Clean  float64 `parquet:"clean"`
	Noisy  float64 `parquet:"noisy"`
}

// SpectrumRow is one bin of the spectra of one signal, in both versions.
type SpectrumRow struct {
	Signal    string  `parquet:"signal"`
	Bin       int64   `parquet:"bin"`
	Frequency float64 `parquet:"frequency"`
	Clean     float64 `parquet:"clean"`
	Noisy     float64 `parquet:"noisy"`
}

// SampleRows returns the samples of all signals, one row per sample.
func (r *Report) SampleRows() []SampleRow {
	rows := []SampleRow{}
	for _, res := range r.results {
		for idx := range res.Clean {
			rows = append(rows, SampleRow{
				Signal: res.Spec.Name,
				Index:  int64(idx),
				Time:   float64(idx) / float64(r.Config.SampleRate),
				Clean:  res.Clean[idx],
				Noisy:  res.Noisy[idx],
			})
		}
	}
	return rows
}

// SpectrumRows returns the spectra of all signals, one row per bin.
func (r *Report) SpectrumRows() []SpectrumRow {
	rows := []SpectrumRow{}
	for _, res := range r.results {
		for bin, magnitude := range res.CleanSpectrum.Magnitudes {
			rows = append(rows, SpectrumRow{
				Signal:    res.Spec.Name,
				Bin:       int64(bin),
				Frequency: float64(bin) * float64(res.CleanSpectrum.BinWidth),
				Clean:     magnitude,
				Noisy:     res.NoisySpectrum.Magnitudes[bin],
			})
		}
	}
	return rows
}

func writeParquet[T any](w io.Writer, rows []T) error {
	pw := parquet.NewGenericWriter[T](w, parquet.Compression(&parquet.Snappy))
	if _, err := pw.Write(rows); err != nil {
		pw.Close()
		return errors.Wrap(err, "unable to write parquet rows")
	}
	return errors.Wrap(pw.Close(), "unable to close parquet writer")
}

// WriteSamplesParquet writes SampleRows as a Snappy compressed Parquet file.
func (r *Report) WriteSamplesParquet(w io.Writer) error {
	return writeParquet(w, r.SampleRows())
}

// WriteSpectraParquet writes SpectrumRows as a Snappy compressed Parquet file.
func (r *Report) WriteSpectraParquet(w io.Writer) error {
	return writeParquet(w, r.SpectrumRows())
}
