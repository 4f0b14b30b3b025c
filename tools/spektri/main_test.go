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
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google-research/spektri/tools/report"
	"github.com/google-research/spektri/tools/synthesize/signals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youpy/go-wav"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) Config {
	cfg := NewConfig()
	cfg.Seed = 3
	cfg.Signals.WindowSize = 128
	cfg.Out = t.TempDir()
	return cfg
}

func TestFormatList(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, []string{report.FormatJSON, report.FormatText}, cfg.FormatList())
	cfg.Formats = " parquet,,wav "
	assert.Equal(t, []string{report.FormatParquet, report.FormatWAV}, cfg.FormatList())
}

func TestLoadSpecs(t *testing.T) {
	cfg := NewConfig()
	specs, err := cfg.LoadSpecs()
	require.NoError(t, err)
	assert.Equal(t, signals.DefaultSignalSpecs(), specs)

	cfg.SignalsFile = filepath.Join(t.TempDir(), "signals.json")
	require.NoError(t, os.WriteFile(cfg.SignalsFile, []byte(`[{"Name": "a", "Frequencies": [440], "Amplitudes": [0.5]}]`), 0644))
	specs, err = cfg.LoadSpecs()
	require.NoError(t, err)
	assert.Equal(t, []signals.SignalSpec{{Name: "a", Frequencies: []signals.Hz{440}, Amplitudes: []float64{0.5}}}, specs)

	require.NoError(t, os.WriteFile(cfg.SignalsFile, []byte(`[{"Name": "a", "Frequencies": [440]}]`), 0644))
	_, err = cfg.LoadSpecs()
	assert.ErrorIs(t, err, signals.ErrInvalidConfiguration)

	for _, name := range []string{"../escaped", "a/b", ".."} {
		blob, err := json.Marshal([]signals.SignalSpec{{Name: name, Frequencies: []signals.Hz{440}, Amplitudes: []float64{0.5}}})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(cfg.SignalsFile, blob, 0644))
		_, err = cfg.LoadSpecs()
		assert.ErrorIs(t, err, signals.ErrInvalidConfiguration, name)
	}

	cfg.SignalsFile = filepath.Join(t.TempDir(), "missing.json")
	_, err = cfg.LoadSpecs()
	assert.Error(t, err)
}

func TestRunAnalysis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Progress = false
	cfg.Concurrency = 2
	cfg.Formats = "json,parquet"
	require.NoError(t, runAnalysis(context.Background(), zaptest.NewLogger(t), cfg))
	for _, name := range []string{"report.json", "samples.parquet", "spectra.parquet"} {
		_, err := os.Stat(filepath.Join(cfg.Out, name))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(cfg.Out, "report.txt"))
	assert.True(t, os.IsNotExist(err))

	cfg.Formats = "yaml"
	assert.Error(t, runAnalysis(context.Background(), zaptest.NewLogger(t), cfg))
}

func TestSynthesizeTo(t *testing.T) {
	cfg := testConfig(t)
	cfg.Name = "three_tones"
	for _, noisy := range []bool{false, true} {
		cfg.Noisy = noisy
		buf := &bytes.Buffer{}
		require.NoError(t, synthesizeTo(buf, cfg))
		reader := wav.NewReader(bytes.NewReader(buf.Bytes()))
		samples, err := reader.ReadSamples(uint32(cfg.Signals.WindowSize))
		require.NoError(t, err)
		require.Len(t, samples, cfg.Signals.WindowSize)
		// The three tones all peak at the first sample, which is normalized to full scale.
		assert.InDelta(t, 32767, samples[0].Values[0], 32767*0.2)
	}
	cfg.Name = "missing"
	assert.Error(t, synthesizeTo(&bytes.Buffer{}, cfg))
}

func TestSynthesize(t *testing.T) {
	cfg := testConfig(t)
	cfg.Name = "single_tone"
	cfg.WAVOut = filepath.Join(cfg.Out, "single.wav")
	require.NoError(t, synthesize(zaptest.NewLogger(t), cfg))
	blob, err := os.ReadFile(cfg.WAVOut)
	require.NoError(t, err)
	samples, err := wav.NewReader(bytes.NewReader(blob)).ReadSamples(uint32(cfg.Signals.WindowSize))
	require.NoError(t, err)
	assert.Len(t, samples, cfg.Signals.WindowSize)

	cfg.WAVOut = filepath.Join(cfg.Out, "missing", "single.wav")
	assert.Error(t, synthesize(zaptest.NewLogger(t), cfg))

	cfg.Name = "missing"
	cfg.WAVOut = filepath.Join(cfg.Out, "missing.wav")
	assert.Error(t, synthesize(zaptest.NewLogger(t), cfg))

	cfg.Name = ""
	assert.Error(t, synthesize(zaptest.NewLogger(t), cfg))
}

func TestServer(t *testing.T) {
	cfg := testConfig(t)
	rep, err := analyze(context.Background(), zaptest.NewLogger(t), cfg)
	require.NoError(t, err)
	s := &server{
		report: rep,
		width:  40,
		logger: zaptest.NewLogger(t),
	}
	ts := httptest.NewServer(s.handler())
	defer ts.Close()

	for _, tc := range []struct {
		path              string
		wantedStatus      int
		wantedContentType string
	}{
		{path: "/", wantedStatus: http.StatusOK, wantedContentType: "text/html; charset=utf-8"},
		{path: "/report.json", wantedStatus: http.StatusOK, wantedContentType: "application/json"},
		{path: "/report.txt", wantedStatus: http.StatusOK, wantedContentType: "text/plain; charset=utf-8"},
		{path: "/signal/single_tone/clean.wav", wantedStatus: http.StatusOK, wantedContentType: "audio/wav"},
		{path: "/signal/aliased_tone/noisy.wav", wantedStatus: http.StatusOK, wantedContentType: "audio/wav"},
		{path: "/signal/single_tone/dirty.wav", wantedStatus: http.StatusBadRequest},
		{path: "/signal/missing/clean.wav", wantedStatus: http.StatusNotFound},
		{path: "/elsewhere", wantedStatus: http.StatusNotFound},
	} {
		resp, err := http.Get(ts.URL + tc.path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tc.wantedStatus, resp.StatusCode, tc.path)
		if tc.wantedContentType != "" {
			assert.Equal(t, tc.wantedContentType, resp.Header.Get("Content-Type"), tc.path)
		}
	}

	resp, err := http.Get(ts.URL + "/report.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	decoded := &report.Report{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(decoded))
	assert.Equal(t, rep.Entries, decoded.Entries)
}
