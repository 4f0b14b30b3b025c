/* spektri synthesizes test signals, adds noise to them and analyzes their spectra.
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
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google-research/spektri/tools/logging"
	"github.com/google-research/spektri/tools/pipeline"
	"github.com/google-research/spektri/tools/report"
	"github.com/google-research/spektri/tools/synthesize/signals"
	"github.com/integrii/flaggy"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AppName is the app name.
const AppName = "spektri"

// AppDesc is the app description.
const AppDesc = "Synthesizes noisy test signals and finds their spectral peaks"

var version = "unknown"

// Config holds everything the subcommands can be configured with.
type Config struct {
	Signals signals.Config

	SignalsFile string
	Seed        int64
	LogLevel    string
	JSONLogs    bool

	// run
	Out         string
	Formats     string
	Concurrency int
	Fast        bool
	Width       int
	Progress    bool

	// synthesize
	Name   string
	WAVOut string
	Noisy  bool

	// serve
	Listen string
}

// NewConfig returns the configuration used when no flags are given.
func NewConfig() Config {
	return Config{
		Signals:     signals.DefaultConfig(),
		Seed:        -1,
		LogLevel:    "info",
		Out:         "spektri-out",
		Formats:     strings.Join([]string{report.FormatJSON, report.FormatText}, ","),
		Concurrency: 1,
		Width:       80,
		Progress:    true,
		Listen:      ":12000",
	}
}

// FormatList returns the comma separated formats as a list.
func (c Config) FormatList() []string {
	result := []string{}
	for _, format := range strings.Split(c.Formats, ",") {
		if format = strings.TrimSpace(format); format != "" {
			result = append(result, format)
		}
	}
	return result
}

// LoadSpecs returns the signal specs in SignalsFile, or the default specs if it's empty.
func (c Config) LoadSpecs() ([]signals.SignalSpec, error) {
	if c.SignalsFile == "" {
		return signals.DefaultSignalSpecs(), nil
	}
	blob, err := os.ReadFile(c.SignalsFile)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %q", c.SignalsFile)
	}
	specs, err := signals.ParseSignalSpecs(blob)
	return specs, errors.Wrapf(err, "unable to parse %q", c.SignalsFile)
}

// PipelineOptions returns the pipeline options matching the configuration.
func (c Config) PipelineOptions(logger *zap.Logger) []pipeline.Option {
	seed := c.Seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	logger.Debug("seeding noise", zap.Int64("seed", seed))
	return []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithSeed(seed),
		pipeline.WithConcurrency(c.Concurrency),
		pipeline.WithFFT(c.Fast),
	}
}

func main() {
	cfg := NewConfig()

	parser := flaggy.NewParser(AppName)
	parser.Description = AppDesc
	parser.Version = version

	rate := float64(cfg.Signals.SampleRate)
	parser.Float64(&rate, "r", "rate", "sample rate in Hz")
	parser.Int(&cfg.Signals.WindowSize, "n", "window", "number of samples per signal")
	parser.Float64(&cfg.Signals.NoiseLevel, "l", "noise", "bound of the uniform noise added to the signals")
	parser.Float64(&cfg.Signals.Threshold, "t", "threshold", "magnitude a spectrum bin needs to count as a peak")
	parser.String(&cfg.SignalsFile, "s", "signals", "JSON file with a list of signal specs, defaults to the built in signals")
	parser.Int64(&cfg.Seed, "", "seed", "noise seed, negative for a time based seed")
	parser.String(&cfg.LogLevel, "", "log-level", "debug, info, warn or error")
	parser.Bool(&cfg.JSONLogs, "", "json-logs", "log JSON entries")

	runCmd := flaggy.NewSubcommand("run")
	runCmd.Description = "analyze the signals and write the report"
	runCmd.String(&cfg.Out, "o", "out", "directory to write the report to")
	runCmd.String(&cfg.Formats, "f", "formats", fmt.Sprintf("comma separated formats to write, out of %v", report.Formats))
	runCmd.Int(&cfg.Concurrency, "c", "concurrency", "number of signals to analyze at the same time, 0 for unlimited")
	runCmd.Bool(&cfg.Fast, "", "fast", "use FFT instead of DFT")
	runCmd.Int(&cfg.Width, "w", "width", "width of the spectrum charts in the text report, 0 to skip them")
	runCmd.Bool(&cfg.Progress, "p", "progress", "show a progress bar")
	parser.AttachSubcommand(runCmd, 1)

	synthesizeCmd := flaggy.NewSubcommand("synthesize")
	synthesizeCmd.ShortName = "syn"
	synthesizeCmd.Description = "write one signal as a WAV file"
	synthesizeCmd.String(&cfg.Name, "", "name", "name of the signal to synthesize")
	synthesizeCmd.String(&cfg.WAVOut, "o", "out", "WAV file to write, defaults to <name>.wav")
	synthesizeCmd.Bool(&cfg.Noisy, "", "noisy", "add noise to the signal")
	parser.AttachSubcommand(synthesizeCmd, 1)

	serveCmd := flaggy.NewSubcommand("serve")
	serveCmd.Description = "serve the report and the signals over HTTP"
	serveCmd.String(&cfg.Listen, "", "listen", "address to listen to")
	parser.AttachSubcommand(serveCmd, 1)

	chk(parser.Parse(), "unable to parse flags")
	cfg.Signals.SampleRate = signals.Hz(rate)

	logger, err := logging.New(cfg.LogLevel, cfg.JSONLogs)
	chk(err, "unable to create logger")
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case runCmd.Used:
		err = runAnalysis(ctx, logger, cfg)
	case synthesizeCmd.Used:
		err = synthesize(logger, cfg)
	case serveCmd.Used:
		err = serve(ctx, logger, cfg)
	default:
		parser.ShowHelpAndExit("no subcommand given")
	}
	if err != nil {
		logger.Fatal("failed", zap.Error(err))
	}
}

func chk(err error, wrap string) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error", errors.Wrap(err, wrap))
		os.Exit(1)
	}
}
