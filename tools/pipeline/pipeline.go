/* pipeline synthesizes, corrupts and analyzes a list of signal specs.
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
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google-research/spektri/tools/spectrum"
	"github.com/google-research/spektri/tools/stats"
	"github.com/google-research/spektri/tools/synthesize/signals"
	"github.com/google-research/spektri/tools/workerpool"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Result is everything computed for one signal spec.
type Result struct {
	Spec signals.SignalSpec

	Clean signals.Float64Slice
	Noisy signals.Float64Slice

	CleanSpectrum *spectrum.S
	NoisySpectrum *spectrum.S

	CleanStats stats.Summary
	NoisyStats stats.Summary

	CleanPeaks []spectrum.Peak
	NoisyPeaks []spectrum.Peak

	// SNR is the ratio between the power of the clean signal and the power of the added noise.
	// It is +Inf when no noise was added.
	SNR signals.DB
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger makes the pipeline log each processed spec at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithSeed makes the noise of the pipeline deterministic.
func WithSeed(seed int64) Option {
	return func(p *Pipeline) {
		p.rand = signals.NewRand(seed)
	}
}

// WithConcurrency sets how many specs are processed at the same time.
func WithConcurrency(concurrency int) Option {
	return func(p *Pipeline) {
		p.concurrency = concurrency
	}
}

// WithFFT makes the pipeline compute spectra with spectrum.FFT instead of spectrum.DFT.
func WithFFT(fast bool) Option {
	return func(p *Pipeline) {
		p.fast = fast
	}
}

// WithObserver makes the pipeline call f after each processed spec.
// f is called from the worker goroutines and must be safe for concurrent use.
func WithObserver(f func(*Result)) Option {
	return func(p *Pipeline) {
		p.observer = f
	}
}

// Pipeline turns signal specs into Results.
type Pipeline struct {
	conf        signals.Config
	logger      *zap.Logger
	rand        *rand.Rand
	concurrency int
	fast        bool
	observer    func(*Result)
}

// New returns a pipeline using conf, or an error if conf is invalid.
func New(conf signals.Config, opts ...Option) (*Pipeline, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		conf:        conf,
		logger:      zap.NewNop(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rand == nil {
		p.rand = signals.NewRand(time.Now().UnixNano())
	}
	return p, nil
}

// Config returns the configuration of the pipeline.
func (p *Pipeline) Config() signals.Config {
	return p.conf
}

// Process synthesizes spec, adds noise from r, and analyzes both versions.
func (p *Pipeline) Process(spec signals.SignalSpec, r *rand.Rand) (*Result, error) {
	clean, err := spec.Sample(p.conf)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Spec:  spec,
		Clean: clean,
		Noisy: signals.AddWhiteNoise(clean, p.conf.NoiseLevel, r),
	}
	if res.CleanSpectrum, err = spectrum.Compute(res.Clean, p.conf, p.fast); err != nil {
		return nil, fmt.Errorf("unable to analyze clean %q: %w", spec.Name, err)
	}
	if res.NoisySpectrum, err = spectrum.Compute(res.Noisy, p.conf, p.fast); err != nil {
		return nil, fmt.Errorf("unable to analyze noisy %q: %w", spec.Name, err)
	}
	if res.CleanStats, err = stats.Analyze(res.Clean); err != nil {
		return nil, fmt.Errorf("unable to summarize clean %q: %w", spec.Name, err)
	}
	if res.NoisyStats, err = stats.Analyze(res.Noisy); err != nil {
		return nil, fmt.Errorf("unable to summarize noisy %q: %w", spec.Name, err)
	}
	res.CleanPeaks = spectrum.PeakFrequencies(res.CleanSpectrum.Magnitudes, p.conf, p.conf.Threshold)
	res.NoisyPeaks = spectrum.PeakFrequencies(res.NoisySpectrum.Magnitudes, p.conf, p.conf.Threshold)
	if res.SNR, err = signals.SNR(res.Clean, res.Noisy); err != nil {
		return nil, fmt.Errorf("unable to compute SNR of %q: %w", spec.Name, err)
	}
	if aliased := spec.Aliased(p.conf); len(aliased) > 0 {
		p.logger.Debug("frequencies above Nyquist will alias",
			zap.String("signal", spec.Name),
			zap.Any("frequencies", aliased),
			zap.Float64("nyquist", float64(p.conf.Nyquist())))
	}
	p.logger.Debug("processed signal",
		zap.String("signal", spec.Name),
		zap.Int("clean_peaks", len(res.CleanPeaks)),
		zap.Int("noisy_peaks", len(res.NoisyPeaks)),
		zap.Float64("snr_db", float64(res.SNR)))
	return res, nil
}

// Run processes all specs and returns the results in the same order.
// The noise of each spec is drawn from its own generator, seeded from the
// pipeline generator in spec order, so the results don't depend on the concurrency.
// Once ctx is done no more specs are started, and Run returns the context error
// along with any processing errors.
func (p *Pipeline) Run(ctx context.Context, specs []signals.SignalSpec) ([]*Result, error) {
	seeds := make([]int64, len(specs))
	for idx := range seeds {
		seeds[idx] = p.rand.Int63()
	}
	results := make([]*Result, len(specs))
	wp := workerpool.New(p.concurrency)
	var ctxErr error
	for idx := range specs {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}
		idx := idx
		wp.Go(func() error {
			res, err := p.Process(specs[idx], signals.NewRand(seeds[idx]))
			if err != nil {
				return err
			}
			results[idx] = res
			if p.observer != nil {
				p.observer(res)
			}
			return nil
		})
	}
	if err := multierr.Append(ctxErr, wp.Wait()); err != nil {
		return nil, err
	}
	p.logger.Info("processed signals", zap.Int("signals", len(results)), zap.Int("concurrency", p.concurrency))
	return results, nil
}
