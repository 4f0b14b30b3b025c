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
	"io"
	"math/rand"
	"os"

	"github.com/google-research/spektri/tools/synthesize/signals"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// synthesizeTo writes the named signal of cfg as a WAV file, normalized to full scale.
func synthesizeTo(w io.Writer, cfg Config) error {
	specs, err := cfg.LoadSpecs()
	if err != nil {
		return err
	}
	var spec *signals.SignalSpec
	for idx := range specs {
		if specs[idx].Name == cfg.Name {
			spec = &specs[idx]
		}
	}
	if spec == nil {
		return errors.Errorf("no signal named %q", cfg.Name)
	}
	samples, err := spec.Sample(cfg.Signals)
	if err != nil {
		return err
	}
	if cfg.Noisy {
		var r *rand.Rand
		if cfg.Seed >= 0 {
			r = signals.NewRand(cfg.Seed)
		}
		samples = signals.AddWhiteNoise(samples, cfg.Signals.NoiseLevel, r)
	}
	return samples.Normalized().WriteWAV(w, float64(cfg.Signals.SampleRate))
}

func synthesize(logger *zap.Logger, cfg Config) error {
	if cfg.Name == "" {
		return errors.New("--name is required")
	}
	out := cfg.WAVOut
	if out == "" {
		out = cfg.Name + ".wav"
	}
	writer, err := os.Create(out)
	if err != nil {
		return errors.Wrapf(err, "unable to create %q", out)
	}
	if err := synthesizeTo(writer, cfg); err != nil {
		writer.Close()
		return errors.Wrapf(err, "unable to synthesize %q", cfg.Name)
	}
	if err := writer.Close(); err != nil {
		return errors.Wrapf(err, "unable to close %q", out)
	}
	logger.Info("synthesized signal", zap.String("signal", cfg.Name), zap.String("out", out), zap.Bool("noisy", cfg.Noisy))
	return nil
}
