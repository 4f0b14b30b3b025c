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
	"context"
	"os"

	"github.com/cheggaaa/pb"
	"github.com/google-research/spektri/tools/pipeline"
	"github.com/google-research/spektri/tools/report"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// analyze runs the pipeline over the configured signals and returns the report.
func analyze(ctx context.Context, logger *zap.Logger, cfg Config, opts ...pipeline.Option) (*report.Report, error) {
	specs, err := cfg.LoadSpecs()
	if err != nil {
		return nil, err
	}
	p, err := pipeline.New(cfg.Signals, append(cfg.PipelineOptions(logger), opts...)...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create pipeline")
	}
	results, err := p.Run(ctx, specs)
	if err != nil {
		return nil, errors.Wrap(err, "unable to analyze signals")
	}
	return report.New(cfg.Signals, results), nil
}

func runAnalysis(ctx context.Context, logger *zap.Logger, cfg Config) error {
	specs, err := cfg.LoadSpecs()
	if err != nil {
		return err
	}
	opts := []pipeline.Option{}
	if cfg.Progress {
		bar := pb.New(len(specs)).Prefix("Analyzing")
		bar.Output = os.Stderr
		bar.Start()
		defer bar.Finish()
		opts = append(opts, pipeline.WithObserver(func(*pipeline.Result) {
			bar.Increment()
		}))
	}
	rep, err := analyze(ctx, logger, cfg, opts...)
	if err != nil {
		return err
	}
	if err := rep.WriteDir(cfg.Out, cfg.FormatList()); err != nil {
		return errors.Wrapf(err, "unable to write report to %q", cfg.Out)
	}
	logger.Info("wrote report", zap.String("dir", cfg.Out), zap.Strings("formats", cfg.FormatList()))
	return nil
}
