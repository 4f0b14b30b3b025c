/* stats summarizes sequences of samples or magnitudes.
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
package stats

import (
	"fmt"

	"github.com/google-research/spektri/tools/synthesize/signals"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary contains the extremes and the mean of a sequence.
type Summary struct {
	Max     float64
	Min     float64
	Average float64
}

func (s Summary) String() string {
	return fmt.Sprintf("max %.4f min %.4f avg %.4f", s.Max, s.Min, s.Average)
}

// Analyze returns the summary of values.
// Empty input returns an error wrapping signals.ErrEmptySequence instead of a
// summary with undefined fields.
func Analyze(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, fmt.Errorf("unable to summarize: %w", signals.ErrEmptySequence)
	}
	return Summary{
		Max:     floats.Max(values),
		Min:     floats.Min(values),
		Average: stat.Mean(values, nil),
	}, nil
}
