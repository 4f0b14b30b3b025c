/* workerpool contains code to run a limited number of error handling goroutines concurrently.
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
package workerpool

import (
	"sync"

	"go.uber.org/multierr"
)

// WorkerPool runs a limited number of error handling goroutines concurrently.
type WorkerPool struct {
	queue  chan func() error
	errors chan error
	done   chan error
}

// Go will run the function. Must not be called after Wait.
func (w *WorkerPool) Go(f func() error) {
	w.queue <- f
}

// Wait stops accepting jobs, waits for all submitted jobs to finish and returns
// their errors combined with multierr, or nil if every job succeeded.
func (w *WorkerPool) Wait() error {
	close(w.queue)
	return <-w.done
}

// New returns a new worker pool running at most concurrency jobs at a time.
// A concurrency below 1 doesn't limit the number of concurrent jobs.
func New(concurrency int) *WorkerPool {
	w := &WorkerPool{
		queue:  make(chan func() error),
		errors: make(chan error),
		done:   make(chan error, 1),
	}

	go func() {
		var combined error
		for err := range w.errors {
			combined = multierr.Append(combined, err)
		}
		w.done <- combined
	}()

	go func() {
		wg := &sync.WaitGroup{}
		tickets := make(chan struct{}, concurrency)
		for jobVar := range w.queue {
			job := jobVar
			if concurrency > 0 {
				tickets <- struct{}{}
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := job()
				if concurrency > 0 {
					<-tickets
				}
				w.errors <- err
			}()
		}
		wg.Wait()
		close(w.errors)
	}()
	return w
}
