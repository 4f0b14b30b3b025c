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
package workerpool

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func TestWorkerpoolLimits(t *testing.T) {
	for _, tc := range []struct {
		concurrency int
		jobs        int
	}{
		{
			concurrency: 1,
			jobs:        20,
		},
		{
			concurrency: 4,
			jobs:        50,
		},
	} {
		wp := New(tc.concurrency)
		var running int64
		var maxRunning int64
		var finished int64
		for j := 0; j < tc.jobs; j++ {
			wp.Go(func() error {
				now := atomic.AddInt64(&running, 1)
				for {
					old := atomic.LoadInt64(&maxRunning)
					if now <= old || atomic.CompareAndSwapInt64(&maxRunning, old, now) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt64(&running, -1)
				atomic.AddInt64(&finished, 1)
				return nil
			})
		}
		if err := wp.Wait(); err != nil {
			t.Fatal(err)
		}
		if got := atomic.LoadInt64(&finished); got != int64(tc.jobs) {
			t.Errorf("got %v finished jobs, wanted %v", got, tc.jobs)
		}
		if got := atomic.LoadInt64(&maxRunning); got > int64(tc.concurrency) {
			t.Errorf("got %v concurrent jobs with concurrency %v", got, tc.concurrency)
		}
	}
}

func TestWorkerpoolUnlimited(t *testing.T) {
	wp := New(0)
	release := make(chan struct{})
	var running int64
	for j := 0; j < 10; j++ {
		wp.Go(func() error {
			atomic.AddInt64(&running, 1)
			<-release
			return nil
		})
	}
	deadline := time.Now().Add(10 * time.Second)
	for atomic.LoadInt64(&running) < 10 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := atomic.LoadInt64(&running); got != 10 {
		t.Errorf("got %v concurrent jobs without a limit, wanted 10", got)
	}
	close(release)
	if err := wp.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestWorkerpoolErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	wp := New(2)
	for _, err := range []error{nil, errA, nil, errB} {
		err := err
		wp.Go(func() error {
			return err
		})
	}
	err := wp.Wait()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("got %v, wanted both %v and %v", err, errA, errB)
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Errorf("got %v errors, wanted 2", got)
	}
	if err := New(1).Wait(); err != nil {
		t.Errorf("got %v from an empty pool, wanted nil", err)
	}
}
