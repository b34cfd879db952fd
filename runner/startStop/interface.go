/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package startStop provides a small Start/Stop/Restart lifecycle wrapper
// around a pair of user functions, tracking uptime and the errors raised by
// each transition.
package startStop

import (
	"context"
	"sync"
	"time"
)

// StartStop manages the lifecycle of a background process built from a
// start function and a stop function. It is safe for concurrent use.
type StartStop interface {
	// Start runs the configured start function if not already running.
	// Calling Start while already running is a no-op that returns nil.
	Start(ctx context.Context) error

	// Stop runs the configured stop function if currently running.
	// Calling Stop while already stopped is a no-op that returns nil.
	Stop(ctx context.Context) error

	// Restart stops then starts, returning the first error encountered.
	Restart(ctx context.Context) error

	// IsRunning reports whether Start has succeeded and Stop has not yet run.
	IsRunning() bool

	// Uptime returns the duration since the last successful Start, or 0 if
	// not currently running.
	Uptime() time.Duration

	// ErrorsLast returns the most recent error from Start/Stop/Restart, or
	// nil if none occurred.
	ErrorsLast() error

	// ErrorsList returns every error recorded since construction, oldest first.
	ErrorsList() []error
}

type fctRun func(ctx context.Context) error

type runner struct {
	mu sync.Mutex

	start fctRun
	stop  fctRun

	running bool
	since   time.Time

	errs []error
}

// New creates a StartStop driven by the given start and stop functions.
// Either may be nil, in which case the corresponding transition is a no-op.
func New(start, stop func(ctx context.Context) error) StartStop {
	return &runner{
		start: start,
		stop:  stop,
	}
}

func (r *runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	var err error
	if r.start != nil {
		err = r.start(ctx)
	}

	if err != nil {
		r.errs = append(r.errs, err)
		return err
	}

	r.running = true
	r.since = time.Now()
	return nil
}

func (r *runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}

	var err error
	if r.stop != nil {
		err = r.stop(ctx)
	}

	r.running = false
	r.since = time.Time{}

	if err != nil {
		r.errs = append(r.errs, err)
		return err
	}

	return nil
}

func (r *runner) Restart(ctx context.Context) error {
	if err := r.Stop(ctx); err != nil {
		return err
	}
	return r.Start(ctx)
}

func (r *runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *runner) Uptime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return 0
	}
	return time.Since(r.since)
}

func (r *runner) ErrorsLast() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

func (r *runner) ErrorsList() []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.errs) == 0 {
		return nil
	}
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}
