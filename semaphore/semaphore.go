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

// Package semaphore caps the number of concurrently running workers behind a
// context-aware handle. A Semaphore is itself a context.Context: it inherits
// Deadline/Done/Err/Value from the context it was created with, so it can be
// passed anywhere a context is expected while also gating worker counts.
package semaphore

import (
	"context"
	"errors"
	"sync"
)

// ErrWorkerLimit describes a semaphore at its configured worker limit. No
// function of this package returns it: at the limit NewWorker blocks until a
// slot frees or the context ends, and NewWorkerTry returns false.
var ErrWorkerLimit = errors.New("semaphore: worker limit reached")

const unlimited = -1

// Semaphore bounds the number of concurrent workers sharing a context.
type Semaphore interface {
	context.Context

	// NewWorker blocks until a worker slot is free, then reserves it.
	NewWorker() error

	// NewWorkerTry reserves a worker slot without blocking, returning false
	// if the semaphore is already full.
	NewWorkerTry() bool

	// DeferWorker releases a single worker slot reserved by NewWorker or
	// NewWorkerTry. Safe to call via defer.
	DeferWorker()

	// WaitAll blocks until every reserved worker slot has been released.
	WaitAll() error

	// Weighted returns the configured maximum worker count, or -1 if unlimited.
	Weighted() int64

	// Clone returns an independent Semaphore with the same limit, sharing
	// this one's parent context.
	Clone() Semaphore

	// New is an alias of Clone kept for parity with the teacher API.
	New() Semaphore

	// DeferMain cancels the semaphore's context and releases any resources.
	DeferMain()
}

type sem struct {
	context.Context
	cancel context.CancelFunc

	max int64
	ch  chan struct{}
	wg  sync.WaitGroup
}

// New creates a Semaphore limiting concurrent workers to maxWorkers. A
// maxWorkers value <= 0 means unlimited. withProgress is accepted for
// parity with the teacher API but has no effect: nothing in this module
// renders progress bars, so no bar integration is wired here.
func New(ctx context.Context, maxWorkers int, withProgress bool) Semaphore {
	x, n := context.WithCancel(ctx)

	s := &sem{
		Context: x,
		cancel:  n,
	}

	if maxWorkers > 0 {
		s.max = int64(maxWorkers)
		s.ch = make(chan struct{}, maxWorkers)
	} else {
		s.max = unlimited
	}

	return s
}

func (s *sem) NewWorker() error {
	if s.ch == nil {
		s.wg.Add(1)
		return nil
	}

	select {
	case s.ch <- struct{}{}:
		s.wg.Add(1)
		return nil
	case <-s.Context.Done():
		return s.Context.Err()
	}
}

func (s *sem) NewWorkerTry() bool {
	if s.ch == nil {
		s.wg.Add(1)
		return true
	}

	select {
	case s.ch <- struct{}{}:
		s.wg.Add(1)
		return true
	default:
		return false
	}
}

func (s *sem) DeferWorker() {
	if s.ch != nil {
		select {
		case <-s.ch:
		default:
		}
	}
	s.wg.Done()
}

func (s *sem) WaitAll() error {
	s.wg.Wait()
	return nil
}

func (s *sem) Weighted() int64 {
	return s.max
}

func (s *sem) Clone() Semaphore {
	max := 0
	if s.max > 0 {
		max = int(s.max)
	}
	return New(s.Context, max, false)
}

func (s *sem) New() Semaphore {
	return s.Clone()
}

func (s *sem) DeferMain() {
	if s.cancel != nil {
		s.cancel()
	}
}
