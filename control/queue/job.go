/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2025 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

// Package queue implements the command queue (C4): a strict FIFO of
// in-flight Jobs with single-writer discipline, cancellation and
// interrupt semantics.
package queue

import (
	"sync"

	"github.com/google/uuid"
	"github.com/nabbar/torctl/torerr"
)

// State is a Job's position in its lifecycle.
type State uint8

const (
	Queued State = iota
	Executing
	Success
	Error
	Cancelled
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Executing:
		return "executing"
	case Success:
		return "success"
	case Error:
		return "error"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s == Success || s == Error || s == Cancelled
}

// valid transition table: Queued->{Executing,Cancelled}, Executing->{Success,Error}.
func (s State) canMoveTo(next State) bool {
	switch s {
	case Queued:
		return next == Executing || next == Cancelled
	case Executing:
		return next == Success || next == Error
	default:
		return false
	}
}

// Job is an externally visible handle for an enqueued Command or Action.
type Job struct {
	ID string

	mu    sync.Mutex
	state State
	err   error

	onSuccess func()
	onFailure func(error)
}

// NewJob creates a Queued Job with the given success/failure callbacks.
// Either callback may be nil.
func NewJob(onSuccess func(), onFailure func(error)) *Job {
	return &Job{
		ID:        uuid.NewString(),
		state:     Queued,
		onSuccess: onSuccess,
		onFailure: onFailure,
	}
}

// State returns the Job's current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the failure/cancellation cause, if any.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Cancel transitions a Queued Job to Cancelled. Valid only in Queued; a
// no-op returning false for any other state, matching invariant (vi):
// terminal jobs never transition again.
func (j *Job) Cancel(cause error) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state != Queued {
		return false
	}
	if cause == nil {
		cause = torerr.Sentinel(torerr.Cancelled)
	}
	j.state = Cancelled
	j.err = cause
	return true
}

// Start transitions Queued->Executing. Returns false if the Job is not
// Queued (it may already be Cancelled).
func (j *Job) Start() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.state.canMoveTo(Executing) {
		return false
	}
	j.state = Executing
	return true
}

// Succeed transitions Executing->Success and invokes the success callback
// outside the lock.
func (j *Job) Succeed() {
	var cb func()
	j.mu.Lock()
	if j.state.canMoveTo(Success) {
		j.state = Success
		cb = j.onSuccess
	}
	j.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Fail transitions Executing->Error (or Queued->Error, used by interrupt)
// and invokes the failure callback outside the lock.
func (j *Job) Fail(cause error) {
	var cb func(error)
	j.mu.Lock()
	if !j.state.terminal() {
		j.state = Error
		j.err = cause
		cb = j.onFailure
	}
	j.mu.Unlock()

	if cb != nil {
		cb(cause)
	}
}
