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

// Package action implements the action processor (C7): it serializes
// lifecycle Actions (StartDaemon/StopDaemon/RestartDaemon), holding a
// priority lane over Commands, and applies the interrupt/supersession
// rules of spec §4.7.
package action

import (
	"sync"

	"github.com/nabbar/torctl/control/queue"
	"github.com/nabbar/torctl/torerr"
)

// Kind identifies a lifecycle operation.
type Kind uint8

const (
	StartDaemon Kind = iota
	StopDaemon
	RestartDaemon
)

func (k Kind) String() string {
	switch k {
	case StartDaemon:
		return "start"
	case StopDaemon:
		return "stop"
	case RestartDaemon:
		return "restart"
	default:
		return "unknown"
	}
}

// Runner executes one Kind synchronously on the processor's single
// lane. It returns an error to fail the Job, or nil on success.
type Runner func(k Kind) error

// Processor serializes Start/Stop/Restart per spec §4.7's two-level
// lock: while an Action runs, Commands must wait (the caller enforces
// that half by consulting Busy before dispatching Commands).
type Processor struct {
	run Runner

	mu       sync.Mutex
	current  *inflight
	next     *inflight    // a superseding StopDaemon to run once current.job's run() returns
	children []*queue.Job // further StopDaemons coalesced onto whichever Stop is authoritative (current or next)
}

type inflight struct {
	kind Kind
	job  *queue.Job
}

// New returns a Processor that executes Actions via run.
func New(run Runner) *Processor {
	return &Processor{run: run}
}

// Busy reports whether an Action currently holds the priority lane.
func (p *Processor) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Enqueue submits kind. Supersession rules from §4.7:
//   - StopDaemon supersedes and interrupts any concurrent Start/Restart:
//     the running action is failed with Interrupted immediately, and the
//     StopDaemon actually runs as soon as the interrupted run() returns
//     (the control protocol is not preemptible mid-line, so the
//     interrupted run cannot be aborted early).
//   - A second StopDaemon coalesces as a child of whichever Stop is
//     authoritative (the one executing, or the one queued to run next).
//   - Start/Restart enqueued while an Action runs are interrupted.
func (p *Processor) Enqueue(kind Kind, onSuccess func(), onFailure func(error)) *queue.Job {
	job := queue.NewJob(onSuccess, onFailure)

	p.mu.Lock()
	cur := p.current
	if cur == nil {
		job.Start()
		p.current = &inflight{kind: kind, job: job}
		p.mu.Unlock()
		go p.execute()
		return job
	}

	switch {
	case kind == StopDaemon && cur.kind == StopDaemon:
		// Coalesce onto the executing StopDaemon.
		p.children = append(p.children, job)
		p.mu.Unlock()
		return job
	case kind == StopDaemon:
		// StopDaemon supersedes the executing Start/Restart.
		if p.next == nil {
			p.next = &inflight{kind: StopDaemon, job: job}
		} else {
			p.children = append(p.children, job)
		}
		p.mu.Unlock()
		cur.job.Fail(torerr.Sentinel(torerr.Interrupted))
		return job
	default:
		// Start/Restart while a StopDaemon (or another Start/Restart) runs.
		p.mu.Unlock()
		job.Fail(torerr.Sentinel(torerr.Interrupted))
		return job
	}
}

// execute runs p.current's action and, on completion, either chains into
// a superseding StopDaemon queued in p.next or resolves p.current and its
// coalesced children.
func (p *Processor) execute() {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()

	if cur == nil {
		return
	}

	err := p.run(cur.kind)

	p.mu.Lock()
	next := p.next
	p.next = nil

	if next != nil {
		next.job.Start()
		p.current = next
		p.mu.Unlock()

		// cur.job was already failed with Interrupted when next superseded
		// it; these calls are no-ops against its terminal state.
		if err != nil {
			cur.job.Fail(err)
		} else {
			cur.job.Succeed()
		}

		p.execute()
		return
	}

	children := p.children
	p.children = nil
	p.current = nil
	p.mu.Unlock()

	if err != nil {
		cur.job.Fail(err)
		for _, c := range children {
			c.Start()
			c.Fail(err)
		}
		return
	}

	cur.job.Succeed()
	for _, c := range children {
		c.Start()
		c.Succeed()
	}
}
