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
 *
 */

package queue

import (
	"sync"

	"github.com/nabbar/torctl/torerr"
)

// Entry pairs a Job with the opaque payload (a serialized Command) the
// dispatcher needs once the Job reaches the head of the queue.
type Entry struct {
	Job     *Job
	Payload interface{}
}

// Queue is a strict FIFO of in-flight Entries with single in-flight-job
// discipline (invariant (i)): Dequeue never returns a second Entry until
// the previous one reached a terminal state.
type Queue struct {
	mu      sync.Mutex
	pending []Entry
	current *Job
	closed  bool
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends an Entry. Never blocks. Returns false if the Queue is
// closed, in which case the caller should fail the Job with Destroyed/Closed.
func (q *Queue) Enqueue(e Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.pending = append(q.pending, e)
	return true
}

// Dequeue returns the next Entry whose Job is not already Cancelled, and
// transitions it to Executing. Returns ok=false if the queue is empty,
// already has an Executing job, or is closed.
func (q *Queue) Dequeue() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.current != nil {
		return Entry{}, false
	}

	for len(q.pending) > 0 {
		e := q.pending[0]
		q.pending = q.pending[1:]

		if e.Job.State() == Cancelled {
			continue
		}
		if !e.Job.Start() {
			continue
		}
		q.current = e.Job
		return e, true
	}

	return Entry{}, false
}

// Complete clears the current-Executing slot so the next Dequeue can
// proceed. The caller is responsible for calling Job.Succeed/Fail first.
func (q *Queue) Complete() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = nil
}

// Interrupt fails every still-Queued job with Interrupted, per §4.4/§4.7's
// Action-supersedes-Command rule. The currently Executing job (if any) is
// left alone: the control protocol is not preemptible mid-line, so it runs
// to completion and clears via the normal Complete call.
func (q *Queue) Interrupt() {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	cause := torerr.Sentinel(torerr.Interrupted)
	for _, e := range pending {
		e.Job.Fail(cause)
	}
}

// Close tears the queue down: the current Executing job fails with
// reason, every Queued job is Cancelled, and further Enqueue calls fail.
func (q *Queue) Close(reason error) {
	q.mu.Lock()
	cur := q.current
	pending := q.pending
	q.pending = nil
	q.current = nil
	q.closed = true
	q.mu.Unlock()

	if cur != nil {
		cur.Fail(reason)
	}
	for _, e := range pending {
		e.Job.Cancel(reason)
	}
}
