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

// Package dispatch implements the dispatcher (C3): it routes completed
// Reply Groups to the pending command's completion sink and routes 650
// Event Records to the event bus, bypassing the in-flight command.
package dispatch

import (
	"github.com/nabbar/torctl/control/reply"
	libatm "github.com/nabbar/torctl/atomic"
	"github.com/nabbar/torctl/torerr"
)

// Sink receives the Group or error completing the currently pending
// command.
type Sink func(group *reply.Group, err error)

// pendingCmd wraps a Sink behind a pointer so the single-slot "current
// command" reference can be held in an atomic.Value[*pendingCmd]: funcs
// are not themselves comparable, but pointer identity is.
type pendingCmd struct {
	sink Sink
}

// Dispatcher holds the single-slot "current command" reference required
// by invariant (i): at most one Job in Executing per Connection.
type Dispatcher struct {
	current  libatm.Value[*pendingCmd]
	onEvent  func(*reply.Event)
	onDesync func(error)
}

// New returns a Dispatcher. onEvent receives every parsed Event Record;
// onDesync is called if a non-650 Group arrives with no current command
// (protocol desync, per §4.3).
func New(onEvent func(*reply.Event), onDesync func(error)) *Dispatcher {
	d := &Dispatcher{onEvent: onEvent, onDesync: onDesync}
	d.current.SetDefaultLoad(nil)
	return d
}

// SetCurrent installs sink as the completion target for the next
// non-650 Reply Group. CompareAndSwap against nil guarantees only one
// command is ever current at a time.
func (d *Dispatcher) SetCurrent(sink Sink) bool {
	return d.current.CompareAndSwap(nil, &pendingCmd{sink: sink})
}

// Deliver feeds one parser Result to the dispatcher.
func (d *Dispatcher) Deliver(res reply.Result) {
	if res.Event != nil {
		if d.onEvent != nil {
			d.onEvent(res.Event)
		}
		return
	}

	if res.Group == nil {
		return
	}

	pc := d.current.Swap(nil)
	if pc == nil {
		if d.onDesync != nil {
			d.onDesync(torerr.New(torerr.Protocol, "reply group with no pending command", nil))
		}
		return
	}

	pc.sink(res.Group, nil)
}

// Abort fails the current command, if any, with err (used on transport
// teardown: Io/Closed/Protocol/Timeout at the connection boundary).
func (d *Dispatcher) Abort(err error) {
	if pc := d.current.Swap(nil); pc != nil {
		pc.sink(nil, err)
	}
}
