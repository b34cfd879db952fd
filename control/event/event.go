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

// Package event implements the event bus (C5): typed publish/subscribe
// for control-protocol events (CIRC, STREAM, BW, STATUS_CLIENT, ...) and
// runtime events (State, AddressInfo, Lifecycle, log lines).
package event

import (
	"runtime"
	"sync"
)

// Kind identifies an event category. Control-protocol keywords (CIRC,
// STREAM, ...) and runtime categories (State, AddressInfo, Lifecycle,
// LogLine) share the same namespace.
type Kind string

const (
	KindState       Kind = "State"
	KindAddressInfo Kind = "AddressInfo"
	KindLifecycle   Kind = "Lifecycle"
	KindLogLine     Kind = "LogLine"
)

// Observer receives delivered events of the Kind it was registered for.
type Observer func(payload interface{})

// Executor runs an Observer call. Immediate runs synchronously in the
// publisher's goroutine; Main dispatches to a single designated
// goroutine; Background dispatches onto a bounded worker pool.
type Executor interface {
	Run(fn func())
}

type immediateExecutor struct{}

func (immediateExecutor) Run(fn func()) { fn() }

// Immediate is the Executor used for internal state stitching where no
// user code runs and ordering with the publisher matters.
var Immediate Executor = immediateExecutor{}

// mainExecutor serializes every Run call onto one goroutine, giving
// subscribers a single cooperative "main lane" the same way a UI
// toolkit's main-thread dispatch would, without depending on one.
type mainExecutor struct {
	work chan func()
	once sync.Once
}

// NewMainExecutor starts the single goroutine backing Main-lane delivery.
func NewMainExecutor() Executor {
	m := &mainExecutor{work: make(chan func(), 256)}
	go func() {
		for fn := range m.work {
			fn()
		}
	}()
	return m
}

func (m *mainExecutor) Run(fn func()) {
	m.work <- fn
}

// backgroundExecutor dispatches onto a pool sized from runtime.NumCPU().
type backgroundExecutor struct {
	sem chan struct{}
}

// NewBackgroundExecutor returns an Executor bounded to runtime.NumCPU()
// concurrent Observer invocations.
func NewBackgroundExecutor() Executor {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return &backgroundExecutor{sem: make(chan struct{}, n)}
}

func (b *backgroundExecutor) Run(fn func()) {
	b.sem <- struct{}{}
	go func() {
		defer func() { <-b.sem }()
		fn()
	}()
}

type subscription struct {
	id       uint64
	observer Observer
	exec     Executor
}

// Bus is the event dispatch registry. The registry is protected by a
// single mutex with short critical sections; Observer invocation happens
// outside the lock so a publisher never holds a lock while invoking
// observers.
type Bus struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[Kind][]subscription
	onPanic func(recovered interface{})
}

// New returns an empty Bus. onPanic, if non-nil, is the process-wide
// uncaught-exception handler observer panics are routed to.
func New(onPanic func(recovered interface{})) *Bus {
	return &Bus{
		subs:    make(map[Kind][]subscription),
		onPanic: onPanic,
	}
}

// Handle identifies a subscription for Unsubscribe.
type Handle struct {
	kind Kind
	id   uint64
}

// Subscribe registers observer for kind, delivered via exec. If exec is
// nil, Immediate is used.
func (b *Bus) Subscribe(kind Kind, exec Executor, observer Observer) Handle {
	if exec == nil {
		exec = Immediate
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, observer: observer, exec: exec})
	b.mu.Unlock()

	return Handle{kind: kind, id: id}
}

// Unsubscribe removes the subscription identified by h.
func (b *Bus) Unsubscribe(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[h.kind]
	for i, s := range list {
		if s.id == h.id {
			b.subs[h.kind] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers payload to every observer registered for kind. Within
// one Kind, delivery is serialized in subscription order (no reordering);
// across Kinds no cross-ordering is guaranteed.
func (b *Bus) Publish(kind Kind, payload interface{}) {
	b.mu.Lock()
	list := make([]subscription, len(b.subs[kind]))
	copy(list, b.subs[kind])
	b.mu.Unlock()

	for _, s := range list {
		obs, handler := s.observer, b.onPanic
		s.exec.Run(func() {
			defer func() {
				if r := recover(); r != nil && handler != nil {
					handler(r)
				}
			}()
			obs(payload)
		})
	}
}

// HasSubscribers reports whether kind currently has at least one observer,
// used to decide whether a SETEVENTS refresh must add kind to the
// required-events set.
func (b *Bus) HasSubscribers(kind Kind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[kind]) > 0
}

// Kinds returns every Kind that currently has at least one subscriber, in
// no particular order. Used to compute the union of events a SETEVENTS
// refresh must request.
func (b *Bus) Kinds() []Kind {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Kind, 0, len(b.subs))
	for k, subs := range b.subs {
		if len(subs) > 0 {
			out = append(out, k)
		}
	}
	return out
}
