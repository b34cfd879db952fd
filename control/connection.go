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

// Package control implements the Connection (C6): it owns the socket and
// composes the line transport, reply parser, dispatcher, command queue
// and event bus into the control-processor contract the runtime manager
// consumes.
package control

import (
	"net"
	"time"

	libatm "github.com/nabbar/torctl/atomic"
	"github.com/nabbar/torctl/control/dispatch"
	"github.com/nabbar/torctl/control/event"
	"github.com/nabbar/torctl/control/queue"
	"github.com/nabbar/torctl/control/reply"
	"github.com/nabbar/torctl/control/transport"
	"github.com/nabbar/torctl/torerr"
)

// Config holds the Connection's tunable knobs.
type Config struct {
	// CommandTimeout bounds each Executing command's wall clock. Zero
	// uses the 30s default from §5.
	CommandTimeout time.Duration
}

func (c Config) timeout() time.Duration {
	if c.CommandTimeout <= 0 {
		return 30 * time.Second
	}
	return c.CommandTimeout
}

// disconnectSlot wraps the one-shot onDisconnect callback behind a
// pointer so it can live in an atomic.Value[*disconnectSlot]: CAS
// against nil guarantees it fires exactly once.
type disconnectSlot struct {
	fn func(error)
}

// Connection owns one control socket end to end: C1 transport, C2 reply
// parsing, C3 dispatch, C4 queue, C5 event bus. It is not reusable after
// disconnect.
type Connection struct {
	cfg Config

	tr   *transport.Transport
	rp   *reply.Parser
	disp *dispatch.Dispatcher
	q    *queue.Queue
	bus  *event.Bus

	onDisc libatm.Value[*disconnectSlot]
	closed chan struct{}
	once   bool
}

// Dial opens network/addr (e.g. "unix", "/var/run/tor/control" or "tcp",
// "127.0.0.1:9051"), wires up C1-C5 and starts the read/dispatch loop.
func Dial(network, addr string, cfg Config, onPanic func(interface{})) (*Connection, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, torerr.New(torerr.Io, "failed to connect to control socket", err)
	}
	return newConnection(conn, cfg, onPanic), nil
}

func newConnection(conn net.Conn, cfg Config, onPanic func(interface{})) *Connection {
	c := &Connection{
		cfg:    cfg,
		tr:     transport.New(conn),
		rp:     reply.New(),
		q:      queue.New(),
		bus:    event.New(onPanic),
		closed: make(chan struct{}),
	}
	c.onDisc.SetDefaultLoad(nil)
	c.disp = dispatch.New(c.handleEvent, c.handleDesync)

	go c.readLoop()
	return c
}

// RefreshEvents issues SETEVENTS with the current required-events union
// (see refreshEvents). Spec §4.10's StartDaemon sequence calls this right
// after AUTHENTICATE succeeds (step 5 follows step 4): SETEVENTS is itself
// subject to authentication, so it cannot be sent from newConnection
// before the caller has had a chance to authenticate.
func (c *Connection) RefreshEvents() {
	c.refreshEvents()
}

// requiredEventKinds is the baseline SETEVENTS set, requested regardless
// of whether any caller has subscribed: network liveness, client
// bootstrap/status changes, and config-change notifications. The state
// machine (C8) does not subscribe to them; it is fed from the
// supervisor's log lines.
var requiredEventKinds = []event.Kind{
	event.Kind("NETWORK_LIVENESS"),
	event.Kind("STATUS_CLIENT"),
	event.Kind("CONF_CHANGED"),
}

// internalEventKinds are runtime-only namespaces (§4.5) that never
// correspond to a real control-protocol SETEVENTS keyword.
var internalEventKinds = map[event.Kind]bool{
	event.KindState:       true,
	event.KindAddressInfo: true,
	event.KindLifecycle:   true,
	event.KindLogLine:     true,
}

// refreshEvents issues SETEVENTS with the union of requiredEventKinds and
// every control-protocol Kind the event bus currently has subscribers for,
// per §4.5/§4.6: issued once via RefreshEvents right after authentication
// and again whenever Subscribe registers a Kind not already covered.
func (c *Connection) refreshEvents() {
	seen := make(map[event.Kind]bool, len(requiredEventKinds))
	args := make([]string, 0, len(requiredEventKinds))

	add := func(k event.Kind) {
		if seen[k] || internalEventKinds[k] {
			return
		}
		seen[k] = true
		args = append(args, string(k))
	}

	for _, k := range requiredEventKinds {
		add(k)
	}
	for _, k := range c.bus.Kinds() {
		add(k)
	}

	if len(args) == 0 {
		return
	}

	// Enqueued synchronously so SETEVENTS keeps its place at the head of
	// the FIFO relative to anything the caller enqueues right after
	// bring-up, but pumped from a goroutine since the transport write can
	// block until a peer is reading.
	j := queue.NewJob(nil, nil)
	if !c.q.Enqueue(queue.Entry{Job: j, Payload: pendingSend{cmd: Command{Verb: VerbSetEvents, Args: args}}}) {
		return
	}
	go c.pump()
}

func (c *Connection) handleEvent(ev *reply.Event) {
	c.bus.Publish(event.Kind(ev.Keyword), ev)
}

func (c *Connection) handleDesync(err error) {
	c.teardown(err)
}

func (c *Connection) readLoop() {
	for {
		select {
		case line, ok := <-c.tr.Lines():
			if !ok {
				return
			}
			res, err := c.rp.Feed(line)
			if err != nil {
				c.teardown(err)
				return
			}
			c.disp.Deliver(res)
		case err := <-c.tr.Err():
			c.teardown(err)
			return
		}
	}
}

// pendingSend is the queue Payload of one Command, carrying that
// Command's own onSuccess callback along with it.
type pendingSend struct {
	cmd       Command
	onSuccess func(*reply.Group)
}

// Send enqueues cmd as a new Job; exactly one of onSuccess/onFailure is
// invoked, once, as the Job resolves. Never blocks the caller: the
// transport write happens on a separate goroutine.
func (c *Connection) Send(cmd Command, onSuccess func(*reply.Group), onFailure func(error)) *queue.Job {
	// The Group a successful completion carries is only known once the
	// dispatcher's sink fires (see pump), so onSuccess is invoked there
	// directly; the Job's own onSuccess hook is unused here.
	j := queue.NewJob(nil, onFailure)

	if !c.q.Enqueue(queue.Entry{Job: j, Payload: pendingSend{cmd: cmd, onSuccess: onSuccess}}) {
		j.Fail(torerr.Sentinel(torerr.Destroyed))
		return j
	}

	go c.pump()
	return j
}

// pump drains the queue while no command is currently Executing,
// writing the head Command to the transport and installing its
// completion sink on the dispatcher.
func (c *Connection) pump() {
	entry, ok := c.q.Dequeue()
	if !ok {
		return
	}

	p := entry.Payload.(pendingSend)
	cmd := p.cmd
	timer := time.AfterFunc(c.cfg.timeout(), func() {
		c.disp.Abort(torerr.New(torerr.Timeout, "command timed out", nil))
		c.teardown(torerr.New(torerr.Timeout, "command timed out, connection unusable", nil))
	})

	c.disp.SetCurrent(func(group *reply.Group, err error) {
		timer.Stop()
		c.q.Complete()
		if err != nil {
			entry.Job.Fail(err)
			return
		}
		if !group.OK() {
			entry.Job.Fail(classifyReply(*group))
			c.pump()
			return
		}
		entry.Job.Succeed()
		if p.onSuccess != nil {
			p.onSuccess(group)
		}
		c.pump()
	})

	for _, line := range cmd.Encode() {
		if err := c.tr.WriteLine(line); err != nil {
			c.disp.Abort(err)
			return
		}
	}
}

// classifyReply maps a non-2xx Group to the Kind demanded by §4.2/§7:
// 4xx is Refused (survivable), 5xx is Internal (survivable).
func classifyReply(g reply.Group) error {
	switch {
	case g.Status >= 400 && g.Status < 500:
		return torerr.NewCode(torerr.Refused, g.Status, g.Final().Message)
	default:
		return torerr.NewCode(torerr.Internal, g.Status, g.Final().Message)
	}
}

// InterruptQueue fails every Command still Queued (not yet Executing) with
// Interrupted, per §4.4/§4.7: an Action taking the priority lane preempts
// Commands waiting behind it, but never the one already in flight.
func (c *Connection) InterruptQueue() {
	c.q.Interrupt()
}

// Subscribe registers observer for kind, delivered via exec (nil means
// Immediate). If kind is a control-protocol keyword not already covered
// by the current SETEVENTS set, a refresh is issued to add it (§4.6).
func (c *Connection) Subscribe(kind event.Kind, exec event.Executor, observer event.Observer) event.Handle {
	needsRefresh := !internalEventKinds[kind] && !isRequiredEventKind(kind) && !c.bus.HasSubscribers(kind)

	h := c.bus.Subscribe(kind, exec, observer)
	if needsRefresh {
		c.refreshEvents()
	}
	return h
}

func isRequiredEventKind(k event.Kind) bool {
	for _, r := range requiredEventKinds {
		if r == k {
			return true
		}
	}
	return false
}

// Unsubscribe removes a prior Subscribe.
func (c *Connection) Unsubscribe(h event.Handle) {
	c.bus.Unsubscribe(h)
}

// OnDisconnect installs the one-shot teardown callback. Only the first
// call wins; the reference is dropped immediately after firing.
func (c *Connection) OnDisconnect(fn func(error)) bool {
	return c.onDisc.CompareAndSwap(nil, &disconnectSlot{fn: fn})
}

// Disconnect tears the Connection down cleanly (QUIT then close).
func (c *Connection) Disconnect() {
	_ = c.tr.WriteLine(string(VerbQuit))
	c.teardown(torerr.Sentinel(torerr.Closed))
}

func (c *Connection) teardown(reason error) {
	select {
	case <-c.closed:
		return
	default:
		close(c.closed)
	}

	c.q.Close(reason)
	_ = c.tr.Close()

	if slot := c.onDisc.Swap(nil); slot != nil {
		slot.fn(reason)
	}
}
