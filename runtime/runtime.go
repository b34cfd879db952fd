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

// Package runtime implements the Runtime Manager (C10): the facade that
// composes the Connection, Supervisor, Action Processor and State
// Machine behind enqueue/subscribe/environment/destroy, with a
// process-wide per-InstanceId mutual-exclusion registry.
package runtime

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	libctx "github.com/nabbar/torctl/context"
	"github.com/nabbar/torctl/control"
	"github.com/nabbar/torctl/control/event"
	"github.com/nabbar/torctl/control/queue"
	"github.com/nabbar/torctl/control/reply"
	"github.com/nabbar/torctl/runtime/action"
	"github.com/nabbar/torctl/runtime/state"
	"github.com/nabbar/torctl/runtime/supervisor"
	"github.com/nabbar/torctl/torconfig"
	"github.com/nabbar/torctl/torerr"
)

// InstanceId opaquely identifies one managed tor instance.
type InstanceId string

// NewInstanceId mints a fresh opaque id via google/uuid when the caller
// does not supply its own.
func NewInstanceId() InstanceId {
	return InstanceId(uuid.NewString())
}

// instanceLocks is the single process-wide piece of mutable static
// state named in spec §9: a per-InstanceId mutual-exclusion map backed
// by the generic context.Config registry so every instance shares its
// Clone/Walk semantics and a common cancellation root.
var instanceLocks = libctx.New[InstanceId](context.Background())

func lockFor(id InstanceId) *sync.Mutex {
	if m, ok := instanceLocks.Load(id); ok {
		return m.(*sync.Mutex)
	}
	m := &sync.Mutex{}
	instanceLocks.Store(id, m)
	return m
}

// Environment is the read-only bundle environment() exposes: paths,
// a process-id tag, and the uncaught-exception handler.
type Environment struct {
	InstanceId      InstanceId
	Pid             int
	OnUncaughtPanic func(interface{})
}

// Manager is the Runtime Manager facade (C10).
type Manager struct {
	id  InstanceId
	env Environment
	cfg *torconfig.Config

	mu        sync.Mutex
	conn      *control.Connection
	sup       *supervisor.Supervisor
	sm        *state.Machine
	proc      *action.Processor
	destroyed bool
}

// New builds a Manager for id (minted via NewInstanceId if empty) with
// the given Config and uncaught-panic handler.
func New(id InstanceId, cfg *torconfig.Config, onPanic func(interface{})) *Manager {
	if id == "" {
		id = NewInstanceId()
	}

	m := &Manager{
		id:  id,
		cfg: cfg,
		env: Environment{InstanceId: id, Pid: os.Getpid(), OnUncaughtPanic: onPanic},
	}
	m.sm = state.New(m.publishState, m.publishAddress)
	m.proc = action.New(m.runAction)
	return m
}

// Environment returns the Manager's read-only environment bundle.
func (m *Manager) Environment() Environment {
	return m.env
}

// State returns the current (DaemonState, NetworkState, BootstrapPct,
// AddressInfo) snapshot tracked by the state machine (C8).
func (m *Manager) State() state.Snapshot {
	return m.sm.Snapshot()
}

// EnqueueAction submits a lifecycle Action through the priority lane,
// serialized per this Manager's InstanceId lock.
func (m *Manager) EnqueueAction(kind action.Kind, onSuccess func(), onFailure func(error)) *queue.Job {
	lock := lockFor(m.id)
	lock.Lock()
	defer lock.Unlock()

	if m.isDestroyed() {
		job := queue.NewJob(onSuccess, onFailure)
		job.Fail(torerr.Sentinel(torerr.Destroyed))
		return job
	}

	return m.proc.Enqueue(kind, onSuccess, onFailure)
}

// EnqueueCommand submits a control Command. Fails immediately with
// Destroyed if the runtime was destroyed, with Interrupted if an Action
// currently holds the priority lane (§4.4's two-level lock), or if no
// Connection is currently established (daemon Off/Starting).
func (m *Manager) EnqueueCommand(cmd control.Command, onSuccess func(*reply.Group), onFailure func(error)) *queue.Job {
	m.mu.Lock()
	conn := m.conn
	destroyed := m.destroyed
	m.mu.Unlock()

	if destroyed {
		job := queue.NewJob(nil, onFailure)
		job.Fail(torerr.Sentinel(torerr.Destroyed))
		return job
	}
	if m.proc.Busy() {
		job := queue.NewJob(nil, onFailure)
		job.Fail(torerr.New(torerr.Interrupted, "an Action holds the priority lane", nil))
		return job
	}
	if conn == nil {
		job := queue.NewJob(nil, onFailure)
		job.Fail(torerr.New(torerr.Internal, "no control connection established", nil))
		return job
	}

	return conn.Send(cmd, onSuccess, onFailure)
}

// Subscribe registers observer for kind on the current Connection's event
// bus, delivered via exec (nil means Immediate). It fails while no
// Connection is established.
func (m *Manager) Subscribe(kind event.Kind, exec event.Executor, observer event.Observer) (event.Handle, error) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return event.Handle{}, torerr.New(torerr.Internal, "no control connection established", nil)
	}
	return conn.Subscribe(kind, exec, observer), nil
}

func (m *Manager) isDestroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

// Destroy irreversibly shuts the runtime down: Connection, Supervisor,
// and all Jobs. Further enqueues fail with Destroyed.
func (m *Manager) Destroy() {
	lock := lockFor(m.id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	conn := m.conn
	sup := m.sup
	m.conn = nil
	m.sup = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Disconnect()
	}
	if sup != nil {
		_ = sup.Signal(os.Interrupt)
		sup.Wait(5 * time.Second)
	}
	m.sm.SetDaemon(state.Off)
}

// publishState and publishAddress are the state machine's callbacks; both
// discard what they receive, so state changes are observable only by
// polling State().
func (m *Manager) publishState(snap state.Snapshot) {
	_ = snap
}

func (m *Manager) publishAddress(addrs state.AddressInfo) {
	_ = addrs
}

// runAction is the action.Runner backing the Processor: it implements
// the StartDaemon/StopDaemon/RestartDaemon sequences of spec §4.7.
func (m *Manager) runAction(kind action.Kind) error {
	// The Action now holds the priority lane (§4.4): any Command still
	// waiting behind it on the Connection's queue is preempted. The
	// Command already Executing, if any, is left to finish.
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn != nil {
		conn.InterruptQueue()
	}

	switch kind {
	case action.StartDaemon:
		return m.start()
	case action.StopDaemon:
		return m.stop()
	case action.RestartDaemon:
		if err := m.stop(); err != nil {
			return err
		}
		return m.start()
	default:
		return torerr.New(torerr.Internal, fmt.Sprintf("unknown action kind %d", kind), nil)
	}
}

func (m *Manager) start() error {
	if m.sm.Snapshot().Daemon == state.On {
		return nil // idempotent per invariant 7
	}
	if m.cfg == nil {
		return torerr.New(torerr.Config, "no configuration supplied to StartDaemon", nil)
	}

	m.sm.SetDaemon(state.Starting)

	spec, err := m.cfg.SupervisorSpec()
	if err != nil {
		return err
	}

	sup := supervisor.New(m.onSupervisorLine, m.onSupervisorExit)
	if err := sup.Start(context.Background(), spec); err != nil {
		m.sm.SetDaemon(state.Off)
		return err
	}

	network, addr, err := m.cfg.ControlDialTarget()
	if err != nil {
		return err
	}

	conn, err := control.Dial(network, addr, control.Config{}, m.env.OnUncaughtPanic)
	if err != nil {
		m.sm.SetDaemon(state.Off)
		return err
	}

	if err := m.authenticate(conn); err != nil {
		conn.Disconnect()
		m.sm.SetDaemon(state.Off)
		return torerr.New(torerr.Authentication, "failed to authenticate control connection", err)
	}

	// Step 5 of §4.10's StartDaemon sequence: SETEVENTS only once
	// AUTHENTICATE has succeeded (step 4), since the daemon refuses any
	// other command, SETEVENTS included, beforehand.
	conn.RefreshEvents()

	m.mu.Lock()
	m.conn = conn
	m.sup = sup
	m.mu.Unlock()

	return nil
}

func (m *Manager) authenticate(conn *control.Connection) error {
	// The PROTOCOLINFO/AUTHCHALLENGE round trip is driven by the password
	// and/or cookie path carried on torconfig.Config; the wire sequence
	// itself lives in control.(*Connection).Authenticate (S1).
	password, cookieFile := "", ""
	if m.cfg != nil {
		password, cookieFile = m.cfg.AuthPassword, m.cfg.CookieFile
	}
	return conn.Authenticate(password, cookieFile)
}

func (m *Manager) stop() error {
	if m.sm.Snapshot().Daemon == state.Off {
		return nil // idempotent per invariant 7
	}

	m.sm.SetDaemon(state.Stopping)

	m.mu.Lock()
	conn := m.conn
	sup := m.sup
	m.conn = nil
	m.sup = nil
	m.mu.Unlock()

	if conn != nil {
		done := make(chan struct{})
		conn.Send(control.Command{Verb: control.VerbSignal, Args: []string{"SHUTDOWN"}}, func(*reply.Group) { close(done) }, func(error) { close(done) })
		<-done
		conn.Disconnect()
	} else if sup != nil {
		_ = sup.Signal(os.Interrupt)
	}

	if sup != nil {
		sup.Wait(10 * time.Second)
	}

	m.sm.SetDaemon(state.Off)
	return nil
}

func (m *Manager) onSupervisorLine(line supervisor.LogLine) {
	if line.Level == supervisor.LevelDebug {
		m.sm.FeedNotice(line.Text)
	}
}

func (m *Manager) onSupervisorExit(err error) {
	if m.sm.Snapshot().Daemon != state.Stopping {
		m.sm.SetDaemon(state.Off)
	}
}
