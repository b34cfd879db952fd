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

// Package state implements the state machine (C8): it tracks
// (DaemonState, NetworkState, BootstrapPct) and per-type listener
// addresses, applying the update rules of spec §4.8.
package state

import (
	"regexp"
	"strconv"
	"sync"
)

// DaemonState is the coarse lifecycle phase of the supervised daemon.
type DaemonState uint8

const (
	Off DaemonState = iota
	Starting
	On
	Stopping
)

func (d DaemonState) String() string {
	switch d {
	case Off:
		return "off"
	case Starting:
		return "starting"
	case On:
		return "on"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// NetworkState reflects tor's own DisableNetwork setting.
type NetworkState uint8

const (
	NetworkEnabled NetworkState = iota
	NetworkDisabled
)

// ListenerType enumerates the accepting sockets tor reports opening.
type ListenerType string

const (
	ListenerSocks       ListenerType = "SOCKS"
	ListenerControl     ListenerType = "CONTROL"
	ListenerDNS         ListenerType = "DNS"
	ListenerHTTPTunnel  ListenerType = "HTTPTUNNEL"
	ListenerTransparent ListenerType = "TRANSPARENT"
)

// AddressInfo is the current, possibly-empty, address map for every
// Listener type.
type AddressInfo map[ListenerType]string

// Clone returns an independent copy.
func (a AddressInfo) Clone() AddressInfo {
	out := make(AddressInfo, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Snapshot is the record passed to the Machine's onState callback, which
// fires when the daemon phase or network state changes and when the
// bootstrap percentage increases.
type Snapshot struct {
	Daemon    DaemonState
	Network   NetworkState
	Bootstrap int
	Addresses AddressInfo
}

// Machine holds the mutable state and applies every update rule from
// spec §4.8 under a single mutex.
type Machine struct {
	mu sync.Mutex

	daemon    DaemonState
	network   NetworkState
	bootstrap int
	addrs     AddressInfo
	hidden    AddressInfo // addresses cleared by a network disable, restored on re-enable

	onState   func(Snapshot)
	onAddress func(AddressInfo)
}

// New returns a Machine in Off/NetworkEnabled/0.
func New(onState func(Snapshot), onAddress func(AddressInfo)) *Machine {
	return &Machine{
		daemon:    Off,
		network:   NetworkEnabled,
		addrs:     AddressInfo{},
		onState:   onState,
		onAddress: onAddress,
	}
}

func (m *Machine) snapshot() Snapshot {
	return Snapshot{Daemon: m.daemon, Network: m.network, Bootstrap: m.bootstrap, Addresses: m.addrs.Clone()}
}

// SetDaemon transitions the daemon phase. On->{Off,Stopping} clears all
// listener AddressInfo to null, per §4.8.
func (m *Machine) SetDaemon(d DaemonState) {
	m.mu.Lock()
	changed := d != m.daemon
	wasOn := m.daemon == On
	m.daemon = d
	if d == Off {
		m.bootstrap = 0
		m.hidden = nil
	}
	var clearedAddrs bool
	if wasOn && (d == Off || d == Stopping) && len(m.addrs) > 0 {
		m.addrs = AddressInfo{}
		clearedAddrs = true
	}
	snap := m.snapshot()
	cb := m.onState
	addrCb := m.onAddress
	m.mu.Unlock()

	if changed && cb != nil {
		cb(snap)
	}
	if clearedAddrs && addrCb != nil {
		addrCb(snap.Addresses)
	}
}

// SetNetwork toggles NetworkState. Per §4.8, Enabled->Disabled with
// Bootstrap>=100 clears AddressInfo; the converse republishes it.
func (m *Machine) SetNetwork(n NetworkState) {
	m.mu.Lock()
	changed := n != m.network
	m.network = n

	var addrChanged bool
	if changed && m.bootstrap >= 100 {
		if n == NetworkDisabled {
			if len(m.addrs) > 0 {
				m.hidden = m.addrs
				m.addrs = AddressInfo{}
				addrChanged = true
			}
		} else {
			if len(m.hidden) > 0 {
				m.addrs = m.hidden
				m.hidden = nil
				addrChanged = true
			}
		}
	}

	snap := m.snapshot()
	cb := m.onState
	addrCb := m.onAddress
	m.mu.Unlock()

	if changed && cb != nil {
		cb(snap)
	}
	if addrChanged && addrCb != nil {
		addrCb(snap.Addresses)
	}
}

// SetBootstrap applies "Bootstrapped N%": monotonic within a session,
// decreases are ignored (invariant (iv)).
func (m *Machine) SetBootstrap(pct int) {
	m.mu.Lock()
	if pct <= m.bootstrap {
		m.mu.Unlock()
		return
	}
	m.bootstrap = pct
	if m.daemon == Off || m.daemon == Starting {
		m.daemon = On
	}
	snap := m.snapshot()
	cb := m.onState
	m.mu.Unlock()

	if cb != nil {
		cb(snap)
	}
}

// ListenerOpened records addr as the address for typ, emitting a new
// AddressInfo only if it changed from the previous value.
func (m *Machine) ListenerOpened(typ ListenerType, addr string) {
	m.mu.Lock()
	if m.addrs[typ] == addr {
		m.mu.Unlock()
		return
	}
	if m.addrs == nil {
		m.addrs = AddressInfo{}
	}
	m.addrs[typ] = addr
	snap := m.snapshot()
	cb := m.onAddress
	m.mu.Unlock()

	if cb != nil {
		cb(snap.Addresses)
	}
}

// ListenerClosed nulls typ's recorded address if it matches addr
// verbatim (invariant (v): string-wise equality, no normalization).
func (m *Machine) ListenerClosed(typ ListenerType, addr string) {
	m.mu.Lock()
	if m.addrs[typ] != addr {
		m.mu.Unlock()
		return
	}
	delete(m.addrs, typ)
	snap := m.snapshot()
	cb := m.onAddress
	m.mu.Unlock()

	if cb != nil {
		cb(snap.Addresses)
	}
}

// Snapshot returns the current state under lock.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

var (
	reBootstrap     = regexp.MustCompile(`Bootstrapped (\d+)%`)
	reListenerOpen  = regexp.MustCompile(`Opened (\w+) listener.* on ([^\s]+)`)
	reListenerClose = regexp.MustCompile(`Closing .*?(\w+) listener.* on ([^\s]+)`)
)

// FeedNotice parses one tor notice-level log line and applies whichever
// rule (bootstrap, listener opened/closed) it matches, if any. Matching
// is substring/regex based and deliberately tolerant of unrecognized
// notices (per §9, log-line parsing is version-sensitive).
func (m *Machine) FeedNotice(line string) {
	if g := reBootstrap.FindStringSubmatch(line); g != nil {
		if n, err := strconv.Atoi(g[1]); err == nil {
			m.SetBootstrap(n)
		}
		return
	}
	if g := reListenerOpen.FindStringSubmatch(line); g != nil {
		m.ListenerOpened(normalizeListenerType(g[1]), g[2])
		return
	}
	if g := reListenerClose.FindStringSubmatch(line); g != nil {
		m.ListenerClosed(normalizeListenerType(g[1]), g[2])
		return
	}
}

func normalizeListenerType(word string) ListenerType {
	switch word {
	case "Socks":
		return ListenerSocks
	case "Control":
		return ListenerControl
	case "DNS":
		return ListenerDNS
	case "HTTP", "HTTPTunnel":
		return ListenerHTTPTunnel
	case "Transparent", "TransNAT", "Transparentnatd":
		return ListenerTransparent
	default:
		return ListenerType(word)
	}
}
