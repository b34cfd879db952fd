/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

package torerr

// Kind classifies an Error along the lines tracked by the control protocol
// engine and the runtime manager. The zero value is never produced by New.
type Kind uint8

const (
	// Io covers socket and process I/O failures below the protocol layer.
	Io Kind = iota + 1
	// Closed means the peer closed the connection, or the caller did.
	Closed
	// Protocol means a malformed reply line or a dispatch desync was seen.
	Protocol
	// Refused means the control port answered with a 4xx status.
	Refused
	// Internal means the control port answered with a 5xx status.
	Internal
	// Timeout means a per-command wall-clock deadline expired.
	Timeout
	// Authentication means AUTHENTICATE (or the SAFECOOKIE handshake) failed.
	Authentication
	// Interrupted means a superseding Action preempted a queued Job.
	Interrupted
	// Cancelled means the caller cancelled a still-Queued Job.
	Cancelled
	// Destroyed means the owning Runtime has been irreversibly shut down.
	Destroyed
	// Config means Config validation failed before any process was spawned.
	Config
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case Closed:
		return "closed"
	case Protocol:
		return "protocol"
	case Refused:
		return "refused"
	case Internal:
		return "internal"
	case Timeout:
		return "timeout"
	case Authentication:
		return "authentication"
	case Interrupted:
		return "interrupted"
	case Cancelled:
		return "cancelled"
	case Destroyed:
		return "destroyed"
	case Config:
		return "config"
	default:
		return "unknown"
	}
}

// Recoverable reports whether an Error of this Kind leaves the owning
// Connection usable (per spec.md §7's propagation policy): Refused and
// Internal are per-job failures only, everything else tears the Connection
// down.
func (k Kind) Recoverable() bool {
	return k == Refused || k == Internal
}
