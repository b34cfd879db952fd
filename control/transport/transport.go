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

// Package transport implements the line transport (C1) over the control
// socket: a CRLF-tolerant line reader running on its own goroutine, and
// an explicit-flush writer.
package transport

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/nabbar/torctl/ioutils/delim"
	"github.com/nabbar/torctl/size"
	"github.com/nabbar/torctl/torerr"
)

// Transport reads CRLF (or bare LF) terminated lines from a connected
// socket on a dedicated goroutine and writes outgoing lines with an
// explicit flush after each one.
type Transport struct {
	conn net.Conn
	rd   delim.BufferDelim
	wr   *bufio.Writer
	wmu  sync.Mutex

	lines chan string
	errs  chan error
	done  chan struct{}
	once  sync.Once
}

// New wraps conn and starts the reader goroutine. Lines are delivered
// without their line terminator.
func New(conn net.Conn) *Transport {
	t := &Transport{
		conn:  conn,
		rd:    delim.New(conn, '\n', 4*size.SizeKilo),
		wr:    bufio.NewWriter(conn),
		lines: make(chan string, 64),
		errs:  make(chan error, 1),
		done:  make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Lines returns the channel of successfully read, trimmed lines.
func (t *Transport) Lines() <-chan string {
	return t.lines
}

// Err returns a channel that receives exactly one terminal error (Closed
// on EOF, Io otherwise) when the reader goroutine stops.
func (t *Transport) Err() <-chan error {
	return t.errs
}

func (t *Transport) readLoop() {
	defer close(t.lines)

	for {
		raw, err := t.rd.ReadBytes()
		if len(raw) > 0 {
			line := strings.TrimRight(string(raw), "\r\n")
			select {
			case t.lines <- line:
			case <-t.done:
				return
			}
		}

		if err != nil {
			if err == io.EOF {
				t.errs <- torerr.New(torerr.Closed, "control socket closed by peer", err)
			} else {
				t.errs <- torerr.New(torerr.Io, "control socket read failed", err)
			}
			return
		}
	}
}

// WriteLine writes s followed by CRLF and flushes immediately.
func (t *Transport) WriteLine(s string) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	if _, err := t.wr.WriteString(s); err != nil {
		return torerr.New(torerr.Io, "control socket write failed", err)
	}
	if _, err := t.wr.WriteString("\r\n"); err != nil {
		return torerr.New(torerr.Io, "control socket write failed", err)
	}
	if err := t.wr.Flush(); err != nil {
		return torerr.New(torerr.Io, "control socket flush failed", err)
	}
	return nil
}

// Close stops the reader goroutine and closes the underlying socket.
func (t *Transport) Close() error {
	t.once.Do(func() {
		close(t.done)
	})
	_ = t.rd.Close()
	return t.conn.Close()
}
