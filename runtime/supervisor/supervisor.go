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

// Package supervisor implements the process supervisor (C9): it spawns
// the tor executable, drains stdout/stderr line by line classifying
// each into a log level, and observes process exit.
package supervisor

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nabbar/torctl/duration"
	"github.com/nabbar/torctl/torerr"
)

// Level classifies one drained log line.
type Level uint8

const (
	LevelInfo Level = iota
	LevelDebug
	LevelWarn
	LevelError
)

// LogLine is one classified line handed to the caller's sink.
type LogLine struct {
	Level Level
	Text  string
}

// Spec describes the tor invocation, matching the argv of spec §6.
type Spec struct {
	Binary        string
	DataDirectory string
	CacheDirectory string
	GeoIPFile     string
	GeoIPv6File   string
	ControlPort   string // "auto" | "<port>" | "unix:<path>"
	SocksPort     string // "auto" | "0" | "<port>" | "unix:<path>"
	ExtraArgs     []string

	// ExitGrace is a grace period carried with the Spec. Supervisor does
	// not read it: Wait takes its grace period as an argument.
	ExitGrace duration.Duration
}

func (s Spec) argv() []string {
	args := []string{
		"--DataDirectory", s.DataDirectory,
		"--CacheDirectory", s.CacheDirectory,
		"--GeoIPFile", s.GeoIPFile,
		"--GeoIPv6File", s.GeoIPv6File,
		"--ControlPort", s.ControlPort,
		"--SocksPort", s.SocksPort,
		"--DisableNetwork", "1",
		"--RunAsDaemon", "0",
		"--__OwningControllerProcess", strconv.Itoa(os.Getpid()),
	}
	return append(args, s.ExtraArgs...)
}

// Supervisor owns one tor subprocess for the duration of its lifetime.
type Supervisor struct {
	onLine func(LogLine)
	onExit func(err error)

	mu   sync.Mutex
	cmd  *exec.Cmd
	wg   sync.WaitGroup
	done chan struct{}
}

// New returns an idle Supervisor. onLine receives every classified
// stdout/stderr line; onExit fires exactly once when a started process
// exits. A Start that fails returns its error and does not call onExit.
func New(onLine func(LogLine), onExit func(error)) *Supervisor {
	return &Supervisor{onLine: onLine, onExit: onExit}
}

// Start spawns tor per spec and begins draining its stdout/stderr.
func (s *Supervisor) Start(ctx context.Context, spec Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return torerr.New(torerr.Internal, "supervisor already running a process", nil)
	}

	cmd := exec.CommandContext(ctx, spec.Binary, spec.argv()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return torerr.New(torerr.Io, "failed to open tor stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return torerr.New(torerr.Io, "failed to open tor stderr", err)
	}

	if err := cmd.Start(); err != nil {
		return torerr.New(torerr.Io, "failed to start tor process", err)
	}

	s.cmd = cmd
	s.done = make(chan struct{})

	s.wg.Add(2)
	go s.drain(stdout, false)
	go s.drain(stderr, true)

	go func() {
		s.wg.Wait()
		err := cmd.Wait()
		close(s.done)
		if s.onExit != nil {
			s.onExit(err)
		}
	}()

	return nil
}

func (s *Supervisor) drain(r io.ReadCloser, isStderr bool) {
	defer s.wg.Done()

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		lvl := classify(line, isStderr)
		if s.onLine != nil {
			s.onLine(LogLine{Level: lvl, Text: line})
		}
	}
}

func classify(line string, isStderr bool) Level {
	if isStderr {
		return LevelError
	}
	switch {
	case strings.Contains(line, " [err] "):
		return LevelError
	case strings.Contains(line, " [warn] "):
		return LevelWarn
	case strings.Contains(line, " [notice] "):
		return LevelDebug
	default:
		return LevelInfo
	}
}

// Signal sends sig (e.g. "TERM", "KILL") to the running process, if any.
func (s *Supervisor) Signal(sig os.Signal) error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Signal(sig)
}

// Wait blocks until the process exits or grace elapses, in which case
// it force-kills the process.
func (s *Supervisor) Wait(grace time.Duration) {
	s.mu.Lock()
	done := s.done
	cmd := s.cmd
	s.mu.Unlock()

	if done == nil {
		return
	}

	select {
	case <-done:
	case <-time.After(grace):
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
	}
}

// Pid returns the supervised process id, or 0 if none is running.
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}
