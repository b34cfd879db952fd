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

// Package reply implements the reply parser (C2): it turns a sequence of
// control-protocol lines into Reply Groups and Event Records.
package reply

import "strings"

// Line is a single parsed control-protocol line: a 3-digit status, a
// separator in {'-', '+', ' '}, and a message.
type Line struct {
	Status  int
	Sep     byte
	Message string
	Data    []byte
}

// Group is an ordered, non-empty set of Lines sharing one status code and
// belonging to a single reply.
type Group struct {
	Status int
	Lines  []Line
}

// Final is the last line of the group, the one with the ' ' separator.
// A data block is carried on the '+' line that opened it, not on Final.
func (g Group) Final() Line {
	return g.Lines[len(g.Lines)-1]
}

// OK reports whether the group's status is in the 2xx range.
func (g Group) OK() bool {
	return g.Status >= 200 && g.Status < 300
}

// Event is a 650-status asynchronous message, keyed by its leading
// keyword (CIRC, STREAM, STATUS_CLIENT, NOTICE, ...).
type Event struct {
	Keyword string
	Message string
	Data    []byte
}

const eventStatus = 650

// Parser consumes lines one at a time and emits completed Groups and
// Events. It is not safe for concurrent use; the owning Connection feeds
// it from a single reader goroutine.
type Parser struct {
	pending []Line
	inData  bool
	dataBuf []byte
}

// New returns a ready-to-use Parser.
func New() *Parser {
	return &Parser{}
}

// Result is returned by Feed for each line that completes a Group or
// Event; both fields are nil when the line only extended an in-progress
// Group or data block.
type Result struct {
	Group *Group
	Event *Event
}

// Feed parses one line (without its CRLF/LF terminator). A non-nil error
// means the line was malformed and the caller must shut the connection
// down with a Protocol error.
func (p *Parser) Feed(line string) (Result, error) {
	if p.inData {
		if line == "." {
			p.inData = false
			p.pending[len(p.pending)-1].Data = p.dataBuf
			p.dataBuf = nil
			return p.maybeComplete()
		}
		if strings.HasPrefix(line, ".") {
			line = line[1:]
		}
		p.dataBuf = append(p.dataBuf, []byte(line+"\r\n")...)
		return Result{}, nil
	}

	if len(line) < 4 {
		return Result{}, errMalformed(line)
	}

	status, ok := parseStatus(line[:3])
	if !ok {
		return Result{}, errMalformed(line)
	}

	sep := line[3]
	msg := line[4:]

	if status == eventStatus {
		return p.feedEvent(sep, msg)
	}

	switch sep {
	case '-', '+', ' ':
	default:
		return Result{}, errMalformed(line)
	}

	l := Line{Status: status, Sep: sep, Message: msg}
	p.pending = append(p.pending, l)

	if sep == '+' {
		p.inData = true
		p.dataBuf = nil
		return Result{}, nil
	}

	return p.maybeComplete()
}

func (p *Parser) feedEvent(sep byte, msg string) (Result, error) {
	if sep == '+' {
		// Multi-line event body: reuse the data-block accumulator, keyed
		// by a synthetic pending Line so maybeComplete's bookkeeping holds.
		p.pending = append(p.pending, Line{Status: eventStatus, Sep: sep, Message: msg})
		p.inData = true
		p.dataBuf = nil
		return Result{}, nil
	}

	keyword, rest := splitKeyword(msg)
	return Result{Event: &Event{Keyword: keyword, Message: rest}}, nil
}

func (p *Parser) maybeComplete() (Result, error) {
	last := p.pending[len(p.pending)-1]

	if last.Status == eventStatus {
		keyword, rest := splitKeyword(last.Message)
		ev := &Event{Keyword: keyword, Message: rest, Data: last.Data}
		p.pending = nil
		return Result{Event: ev}, nil
	}

	if last.Sep != ' ' {
		return Result{}, nil
	}

	g := &Group{Status: p.pending[0].Status, Lines: p.pending}
	p.pending = nil
	return Result{Group: g}, nil
}

func splitKeyword(msg string) (keyword, rest string) {
	if i := strings.IndexByte(msg, ' '); i >= 0 {
		return msg[:i], msg[i+1:]
	}
	return msg, ""
}

func parseStatus(s string) (int, bool) {
	if len(s) != 3 {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
