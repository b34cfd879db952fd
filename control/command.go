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

package control

import (
	"strings"
)

// Verb identifies a control-protocol command.
type Verb string

const (
	VerbAuthenticate          Verb = "AUTHENTICATE"
	VerbAuthChallenge         Verb = "AUTHCHALLENGE"
	VerbProtocolInfo          Verb = "PROTOCOLINFO"
	VerbSetConf               Verb = "SETCONF"
	VerbGetConf               Verb = "GETCONF"
	VerbGetInfo               Verb = "GETINFO"
	VerbSignal                Verb = "SIGNAL"
	VerbMapAddress            Verb = "MAPADDRESS"
	VerbExtendCircuit         Verb = "EXTENDCIRCUIT"
	VerbSetEvents             Verb = "SETEVENTS"
	VerbAddOnion              Verb = "ADD_ONION"
	VerbDelOnion              Verb = "DEL_ONION"
	VerbOnionClientAuthAdd    Verb = "ONION_CLIENT_AUTH_ADD"
	VerbOnionClientAuthView   Verb = "ONION_CLIENT_AUTH_VIEW"
	VerbOnionClientAuthRemove Verb = "ONION_CLIENT_AUTH_REMOVE"
	VerbHSFetch               Verb = "HSFETCH"
	VerbHSPost                Verb = "+HSPOST"
	VerbResolve               Verb = "RESOLVE"
	VerbDropGuards            Verb = "DROPGUARDS"
	VerbTakeOwnership         Verb = "TAKEOWNERSHIP"
	VerbDropOwnership         Verb = "DROPOWNERSHIP"
	VerbUseFeature            Verb = "USEFEATURE"
	VerbLoadConf              Verb = "+LOADCONF"
	VerbSaveConf              Verb = "SAVECONF"
	VerbQuit                  Verb = "QUIT"
	VerbConfig                Verb = "+CONFIG"
	VerbChallenge             Verb = "+CHALLENGE"
)

// Command is a single control-protocol request: a Verb, ordered
// keyword/argument pairs, and an optional multi-line data block.
type Command struct {
	Verb Verb
	Args []string
	Data []string
}

// multiline reports whether Verb requires a dot-terminated data block
// (the '+' prefixed variants).
func (c Command) multiline() bool {
	return strings.HasPrefix(string(c.Verb), "+")
}

// Encode renders the Command as the line(s) written to the control
// socket, each already CRLF-free (the transport appends CRLF per line).
func (c Command) Encode() []string {
	head := string(c.Verb)
	if !c.multiline() {
		head = strings.TrimPrefix(head, "+")
	}
	if len(c.Args) > 0 {
		head = head + " " + strings.Join(c.Args, " ")
	}

	if !c.multiline() {
		return []string{head}
	}

	lines := make([]string, 0, len(c.Data)+2)
	lines = append(lines, head)
	for _, d := range c.Data {
		if strings.HasPrefix(d, ".") {
			d = "." + d
		}
		lines = append(lines, d)
	}
	lines = append(lines, ".")
	return lines
}
