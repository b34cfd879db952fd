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
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"os"
	"strings"

	"github.com/nabbar/torctl/control/reply"
	"github.com/nabbar/torctl/torerr"
)

const (
	safeCookieClientConst = "Tor safe cookie authentication controller-to-server hash"
	safeCookieServerConst = "Tor safe cookie authentication server-to-controller hash"
	cookieLength          = 32
	nonceLength           = 32
)

// AuthMethod identifies one of the three control-port authentication
// schemes advertised by PROTOCOLINFO.
type AuthMethod string

const (
	AuthNull           AuthMethod = "NULL"
	AuthHashedPassword AuthMethod = "HASHEDPASSWORD"
	AuthSafeCookie     AuthMethod = "SAFECOOKIE"
)

// AuthInfo is the subset of a PROTOCOLINFO reply the authenticator needs:
// the advertised methods and, for COOKIE-based auth, the cookie file path.
type AuthInfo struct {
	Methods    []AuthMethod
	CookieFile string
}

// Supports reports whether m is among the advertised methods.
func (a AuthInfo) Supports(m AuthMethod) bool {
	for _, x := range a.Methods {
		if x == m {
			return true
		}
	}
	return false
}

// ParseProtocolInfo extracts AuthInfo from the messages of a PROTOCOLINFO
// reply's lines, i.e. each line with its status code and separator
// already stripped (as reply.Line.Message holds it).
func ParseProtocolInfo(lines []string) AuthInfo {
	var info AuthInfo
	for _, l := range lines {
		if !strings.HasPrefix(l, "AUTH ") {
			continue
		}
		fields := strings.Fields(l)
		for _, f := range fields {
			switch {
			case strings.HasPrefix(f, "METHODS="):
				for _, m := range strings.Split(strings.TrimPrefix(f, "METHODS="), ",") {
					info.Methods = append(info.Methods, AuthMethod(m))
				}
			case strings.HasPrefix(f, "COOKIEFILE="):
				info.CookieFile = strings.Trim(strings.TrimPrefix(f, "COOKIEFILE="), `"`)
			}
		}
	}
	return info
}

// authenticator drives the AUTHENTICATE handshake given a password (for
// HASHEDPASSWORD) and/or a cookie file path (for SAFECOOKIE), preferring
// SAFECOOKIE > HASHEDPASSWORD > NULL when more than one is usable.
type authenticator struct {
	password string
}

func newAuthenticator(password string) *authenticator {
	return &authenticator{password: password}
}

// plan decides which method to use and reports whether an AUTHCHALLENGE
// round must run before AUTHENTICATE (needsChallenge is true only for
// SAFECOOKIE).
func (a *authenticator) plan(info AuthInfo) (method AuthMethod, needsChallenge bool, err error) {
	switch {
	case info.Supports(AuthSafeCookie) && info.CookieFile != "":
		return AuthSafeCookie, true, nil
	case info.Supports(AuthHashedPassword) && a.password != "":
		return AuthHashedPassword, false, nil
	case info.Supports(AuthNull):
		return AuthNull, false, nil
	default:
		return "", false, torerr.New(torerr.Authentication, "no usable authentication method advertised", nil)
	}
}

// nullOrPassword builds the AUTHENTICATE Command for NULL/HASHEDPASSWORD.
func (a *authenticator) nullOrPassword(method AuthMethod) Command {
	if method == AuthNull {
		return Command{Verb: VerbAuthenticate}
	}
	return Command{Verb: VerbAuthenticate, Args: []string{`"` + a.password + `"`}}
}

// challenge builds the AUTHCHALLENGE Command, generating the client
// nonce that must also be passed to verify.
func (a *authenticator) challenge() (cmd Command, clientNonce []byte, err error) {
	clientNonce = make([]byte, nonceLength)
	if _, err = rand.Read(clientNonce); err != nil {
		return Command{}, nil, torerr.New(torerr.Internal, "failed to generate client nonce", err)
	}
	return Command{
		Verb: VerbAuthChallenge,
		Args: []string{string(AuthSafeCookie), hex.EncodeToString(clientNonce)},
	}, clientNonce, nil
}

// verify checks the server's AUTHCHALLENGE reply against the cookie and
// produces the follow-up AUTHENTICATE Command.
func (a *authenticator) verify(cookieFile string, clientNonce []byte, serverHash, serverNonceHex []byte) (Command, error) {
	cookie, err := os.ReadFile(cookieFile)
	if err != nil {
		return Command{}, torerr.New(torerr.Authentication, "failed to read cookie file", err)
	}
	if len(cookie) != cookieLength {
		return Command{}, torerr.New(torerr.Authentication, "cookie file has unexpected length", nil)
	}

	serverNonce, err := hex.DecodeString(string(serverNonceHex))
	if err != nil {
		return Command{}, torerr.New(torerr.Authentication, "malformed SERVERNONCE", err)
	}

	wantServerHash := computeHMAC(safeCookieServerConst, cookie, clientNonce, serverNonce)
	if subtle.ConstantTimeCompare(wantServerHash, serverHash) != 1 {
		return Command{}, torerr.New(torerr.Authentication, "SERVERHASH mismatch", nil)
	}

	clientHash := computeHMAC(safeCookieClientConst, cookie, clientNonce, serverNonce)
	return Command{Verb: VerbAuthenticate, Args: []string{hex.EncodeToString(clientHash)}}, nil
}

func computeHMAC(key string, cookie, clientNonce, serverNonce []byte) []byte {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(cookie)
	mac.Write(clientNonce)
	mac.Write(serverNonce)
	return mac.Sum(nil)
}

// Authenticate drives the PROTOCOLINFO -> [AUTHCHALLENGE] -> AUTHENTICATE
// handshake of spec §6/S1 against conn, preferring SAFECOOKIE over
// HASHEDPASSWORD over NULL depending on what PROTOCOLINFO advertises and
// which credentials the caller supplied. cookieFile overrides the
// PROTOCOLINFO-reported COOKIEFILE when non-empty (the caller's own config
// takes precedence over what the daemon happens to report).
func (c *Connection) Authenticate(password, cookieFile string) error {
	info, err := c.protocolInfo()
	if err != nil {
		return err
	}
	if cookieFile != "" {
		info.CookieFile = cookieFile
	}

	auth := newAuthenticator(password)
	method, needsChallenge, err := auth.plan(info)
	if err != nil {
		return err
	}
	if !needsChallenge {
		return c.sendAuth(auth.nullOrPassword(method))
	}
	return c.authenticateSafeCookie(auth, info.CookieFile)
}

func (c *Connection) protocolInfo() (AuthInfo, error) {
	group, err := c.sendSync(Command{Verb: VerbProtocolInfo})
	if err != nil {
		return AuthInfo{}, err
	}

	lines := make([]string, len(group.Lines))
	for i, l := range group.Lines {
		lines[i] = l.Message
	}
	return ParseProtocolInfo(lines), nil
}

func (c *Connection) authenticateSafeCookie(auth *authenticator, cookieFile string) error {
	cmd, clientNonce, err := auth.challenge()
	if err != nil {
		return err
	}

	group, err := c.sendSync(cmd)
	if err != nil {
		return err
	}

	serverHash, serverNonce, err := parseAuthChallengeReply(group.Final().Message)
	if err != nil {
		return err
	}

	authCmd, err := auth.verify(cookieFile, clientNonce, serverHash, serverNonce)
	if err != nil {
		return err
	}
	return c.sendAuth(authCmd)
}

// sendSync issues cmd and blocks for its Group, for the handshake steps
// that need to inspect the reply before deciding what to send next.
func (c *Connection) sendSync(cmd Command) (*reply.Group, error) {
	done := make(chan struct{})
	var (
		group *reply.Group
		err   error
	)
	c.Send(cmd, func(g *reply.Group) { group = g; close(done) }, func(e error) { err = e; close(done) })
	<-done
	return group, err
}

func (c *Connection) sendAuth(cmd Command) error {
	done := make(chan error, 1)
	c.Send(cmd, func(*reply.Group) { done <- nil }, func(err error) { done <- err })
	return <-done
}

// parseAuthChallengeReply extracts SERVERHASH/SERVERNONCE from an
// AUTHCHALLENGE reply's final line, e.g.
// "AUTHCHALLENGE SERVERHASH=<hex> SERVERNONCE=<hex>".
func parseAuthChallengeReply(msg string) (serverHash, serverNonce []byte, err error) {
	var hashHex, nonceHex string
	for _, f := range strings.Fields(msg) {
		switch {
		case strings.HasPrefix(f, "SERVERHASH="):
			hashHex = strings.TrimPrefix(f, "SERVERHASH=")
		case strings.HasPrefix(f, "SERVERNONCE="):
			nonceHex = strings.TrimPrefix(f, "SERVERNONCE=")
		}
	}
	if hashHex == "" || nonceHex == "" {
		return nil, nil, torerr.New(torerr.Protocol, "malformed AUTHCHALLENGE reply", nil)
	}

	if serverHash, err = hex.DecodeString(hashHex); err != nil {
		return nil, nil, torerr.New(torerr.Protocol, "malformed SERVERHASH", err)
	}
	if serverNonce, err = hex.DecodeString(nonceHex); err != nil {
		return nil, nil, torerr.New(torerr.Protocol, "malformed SERVERNONCE", err)
	}
	return serverHash, serverNonce, nil
}
