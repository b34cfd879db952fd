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

// Package torconfig implements the Config/Setting data model of spec
// §3: an ordered sequence of Settings with port-collision normalization
// and Control-port Disable rejection, plus the translation into a
// supervisor.Spec and a control-socket dial target.
package torconfig

import (
	"strconv"
	"strings"

	"github.com/nabbar/torctl/network/protocol"
	"github.com/nabbar/torctl/runtime/supervisor"
	"github.com/nabbar/torctl/torerr"
)

// Auto is the sentinel value a collided or Disable-rejected port
// Setting is normalized to.
const Auto = "Auto"

// portKeywords are the Setting keywords carrying a port value subject
// to collision normalization.
var portKeywords = map[string]bool{
	"SocksPort":      true,
	"ControlPort":    true,
	"DNSPort":        true,
	"HTTPTunnelPort": true,
	"TransPort":      true,
}

// Setting is a single keyword with one or more argument items; the
// same keyword may repeat (multiple SocksPort entries).
type Setting struct {
	Keyword string
	Value   string
}

func (s Setting) isPort() bool { return portKeywords[s.Keyword] }

// Config is an ordered sequence of Settings plus the supervisor-level
// knobs (paths, geoip files) spec §6's argv requires.
type Config struct {
	Settings []Setting

	Binary         string
	DataDirectory  string
	CacheDirectory string
	GeoIPFile      string
	GeoIPv6File    string

	AuthPassword string
	CookieFile   string
}

// New returns an empty Config ready for AddSetting calls.
func New() *Config {
	return &Config{}
}

// AddSetting appends keyword=value, applying the normalization rules
// of spec §3/invariants 4-5:
//   - Control port explicitly set to "Disable" is silently rejected,
//     remaining Auto.
//   - A port Setting whose value collides with an already-present
//     port Setting's value is normalized to Auto.
func (c *Config) AddSetting(keyword, value string) {
	s := Setting{Keyword: keyword, Value: value}

	if keyword == "ControlPort" && strings.EqualFold(value, "Disable") {
		s.Value = Auto
	} else if s.isPort() && value != "" && !strings.EqualFold(value, Auto) {
		for _, existing := range c.Settings {
			if existing.isPort() && existing.Value == value {
				s.Value = Auto
				break
			}
		}
	}

	c.Settings = append(c.Settings, s)
}

// Get returns the first Setting value for keyword, if any.
func (c *Config) Get(keyword string) (string, bool) {
	for _, s := range c.Settings {
		if s.Keyword == keyword {
			return s.Value, true
		}
	}
	return "", false
}

// GetAll returns every Setting value for keyword, in order.
func (c *Config) GetAll(keyword string) []string {
	var out []string
	for _, s := range c.Settings {
		if s.Keyword == keyword {
			out = append(out, s.Value)
		}
	}
	return out
}

// SupervisorSpec translates the Config into the supervisor.Spec argv
// of spec §6.
func (c *Config) SupervisorSpec() (supervisor.Spec, error) {
	if c.DataDirectory == "" {
		return supervisor.Spec{}, torerr.New(torerr.Config, "DataDirectory is required", nil)
	}

	controlPort, _ := c.Get("ControlPort")
	if controlPort == "" {
		controlPort = Auto
	}
	socksPort, _ := c.Get("SocksPort")
	if socksPort == "" {
		socksPort = Auto
	}

	return supervisor.Spec{
		Binary:         orDefault(c.Binary, "tor"),
		DataDirectory:  c.DataDirectory,
		CacheDirectory: orDefault(c.CacheDirectory, c.DataDirectory),
		GeoIPFile:      c.GeoIPFile,
		GeoIPv6File:    c.GeoIPv6File,
		ControlPort:    controlPort,
		SocksPort:      socksPort,
	}, nil
}

// ControlDialTarget returns the net.Dial-compatible network/address
// pair for the configured ControlPort, resolving "unix:<path>" and
// TCP port forms per §6's loopback-only policy.
func (c *Config) ControlDialTarget() (network, addr string, err error) {
	cp, ok := c.Get("ControlPort")
	if !ok || cp == "" || strings.EqualFold(cp, Auto) {
		return "", "", torerr.New(torerr.Config, "ControlPort must be a concrete value to dial", nil)
	}

	if strings.HasPrefix(cp, "unix:") {
		path := strings.TrimPrefix(cp, "unix:")
		if len(path) > 104 {
			return "", "", torerr.New(torerr.Config, "unix control socket path exceeds 104 bytes", nil)
		}
		return protocol.NetworkUnix.String(), path, nil
	}

	if _, err := strconv.Atoi(cp); err != nil {
		return "", "", torerr.New(torerr.Config, "ControlPort must be numeric or unix:<path>", err)
	}
	return protocol.NetworkTCP.String(), "127.0.0.1:" + cp, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
