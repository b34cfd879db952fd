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

package torconfig

import (
	"github.com/spf13/viper"

	"github.com/nabbar/torctl/torerr"
)

// Loader hydrates a base Config from a YAML/TOML/JSON file, so a
// deployment can ship a declarative default torrc-equivalent instead
// of building every Setting programmatically.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a Loader reading path (extension selects the
// codec, per viper's convention).
func NewLoader(path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, torerr.New(torerr.Config, "failed to read config file", err)
	}
	return &Loader{v: v}, nil
}

// fileSetting mirrors one entry of the "settings" array in the file.
type fileSetting struct {
	Keyword string `mapstructure:"keyword"`
	Value   string `mapstructure:"value"`
}

// Load builds a Config from the file's "dataDirectory", "cacheDirectory",
// "geoipFile", "geoipv6File", "binary" and "settings" keys.
func (l *Loader) Load() (*Config, error) {
	c := New()
	c.Binary = l.v.GetString("binary")
	c.DataDirectory = l.v.GetString("dataDirectory")
	c.CacheDirectory = l.v.GetString("cacheDirectory")
	c.GeoIPFile = l.v.GetString("geoipFile")
	c.GeoIPv6File = l.v.GetString("geoipv6File")
	c.AuthPassword = l.v.GetString("authPassword")
	c.CookieFile = l.v.GetString("cookieFile")

	var settings []fileSetting
	if err := l.v.UnmarshalKey("settings", &settings); err != nil {
		return nil, torerr.New(torerr.Config, "failed to decode settings", err)
	}
	for _, s := range settings {
		c.AddSetting(s.Keyword, s.Value)
	}

	return c, nil
}
