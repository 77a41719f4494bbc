// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config reads the client configuration file and creates the server
// session from it.
package config

import (
	"net/http"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stockparfait/errors"
	"github.com/unifyclient/unify/message"
	"github.com/unifyclient/unify/session"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultPath of the configuration file, before home directory expansion.
const DefaultPath = "~/.config/unify/config.toml"

// Sample is printed when the configuration file does not exist.
const Sample = `host = "unify.example.com"
username = "admin"
# password = "secret"  # or set the UNIFY_PASSWORD environment variable

# [http]
# timeout = 60  # seconds, 0 for none
# headers = { X-Proxy-Token = "..." }
`

// HTTP client settings, the [http] table of the config file.
type HTTP struct {
	Timeout float64           `json:"timeout" default:"60"` // seconds
	Headers map[string]string `json:"headers"`
}

var _ message.Message = &HTTP{}

// InitMessage implements message.Message.
func (h *HTTP) InitMessage(js interface{}) error {
	if err := message.Init(h, js); err != nil {
		return err
	}
	if h.Timeout < 0 {
		return errors.Reason("timeout must be non-negative: %g", h.Timeout)
	}
	return nil
}

// Config of the client.
type Config struct {
	Protocol    string `json:"protocol" default:"http" choices:"http,https"`
	Host        string `json:"host" required:"true"`
	Port        int    `json:"port" default:"9100"`
	BasePath    string `json:"base_path" default:"/api/versioned/v1/"`
	Username    string `json:"username" required:"true"`
	Password    string `json:"password"`
	PasswordEnv string `json:"password_env" default:"UNIFY_PASSWORD"`
	HTTP        HTTP   `json:"http"`
}

var _ message.Message = &Config{}

// InitMessage implements message.Message.
func (c *Config) InitMessage(js interface{}) error {
	if err := message.Init(c, js); err != nil {
		return err
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.Reason("port %d is out of range", c.Port)
	}
	return nil
}

// Parse a TOML configuration document.
func Parse(doc []byte) (*Config, error) {
	var js map[string]interface{}
	if err := toml.Unmarshal(doc, &js); err != nil {
		return nil, errors.Annotate(err, "failed to parse TOML")
	}
	if js == nil {
		js = make(map[string]interface{})
	}
	var c Config
	if err := c.InitMessage(js); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	return &c, nil
}

// Load the configuration file. An empty path means DefaultPath. A leading
// "~" is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	filePath, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Annotate(err, "failed to expand config path '%s'", path)
	}
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Annotate(err,
				"config file '%s' does not exist.\nPlease create config file containing:\n%s",
				filePath, Sample)
		}
		return nil, errors.Annotate(err,
			"cannot check config file for existence: '%s'", filePath)
	}
	doc, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	c, err := Parse(doc)
	if err != nil {
		return nil, errors.Annotate(err, "in config file %s", filePath)
	}
	return c, nil
}

// GetPassword returns the password from the file, or else from the
// environment variable PasswordEnv.
func (c *Config) GetPassword() string {
	if c.Password != "" {
		return c.Password
	}
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// Instance of the configured server.
func (c *Config) Instance() session.Instance {
	return session.Instance{
		Protocol: c.Protocol,
		Host:     c.Host,
		Port:     c.Port,
		BasePath: c.BasePath,
	}
}

// Session authenticated with the configured credentials. The configured
// headers are sent with every request.
func (c *Config) Session() *session.Session {
	s := session.New(c.Instance(), session.UsernamePasswordAuth{
		Username: c.Username,
		Password: c.GetPassword(),
	})
	if len(c.HTTP.Headers) > 0 {
		s.Header = make(http.Header, len(c.HTTP.Headers))
		for k, v := range c.HTTP.Headers {
			s.Header.Set(k, v)
		}
	}
	return s
}

// Client for talking to the server, with the configured timeout.
func (c *Config) Client() *http.Client {
	return &http.Client{Timeout: time.Duration(c.HTTP.Timeout * float64(time.Second))}
}
