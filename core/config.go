package core

import (
	"time"

	"github.com/go-zoox/potato/crypto"
	"github.com/go-zoox/potato/obfs"
)

type ClientConfig struct {
	Algorithm string `config:"algorithm"`
	Password  string `config:"password"`

	ServerAddr string `config:"server_addr"`
	ServerPort int    `config:"server_port"`
	LocalHost  string `config:"local_host"`
	LocalPort  int    `config:"local_port"`

	// Method is the relay transport: tcp, tls (https), ws or wss.
	Method   string `config:"method"`
	Path     string `config:"path"`
	Insecure bool   `config:"insecure"`

	Obfs string `config:"obfs"`
	Mode string `config:"mode"`

	// ReplyTimeout is in milliseconds; 0 waits forever.
	ReplyTimeout int64 `config:"reply_timeout"`
	// DialRetries is the number of extra relay dial attempts; zero disables
	// retries. NewClientConfig starts it at DefaultDialRetries.
	DialRetries int `config:"dial_retries"`
}

// NewClientConfig returns a config to load a file and flags into.
func NewClientConfig() *ClientConfig {
	return &ClientConfig{
		DialRetries: DefaultDialRetries,
	}
}

// ApplyDefaults fills every unset field.
func (c *ClientConfig) ApplyDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = DefaultAlgorithm
	}
	if c.ServerPort == 0 {
		c.ServerPort = DefaultServerPort
	}
	if c.LocalHost == "" {
		c.LocalHost = DefaultLocalHost
	}
	if c.LocalPort == 0 {
		c.LocalPort = DefaultLocalPort
	}
	if c.Method == "" {
		c.Method = DefaultMethod
	}
	if c.Obfs == "" {
		c.Obfs = obfs.None
	}
	if c.Mode == "" {
		c.Mode = DefaultMode
	}
	if c.DialRetries < 0 {
		c.DialRetries = 0
	}
}

func (c *ClientConfig) replyTimeout() time.Duration {
	return time.Duration(c.ReplyTimeout) * time.Millisecond
}

type ServerConfig struct {
	Algorithm string `config:"algorithm"`
	Password  string `config:"password"`

	Host string `config:"host"`
	Port int    `config:"port"`

	Method string `config:"method"`
	Path   string `config:"path"`
	Cert   string `config:"cert"`
	Key    string `config:"key"`

	Obfs string `config:"obfs"`
	Mode string `config:"mode"`

	// DialTimeout is in milliseconds.
	DialTimeout int64 `config:"dial_timeout"`
	// StatusPort serves GET /status when non-zero.
	StatusPort int `config:"status_port"`
}

func (c *ServerConfig) ApplyDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = DefaultAlgorithm
	}
	if c.Port == 0 {
		c.Port = DefaultServerPort
	}
	if c.Method == "" {
		c.Method = DefaultMethod
	}
	if c.Obfs == "" {
		c.Obfs = obfs.None
	}
	if c.Mode == "" {
		c.Mode = DefaultMode
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
}

func (c *ServerConfig) dialTimeout() time.Duration {
	return time.Duration(c.DialTimeout) * time.Millisecond
}

func newCipher(algorithm, password string) (*crypto.Cipher, error) {
	return crypto.New(&crypto.Config{
		Algorithm: algorithm,
		Secret:    password,
	})
}
