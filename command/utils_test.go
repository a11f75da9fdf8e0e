package command

import (
	"path/filepath"
	"testing"

	"github.com/go-zoox/potato/core"
)

type fakeFlags map[string]any

func (f fakeFlags) IsSet(name string) bool {
	_, ok := f[name]
	return ok
}

func (f fakeFlags) String(name string) string {
	v, _ := f[name].(string)
	return v
}

func (f fakeFlags) Int(name string) int {
	v, _ := f[name].(int)
	return v
}

func (f fakeFlags) Bool(name string) bool {
	v, _ := f[name].(bool)
	return v
}

func TestParseRelay(t *testing.T) {
	cases := []struct {
		relay  string
		method string
		host   string
		port   int
		path   string
	}{
		{"wss://relay.example.com/potato", "wss", "relay.example.com", 443, "/potato"},
		{"ws://127.0.0.1:8080/ws", "ws", "127.0.0.1", 8080, "/ws"},
		{"tcp://10.0.0.1:8888", "tcp", "10.0.0.1", 8888, ""},
		{"https://relay.example.com", "https", "relay.example.com", 443, ""},
	}

	for _, c := range cases {
		method, host, port, path, err := parseRelay(c.relay)
		if err != nil {
			t.Fatalf("failed to parse %s: %v", c.relay, err)
		}

		if method != c.method {
			t.Fatalf("method not match, expect %s, but got %s", c.method, method)
		}
		if host != c.host {
			t.Fatalf("host not match, expect %s, but got %s", c.host, host)
		}
		if port != c.port {
			t.Fatalf("port not match, expect %d, but got %d", c.port, port)
		}
		if path != c.path {
			t.Fatalf("path not match, expect %s, but got %s", c.path, path)
		}
	}

	for _, invalid := range []string{"relay.example.com:443", "tcp://relay:port"} {
		if _, _, _, _, err := parseRelay(invalid); err == nil {
			t.Fatalf("expect error for %s", invalid)
		}
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	// as loaded from a config file
	cfg := &core.ClientConfig{
		Algorithm:  "aes-128-cfb",
		Password:   "from-file",
		ServerAddr: "file.example.com",
		ServerPort: 9000,
		LocalPort:  1081,
		Obfs:       "xor",
	}

	err := applyClientFlags(fakeFlags{
		"server":        "wss://flag.example.com/tunnel",
		"password":      "from-flag",
		"reply-timeout": 3000,
		"insecure":      true,
	}, cfg)
	if err != nil {
		t.Fatalf("failed to apply flags: %v", err)
	}

	if cfg.Password != "from-flag" {
		t.Fatalf("Password not match, expect from-flag, but got %s", cfg.Password)
	}
	if cfg.ServerAddr != "flag.example.com" || cfg.ServerPort != 443 || cfg.Method != "wss" || cfg.Path != "/tunnel" {
		t.Fatalf("relay not match, got %s://%s:%d%s", cfg.Method, cfg.ServerAddr, cfg.ServerPort, cfg.Path)
	}
	if cfg.ReplyTimeout != 3000 || !cfg.Insecure {
		t.Fatalf("flags not applied, got %+v", cfg)
	}

	// untouched by flags
	if cfg.Algorithm != "aes-128-cfb" || cfg.LocalPort != 1081 || cfg.Obfs != "xor" {
		t.Fatalf("file values lost, got %+v", cfg)
	}

	cfg.ApplyDefaults()
	if cfg.LocalHost != core.DefaultLocalHost || cfg.Mode != core.DefaultMode {
		t.Fatalf("defaults not applied, got %+v", cfg)
	}
}

func TestDialRetriesFlag(t *testing.T) {
	cfg := core.NewClientConfig()
	applyClientFlags(fakeFlags{}, cfg)
	if cfg.DialRetries != core.DefaultDialRetries {
		t.Fatalf("DialRetries not match, expect %d, but got %d", core.DefaultDialRetries, cfg.DialRetries)
	}

	applyClientFlags(fakeFlags{"dial-retries": 0}, cfg)
	cfg.ApplyDefaults()
	if cfg.DialRetries != 0 {
		t.Fatalf("DialRetries not match, expect 0, but got %d", cfg.DialRetries)
	}
}

func TestServerFlags(t *testing.T) {
	cfg := &core.ServerConfig{Port: 9000, Mode: "inline"}
	applyServerFlags(fakeFlags{
		"port":         8443,
		"method":       "wss",
		"status-port":  9090,
		"dial-timeout": 500,
	}, cfg)

	if cfg.Port != 8443 || cfg.Method != "wss" || cfg.StatusPort != 9090 || cfg.DialTimeout != 500 {
		t.Fatalf("flags not applied, got %+v", cfg)
	}
	if cfg.Mode != "inline" {
		t.Fatalf("Mode not match, expect inline, but got %s", cfg.Mode)
	}
}

func TestLoadConfigNotFound(t *testing.T) {
	var cfg core.ServerConfig
	if err := loadConfig(filepath.Join(t.TempDir(), "missing.yml"), &cfg); err == nil {
		t.Fatalf("expect error for missing config file")
	}

	if err := loadConfig("", &cfg); err != nil {
		t.Fatalf("expect no error without a config file, but got %v", err)
	}
}
