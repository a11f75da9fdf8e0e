package command

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-zoox/config"
	"github.com/go-zoox/fs"
)

// flagSource is the part of *cli.Context the commands read flags from.
type flagSource interface {
	IsSet(name string) bool
	String(name string) string
	Int(name string) int
	Bool(name string) bool
}

// loadConfig loads filepath into cfg; an empty filepath leaves cfg untouched.
func loadConfig(filepath string, cfg any) error {
	if filepath == "" {
		return nil
	}

	if !fs.IsExist(filepath) {
		return fmt.Errorf("config file not found at %s", filepath)
	}

	if err := config.Load(cfg, &config.LoadOptions{
		FilePath: filepath,
	}); err != nil {
		return fmt.Errorf("failed to load config file at %s: %v", filepath, err)
	}

	return nil
}

// parseRelay splits a relay url such as wss://relay.example.com:443/potato.
func parseRelay(relayR string) (method string, host string, port int, path string, err error) {
	relay, err := url.Parse(relayR)
	if err != nil {
		err = fmt.Errorf("invalid relay: %v", err)
		return
	}

	method = relay.Scheme
	host = relay.Hostname()
	path = relay.Path

	if method == "" || host == "" {
		err = fmt.Errorf("invalid relay %q, format: method://host:port", relayR)
		return
	}

	port = defaultPort(method)
	if relay.Port() != "" {
		port, err = strconv.Atoi(relay.Port())
		if err != nil {
			err = fmt.Errorf("invalid relay port: %v", err)
			return
		}
	}

	return
}

func defaultPort(method string) int {
	switch method {
	case "tls", "https", "wss":
		return 443
	case "ws":
		return 80
	default:
		return 8888
	}
}

func setString(flags flagSource, name string, target *string) {
	if flags.IsSet(name) {
		*target = flags.String(name)
	}
}

func setInt(flags flagSource, name string, target *int) {
	if flags.IsSet(name) {
		*target = flags.Int(name)
	}
}

func setInt64(flags flagSource, name string, target *int64) {
	if flags.IsSet(name) {
		*target = int64(flags.Int(name))
	}
}

func setBool(flags flagSource, name string, target *bool) {
	if flags.IsSet(name) {
		*target = flags.Bool(name)
	}
}
