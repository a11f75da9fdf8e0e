package main

import (
	"github.com/go-zoox/logger"
	"github.com/go-zoox/potato/core"
)

func main() {
	c, err := core.NewClient(&core.ClientConfig{
		Password:     "29f4e3d3a4302b4d9e01",
		ServerAddr:   "127.0.0.1",
		ServerPort:   8888,
		Method:       "ws",
		Path:         "/potato",
		Obfs:         "xor",
		LocalPort:    1080,
		ReplyTimeout: 5000,
		DialRetries:  core.DefaultDialRetries,
	})
	if err != nil {
		logger.Fatal("failed to create client: %s", err)
		return
	}

	if err := c.Run(); err != nil {
		logger.Fatal("failed to start socks5 server: %s", err)
		return
	}
}
